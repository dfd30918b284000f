// Package planner decides which dates still need fetching for a theater.
package planner

import "time"

// Planner computes per-theater fetch plans from progress watermarks.
type Planner struct {
	// stalenessDays is how many days past the watermark a theater's
	// listings are still presumed complete. A theater fully fetched six
	// days ago still has complete near-term data; smaller venues may be
	// re-checked slightly more often than strictly necessary, which is
	// accepted as harmless.
	stalenessDays int
}

// New creates a Planner with the given staleness window in days.
func New(stalenessDays int) *Planner {
	return &Planner{stalenessDays: stalenessDays}
}

// Window returns the run's target dates: today through today+days-1.
func Window(today time.Time, days int) []time.Time {
	today = truncate(today)
	dates := make([]time.Time, days)
	for i := range dates {
		dates[i] = today.AddDate(0, 0, i)
	}
	return dates
}

// CoveredToday reports whether the watermark already equals today, meaning
// the theater was fully refreshed this run-day and is skipped entirely.
func (p *Planner) CoveredToday(watermark *time.Time, today time.Time) bool {
	return watermark != nil && truncate(*watermark).Equal(truncate(today))
}

// Remaining returns the subset of window dates that still need fetching.
// A nil watermark means the whole window; otherwise any date within
// stalenessDays of the watermark is skipped.
func (p *Planner) Remaining(watermark *time.Time, window []time.Time) []time.Time {
	if watermark == nil {
		return window
	}
	covered := truncate(*watermark).AddDate(0, 0, p.stalenessDays)
	var remaining []time.Time
	for _, d := range window {
		if !truncate(d).After(covered) {
			continue
		}
		remaining = append(remaining, d)
	}
	return remaining
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

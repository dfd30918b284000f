// Package archiver rotates long-gone showtimes into the archive table.
package archiver

import (
	"context"
	"log/slog"
	"time"

	"showtimes/internal/storage"
)

// Archiver moves (movie, theater) pairings whose screenings are all in the
// past beyond the retention threshold out of the live showtimes table,
// summarized by first and last observed date.
type Archiver struct {
	store           storage.Store
	retentionMonths int
	log             *slog.Logger
	now             func() time.Time
}

// New creates an Archiver with the given retention in months.
func New(store storage.Store, retentionMonths int, log *slog.Logger) *Archiver {
	return &Archiver{
		store:           store,
		retentionMonths: retentionMonths,
		log:             log,
		now:             time.Now,
	}
}

// SetNow overrides the clock (for testing).
func (a *Archiver) SetNow(now func() time.Time) {
	a.now = now
}

// Run archives every eligible pairing and returns how many were archived.
// Each pairing is archived atomically; a pairing whose archive step fails is
// left untouched for the next run and does not stop the others.
func (a *Archiver) Run(ctx context.Context) (int, error) {
	cutoff := a.now().AddDate(0, -a.retentionMonths, 0)

	eligible, err := a.store.ListArchiveEligible(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	a.log.Info("archiving pairings", "count", len(eligible), "cutoff", cutoff.Format("2006-01-02"))

	archived := 0
	for _, entry := range eligible {
		if err := a.store.ArchivePairing(ctx, entry); err != nil {
			a.log.Error("archive pairing failed",
				"movie_id", entry.MovieID, "theater_id", entry.TheaterID, "error", err)
			continue
		}
		archived++
	}
	return archived, nil
}

// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for showtime dates and
// watermarks, both in ids and at the storage boundary.
const DateLayout = "2006-01-02"

// Theater represents a single movie theater known to the system.
type Theater struct {
	// ID is the stable external identifier taken from the source site's
	// theater URL. It is the join key for showtimes.
	ID      string
	Name    string
	URL     string
	Address string
	// DateUpdated is the watermark: the date of the last successful
	// full-week fetch for this theater. Nil until the first full fetch.
	DateUpdated *time.Time
}

// Movie represents a film that has at least one recorded showtime.
// Optional fields use pointers (or the empty string) so that a partial
// scrape can leave them unset without erasing previously captured values.
type Movie struct {
	ID             string
	Name           string
	URL            string
	ReleaseYear    *int
	RuntimeMinutes *int
	Rating         string
	ImageURL       string

	// Enrichment fields, filled in opportunistically and never erased.
	CriticScore   *int
	AudienceScore *int
	Genres        string
	Synopsis      string
}

// Showtime represents one screening of a movie at a theater.
type Showtime struct {
	// ID is the deterministic composite key built by ShowtimeID.
	ID        string
	MovieID   string
	TheaterID string
	URL       string
	// Date is the screening date in DateLayout form.
	Date string
	// Time is the 24-hour screening time, HH:MM:SS.
	Time   string
	Format string
	// DateInserted is stamped on every successful write; consumers use it
	// to tell currently listed rows from stale ones.
	DateInserted time.Time
}

// ShowtimeID builds the natural key for a showing. Re-scraping the same
// showing always yields the same id, so upserts target the same row.
func ShowtimeID(movieID, theaterID, date, clock string) string {
	return fmt.Sprintf("%s_%s_%s_%s", movieID, theaterID, date, clock)
}

// Subscriber is a person receiving weekly schedules.
type Subscriber struct {
	ID    int64
	Name  string
	Email string
}

// Subscription links a subscriber to a theater and to the zip code the
// theater was discovered through. Read-only input to the pipeline.
type Subscription struct {
	SubscriberID int64
	TheaterID    string
	ZipCode      string
	Active       bool
}

// ArchiveEntry summarizes a retired (movie, theater) pairing: the earliest
// and latest screening dates ever observed for it.
type ArchiveEntry struct {
	MovieID   string
	TheaterID string
	StartDate string
	EndDate   string
}

// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"showtimes/internal/model"
)

// ShowingCount is the number of screenings recorded for a (movie, theater)
// pairing.
type ShowingCount struct {
	MovieID   string
	TheaterID string
	Count     int
}

// Store is the interface for all persistence operations.
//
// Get* methods return (nil, nil) when no row exists. Put* methods write the
// full row, replacing any existing one with the same id; field-level merge
// policy lives in the merge package, not here.
type Store interface {
	GetTheater(ctx context.Context, id string) (*model.Theater, error)
	PutTheater(ctx context.Context, t model.Theater) error
	ListTheaters(ctx context.Context) ([]model.Theater, error)
	ListTheatersByZipCodes(ctx context.Context, zips []string) ([]model.Theater, error)
	// SetTheaterDateUpdated advances the theater's fetch watermark.
	SetTheaterDateUpdated(ctx context.Context, theaterID string, day time.Time) error

	GetMovie(ctx context.Context, id string) (*model.Movie, error)
	PutMovie(ctx context.Context, m model.Movie) error
	ListMovies(ctx context.Context) ([]model.Movie, error)

	GetShowtime(ctx context.Context, id string) (*model.Showtime, error)
	PutShowtime(ctx context.Context, s model.Showtime) error
	// ListShowtimesAfter returns showtimes strictly after the given date.
	ListShowtimesAfter(ctx context.Context, day time.Time) ([]model.Showtime, error)
	// ListNewShowtimes returns showtimes whose (movie, theater) pairing has
	// no screening on or before the cutoff date.
	ListNewShowtimes(ctx context.Context, cutoff time.Time) ([]model.Showtime, error)
	// ListShowingCounts returns pairings with at most max screenings
	// strictly after the given date.
	ListShowingCounts(ctx context.Context, after time.Time, max int) ([]ShowingCount, error)

	ListActiveZipCodes(ctx context.Context) ([]string, error)
	AddZipCodeTheater(ctx context.Context, zipCode, theaterID string) error

	ListSubscribers(ctx context.Context) ([]model.Subscriber, error)
	ListSubscribedTheaters(ctx context.Context, subscriberID int64) ([]string, error)

	// ListArchiveEligible returns one entry per (movie, theater) pairing
	// whose latest screening date is on or before the cutoff, with the
	// pairing's earliest and latest observed dates.
	ListArchiveEligible(ctx context.Context, cutoff time.Time) ([]model.ArchiveEntry, error)
	// ArchivePairing records the archive entry and deletes the pairing's
	// showtime rows as a single transaction.
	ArchivePairing(ctx context.Context, entry model.ArchiveEntry) error

	Close() error
}

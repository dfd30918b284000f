package archiver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"showtimes/internal/model"
	"showtimes/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func putShowtime(t *testing.T, s *storage.SQLite, movieID, theaterID, day string) {
	t.Helper()
	err := s.PutShowtime(context.Background(), model.Showtime{
		ID:           model.ShowtimeID(movieID, theaterID, day, "19:00:00"),
		MovieID:      movieID,
		TheaterID:    theaterID,
		URL:          "https://example.com/buy",
		Date:         day,
		Time:         "19:00:00",
		DateInserted: time.Now(),
	})
	if err != nil {
		t.Fatalf("put showtime: %v", err)
	}
}

func fixedNow(t *testing.T, s string) func() time.Time {
	t.Helper()
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		t.Fatalf("parse date %s: %v", s, err)
	}
	return func() time.Time { return d }
}

func TestRunArchivesEligiblePairings(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	// All screenings more than a month before 2024-12-01: eligible.
	putShowtime(t, store, "old", "t1", "2024-10-01")
	putShowtime(t, store, "old", "t1", "2024-10-15")
	// One screening within the last month: kept live.
	putShowtime(t, store, "cur", "t1", "2024-11-20")

	a := New(store, 1, testLogger())
	a.SetNow(fixedNow(t, "2024-12-01"))

	archived, err := a.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if archived != 1 {
		t.Errorf("archived = %d, want 1", archived)
	}

	eligible, err := store.ListArchiveEligible(ctx, fixedNow(t, "2024-11-01")())
	if err != nil {
		t.Fatalf("list eligible: %v", err)
	}
	if len(eligible) != 0 {
		t.Errorf("eligible after run = %+v, want none", eligible)
	}

	// Re-running with nothing newly eligible is a no-op.
	archived, err = a.Run(ctx)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if archived != 0 {
		t.Errorf("rerun archived = %d, want 0", archived)
	}
}

// failingStore wraps a Store and fails ArchivePairing for one pairing.
type failingStore struct {
	storage.Store
	failMovieID string
}

func (f *failingStore) ArchivePairing(ctx context.Context, entry model.ArchiveEntry) error {
	if entry.MovieID == f.failMovieID {
		return errors.New("disk full")
	}
	return f.Store.ArchivePairing(ctx, entry)
}

func TestRunContinuesPastFailedPairing(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	putShowtime(t, store, "aaa", "t1", "2024-10-01")
	putShowtime(t, store, "bbb", "t1", "2024-10-02")

	a := New(&failingStore{Store: store, failMovieID: "aaa"}, 1, testLogger())
	a.SetNow(fixedNow(t, "2024-12-01"))

	archived, err := a.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if archived != 1 {
		t.Errorf("archived = %d, want 1", archived)
	}

	// The failed pairing is untouched and picked up next run.
	eligible, err := store.ListArchiveEligible(ctx, fixedNow(t, "2024-11-01")())
	if err != nil {
		t.Fatalf("list eligible: %v", err)
	}
	want := []model.ArchiveEntry{
		{MovieID: "aaa", TheaterID: "t1", StartDate: "2024-10-01", EndDate: "2024-10-01"},
	}
	if diff := cmp.Diff(want, eligible); diff != "" {
		t.Errorf("eligible mismatch (-want +got):\n%s", diff)
	}
}

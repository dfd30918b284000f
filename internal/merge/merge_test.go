package merge

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"showtimes/internal/model"
	"showtimes/internal/storage"
)

func newEngine(t *testing.T) (*Engine, *storage.SQLite) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, log), store
}

func intp(v int) *int { return &v }

func TestMoviesCoalesce(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t)

	first := model.Movie{
		ID:       "234731",
		Name:     "The Green Knight",
		URL:      "https://example.com/green-knight",
		Rating:   "R",
		Synopsis: "A hero rises.",
	}
	if _, err := e.Movies(ctx, []model.Movie{first}); err != nil {
		t.Fatalf("first merge: %v", err)
	}

	// A later partial scrape: no synopsis or rating, but a runtime the
	// first scrape missed.
	second := model.Movie{
		ID:             "234731",
		Name:           "The Green Knight",
		URL:            "https://example.com/green-knight",
		RuntimeMinutes: intp(130),
	}
	if _, err := e.Movies(ctx, []model.Movie{second}); err != nil {
		t.Fatalf("second merge: %v", err)
	}

	got, err := store.GetMovie(ctx, "234731")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := model.Movie{
		ID:             "234731",
		Name:           "The Green Knight",
		URL:            "https://example.com/green-knight",
		RuntimeMinutes: intp(130),
		Rating:         "R",
		Synopsis:       "A hero rises.",
	}
	if diff := cmp.Diff(&want, got); diff != "" {
		t.Errorf("merged movie mismatch (-want +got):\n%s", diff)
	}
}

func TestMoviesIdempotent(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t)

	movie := model.Movie{
		ID:          "111",
		Name:        "Elf",
		URL:         "https://example.com/elf",
		ReleaseYear: intp(2003),
		Rating:      "PG",
	}
	for i := 0; i < 2; i++ {
		if _, err := e.Movies(ctx, []model.Movie{movie}); err != nil {
			t.Fatalf("merge: %v", err)
		}
	}

	got, err := store.GetMovie(ctx, "111")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(&movie, got); diff != "" {
		t.Errorf("double merge changed row (-want +got):\n%s", diff)
	}
}

func TestMoviesURLGuard(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t)

	stored := model.Movie{ID: "111", Name: "Elf", URL: "https://example.com/elf"}
	if _, err := e.Movies(ctx, []model.Movie{stored}); err != nil {
		t.Fatalf("first merge: %v", err)
	}

	// Same id, different url: a distinct entity colliding on id. The
	// update is suppressed, not merged.
	imposter := model.Movie{ID: "111", Name: "Not Elf", URL: "https://example.com/not-elf"}
	written, err := e.Movies(ctx, []model.Movie{imposter})
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if written != 0 {
		t.Errorf("written = %d, want 0 for suppressed update", written)
	}

	got, err := store.GetMovie(ctx, "111")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(&stored, got); diff != "" {
		t.Errorf("suppressed update changed row (-want +got):\n%s", diff)
	}
}

func TestShowtimesStampDateInserted(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t)

	day1 := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 12, 3, 0, 0, 0, 0, time.UTC)

	st := model.Showtime{
		ID:        model.ShowtimeID("m1", "t1", "2024-12-08", "19:00:00"),
		MovieID:   "m1",
		TheaterID: "t1",
		URL:       "https://example.com/buy",
		Date:      "2024-12-08",
		Time:      "19:00:00",
	}

	e.SetNow(func() time.Time { return day1 })
	if _, err := e.Showtimes(ctx, []model.Showtime{st}); err != nil {
		t.Fatalf("first merge: %v", err)
	}

	e.SetNow(func() time.Time { return day2 })
	if _, err := e.Showtimes(ctx, []model.Showtime{st}); err != nil {
		t.Fatalf("second merge: %v", err)
	}

	got, err := store.GetShowtime(ctx, st.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.DateInserted.Equal(day2) {
		t.Errorf("date_inserted = %v, want %v", got.DateInserted, day2)
	}
}

func TestShowtimesCoalesceFormat(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t)

	st := model.Showtime{
		ID:        model.ShowtimeID("m1", "t1", "2024-12-08", "19:00:00"),
		MovieID:   "m1",
		TheaterID: "t1",
		URL:       "https://example.com/buy",
		Date:      "2024-12-08",
		Time:      "19:00:00",
		Format:    "IMAX",
	}
	if _, err := e.Showtimes(ctx, []model.Showtime{st}); err != nil {
		t.Fatalf("first merge: %v", err)
	}

	st.Format = ""
	if _, err := e.Showtimes(ctx, []model.Showtime{st}); err != nil {
		t.Fatalf("second merge: %v", err)
	}

	got, err := store.GetShowtime(ctx, st.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Format != "IMAX" {
		t.Errorf("format = %q, want IMAX preserved", got.Format)
	}
}

func TestTheatersCount(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t)

	theaters := []model.Theater{
		{ID: "t1", Name: "AMC Danbury 16", URL: "https://example.com/t1"},
		{ID: "t2", Name: "Bethel Cinema", URL: "https://example.com/t2"},
	}
	written, err := e.Theaters(ctx, theaters)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if written != 2 {
		t.Errorf("written = %d, want 2", written)
	}

	got, err := store.ListTheaters(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff(theaters, got, cmpopts.IgnoreFields(model.Theater{}, "DateUpdated")); diff != "" {
		t.Errorf("theaters mismatch (-want +got):\n%s", diff)
	}
}

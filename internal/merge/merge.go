// Package merge applies idempotent upsert semantics to scraped records.
//
// Conflict resolution is field-level coalesce: an incoming non-empty value
// replaces the stored one, an incoming empty value leaves the stored one
// alone. A later partial scrape can therefore never erase enrichment data
// captured by an earlier run.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dario.cat/mergo"

	"showtimes/internal/model"
	"showtimes/internal/storage"
)

// Engine merges incoming records into the store.
type Engine struct {
	store storage.Store
	log   *slog.Logger
	now   func() time.Time
}

// New creates an Engine writing through the given store.
func New(store storage.Store, log *slog.Logger) *Engine {
	return &Engine{store: store, log: log, now: time.Now}
}

// SetNow overrides the clock used to stamp showtime writes (for testing).
func (e *Engine) SetNow(now func() time.Time) {
	e.now = now
}

// coalesce returns incoming with its empty fields filled from stored.
func coalesce[T any](incoming, stored T) (T, error) {
	merged := incoming
	if err := mergo.Merge(&merged, stored); err != nil {
		return merged, fmt.Errorf("coalesce: %w", err)
	}
	return merged, nil
}

// Theaters upserts the given theaters and returns the number of rows written.
func (e *Engine) Theaters(ctx context.Context, theaters []model.Theater) (int, error) {
	written := 0
	for _, incoming := range theaters {
		stored, err := e.store.GetTheater(ctx, incoming.ID)
		if err != nil {
			return written, err
		}
		if stored != nil {
			if stored.URL != incoming.URL {
				e.log.Warn("theater id collision with different url",
					"id", incoming.ID, "stored_url", stored.URL, "incoming_url", incoming.URL)
				continue
			}
			if incoming, err = coalesce(incoming, *stored); err != nil {
				return written, err
			}
		}
		if err := e.store.PutTheater(ctx, incoming); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// Movies upserts the given movies and returns the number of rows written.
func (e *Engine) Movies(ctx context.Context, movies []model.Movie) (int, error) {
	written := 0
	for _, incoming := range movies {
		stored, err := e.store.GetMovie(ctx, incoming.ID)
		if err != nil {
			return written, err
		}
		if stored != nil {
			if stored.URL != incoming.URL {
				e.log.Warn("movie id collision with different url",
					"id", incoming.ID, "stored_url", stored.URL, "incoming_url", incoming.URL)
				continue
			}
			if incoming, err = coalesce(incoming, *stored); err != nil {
				return written, err
			}
		}
		if err := e.store.PutMovie(ctx, incoming); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// Showtimes upserts the given showtimes and returns the number of rows
// written. Every write stamps date_inserted with the current date, which
// downstream consumers use to tell currently listed rows from stale ones.
func (e *Engine) Showtimes(ctx context.Context, showtimes []model.Showtime) (int, error) {
	written := 0
	for _, incoming := range showtimes {
		stored, err := e.store.GetShowtime(ctx, incoming.ID)
		if err != nil {
			return written, err
		}
		if stored != nil {
			if stored.URL != incoming.URL {
				e.log.Warn("showtime id collision with different url",
					"id", incoming.ID, "stored_url", stored.URL, "incoming_url", incoming.URL)
				continue
			}
			if incoming, err = coalesce(incoming, *stored); err != nil {
				return written, err
			}
		}
		incoming.DateInserted = e.now()
		if err := e.store.PutShowtime(ctx, incoming); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

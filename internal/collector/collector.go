// Package collector drives one end-to-end collection attempt.
package collector

import (
	"context"
	"log/slog"
	"time"

	"showtimes/internal/extract"
	"showtimes/internal/merge"
	"showtimes/internal/model"
	"showtimes/internal/planner"
	"showtimes/internal/storage"
)

// windowDays is the weekly fetch window: today through today+6.
const windowDays = 7

// Fetcher is the interface for retrieving source pages.
type Fetcher interface {
	TheaterDay(ctx context.Context, theaterURL string, date time.Time) (string, error)
	ZipSearch(ctx context.Context, zipCode string) (string, error)
}

// Collector orchestrates discovery, fetching, extraction, and merging.
type Collector struct {
	store     storage.Store
	fetcher   Fetcher
	extractor *extract.Extractor
	merger    *merge.Engine
	planner   *planner.Planner
	log       *slog.Logger
	now       func() time.Time
}

// New creates a Collector.
func New(store storage.Store, fetcher Fetcher, extractor *extract.Extractor, merger *merge.Engine, p *planner.Planner, log *slog.Logger) *Collector {
	return &Collector{
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		merger:    merger,
		planner:   p,
		log:       log,
		now:       time.Now,
	}
}

// SetNow overrides the clock (for testing).
func (c *Collector) SetNow(now func() time.Time) {
	c.now = now
}

// Run executes one collection attempt and returns the number of successful
// writes it made. Work is committed theater by theater: an error aborts the
// attempt but everything merged for earlier theaters stays in the store, and
// the returned progress count covers those committed writes.
func (c *Collector) Run(ctx context.Context) (int, error) {
	progress := 0

	zips, err := c.store.ListActiveZipCodes(ctx)
	if err != nil {
		return progress, err
	}

	n, err := c.discoverTheaters(ctx, zips)
	progress += n
	if err != nil {
		return progress, err
	}

	theaters, err := c.store.ListTheatersByZipCodes(ctx, zips)
	if err != nil {
		return progress, err
	}

	today := c.now()
	window := planner.Window(today, windowDays)

	for _, theater := range theaters {
		if c.planner.CoveredToday(theater.DateUpdated, today) {
			c.log.Info("skipping theater, already collected today", "theater", theater.Name)
			continue
		}

		n, err := c.collectTheater(ctx, theater, window, today)
		progress += n
		if err != nil {
			return progress, err
		}
	}
	return progress, nil
}

// discoverTheaters searches each subscribed zip code and merges the theaters
// it finds, recording the zip → theater association.
func (c *Collector) discoverTheaters(ctx context.Context, zips []string) (int, error) {
	progress := 0
	for _, zip := range zips {
		page, err := c.fetcher.ZipSearch(ctx, zip)
		if err != nil {
			return progress, err
		}
		theaters, err := c.extractor.ZipSearch(page)
		if err != nil {
			return progress, err
		}

		for _, t := range theaters {
			c.log.Info("found theater", "zip_code", zip, "theater", t.Name)
			if err := c.store.AddZipCodeTheater(ctx, zip, t.ID); err != nil {
				return progress, err
			}
		}

		n, err := c.merger.Theaters(ctx, theaters)
		progress += n
		if err != nil {
			return progress, err
		}
	}
	return progress, nil
}

// collectTheater fetches the theater's remaining dates, merges the extracted
// records, and advances the watermark. An empty remaining set still advances
// the watermark so the theater is not re-attempted later the same day.
func (c *Collector) collectTheater(ctx context.Context, theater model.Theater, window []time.Time, today time.Time) (int, error) {
	progress := 0

	var movies []model.Movie
	var showtimes []model.Showtime
	for _, date := range c.planner.Remaining(theater.DateUpdated, window) {
		c.log.Info("fetching listings", "theater", theater.Name, "date", date.Format(model.DateLayout))
		page, err := c.fetcher.TheaterDay(ctx, theater.URL, date)
		if err != nil {
			return progress, err
		}
		m, s, err := c.extractor.TheaterPage(page)
		if err != nil {
			return progress, err
		}
		movies = append(movies, m...)
		showtimes = append(showtimes, s...)
	}

	n, err := c.merger.Movies(ctx, movies)
	progress += n
	if err != nil {
		return progress, err
	}
	n, err = c.merger.Showtimes(ctx, showtimes)
	progress += n
	if err != nil {
		return progress, err
	}

	if err := c.store.SetTheaterDateUpdated(ctx, theater.ID, today); err != nil {
		return progress, err
	}
	progress++
	return progress, nil
}

// Package schedule assembles per-subscriber weekly schedules from the store.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"showtimes/internal/model"
	"showtimes/internal/storage"
)

// Schedule is one subscriber's weekly rundown.
type Schedule struct {
	Subscriber model.Subscriber
	Theaters   []TheaterSchedule
}

// TheaterSchedule covers one subscribed theater.
type TheaterSchedule struct {
	Name   string
	Movies []MovieSummary
	Days   []DaySchedule
}

// MovieSummary is one movie's line in the per-theater summary.
type MovieSummary struct {
	Name string
	// New means the movie has no showing at this theater from before the
	// current week, allowing a short grace period for early previews.
	New bool
	// Limited means the movie has only a handful of upcoming screenings
	// here; past screenings awaiting archival are not counted.
	Limited  bool
	Showings int
}

// DaySchedule is the breakdown of one date at one theater.
type DaySchedule struct {
	Date     string
	Showings []DayShowing
}

// DayShowing is one movie's screening times on one date, HH:MM.
type DayShowing struct {
	Movie string
	Times []string
}

// Builder assembles schedules.
type Builder struct {
	store      storage.Store
	graceDays  int
	limitedMax int
	log        *slog.Logger
	now        func() time.Time
}

// NewBuilder creates a Builder. graceDays is the early-preview allowance for
// the new-this-week flag; limitedMax is the showing count at or below which
// a movie counts as a limited showing.
func NewBuilder(store storage.Store, graceDays, limitedMax int, log *slog.Logger) *Builder {
	return &Builder{
		store:      store,
		graceDays:  graceDays,
		limitedMax: limitedMax,
		log:        log,
		now:        time.Now,
	}
}

// SetNow overrides the clock (for testing).
func (b *Builder) SetNow(now func() time.Time) {
	b.now = now
}

type pairing struct {
	movieID   string
	theaterID string
}

// Build assembles one schedule per subscriber. Subscribers without any
// upcoming showings still get a schedule with no theaters.
func (b *Builder) Build(ctx context.Context) ([]Schedule, error) {
	today := b.now()

	upcoming, err := b.store.ListShowtimesAfter(ctx, today)
	if err != nil {
		return nil, err
	}
	newShowtimes, err := b.store.ListNewShowtimes(ctx, today.AddDate(0, 0, -b.graceDays))
	if err != nil {
		return nil, err
	}
	counts, err := b.store.ListShowingCounts(ctx, today, b.limitedMax)
	if err != nil {
		return nil, err
	}
	movies, err := b.store.ListMovies(ctx)
	if err != nil {
		return nil, err
	}
	theaters, err := b.store.ListTheaters(ctx)
	if err != nil {
		return nil, err
	}
	subscribers, err := b.store.ListSubscribers(ctx)
	if err != nil {
		return nil, err
	}

	movieNames := make(map[string]string, len(movies))
	for _, m := range movies {
		movieNames[m.ID] = m.Name
	}
	theaterByID := make(map[string]model.Theater, len(theaters))
	for _, t := range theaters {
		theaterByID[t.ID] = t
	}
	isNew := make(map[pairing]bool, len(newShowtimes))
	for _, st := range newShowtimes {
		isNew[pairing{st.MovieID, st.TheaterID}] = true
	}
	isLimited := make(map[pairing]bool, len(counts))
	for _, c := range counts {
		isLimited[pairing{c.MovieID, c.TheaterID}] = true
	}

	byTheater := make(map[string][]model.Showtime)
	for _, st := range upcoming {
		byTheater[st.TheaterID] = append(byTheater[st.TheaterID], st)
	}

	var schedules []Schedule
	for _, sub := range subscribers {
		theaterIDs, err := b.store.ListSubscribedTheaters(ctx, sub.ID)
		if err != nil {
			return nil, err
		}

		sched := Schedule{Subscriber: sub}
		for _, id := range theaterIDs {
			theater, ok := theaterByID[id]
			if !ok {
				b.log.Warn("subscription references unknown theater", "theater_id", id, "subscriber", sub.ID)
				continue
			}
			sts := byTheater[id]
			if len(sts) == 0 {
				continue
			}
			sched.Theaters = append(sched.Theaters, buildTheater(theater, sts, movieNames, isNew, isLimited))
		}
		sort.Slice(sched.Theaters, func(i, j int) bool {
			return sched.Theaters[i].Name < sched.Theaters[j].Name
		})
		schedules = append(schedules, sched)
	}
	return schedules, nil
}

func buildTheater(theater model.Theater, sts []model.Showtime, movieNames map[string]string, isNew, isLimited map[pairing]bool) TheaterSchedule {
	ts := TheaterSchedule{Name: theater.Name}

	showings := make(map[string]int)
	timesByDateMovie := make(map[string]map[string][]string)
	for _, st := range sts {
		showings[st.MovieID]++
		if timesByDateMovie[st.Date] == nil {
			timesByDateMovie[st.Date] = make(map[string][]string)
		}
		name := movieName(movieNames, st.MovieID)
		timesByDateMovie[st.Date][name] = append(timesByDateMovie[st.Date][name], shortTime(st.Time))
	}

	for movieID, count := range showings {
		key := pairing{movieID, theater.ID}
		ts.Movies = append(ts.Movies, MovieSummary{
			Name:     movieName(movieNames, movieID),
			New:      isNew[key],
			Limited:  isLimited[key],
			Showings: count,
		})
	}
	sort.Slice(ts.Movies, func(i, j int) bool { return ts.Movies[i].Name < ts.Movies[j].Name })

	for date, byMovie := range timesByDateMovie {
		day := DaySchedule{Date: date}
		for name, times := range byMovie {
			sort.Strings(times)
			day.Showings = append(day.Showings, DayShowing{Movie: name, Times: times})
		}
		sort.Slice(day.Showings, func(i, j int) bool { return day.Showings[i].Movie < day.Showings[j].Movie })
		ts.Days = append(ts.Days, day)
	}
	sort.Slice(ts.Days, func(i, j int) bool { return ts.Days[i].Date < ts.Days[j].Date })

	return ts
}

func movieName(names map[string]string, movieID string) string {
	if name, ok := names[movieID]; ok {
		return name
	}
	return fmt.Sprintf("unknown movie %s", movieID)
}

// shortTime trims HH:MM:SS to HH:MM for display.
func shortTime(t string) string {
	if len(t) > 5 {
		return t[:5]
	}
	return t
}

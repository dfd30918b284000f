// Package extract turns fetched listing pages into structured records.
//
// Extraction is tolerant by design: a page with no listings yields empty
// slices and no error, and a single unparseable field (runtime, rating,
// release year, image) is left unset without aborting the rest of the page.
package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"showtimes/internal/model"
)

// Extractor parses source-site pages into domain records.
type Extractor struct {
	baseURL string
	log     *slog.Logger
}

// New creates an Extractor resolving relative links against baseURL.
func New(baseURL string, log *slog.Logger) *Extractor {
	return &Extractor{baseURL: baseURL, log: log}
}

var yearSuffix = regexp.MustCompile(`\(([0-9]{4})\)$`)

// ZipSearch parses a zip-code search page into the theaters it lists.
// A page without the theater list yields no theaters and no error.
func (e *Extractor) ZipSearch(page string) ([]model.Theater, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	var theaters []model.Theater
	seen := map[string]bool{}
	doc.Find("#nearby-theaters-select-list option").Each(func(i int, opt *goquery.Selection) {
		if i == 0 {
			// First option is the placeholder.
			return
		}
		path, ok := opt.Attr("value")
		if !ok || path == "" {
			return
		}
		id := theaterIDFromPath(path)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		theaters = append(theaters, model.Theater{
			ID:   id,
			Name: strings.TrimSpace(opt.Text()),
			URL:  e.baseURL + path,
		})
	})
	return theaters, nil
}

// theaterIDFromPath derives the theater id from its page path: the trailing
// slug of e.g. "/shu-community-theatre-aabqu/theater-page" is "aabqu".
func theaterIDFromPath(path string) string {
	trimmed := strings.ReplaceAll(path, "/", "")
	trimmed = strings.ReplaceAll(trimmed, "theater-page", "")
	if len(trimmed) < 5 {
		return ""
	}
	return trimmed[len(trimmed)-5:]
}

// TheaterPage parses a theater-day listings page into movie and showtime
// records. A page without listings (including the offline interstitial)
// yields empty slices and no error.
func (e *Extractor) TheaterPage(page string) ([]model.Movie, []model.Showtime, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, nil, fmt.Errorf("parse theater page: %w", err)
	}

	container := doc.Find("ul.thtr-mv-list").First()
	if container.Length() == 0 {
		e.log.Warn("no listings found on page")
		return nil, nil, nil
	}

	var movies []model.Movie
	var showtimes []model.Showtime
	container.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		movie := e.movieFromListItem(li)
		movies = append(movies, movie)
		showtimes = append(showtimes, e.showtimesFromListItem(li, movie.ID)...)
	})
	return movies, showtimes, nil
}

func (e *Extractor) movieFromListItem(li *goquery.Selection) model.Movie {
	id := strings.TrimPrefix(li.AttrOr("id", ""), "movie-")

	m := model.Movie{
		ID:       id,
		ImageURL: e.imageURL(li, id),
	}

	detail := li.Find("div.thtr-mv-list__detail")
	title := detail.Find("h2.thtr-mv-list__detail-title")
	m.Name = cleanText(title.Text())
	if groups := yearSuffix.FindStringSubmatch(m.Name); groups != nil {
		year, err := strconv.Atoi(groups[1])
		if err == nil {
			m.ReleaseYear = &year
			m.Name = strings.TrimSpace(strings.TrimSuffix(m.Name, groups[0]))
		}
	}
	if href, ok := title.Find("a").Attr("href"); ok {
		m.URL = e.baseURL + href
	}

	info := cleanText(detail.Find("li").First().Text())
	parts := strings.Split(info, ", ")
	if len(parts) > 0 && parts[0] != "" {
		m.Rating = parts[0]
	}
	if len(parts) > 1 {
		if runtime, err := parseRuntime(parts[1]); err != nil {
			e.log.Warn("unparseable runtime", "movie", m.Name, "info", info, "error", err)
		} else {
			m.RuntimeMinutes = &runtime
		}
	}
	return m
}

// imageURL handles the two ways the source stores poster links: a lazy-load
// attribute or an inline background-image style.
func (e *Extractor) imageURL(li *goquery.Selection, movieID string) string {
	link := li.Find("div").First().Find("a").First()
	if lazy, ok := link.Attr("data-fd-lazy-image"); ok {
		return lazy
	}
	if style, ok := link.Attr("style"); ok && strings.HasPrefix(style, `background-image: url("`) {
		url := strings.TrimPrefix(style, `background-image: url("`)
		return strings.TrimSuffix(url, `");`)
	}
	e.log.Warn("no image found for movie", "movie_id", movieID)
	return ""
}

func (e *Extractor) showtimesFromListItem(li *goquery.Selection, movieID string) []model.Showtime {
	var sts []model.Showtime
	li.Find("div.thtr-mv-list__amenity-group").Each(func(_ int, group *goquery.Selection) {
		group.Find("li.showtimes-btn-list__item").Each(func(_ int, btn *goquery.Selection) {
			link := btn.Find("a").First()
			if link.Length() == 0 {
				// Showings in the past have no buy link.
				return
			}
			url, ok := link.Attr("href")
			if !ok {
				return
			}

			theaterID := strings.ToLower(urlParam(url, "tid="))
			date := strings.SplitN(urlParam(url, "sdate="), "%", 2)[0]
			clock, err := NormalizeTime(cleanText(link.Text()))
			if err != nil {
				e.log.Warn("unparseable showtime", "movie_id", movieID, "time", link.Text(), "error", err)
				return
			}
			if theaterID == "" || date == "" {
				e.log.Warn("showtime url missing theater or date", "movie_id", movieID, "url", url)
				return
			}

			sts = append(sts, model.Showtime{
				ID:        model.ShowtimeID(movieID, theaterID, date, clock),
				MovieID:   movieID,
				TheaterID: theaterID,
				URL:       url,
				Date:      date,
				Time:      clock,
			})
		})
	})
	return sts
}

// NormalizeTime converts the source's 12-hour clock ("7:30p", "11:05a") to
// 24-hour HH:MM:SS form.
func NormalizeTime(raw string) (string, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if len(s) < 2 {
		return "", fmt.Errorf("time %q too short", raw)
	}
	suffix := s[len(s)-1]
	if suffix != 'a' && suffix != 'p' {
		return "", fmt.Errorf("time %q has no am/pm marker", raw)
	}

	parts := strings.SplitN(s[:len(s)-1], ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("time %q has no minutes", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("time %q: %w", raw, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("time %q: %w", raw, err)
	}
	if hour < 1 || hour > 12 || minute < 0 || minute > 59 {
		return "", fmt.Errorf("time %q out of range", raw)
	}

	if suffix == 'p' && hour != 12 {
		hour += 12
	}
	if suffix == 'a' && hour == 12 {
		hour = 0
	}
	return fmt.Sprintf("%02d:%02d:00", hour, minute), nil
}

// parseRuntime converts "2 hr 10 min" (or hour-only "2 hr") to minutes.
func parseRuntime(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "hr") {
		return 0, fmt.Errorf("runtime %q has no hour part", raw)
	}
	s = strings.ReplaceAll(s, " ", "")
	if !strings.Contains(s, "min") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "hr"))
		if err != nil {
			return 0, fmt.Errorf("runtime %q: %w", raw, err)
		}
		return hours * 60, nil
	}

	parts := strings.SplitN(strings.TrimSuffix(s, "min"), "hr", 2)
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("runtime %q: %w", raw, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("runtime %q: %w", raw, err)
	}
	return hours*60 + minutes, nil
}

// urlParam extracts the value following marker in a raw query string.
func urlParam(url, marker string) string {
	_, after, found := strings.Cut(url, marker)
	if !found {
		return ""
	}
	value, _, _ := strings.Cut(after, "&")
	return value
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\t", "")
	return strings.TrimSpace(s)
}

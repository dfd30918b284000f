package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"showtimes/internal/model"
	"showtimes/migrations"
)

// SQLite implements Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetTheater returns a theater by id, or (nil, nil) if it does not exist.
func (s *SQLite) GetTheater(ctx context.Context, id string) (*model.Theater, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, url, address, date_updated FROM theaters WHERE id = ?`, id,
	)
	t, err := scanTheater(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// PutTheater writes the full theater row, replacing any existing one.
// The watermark column is managed by SetTheaterDateUpdated and is preserved
// on replace.
func (s *SQLite) PutTheater(ctx context.Context, t model.Theater) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO theaters (id, name, url, address, date_updated)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     name = excluded.name,
		     url = excluded.url,
		     address = excluded.address`,
		t.ID, t.Name, t.URL, t.Address, formatDatePtr(t.DateUpdated),
	)
	if err != nil {
		return fmt.Errorf("put theater: %w", err)
	}
	return nil
}

// ListTheaters returns all theaters ordered by id.
func (s *SQLite) ListTheaters(ctx context.Context) ([]model.Theater, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, url, address, date_updated FROM theaters ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query theaters: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTheaters(rows)
}

// ListTheatersByZipCodes returns theaters discovered through any of the
// given zip codes, ordered by id.
func (s *SQLite) ListTheatersByZipCodes(ctx context.Context, zips []string) ([]model.Theater, error) {
	if len(zips) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(zips)-1) + "?"
	args := make([]any, len(zips))
	for i, z := range zips {
		args[i] = z
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT t.id, t.name, t.url, t.address, t.date_updated
		 FROM theaters t
		 INNER JOIN zip_codes z ON z.theater_id = t.id
		 WHERE z.zip_code IN (`+placeholders+`)
		 ORDER BY t.id`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query theaters by zip: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTheaters(rows)
}

// SetTheaterDateUpdated advances the theater's fetch watermark to day.
func (s *SQLite) SetTheaterDateUpdated(ctx context.Context, theaterID string, day time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE theaters SET date_updated = ? WHERE id = ?`,
		day.Format(model.DateLayout), theaterID,
	)
	if err != nil {
		return fmt.Errorf("set date_updated: %w", err)
	}
	return nil
}

// GetMovie returns a movie by id, or (nil, nil) if it does not exist.
func (s *SQLite) GetMovie(ctx context.Context, id string) (*model.Movie, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, url, release_year, runtime, rating, image_url,
		        critic_score, audience_score, genres, synopsis
		 FROM movies WHERE id = ?`, id,
	)
	m, err := scanMovie(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// PutMovie writes the full movie row, replacing any existing one.
func (s *SQLite) PutMovie(ctx context.Context, m model.Movie) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO movies (id, name, url, release_year, runtime, rating, image_url,
		                     critic_score, audience_score, genres, synopsis)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     name = excluded.name,
		     url = excluded.url,
		     release_year = excluded.release_year,
		     runtime = excluded.runtime,
		     rating = excluded.rating,
		     image_url = excluded.image_url,
		     critic_score = excluded.critic_score,
		     audience_score = excluded.audience_score,
		     genres = excluded.genres,
		     synopsis = excluded.synopsis`,
		m.ID, m.Name, m.URL, m.ReleaseYear, m.RuntimeMinutes, m.Rating, m.ImageURL,
		m.CriticScore, m.AudienceScore, m.Genres, m.Synopsis,
	)
	if err != nil {
		return fmt.Errorf("put movie: %w", err)
	}
	return nil
}

// ListMovies returns all movies ordered by id.
func (s *SQLite) ListMovies(ctx context.Context) ([]model.Movie, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, url, release_year, runtime, rating, image_url,
		        critic_score, audience_score, genres, synopsis
		 FROM movies ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var movies []model.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, *m)
	}
	return movies, rows.Err()
}

// GetShowtime returns a showtime by id, or (nil, nil) if it does not exist.
func (s *SQLite) GetShowtime(ctx context.Context, id string) (*model.Showtime, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, movie_id, theater_id, url, date, time, format, date_inserted
		 FROM showtimes WHERE id = ?`, id,
	)
	st, err := scanShowtime(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

// PutShowtime writes the full showtime row, replacing any existing one.
func (s *SQLite) PutShowtime(ctx context.Context, st model.Showtime) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO showtimes (id, movie_id, theater_id, url, date, time, format, date_inserted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     movie_id = excluded.movie_id,
		     theater_id = excluded.theater_id,
		     url = excluded.url,
		     date = excluded.date,
		     time = excluded.time,
		     format = excluded.format,
		     date_inserted = excluded.date_inserted`,
		st.ID, st.MovieID, st.TheaterID, st.URL, st.Date, st.Time, st.Format,
		st.DateInserted.Format(model.DateLayout),
	)
	if err != nil {
		return fmt.Errorf("put showtime: %w", err)
	}
	return nil
}

// ListShowtimesAfter returns showtimes strictly after the given date,
// ordered by theater, date, and time.
func (s *SQLite) ListShowtimesAfter(ctx context.Context, day time.Time) ([]model.Showtime, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, movie_id, theater_id, url, date, time, format, date_inserted
		 FROM showtimes WHERE date > ?
		 ORDER BY theater_id, date, time`,
		day.Format(model.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query showtimes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanShowtimes(rows)
}

// ListNewShowtimes returns showtimes whose (movie, theater) pairing has no
// screening on or before the cutoff date.
func (s *SQLite) ListNewShowtimes(ctx context.Context, cutoff time.Time) ([]model.Showtime, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, movie_id, theater_id, url, date, time, format, date_inserted
		 FROM showtimes s
		 WHERE NOT EXISTS (
		     SELECT 1 FROM showtimes s2
		     WHERE s2.movie_id = s.movie_id
		       AND s2.theater_id = s.theater_id
		       AND s2.date <= ?
		 )
		 ORDER BY theater_id, date, time`,
		cutoff.Format(model.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query new showtimes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanShowtimes(rows)
}

// ListShowingCounts returns pairings with at most max screenings strictly
// after the given date. Past screenings linger until the archiver moves them
// and must not inflate the counts.
func (s *SQLite) ListShowingCounts(ctx context.Context, after time.Time, max int) ([]ShowingCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT movie_id, theater_id, COUNT(*)
		 FROM showtimes
		 WHERE date > ?
		 GROUP BY movie_id, theater_id
		 HAVING COUNT(*) <= ?
		 ORDER BY theater_id, movie_id`,
		after.Format(model.DateLayout), max,
	)
	if err != nil {
		return nil, fmt.Errorf("query showing counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []ShowingCount
	for rows.Next() {
		var c ShowingCount
		if err := rows.Scan(&c.MovieID, &c.TheaterID, &c.Count); err != nil {
			return nil, fmt.Errorf("scan showing count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// ListActiveZipCodes returns the distinct zip codes with an active subscription.
func (s *SQLite) ListActiveZipCodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT zip_code FROM subscriptions WHERE active = 1 AND zip_code != '' ORDER BY zip_code`,
	)
	if err != nil {
		return nil, fmt.Errorf("query zip codes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var zips []string
	for rows.Next() {
		var z string
		if err := rows.Scan(&z); err != nil {
			return nil, fmt.Errorf("scan zip code: %w", err)
		}
		zips = append(zips, z)
	}
	return zips, rows.Err()
}

// AddZipCodeTheater records that a theater appears in searches for a zip code.
func (s *SQLite) AddZipCodeTheater(ctx context.Context, zipCode, theaterID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO zip_codes (zip_code, theater_id) VALUES (?, ?)`,
		zipCode, theaterID,
	)
	if err != nil {
		return fmt.Errorf("add zip code theater: %w", err)
	}
	return nil
}

// ListSubscribers returns all subscribers ordered by id.
func (s *SQLite) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email FROM subscribers ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []model.Subscriber
	for rows.Next() {
		var sub model.Subscriber
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Email); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ListSubscribedTheaters returns the theater ids a subscriber has active
// subscriptions for.
func (s *SQLite) ListSubscribedTheaters(ctx context.Context, subscriberID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT theater_id FROM subscriptions
		 WHERE subscriber_id = ? AND active = 1 AND theater_id != ''
		 ORDER BY theater_id`, subscriberID,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateSubscriber inserts a subscriber and populates its ID. Subscribers
// are managed out of band; the pipeline only reads them.
func (s *SQLite) CreateSubscriber(ctx context.Context, sub *model.Subscriber) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers (name, email) VALUES (?, ?)`,
		sub.Name, sub.Email,
	)
	if err != nil {
		return fmt.Errorf("insert subscriber: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	sub.ID = id
	return nil
}

// AddSubscription inserts or replaces a subscription row.
func (s *SQLite) AddSubscription(ctx context.Context, sub model.Subscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO subscriptions (subscriber_id, theater_id, zip_code, active)
		 VALUES (?, ?, ?, ?)`,
		sub.SubscriberID, sub.TheaterID, sub.ZipCode, boolToInt(sub.Active),
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// ListArchiveEligible returns one entry per (movie, theater) pairing whose
// latest screening date is on or before the cutoff.
func (s *SQLite) ListArchiveEligible(ctx context.Context, cutoff time.Time) ([]model.ArchiveEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT movie_id, theater_id, MIN(date), MAX(date)
		 FROM showtimes s
		 WHERE NOT EXISTS (
		     SELECT 1 FROM showtimes s2
		     WHERE s2.movie_id = s.movie_id
		       AND s2.theater_id = s.theater_id
		       AND s2.date > ?
		 )
		 GROUP BY movie_id, theater_id
		 ORDER BY movie_id, theater_id`,
		cutoff.Format(model.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query archive eligible: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.ArchiveEntry
	for rows.Next() {
		var e model.ArchiveEntry
		if err := rows.Scan(&e.MovieID, &e.TheaterID, &e.StartDate, &e.EndDate); err != nil {
			return nil, fmt.Errorf("scan archive entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ArchivePairing records the archive entry and deletes the pairing's
// showtime rows. Insert and delete share one transaction, so a failed
// half-step leaves the pairing untouched; the unique constraint on the
// archive table makes a replayed insert a no-op.
func (s *SQLite) ArchivePairing(ctx context.Context, entry model.ArchiveEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO archive (movie_id, theater_id, start_date, end_date)
		 VALUES (?, ?, ?, ?)`,
		entry.MovieID, entry.TheaterID, entry.StartDate, entry.EndDate,
	); err != nil {
		return fmt.Errorf("insert archive entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM showtimes WHERE movie_id = ? AND theater_id = ?`,
		entry.MovieID, entry.TheaterID,
	); err != nil {
		return fmt.Errorf("delete archived showtimes: %w", err)
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(model.DateLayout)
	return &v
}

func scanTheater(row scannable) (*model.Theater, error) {
	var t model.Theater
	var updated sql.NullString
	err := row.Scan(&t.ID, &t.Name, &t.URL, &t.Address, &updated)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan theater: %w", err)
	}
	if updated.Valid {
		d, err := time.Parse(model.DateLayout, updated.String)
		if err != nil {
			return nil, fmt.Errorf("parse date_updated: %w", err)
		}
		t.DateUpdated = &d
	}
	return &t, nil
}

func scanTheaters(rows *sql.Rows) ([]model.Theater, error) {
	var theaters []model.Theater
	for rows.Next() {
		t, err := scanTheater(rows)
		if err != nil {
			return nil, err
		}
		theaters = append(theaters, *t)
	}
	return theaters, rows.Err()
}

func scanMovie(row scannable) (*model.Movie, error) {
	var m model.Movie
	var year, runtime, critic, audience sql.NullInt64
	err := row.Scan(&m.ID, &m.Name, &m.URL, &year, &runtime, &m.Rating, &m.ImageURL,
		&critic, &audience, &m.Genres, &m.Synopsis)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan movie: %w", err)
	}
	m.ReleaseYear = intPtr(year)
	m.RuntimeMinutes = intPtr(runtime)
	m.CriticScore = intPtr(critic)
	m.AudienceScore = intPtr(audience)
	return &m, nil
}

func scanShowtime(row scannable) (*model.Showtime, error) {
	var st model.Showtime
	var inserted string
	err := row.Scan(&st.ID, &st.MovieID, &st.TheaterID, &st.URL, &st.Date, &st.Time, &st.Format, &inserted)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan showtime: %w", err)
	}
	st.DateInserted, err = time.Parse(model.DateLayout, inserted)
	if err != nil {
		return nil, fmt.Errorf("parse date_inserted: %w", err)
	}
	return &st, nil
}

func scanShowtimes(rows *sql.Rows) ([]model.Showtime, error) {
	var sts []model.Showtime
	for rows.Next() {
		st, err := scanShowtime(rows)
		if err != nil {
			return nil, err
		}
		sts = append(sts, *st)
	}
	return sts, rows.Err()
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

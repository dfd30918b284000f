// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration. The scraping thresholds carry
// the hand-tuned values the pipeline was calibrated with; they are exposed
// here rather than hard-coded so deployments can adjust them.
type Config struct {
	DatabasePath string
	BaseURL      string
	LogLevel     string

	// SMTP settings. Only required by the notify path; collection and
	// archival run without them.
	SMTPHost     string
	SMTPPort     int
	SMTPEmail    string
	SMTPPassword string
	// ErrorEmail receives operator failure reports.
	ErrorEmail string

	// StalenessDays is how many days past a theater's watermark its
	// listings are still presumed complete.
	StalenessDays int
	// RetentionMonths is how long a (movie, theater) pairing must be
	// absent from listings before it is archived.
	RetentionMonths int
	// GraceDays is the early-access allowance when deciding whether a
	// movie is new this week (Thursday previews and the like).
	GraceDays int
	// LimitedMax is the showing count at or below which a movie is
	// flagged as a limited showing in schedules.
	LimitedMax int

	// NoProgressCeiling bounds consecutive attempts without any
	// successful write before a run is abandoned.
	NoProgressCeiling int
	// Cooldown is the sleep between collection attempts.
	Cooldown time.Duration

	// PageAttempts bounds fetches of a single page when the site serves
	// its offline interstitial.
	PageAttempts int
	// OfflineBackoff is the sleep after an interstitial before refetching.
	OfflineBackoff time.Duration
	// PacingMin/PacingMax bound the randomized delay between requests.
	// Skipping this pacing gets the scraper blocked.
	PacingMin time.Duration
	PacingMax time.Duration
	// PageTimeout bounds a single page load.
	PageTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath: getenv("DATABASE_PATH", "./data/moviedb.db"),
		BaseURL:      getenv("SOURCE_BASE_URL", "https://www.fandango.com"),
		LogLevel:     getenv("LOG_LEVEL", "info"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPEmail:    os.Getenv("SMTP_EMAIL"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		ErrorEmail:   os.Getenv("ERROR_EMAIL"),
	}

	var err error
	if cfg.SMTPPort, err = getint("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.StalenessDays, err = getint("STALENESS_DAYS", 6); err != nil {
		return nil, err
	}
	if cfg.RetentionMonths, err = getint("RETENTION_MONTHS", 1); err != nil {
		return nil, err
	}
	if cfg.GraceDays, err = getint("GRACE_DAYS", 2); err != nil {
		return nil, err
	}
	if cfg.LimitedMax, err = getint("LIMITED_SHOWINGS_MAX", 3); err != nil {
		return nil, err
	}
	if cfg.NoProgressCeiling, err = getint("NO_PROGRESS_CEILING", 10); err != nil {
		return nil, err
	}
	if cfg.PageAttempts, err = getint("PAGE_ATTEMPTS", 10); err != nil {
		return nil, err
	}
	if cfg.Cooldown, err = getdur("ATTEMPT_COOLDOWN", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.OfflineBackoff, err = getdur("OFFLINE_BACKOFF", time.Minute); err != nil {
		return nil, err
	}
	if cfg.PacingMin, err = getdur("PACING_MIN", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.PacingMax, err = getdur("PACING_MAX", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.PageTimeout, err = getdur("PAGE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}

	if cfg.PacingMax < cfg.PacingMin {
		return nil, fmt.Errorf("PACING_MAX %s is below PACING_MIN %s", cfg.PacingMax, cfg.PacingMin)
	}

	return cfg, nil
}

// SMTPConfigured reports whether the mail settings needed for delivery are
// all present.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPEmail != "" && c.SMTPPassword != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getdur(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

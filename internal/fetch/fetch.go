// Package fetch retrieves listing pages from the source site.
//
// The site replies with a blocking "offline" interstitial when it is rate
// limiting a client, so every request is followed by a randomized pacing
// sleep and interstitial responses are retried with a fixed backoff, up to a
// bounded number of attempts. Exhausting the attempts yields the last page
// as-is rather than an error; the extractor treats it as having no listings.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"

	"showtimes/internal/model"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

var errOffline = errors.New("offline interstitial")

// Options configures a Client.
type Options struct {
	// BaseURL is the root of the source site, used for search pages.
	BaseURL string
	// PageTimeout bounds a single page load.
	PageTimeout time.Duration
	// PageAttempts bounds fetches of one page across interstitials.
	PageAttempts int
	// OfflineBackoff is the sleep before refetching after an interstitial.
	OfflineBackoff time.Duration
	// PacingMin and PacingMax bound the randomized delay after every
	// request. The pacing is mandatory: skipping it gets the client
	// served interstitials for the rest of the run.
	PacingMin time.Duration
	PacingMax time.Duration
}

// Client fetches pages from the source site over a single paced session.
type Client struct {
	// Http is the underlying resty client, exposed for instrumentation
	// and test interception.
	Http *resty.Client

	opts  Options
	sleep func(time.Duration)
}

// New creates a Client with the given options.
func New(opts Options) *Client {
	client := resty.New()
	client.SetTimeout(opts.PageTimeout)
	client.SetHeader("user-agent", userAgent)

	return &Client{
		Http:  client,
		opts:  opts,
		sleep: time.Sleep,
	}
}

// SetSleep overrides the pacing sleep function (for testing).
func (c *Client) SetSleep(sleep func(time.Duration)) {
	c.sleep = sleep
}

// TheaterDay fetches the listings page for one theater and date.
func (c *Client) TheaterDay(ctx context.Context, theaterURL string, date time.Time) (string, error) {
	url := fmt.Sprintf("%s?cmp=theater-module&format=all&date=%s", theaterURL, date.Format(model.DateLayout))
	return c.fetch(ctx, url)
}

// ZipSearch fetches the theater search page for a zip code.
func (c *Client) ZipSearch(ctx context.Context, zipCode string) (string, error) {
	return c.fetch(ctx, fmt.Sprintf("%s/%s_movietimes", c.opts.BaseURL, zipCode))
}

func (c *Client) fetch(ctx context.Context, url string) (string, error) {
	backoff := retry.WithMaxRetries(uint64(c.opts.PageAttempts-1), retry.NewConstant(c.opts.OfflineBackoff))

	var body string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := c.Http.R().SetContext(ctx).Get(url)
		c.pace()
		if err != nil {
			return retry.RetryableError(err)
		}
		body = res.String()
		if IsOffline(body) {
			return retry.RetryableError(errOffline)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errOffline) {
			// Attempts exhausted on the interstitial: hand back the
			// page we have and let extraction find nothing in it.
			return body, nil
		}
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	return body, nil
}

// pace sleeps a randomized interval between PacingMin and PacingMax.
func (c *Client) pace() {
	span := c.opts.PacingMax - c.opts.PacingMin
	d := c.opts.PacingMin
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	if d > 0 {
		c.sleep(d)
	}
}

// IsOffline reports whether the page is the site's blocking interstitial.
func IsOffline(page string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return false
	}
	return doc.Find("h1.offline__header").Length() > 0
}

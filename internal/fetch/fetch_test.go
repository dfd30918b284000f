package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/require"
)

const offlinePage = `<html><body><h1 class="offline__header">We'll be right back</h1></body></html>`
const listingsPage = `<html><body><ul class="thtr-mv-list"></ul></body></html>`

func newTestClient(attempts int) (*Client, *[]time.Duration) {
	c := New(Options{
		BaseURL:        "https://www.fandango.com",
		PageTimeout:    time.Second,
		PageAttempts:   attempts,
		OfflineBackoff: time.Millisecond,
		PacingMin:      time.Millisecond,
		PacingMax:      time.Millisecond,
	})

	var sleeps []time.Duration
	c.SetSleep(func(d time.Duration) { sleeps = append(sleeps, d) })
	gock.InterceptClient(c.Http.GetClient())
	return c, &sleeps
}

func TestTheaterDay(t *testing.T) {
	defer gock.Off()
	c, sleeps := newTestClient(10)

	gock.New("https://www.fandango.com").
		Get("/shu-community-theatre-aabqu/theater-page").
		MatchParam("date", "2024-12-08").
		MatchParam("format", "all").
		Reply(200).
		BodyString(listingsPage)

	date := time.Date(2024, 12, 8, 0, 0, 0, 0, time.UTC)
	body, err := c.TheaterDay(context.Background(),
		"https://www.fandango.com/shu-community-theatre-aabqu/theater-page", date)
	require.NoError(t, err)
	require.Equal(t, listingsPage, body)
	require.Len(t, *sleeps, 1, "every request must be followed by a pacing sleep")
	require.True(t, gock.IsDone())
}

func TestZipSearch(t *testing.T) {
	defer gock.Off()
	c, _ := newTestClient(10)

	gock.New("https://www.fandango.com").
		Get("/06810_movietimes").
		Reply(200).
		BodyString(listingsPage)

	body, err := c.ZipSearch(context.Background(), "06810")
	require.NoError(t, err)
	require.Equal(t, listingsPage, body)
}

func TestFetchRetriesInterstitial(t *testing.T) {
	defer gock.Off()
	c, sleeps := newTestClient(10)

	gock.New("https://www.fandango.com").
		Get("/06810_movietimes").
		Reply(200).
		BodyString(offlinePage)
	gock.New("https://www.fandango.com").
		Get("/06810_movietimes").
		Reply(200).
		BodyString(listingsPage)

	body, err := c.ZipSearch(context.Background(), "06810")
	require.NoError(t, err)
	require.Equal(t, listingsPage, body)
	require.Len(t, *sleeps, 2)
	require.True(t, gock.IsDone())
}

func TestFetchExhaustionReturnsBestEffort(t *testing.T) {
	defer gock.Off()
	c, _ := newTestClient(3)

	gock.New("https://www.fandango.com").
		Get("/06810_movietimes").
		Times(3).
		Reply(200).
		BodyString(offlinePage)

	// Attempts exhausted on the interstitial: the page comes back as-is
	// with no error, and extraction will find no listings in it.
	body, err := c.ZipSearch(context.Background(), "06810")
	require.NoError(t, err)
	require.Equal(t, offlinePage, body)
	require.True(t, gock.IsDone())
}

func TestIsOffline(t *testing.T) {
	require.True(t, IsOffline(offlinePage))
	require.False(t, IsOffline(listingsPage))
	require.False(t, IsOffline(""))
}

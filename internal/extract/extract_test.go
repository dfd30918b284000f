package extract

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"showtimes/internal/model"
)

func newExtractor() *Extractor {
	return New("https://www.fandango.com", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(data)
}

func intp(v int) *int { return &v }

func TestTheaterPage(t *testing.T) {
	e := newExtractor()
	movies, showtimes, err := e.TheaterPage(loadFixture(t, "theater_page.html"))
	require.NoError(t, err)

	require.Len(t, movies, 2)

	require.Equal(t, model.Movie{
		ID:             "234731",
		Name:           "The Green Knight",
		URL:            "https://www.fandango.com/the-green-knight-234731/movie-overview",
		ReleaseYear:    intp(2021),
		RuntimeMinutes: intp(130),
		Rating:         "R",
		ImageURL:       "https://images.example.com/green-knight.jpg",
	}, movies[0])

	require.Equal(t, model.Movie{
		ID:             "111",
		Name:           "Elf",
		URL:            "https://www.fandango.com/elf-111/movie-overview",
		RuntimeMinutes: intp(97),
		Rating:         "PG",
		ImageURL:       "https://images.example.com/elf.jpg",
	}, movies[1])

	// The past showing (no buy link) is dropped; three remain.
	require.Len(t, showtimes, 3)

	first := showtimes[0]
	require.Equal(t, "234731_aabqu_2024-12-08_19:00:00", first.ID)
	require.Equal(t, "234731", first.MovieID)
	require.Equal(t, "aabqu", first.TheaterID)
	require.Equal(t, "2024-12-08", first.Date)
	require.Equal(t, "19:00:00", first.Time)

	require.Equal(t, "111_aabqu_2024-12-08_11:25:00", showtimes[1].ID)
	require.Equal(t, "111_aabqu_2024-12-08_21:45:00", showtimes[2].ID)
}

func TestTheaterPageDeterministicIDs(t *testing.T) {
	e := newExtractor()
	page := loadFixture(t, "theater_page.html")

	_, firstPass, err := e.TheaterPage(page)
	require.NoError(t, err)
	_, secondPass, err := e.TheaterPage(page)
	require.NoError(t, err)

	require.Equal(t, firstPass, secondPass)
}

func TestTheaterPageNoListings(t *testing.T) {
	e := newExtractor()

	for name, page := range map[string]string{
		"offline interstitial": loadFixture(t, "offline.html"),
		"empty page":           "<html><body></body></html>",
	} {
		t.Run(name, func(t *testing.T) {
			movies, showtimes, err := e.TheaterPage(page)
			require.NoError(t, err)
			require.Empty(t, movies)
			require.Empty(t, showtimes)
		})
	}
}

func TestZipSearch(t *testing.T) {
	e := newExtractor()
	theaters, err := e.ZipSearch(loadFixture(t, "zip_search.html"))
	require.NoError(t, err)

	require.Equal(t, []model.Theater{
		{
			ID:   "aawpx",
			Name: "AMC Danbury 16",
			URL:  "https://www.fandango.com/amc-danbury-16-aawpx/theater-page",
		},
		{
			ID:   "aabqu",
			Name: "Shu Community Theatre",
			URL:  "https://www.fandango.com/shu-community-theatre-aabqu/theater-page",
		},
	}, theaters)
}

func TestZipSearchNoList(t *testing.T) {
	e := newExtractor()
	theaters, err := e.ZipSearch("<html><body><p>nothing here</p></body></html>")
	require.NoError(t, err)
	require.Empty(t, theaters)
}

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "7:30p", want: "19:30:00"},
		{in: "12:15p", want: "12:15:00"},
		{in: "12:05a", want: "00:05:00"},
		{in: "11:05a", want: "11:05:00"},
		{in: "9:00a", want: "09:00:00"},
		{in: "10:45P", want: "22:45:00"},
		{in: "7:30", wantErr: true},
		{in: "p", wantErr: true},
		{in: "25:00p", wantErr: true},
		{in: "7p", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeTime(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseRuntime(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "2 hr 10 min", want: 130},
		{in: "1 hr 37 min", want: 97},
		{in: "2 hr", want: 120},
		{in: "95 min", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRuntime(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

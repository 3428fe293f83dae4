package bref

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/boxscore/internal/logging"
	"github.com/fortuna/boxscore/internal/season"
)

// fakeFetcher serves fixtures by URL and records every request.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("fetching %s: %w", url, ErrNotFound)
	}
	return []byte(body), nil
}

func newTestExtractor(t *testing.T) (*Extractor, *fakeFetcher, *[]time.Duration) {
	t.Helper()
	f := &fakeFetcher{pages: map[string]string{
		testBase + "/leagues/NBA_2022_games.html":         fixture(t, "season_index.html"),
		testBase + "/leagues/NBA_2022_games-october.html": fixture(t, "month_october.html"),
		testBase + "/boxscores/202110190LAL.html":         fixture(t, "boxscore_202110190LAL.html"),
	}}
	e := NewExtractor(f, Options{
		BaseURL:  testBase + "/",
		MinPause: 3 * time.Second,
		MaxPause: 7 * time.Second,
		Logger:   logging.Discard(),
	})
	var slept []time.Duration
	e.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return e, f, &slept
}

func mustSeason(t *testing.T, token string) season.Season {
	t.Helper()
	s, err := season.Parse(token)
	require.NoError(t, err)
	return s
}

func TestSeasonURL(t *testing.T) {
	e, _, _ := newTestExtractor(t)
	assert.Equal(t, testBase+"/leagues/NBA_2022_games.html", e.SeasonURL(mustSeason(t, "2021-22")))
	assert.Equal(t, testBase+"/leagues/NBA_2000_games.html", e.SeasonURL(mustSeason(t, "1999-00")))
}

func TestExtractSingleDay(t *testing.T) {
	e, f, slept := newTestExtractor(t)
	rng, err := season.NewDateRange("2021-10-19", "2021-10-19")
	require.NoError(t, err)

	var progress [][2]int
	out, err := e.Extract(context.Background(), mustSeason(t, "2021-22"), rng, func(done, total int, _ string) {
		progress = append(progress, [2]int{done, total})
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		testBase + "/leagues/NBA_2022_games.html",
		testBase + "/leagues/NBA_2022_games-october.html",
		testBase + "/boxscores/202110190LAL.html",
	}, f.fetched)
	assert.Equal(t, 1, out.MonthPages)
	assert.Equal(t, 1, out.Games)
	assert.Len(t, out.Rows, 5)
	assert.Empty(t, out.FailedPages)
	assert.Empty(t, *slept)
	assert.Equal(t, [][2]int{{1, 1}}, progress)
}

func TestExtractFullSeasonSkipsFailedPages(t *testing.T) {
	e, _, slept := newTestExtractor(t)

	out, err := e.Extract(context.Background(), mustSeason(t, "2021-22"), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, out.MonthPages)
	assert.Equal(t, 2, out.Games)
	assert.Len(t, out.Rows, 5)
	assert.Equal(t, []string{
		testBase + "/leagues/NBA_2022_games-november.html",
		testBase + "/leagues/NBA_2022_games-december.html",
		testBase + "/leagues/NBA_2022_games-january.html",
		testBase + "/boxscores/202110200DEN.html",
	}, out.FailedPages)

	require.Len(t, *slept, 1)
	assert.GreaterOrEqual(t, (*slept)[0], 3*time.Second)
	assert.LessOrEqual(t, (*slept)[0], 7*time.Second)
}

func TestExtractFailsWithoutSeasonIndex(t *testing.T) {
	e, _, _ := newTestExtractor(t)
	_, err := e.Extract(context.Background(), mustSeason(t, "2015-16"), nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtractRejectsInvertedRange(t *testing.T) {
	e, _, _ := newTestExtractor(t)
	rng := &season.DateRange{
		Start: time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err := e.Extract(context.Background(), mustSeason(t, "2021-22"), rng, nil)
	assert.ErrorIs(t, err, season.ErrInvalidDateRange)
}

func TestExtractStopsOnCancel(t *testing.T) {
	e, _, _ := newTestExtractor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, mustSeason(t, "2021-22"), nil, nil)
	assert.Error(t, err)
}

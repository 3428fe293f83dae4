package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/boxscore/internal/identity"
	"github.com/fortuna/boxscore/internal/ingest"
	"github.com/fortuna/boxscore/internal/ingest/bref"
	"github.com/fortuna/boxscore/internal/logging"
	"github.com/fortuna/boxscore/internal/publisher"
	"github.com/fortuna/boxscore/internal/season"
	"github.com/fortuna/boxscore/internal/store"
	"github.com/fortuna/boxscore/internal/store/repository"
	"github.com/fortuna/boxscore/internal/tabular"
)

const lalLink = "https://www.basketball-reference.com/boxscores/202110190LAL.html"

func statRow(name, team, opponent string, home bool, minutes string) ingest.RawStatRow {
	r := ingest.RawStatRow{
		Date:       "2021-10-19",
		PlayerName: name,
		Team:       team,
		Opponent:   opponent,
		IsHome:     home,
		Minutes:    minutes,
		SourceLink: lalLink,
	}
	for _, f := range store.StatFields() {
		r.Fields[f] = "1"
	}
	r.Fields[store.FieldFGPct] = ".500"
	r.Fields[store.FieldPTS] = "25"
	return r
}

func openingNight() []ingest.RawStatRow {
	return []ingest.RawStatRow{
		statRow("LeBron James", "Los Angeles Lakers", "Golden State Warriors", true, "37:05"),
		statRow("Stephen Curry", "Golden State Warriors", "Los Angeles Lakers", false, "34:30"),
		statRow("Andre Iguodala", "Golden State Warriors", "Los Angeles Lakers", false, "Did Not Play"),
	}
}

type fakeExtractor struct {
	rows []ingest.RawStatRow
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, s season.Season, rng *season.DateRange, progress bref.ProgressFunc) (*bref.Extraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	if progress != nil {
		progress(1, 1, "Scraped "+lalLink)
	}
	rows := append([]ingest.RawStatRow(nil), f.rows...)
	return &bref.Extraction{Rows: rows, MonthPages: 1, Games: 1}, nil
}

type mapCache struct {
	mu  sync.Mutex
	ids map[string]int64
}

func (m *mapCache) GetPlayerID(ctx context.Context, name string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.ids[name]
	return id, ok, nil
}

func (m *mapCache) SetPlayerIDs(ctx context.Context, ids map[string]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range ids {
		m.ids[k] = v
	}
	return nil
}

func (m *mapCache) DeletePlayerIDs(ctx context.Context, names ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range names {
		delete(m.ids, n)
	}
	return nil
}

type recordingPublisher struct {
	events []publisher.BatchCompleted
}

func (r *recordingPublisher) PublishBatchCompleted(ctx context.Context, event publisher.BatchCompleted) error {
	r.events = append(r.events, event)
	return nil
}

type recordingReporter struct {
	started   int
	completed int
	errs      []error
	stages    map[Stage]int
}

func (r *recordingReporter) OnRunStart(Spec) { r.started++ }
func (r *recordingReporter) OnProgress(stage Stage, _ string, _, _ int) {
	if r.stages == nil {
		r.stages = make(map[Stage]int)
	}
	r.stages[stage]++
}
func (r *recordingReporter) OnRunComplete(*Result) { r.completed++ }
func (r *recordingReporter) OnRunError(err error)  { r.errs = append(r.errs, err) }

func openTestDB(t *testing.T) *store.Database {
	t.Helper()
	db, err := store.NewDatabase(store.DriverSQLite, ":memory:", logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background()))
	return db
}

func counts(t *testing.T, db *store.Database) (players, games, stats int) {
	t.Helper()
	ctx := context.Background()
	var err error
	players, err = repository.NewPlayerRepository(db.Q()).Count(ctx)
	require.NoError(t, err)
	games, err = repository.NewGameRepository(db.Q()).Count(ctx)
	require.NoError(t, err)
	stats, err = repository.NewStatsRepository(db.Q()).Count(ctx)
	require.NoError(t, err)
	return players, games, stats
}

func testSpec(t *testing.T) Spec {
	t.Helper()
	spec, err := NewSpec("2021-22", "2021-10-19", "2021-10-19")
	require.NoError(t, err)
	return spec
}

func TestRunPersistsBatch(t *testing.T) {
	db := openTestDB(t)
	out := t.TempDir()
	rep := &recordingReporter{}
	p := New(db, &fakeExtractor{rows: openingNight()}, logging.Discard(), WithOutputDir(out))

	result, err := p.Run(context.Background(), testSpec(t), rep)
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, 3, result.Scraped)
	assert.Equal(t, 2, result.Accepted())
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 1, result.Batch.Dropped[identity.DropDidNotPlay])
	assert.True(t, result.Validation.Valid)

	players, games, stats := counts(t, db)
	assert.Equal(t, 2, players)
	assert.Equal(t, 1, games)
	assert.Equal(t, 2, stats)

	require.Len(t, result.Staged, 1)
	data, err := os.ReadFile(result.Staged[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Date,Name,Team,Opponent,MP,"))
	assert.Equal(t, "2021-22_2021-10-19_2021-10-19_Season.csv", filepath.Base(result.Staged[0]))

	assert.Equal(t, 1, rep.started)
	assert.Equal(t, 1, rep.completed)
	assert.Empty(t, rep.errs)
	assert.Positive(t, rep.stages[StageScrape])
	assert.Positive(t, rep.stages[StageProcess])

	summary := result.Summary()
	assert.Contains(t, summary, "succeeded")
	assert.Contains(t, summary, "accepted:  2 rows")
	assert.Contains(t, summary, "did_not_play=1")
}

func TestRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	p := New(db, &fakeExtractor{rows: openingNight()}, logging.Discard())

	_, err := p.Run(context.Background(), testSpec(t), nil)
	require.NoError(t, err)
	players1, games1, stats1 := counts(t, db)

	result, err := p.Run(context.Background(), testSpec(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.Batch.GamesInserted)
	assert.Equal(t, 1, result.Batch.GamesExisting)

	players2, games2, stats2 := counts(t, db)
	assert.Equal(t, players1, players2)
	assert.Equal(t, games1, games2)
	assert.Equal(t, stats1, stats2)
}

func TestValidationFailureRollsBack(t *testing.T) {
	db := openTestDB(t)
	pub := &recordingPublisher{}
	cache := &mapCache{ids: map[string]int64{}}

	rows := openingNight()
	rows[0].Fields[store.FieldFGPct] = "1.5"

	p := New(db, &fakeExtractor{rows: rows}, logging.Discard(), WithPublisher(pub), WithPlayerCache(cache))
	rep := &recordingReporter{}
	result, err := p.Run(context.Background(), testSpec(t), rep)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailure))
	assert.Equal(t, StatusRejected, result.Status)
	assert.False(t, result.Validation.Valid)
	assert.Len(t, rep.errs, 1)

	players, games, stats := counts(t, db)
	assert.Zero(t, players)
	assert.Zero(t, games)
	assert.Zero(t, stats)

	assert.Empty(t, cache.ids)
	assert.Empty(t, pub.events)
	assert.Contains(t, result.Summary(), "percentage_range=1")
}

func TestCommitFeedsCacheAndPublisher(t *testing.T) {
	db := openTestDB(t)
	pub := &recordingPublisher{}
	cache := &mapCache{ids: map[string]int64{}}
	p := New(db, &fakeExtractor{rows: openingNight()}, logging.Discard(), WithPublisher(pub), WithPlayerCache(cache))

	spec := testSpec(t)
	spec.JobID = "job-1"
	result, err := p.Run(context.Background(), spec, nil)
	require.NoError(t, err)

	assert.Equal(t, result.Batch.Players["lebron james"], cache.ids["lebron james"])
	assert.Len(t, cache.ids, 2)

	require.Len(t, pub.events, 1)
	event := pub.events[0]
	assert.Equal(t, "job-1", event.JobID)
	assert.Equal(t, "2021-22", event.Season)
	assert.Equal(t, "2021-10-19", event.StartDate)
	assert.Equal(t, 2, event.InsertedRows)
	assert.Equal(t, []string{identity.GameID("2021-10-19", "LAL", "GSW")}, event.GameIDs)
	assert.Equal(t, 1, event.Dropped["did_not_play"])

	// Second run resolves players from the cache.
	_, err = p.Run(context.Background(), spec, nil)
	require.NoError(t, err)
	players, _, _ := counts(t, db)
	assert.Equal(t, 2, players)
}

func TestProcessFormerFranchises(t *testing.T) {
	db := openTestDB(t)
	const link = "https://www.basketball-reference.com/boxscores/199911020SEA.html"
	rows := []ingest.RawStatRow{
		statRow("Gary Payton", "Seattle SuperSonics", "Vancouver Grizzlies", true, "40:00"),
		statRow("Mike Bibby", "Vancouver Grizzlies", "Seattle SuperSonics", false, "38:00"),
	}
	for i := range rows {
		rows[i].Date = "1999-11-02"
		rows[i].SourceLink = link
	}

	p := New(db, nil, logging.Discard())
	spec, err := NewSpec("1999-00", "", "")
	require.NoError(t, err)

	result, err := p.Process(context.Background(), spec, rows, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Contains(t, result.Batch.Games, identity.GameID("1999-11-02", "SEA", "VAN"))
}

func TestStaleCachedPlayerIDIsReplaced(t *testing.T) {
	db := openTestDB(t)
	cache := &mapCache{ids: map[string]int64{"lebron james": 999}}
	p := New(db, &fakeExtractor{rows: openingNight()}, logging.Discard(), WithPlayerCache(cache))

	result, err := p.Run(context.Background(), testSpec(t), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, 2, result.Inserted)

	id := result.Batch.Players["lebron james"]
	assert.NotEqual(t, int64(999), id)
	assert.Equal(t, id, cache.ids["lebron james"])

	players, games, stats := counts(t, db)
	assert.Equal(t, 2, players)
	assert.Equal(t, 1, games)
	assert.Equal(t, 2, stats)
}

func TestDryRunWritesNothing(t *testing.T) {
	db := openTestDB(t)
	out := t.TempDir()
	p := New(db, &fakeExtractor{rows: openingNight()}, logging.Discard(), WithOutputDir(out))

	spec := testSpec(t)
	spec.DryRun = true
	result, err := p.Run(context.Background(), spec, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusDryRun, result.Status)
	assert.Equal(t, 2, result.Accepted())
	assert.Empty(t, result.Staged)

	players, games, stats := counts(t, db)
	assert.Zero(t, players)
	assert.Zero(t, games)
	assert.Zero(t, stats)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessCSV(t *testing.T) {
	db := openTestDB(t)
	var buf bytes.Buffer
	require.NoError(t, tabular.WriteRaw(&buf, openingNight()))

	p := New(db, nil, logging.Discard())
	spec, err := NewSpec("2021-22", "", "")
	require.NoError(t, err)

	result, err := p.ProcessCSV(context.Background(), spec, &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)

	_, games, _ := counts(t, db)
	assert.Equal(t, 1, games)
}

func TestProcessCSVWithoutHomeColumn(t *testing.T) {
	db := openTestDB(t)
	input := "Date,Name,Team,Opponent,MP,PTS,GameLink\n" +
		"2021-10-19,LeBron James,Los Angeles Lakers,Golden State Warriors,37:05,34," + lalLink + "\n" +
		"2021-10-19,Stephen Curry,Golden State Warriors,Los Angeles Lakers,34:30,21," + lalLink + "\n"

	p := New(db, nil, logging.Discard())
	spec, err := NewSpec("2021-22", "", "")
	require.NoError(t, err)

	result, err := p.ProcessCSV(context.Background(), spec, strings.NewReader(input), nil)
	require.ErrorIs(t, err, tabular.ErrBadHeader)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Zero(t, result.Inserted)

	players, games, stats := counts(t, db)
	assert.Zero(t, players)
	assert.Zero(t, games)
	assert.Zero(t, stats)
}

func TestScrapeDoesNotTouchDatabase(t *testing.T) {
	db := openTestDB(t)
	p := New(db, &fakeExtractor{rows: openingNight()}, logging.Discard())

	result, rows, err := p.Scrape(context.Background(), testSpec(t), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, 1, result.Games)

	players, _, _ := counts(t, db)
	assert.Zero(t, players)
}

func TestRunReportsExtractorFailure(t *testing.T) {
	db := openTestDB(t)
	boom := errors.New("index unavailable")
	p := New(db, &fakeExtractor{err: boom}, logging.Discard())
	rep := &recordingReporter{}

	result, err := p.Run(context.Background(), testSpec(t), rep)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Len(t, rep.errs, 1)
}

func TestNewSpecRejectsBadInput(t *testing.T) {
	_, err := NewSpec("2021-2022", "", "")
	assert.ErrorIs(t, err, season.ErrInvalidSeasonFormat)

	_, err = NewSpec("2021-22", "2022-01-10", "2021-12-01")
	assert.ErrorIs(t, err, season.ErrInvalidDateRange)
}

func TestMultiReporterFansOut(t *testing.T) {
	a, b := &recordingReporter{}, &recordingReporter{}
	rep := MultiReporter(a, nil, b)

	rep.OnRunStart(Spec{})
	rep.OnProgress(StageScrape, "x", 1, 2)
	rep.OnRunError(errors.New("boom"))

	for _, r := range []*recordingReporter{a, b} {
		assert.Equal(t, 1, r.started)
		assert.Equal(t, 1, r.stages[StageScrape])
		assert.Len(t, r.errs, 1)
	}
}

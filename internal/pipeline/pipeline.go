// Package pipeline wires extraction, identity resolution, validation and
// persistence into a single ingestion run.
package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/boxscore/internal/cache"
	"github.com/fortuna/boxscore/internal/identity"
	"github.com/fortuna/boxscore/internal/ingest"
	"github.com/fortuna/boxscore/internal/ingest/bref"
	"github.com/fortuna/boxscore/internal/publisher"
	"github.com/fortuna/boxscore/internal/season"
	"github.com/fortuna/boxscore/internal/store"
	"github.com/fortuna/boxscore/internal/store/repository"
	"github.com/fortuna/boxscore/internal/tabular"
	"github.com/fortuna/boxscore/internal/validate"
)

// Extractor produces raw rows for a season window.
type Extractor interface {
	Extract(ctx context.Context, s season.Season, rng *season.DateRange, progress bref.ProgressFunc) (*bref.Extraction, error)
}

// Stager keeps a copy of each scraped season file.
type Stager interface {
	PutCSV(ctx context.Context, name string, data []byte) error
}

// Publisher announces committed batches.
type Publisher interface {
	PublishBatchCompleted(ctx context.Context, event publisher.BatchCompleted) error
}

// Pipeline runs ingestion against one database.
type Pipeline struct {
	db        *store.Database
	extractor Extractor
	stager    Stager
	playerIDs cache.PlayerIDStore
	publisher Publisher
	outputDir string
	logger    *logrus.Entry
}

// Option configures optional collaborators.
type Option func(*Pipeline)

// WithStager uploads scraped CSV files.
func WithStager(s Stager) Option {
	return func(p *Pipeline) { p.stager = s }
}

// WithPlayerCache answers player lookups from a cache.
func WithPlayerCache(c cache.PlayerIDStore) Option {
	return func(p *Pipeline) { p.playerIDs = c }
}

// WithPublisher announces committed batches.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithOutputDir writes scraped CSV files under dir.
func WithOutputDir(dir string) Option {
	return func(p *Pipeline) { p.outputDir = dir }
}

// New creates a pipeline. extractor may be nil for process-only use.
func New(db *store.Database, extractor Extractor, logger *logrus.Entry, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	p := &Pipeline{
		db:        db,
		extractor: extractor,
		publisher: publisher.NopPublisher{},
		logger:    logger.WithField("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run scrapes and processes spec in one go.
func (p *Pipeline) Run(ctx context.Context, spec Spec, reporter Reporter) (*Result, error) {
	reporter = orNop(reporter)
	start := time.Now()
	reporter.OnRunStart(spec)

	rows, ex, err := p.scrape(ctx, spec, reporter)
	if err != nil {
		reporter.OnRunError(err)
		return &Result{Spec: spec, Status: StatusFailed, Err: err, Duration: time.Since(start)}, err
	}

	result, err := p.process(ctx, spec, rows, reporter)
	result.Scraped = len(rows)
	result.Games = ex.Games
	result.Failed = ex.FailedPages
	result.Staged = ex.staged
	result.Duration = time.Since(start)
	finish(reporter, result, err)
	return result, err
}

// Scrape extracts spec and stages the rows as a season CSV without
// touching the database.
func (p *Pipeline) Scrape(ctx context.Context, spec Spec, reporter Reporter) (*Result, []ingest.RawStatRow, error) {
	reporter = orNop(reporter)
	start := time.Now()
	reporter.OnRunStart(spec)

	rows, ex, err := p.scrape(ctx, spec, reporter)
	if err != nil {
		reporter.OnRunError(err)
		return &Result{Spec: spec, Status: StatusFailed, Err: err, Duration: time.Since(start)}, nil, err
	}

	result := &Result{
		Spec:     spec,
		Status:   StatusSucceeded,
		Scraped:  len(rows),
		Games:    ex.Games,
		Failed:   ex.FailedPages,
		Staged:   ex.staged,
		Duration: time.Since(start),
	}
	reporter.OnRunComplete(result)
	return result, rows, nil
}

// Process runs already extracted rows through identity resolution,
// validation and persistence.
func (p *Pipeline) Process(ctx context.Context, spec Spec, rows []ingest.RawStatRow, reporter Reporter) (*Result, error) {
	reporter = orNop(reporter)
	start := time.Now()
	reporter.OnRunStart(spec)

	result, err := p.process(ctx, spec, rows, reporter)
	result.Duration = time.Since(start)
	finish(reporter, result, err)
	return result, err
}

// ProcessCSV reads a season CSV and processes it.
func (p *Pipeline) ProcessCSV(ctx context.Context, spec Spec, r io.Reader, reporter Reporter) (*Result, error) {
	rows, err := tabular.ReadRaw(r)
	if err != nil {
		return &Result{Spec: spec, Status: StatusFailed, Err: err}, err
	}
	return p.Process(ctx, spec, rows, reporter)
}

type extraction struct {
	*bref.Extraction
	staged []string
}

func (p *Pipeline) scrape(ctx context.Context, spec Spec, reporter Reporter) ([]ingest.RawStatRow, *extraction, error) {
	if p.extractor == nil {
		return nil, nil, errors.New("pipeline has no extractor")
	}

	reporter.OnProgress(StageScrape, fmt.Sprintf("Scraping %s (%s)", spec.Season, spec.Range), 0, 0)
	out, err := p.extractor.Extract(ctx, spec.Season, spec.Range, func(done, total int, message string) {
		reporter.OnProgress(StageScrape, message, done, total)
	})
	if err != nil {
		return nil, nil, err
	}

	ex := &extraction{Extraction: out}
	if len(out.Rows) == 0 || spec.DryRun {
		return out.Rows, ex, nil
	}

	staged, err := p.stage(ctx, spec, out.Rows)
	if err != nil {
		return nil, nil, err
	}
	ex.staged = staged
	return out.Rows, ex, nil
}

// stage writes the season CSV locally and to the object store when
// either is configured.
func (p *Pipeline) stage(ctx context.Context, spec Spec, rows []ingest.RawStatRow) ([]string, error) {
	if p.outputDir == "" && p.stager == nil {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := tabular.WriteRaw(&buf, rows); err != nil {
		return nil, fmt.Errorf("encoding csv: %w", err)
	}
	name := stageName(spec)

	var staged []string
	if p.outputDir != "" {
		if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output dir: %w", err)
		}
		path := filepath.Join(p.outputDir, name)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", path, err)
		}
		staged = append(staged, path)
	}
	if p.stager != nil {
		if err := p.stager.PutCSV(ctx, name, buf.Bytes()); err != nil {
			return nil, err
		}
		staged = append(staged, name)
	}

	p.logger.WithFields(logrus.Fields{
		"rows":   len(rows),
		"staged": staged,
	}).Info("✓ Season CSV staged")
	return staged, nil
}

// stageName is the season file name, narrowed by the date range when one
// is set so partial runs never overwrite the full season file.
func stageName(spec Spec) string {
	if spec.Range == nil {
		return tabular.FileName(spec.Season.String())
	}
	return tabular.FileName(fmt.Sprintf("%s_%s_%s", spec.Season,
		spec.Range.Start.Format(season.DateLayout), spec.Range.End.Format(season.DateLayout)))
}

func (p *Pipeline) process(ctx context.Context, spec Spec, rows []ingest.RawStatRow, reporter Reporter) (*Result, error) {
	result := &Result{Spec: spec}
	reporter.OnProgress(StageProcess, fmt.Sprintf("Resolving %d rows", len(rows)), 0, len(rows))

	if spec.DryRun {
		return p.dryRun(ctx, rows, result)
	}

	// Reporters may share this database; never call them inside the tx.
	var resolver *cache.CachedResolver
	err := p.db.WithTx(ctx, func(tx *sql.Tx) error {
		q := p.db.Bind(tx)

		playerRepo := repository.NewPlayerRepository(q)
		var players identity.PlayerResolver = playerRepo
		if p.playerIDs != nil {
			resolver = cache.NewCachedResolver(playerRepo, p.playerIDs, p.logger)
			players = resolver
		}

		engine := identity.NewEngine(players, repository.NewGameRepository(q), p.logger)
		batch, err := engine.Process(ctx, rows)
		if err != nil {
			return err
		}
		result.Batch = batch

		result.Validation = validate.Validate(batch.Stats)
		if !result.Validation.Valid {
			return fmt.Errorf("%w: %s", ErrValidationFailure, result.Validation.Summary())
		}

		result.Inserted, result.Skipped, err = repository.NewStatsRepository(q).InsertBatch(ctx, batch.Stats)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrValidationFailure) {
			result.Status = StatusRejected
		} else {
			result.Status = StatusFailed
		}
		result.Err = err
		return result, err
	}
	result.Status = StatusSucceeded
	reporter.OnProgress(StageProcess, fmt.Sprintf("Stored %d rows", result.Inserted), len(rows), len(rows))

	// Only committed ids may reach the cache.
	cacheHits := 0
	if resolver != nil {
		cacheHits = resolver.Hits()
		if err := resolver.Commit(ctx); err != nil {
			p.logger.WithError(err).Warn("⚠️  Player cache update failed")
		}
	}

	if err := p.publisher.PublishBatchCompleted(ctx, batchEvent(spec, result)); err != nil {
		p.logger.WithError(err).Warn("⚠️  Batch event publish failed")
	}

	p.logger.WithFields(logrus.Fields{
		"season":     spec.Season.String(),
		"accepted":   result.Accepted(),
		"inserted":   result.Inserted,
		"skipped":    result.Skipped,
		"dropped":    result.Batch.DroppedTotal(),
		"cache_hits": cacheHits,
	}).Info("✓ Batch committed")
	return result, nil
}

// dryRun resolves identities against an in-memory store so nothing is
// written.
func (p *Pipeline) dryRun(ctx context.Context, rows []ingest.RawStatRow, result *Result) (*Result, error) {
	mem := identity.NewMemoryStore()
	batch, err := identity.NewEngine(mem, mem, p.logger).Process(ctx, rows)
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		return result, err
	}
	result.Batch = batch
	result.Validation = validate.Validate(batch.Stats)
	if !result.Validation.Valid {
		result.Status = StatusRejected
		result.Err = fmt.Errorf("%w: %s", ErrValidationFailure, result.Validation.Summary())
		return result, result.Err
	}
	result.Status = StatusDryRun
	return result, nil
}

func batchEvent(spec Spec, result *Result) publisher.BatchCompleted {
	event := publisher.BatchCompleted{
		JobID:         spec.JobID,
		Season:        spec.Season.String(),
		InputRows:     result.Batch.Input,
		AcceptedRows:  result.Accepted(),
		InsertedRows:  result.Inserted,
		SkippedRows:   result.Skipped,
		GamesInserted: result.Batch.GamesInserted,
		Dropped:       make(map[string]int, len(result.Batch.Dropped)),
		GameIDs:       make([]string, 0, len(result.Batch.Games)),
	}
	if spec.Range != nil {
		event.StartDate = spec.Range.Start.Format(season.DateLayout)
		event.EndDate = spec.Range.End.Format(season.DateLayout)
	}
	for reason, n := range result.Batch.Dropped {
		event.Dropped[string(reason)] = n
	}
	for id := range result.Batch.Games {
		event.GameIDs = append(event.GameIDs, id)
	}
	sort.Strings(event.GameIDs)
	return event
}

func finish(reporter Reporter, result *Result, err error) {
	if err != nil {
		reporter.OnRunError(err)
		return
	}
	reporter.OnRunComplete(result)
}

func orNop(r Reporter) Reporter {
	if r == nil {
		return NopReporter{}
	}
	return r
}

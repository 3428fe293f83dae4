package bref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/boxscore/internal/ingest"
	"github.com/fortuna/boxscore/internal/season"
)

// DefaultBaseURL is the public site.
const DefaultBaseURL = "https://www.basketball-reference.com"

// Options configures an Extractor.
type Options struct {
	BaseURL  string
	MinPause time.Duration
	MaxPause time.Duration
	Logger   *logrus.Entry
}

// ProgressFunc is told how many box scores are done out of total.
type ProgressFunc func(done, total int, message string)

// Extraction is the outcome of scraping one season window.
type Extraction struct {
	Rows        []ingest.RawStatRow
	MonthPages  int
	Games       int
	FailedPages []string
}

// Extractor walks a season's schedule and collects raw box-score rows.
type Extractor struct {
	fetcher  Fetcher
	baseURL  string
	minPause time.Duration
	maxPause time.Duration
	rng      *rand.Rand
	logger   *logrus.Entry
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewExtractor creates an extractor over f.
func NewExtractor(f Fetcher, opts Options) *Extractor {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.MaxPause < opts.MinPause {
		opts.MaxPause = opts.MinPause
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Extractor{
		fetcher:  f,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		minPause: opts.MinPause,
		maxPause: opts.MaxPause,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:   logger.WithField("component", "bref_extractor"),
		sleep:    sleepContext,
	}
}

// SeasonURL is the schedule index for s, keyed by the year the season ends.
func (e *Extractor) SeasonURL(s season.Season) string {
	return fmt.Sprintf("%s/leagues/NBA_%d_games.html", e.baseURL, s.EndYear)
}

// MonthPages lists the season's month schedule pages in site order.
func (e *Extractor) MonthPages(ctx context.Context, s season.Season) ([]season.MonthPage, error) {
	body, err := e.fetcher.Fetch(ctx, e.SeasonURL(s))
	if err != nil {
		return nil, fmt.Errorf("fetching season index %s: %w", s, err)
	}
	return ParseMonthPages(bytes.NewReader(body), e.baseURL)
}

// Extract scrapes every box score of s inside rng. Month pages outside the
// range are never fetched. Pages that fail are logged and skipped; only
// the season index and context cancellation are fatal.
func (e *Extractor) Extract(ctx context.Context, s season.Season, rng *season.DateRange, progress ProgressFunc) (*Extraction, error) {
	pages, err := e.MonthPages(ctx, s)
	if err != nil {
		return nil, err
	}
	relevant, err := season.FilterRelevant(pages, rng, s)
	if err != nil {
		return nil, err
	}

	log := e.logger.WithFields(logrus.Fields{
		"season": s.String(),
		"range":  rng.String(),
	})
	log.WithFields(logrus.Fields{
		"month_pages": len(pages),
		"relevant":    len(relevant),
	}).Info("✓ Season schedule resolved")

	out := &Extraction{MonthPages: len(relevant)}

	var games []ScheduleGame
	for _, page := range relevant {
		body, err := e.fetcher.Fetch(ctx, page.URL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).WithField("url", page.URL).Warn("⚠️  Month page failed, skipping")
			out.FailedPages = append(out.FailedPages, page.URL)
			continue
		}
		found, err := ParseSchedule(bytes.NewReader(body), e.baseURL, rng)
		if err != nil {
			out.FailedPages = append(out.FailedPages, page.URL)
			continue
		}
		games = append(games, found...)
	}
	out.Games = len(games)

	for i, game := range games {
		if i > 0 {
			if err := e.sleep(ctx, e.pause()); err != nil {
				return nil, err
			}
		}

		rows, err := e.boxScore(ctx, game)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).WithField("url", game.BoxScoreURL).Warn("⚠️  Box score failed, skipping")
			out.FailedPages = append(out.FailedPages, game.BoxScoreURL)
		} else {
			out.Rows = append(out.Rows, rows...)
		}

		if progress != nil {
			progress(i+1, len(games), fmt.Sprintf("Scraped %s", game.BoxScoreURL))
		}
	}

	log.WithFields(logrus.Fields{
		"games":  out.Games,
		"rows":   len(out.Rows),
		"failed": len(out.FailedPages),
	}).Info("✓ Extraction complete")
	return out, nil
}

func (e *Extractor) boxScore(ctx context.Context, game ScheduleGame) ([]ingest.RawStatRow, error) {
	body, err := e.fetcher.Fetch(ctx, game.BoxScoreURL)
	if err != nil {
		return nil, err
	}
	rows, err := ParseBoxScore(bytes.NewReader(body), game.Date, game.BoxScoreURL)
	if err != nil && !errors.Is(err, ErrMalformedBoxScore) {
		return nil, fmt.Errorf("parsing %s: %w", game.BoxScoreURL, err)
	}
	return rows, err
}

// pause returns a random delay in [minPause, maxPause].
func (e *Extractor) pause() time.Duration {
	span := e.maxPause - e.minPause
	if span <= 0 {
		return e.minPause
	}
	return e.minPause + time.Duration(e.rng.Int63n(int64(span)+1))
}

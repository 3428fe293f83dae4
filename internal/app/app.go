// Package app assembles the ingestion pipeline and its optional
// collaborators from configuration. Both binaries build on it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/boxscore/internal/cache"
	"github.com/fortuna/boxscore/internal/config"
	"github.com/fortuna/boxscore/internal/ingest/bref"
	"github.com/fortuna/boxscore/internal/objectstore"
	"github.com/fortuna/boxscore/internal/pipeline"
	"github.com/fortuna/boxscore/internal/publisher"
	"github.com/fortuna/boxscore/internal/store"
)

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Config   *config.Config
	DB       *store.Database
	Pipeline *pipeline.Pipeline
	Redis    *cache.RedisCache
	Objects  *objectstore.Store

	closers []func()
	logger  *logrus.Entry
}

// Options tune what Build connects.
type Options struct {
	// Scraping builds an extractor. Process-only commands leave it off.
	Scraping bool
	// ConnectRetries bounds attempts to reach Redis at startup.
	ConnectRetries int
	RetryDelay     time.Duration
}

// Build opens the database, applies migrations and connects the optional
// Redis and MinIO backends.
func Build(ctx context.Context, cfg *config.Config, logger *logrus.Entry, opts Options) (*App, error) {
	if opts.ConnectRetries <= 0 {
		opts.ConnectRetries = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}

	a := &App{Config: cfg, logger: logger}

	db, err := store.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() { db.Close() })

	if err := db.RunMigrations(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("✓ Database migrations applied")

	var popts []pipeline.Option
	if cfg.OutputDir != "" {
		popts = append(popts, pipeline.WithOutputDir(cfg.OutputDir))
	}

	if cfg.RedisURL != "" {
		rc, err := connectRedis(ctx, cfg.RedisURL, opts, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rc
		a.closers = append(a.closers, func() { rc.Close() })
		popts = append(popts,
			pipeline.WithPlayerCache(rc),
			pipeline.WithPublisher(publisher.NewRedisStreamPublisher(rc.Client())),
		)
		logger.Info("✓ Connected to Redis")
	}

	if cfg.ObjectStoreEnabled() {
		objects, err := objectstore.New(objectstore.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.Objects = objects
		popts = append(popts, pipeline.WithStager(objects))
		logger.WithField("bucket", objects.Bucket()).Info("✓ Object store ready")
	}

	var extractor pipeline.Extractor
	if opts.Scraping {
		extractor = a.newExtractor()
	}

	a.Pipeline = pipeline.New(db, extractor, logger, popts...)
	return a, nil
}

func (a *App) newExtractor() *bref.Extractor {
	cfg := a.Config
	fopts := bref.HTTPOptions{
		RequestsPerMinute: cfg.RequestsPerMinute,
		MaxRetries:        cfg.MaxRetries,
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.RequestTimeout,
		Logger:            a.logger,
	}

	var fetcher bref.Fetcher
	if cfg.FetchMode == config.FetchModeBrowser {
		browser := bref.NewBrowserFetcher(fopts)
		a.closers = append(a.closers, browser.Close)
		fetcher = browser
	} else {
		fetcher = bref.NewHTTPFetcher(fopts)
	}
	a.logger.WithField("mode", cfg.FetchMode).Info("✓ Extractor ready")

	return bref.NewExtractor(fetcher, bref.Options{
		BaseURL:  cfg.BaseURL,
		MinPause: cfg.MinBoxScorePause,
		MaxPause: cfg.MaxBoxScorePause,
		Logger:   a.logger,
	})
}

// Close releases every opened resource.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func connectRedis(ctx context.Context, url string, opts Options, logger *logrus.Entry) (*cache.RedisCache, error) {
	var lastErr error
	for i := 0; i < opts.ConnectRetries; i++ {
		rc, err := cache.NewRedisCache(url)
		if err == nil {
			return rc, nil
		}
		lastErr = err
		if i == opts.ConnectRetries-1 {
			break
		}
		logger.Warnf("Redis connection attempt %d/%d failed: %v (retrying in %v)", i+1, opts.ConnectRetries, err, opts.RetryDelay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.RetryDelay):
		}
	}
	return nil, fmt.Errorf("connect redis after %d attempts: %w", opts.ConnectRetries, lastErr)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/boxscore/internal/api/rest"
	"github.com/fortuna/boxscore/internal/api/websocket"
	"github.com/fortuna/boxscore/internal/app"
	"github.com/fortuna/boxscore/internal/backfill"
	"github.com/fortuna/boxscore/internal/config"
	"github.com/fortuna/boxscore/internal/logging"
	"github.com/fortuna/boxscore/internal/scheduler"
)

const (
	serviceName    = "boxscore"
	serviceVersion = "1.0.0"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, !cfg.IsProduction())
	log := logging.Component(logger, serviceName)
	log.Infof("Starting %s v%s - NBA box score ingestion", serviceName, serviceVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, log, app.Options{
		Scraping:       true,
		ConnectRetries: 30,
		RetryDelay:     2 * time.Second,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to initialise")
	}
	defer a.Close()

	wsServer := websocket.NewServer(logging.Component(logger, "websocket"))

	backfillService := backfill.NewService(a.DB, a.Pipeline, logging.Component(logger, "backfill"),
		backfill.WithReporter(wsServer.Reporter()))
	backfillService.Start()
	log.Info("✓ Ingestion worker started")

	var sched *scheduler.Orchestrator
	if cfg.EnableScheduler {
		sched, err = scheduler.NewOrchestrator(backfillService, scheduler.Config{
			Schedule:      cfg.ScheduleCron,
			CurrentSeason: cfg.CurrentSeason,
			Location:      time.UTC,
		}, logging.Component(logger, "scheduler"))
		if err != nil {
			log.WithError(err).Fatal("Failed to create scheduler")
		}
		sched.Start()
	}

	restServer := rest.NewServer(cfg.RESTPort, a.DB, backfillService, logging.Component(logger, "rest"))
	go func() {
		if err := restServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("REST server error")
		}
	}()

	go func() {
		if err := wsServer.Start(cfg.WSPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("WebSocket server error")
		}
	}()

	log.Infof("✓ %s v%s started successfully", serviceName, serviceVersion)
	log.Infof("  REST API: http://0.0.0.0:%s", cfg.RESTPort)
	log.Infof("  WebSocket: ws://0.0.0.0:%s/ws/ingest/progress", cfg.WSPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down gracefully...")
	cancel()
	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("REST API server shutdown error")
	}
	if err := backfillService.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Ingestion worker shutdown error")
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("WebSocket server shutdown error")
	}

	log.Infof("%s stopped", serviceName)
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/boxscore/internal/backfill"
	"github.com/fortuna/boxscore/internal/season"
)

// Enqueuer accepts ingestion jobs. *backfill.Service satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, req backfill.Request) (*backfill.Job, error)
}

// Config holds scheduler configuration
type Config struct {
	Schedule      string         // cron expression, e.g. "0 3 * * *"
	CurrentSeason string         // e.g. "2024-25"; empty follows the calendar
	Location      *time.Location // defaults to UTC
}

// Orchestrator queues the daily ingestion of yesterday's games.
type Orchestrator struct {
	jobs    Enqueuer
	config  Config
	pinned  *season.Season
	cron    *cron.Cron
	entryID cron.EntryID
	now     func() time.Time
	logger  *logrus.Entry
}

// NewOrchestrator validates the configuration and builds the cron runner.
func NewOrchestrator(jobs Enqueuer, config Config, logger *logrus.Entry) (*Orchestrator, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if config.Location == nil {
		config.Location = time.UTC
	}

	var pinned *season.Season
	if config.CurrentSeason != "" {
		s, err := season.Parse(config.CurrentSeason)
		if err != nil {
			return nil, fmt.Errorf("current season: %w", err)
		}
		pinned = &s
	}

	c := cron.New(
		cron.WithLocation(config.Location),
		cron.WithLogger(cron.VerbosePrintfLogger(logger)),
	)

	o := &Orchestrator{
		jobs:   jobs,
		config: config,
		pinned: pinned,
		cron:   c,
		now:    time.Now,
		logger: logger.WithField("component", "scheduler"),
	}

	var err error
	o.entryID, err = c.AddFunc(config.Schedule, o.runDaily)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", config.Schedule, err)
	}
	return o, nil
}

// Start begins firing the schedule.
func (o *Orchestrator) Start() {
	o.cron.Start()
	o.logger.WithFields(logrus.Fields{
		"schedule": o.config.Schedule,
		"season":   o.seasonAt(o.now()).String(),
		"next_run": o.cron.Entry(o.entryID).Next,
	}).Info("🕒 Daily ingestion scheduler started")
}

// Stop halts the schedule and waits for a running task to return.
func (o *Orchestrator) Stop() {
	<-o.cron.Stop().Done()
	o.logger.Info("Daily ingestion scheduler stopped")
}

// TriggerDaily queues ingestion of one day's games in the current season.
// It returns nil without queueing anything when day is outside the season.
func (o *Orchestrator) TriggerDaily(ctx context.Context, day time.Time) (*backfill.Job, error) {
	s := o.seasonAt(day)
	if !inSeason(s, day) {
		o.logger.WithField("date", day.Format(season.DateLayout)).Info("Off-season, skipping daily ingestion")
		return nil, nil
	}

	date := day.Format(season.DateLayout)
	job, err := o.jobs.Enqueue(ctx, backfill.Request{
		Season:    s.String(),
		StartDate: date,
		EndDate:   date,
	})
	if err != nil {
		return nil, fmt.Errorf("queue daily ingestion for %s: %w", date, err)
	}
	return job, nil
}

// GetStatus reports the schedule and the next firing time.
func (o *Orchestrator) GetStatus() map[string]interface{} {
	entry := o.cron.Entry(o.entryID)
	return map[string]interface{}{
		"schedule":       o.config.Schedule,
		"current_season": o.seasonAt(o.now()).String(),
		"next_run":       entry.Next,
		"previous_run":   entry.Prev,
	}
}

func (o *Orchestrator) runDaily() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	yesterday := o.now().In(o.config.Location).AddDate(0, 0, -1)
	job, err := o.TriggerDaily(ctx, yesterday)
	if err != nil {
		o.logger.WithError(err).Error("❌ Daily ingestion failed to queue")
		return
	}
	if job != nil {
		o.logger.WithFields(logrus.Fields{
			"job_id": job.JobID,
			"date":   job.StartDate.String,
		}).Info("✓ Daily ingestion queued")
	}
}

// seasonAt is the configured season, or the calendar season at day when
// none is configured.
func (o *Orchestrator) seasonAt(day time.Time) season.Season {
	if o.pinned != nil {
		return *o.pinned
	}
	return season.Current(day)
}

func inSeason(s season.Season, day time.Time) bool {
	windows := s.Windows()
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(windows[0].Start) && !d.After(windows[len(windows)-1].End)
}

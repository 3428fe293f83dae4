package backfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/boxscore/internal/pipeline"
	"github.com/fortuna/boxscore/internal/store"
)

// Request represents a backfill invocation request.
type Request struct {
	Season    string `json:"season"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

// DeriveType infers the job type based on populated fields.
func (r Request) DeriveType() (JobType, error) {
	if r.Season == "" {
		return "", fmt.Errorf("season is required")
	}
	switch {
	case r.StartDate != "" && r.EndDate != "":
		return JobTypeDateRange, nil
	case r.StartDate == "" && r.EndDate == "":
		return JobTypeSeason, nil
	}
	return "", fmt.Errorf("date range requires both start_date and end_date")
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithReporter adds a reporter that sees every job's progress, such as a
// websocket broadcaster.
func WithReporter(r pipeline.Reporter) ServiceOption {
	return func(s *Service) { s.reporter = r }
}

// WithPollInterval sets how often an idle worker checks the queue.
func WithPollInterval(d time.Duration) ServiceOption {
	return func(s *Service) { s.pollInterval = d }
}

// Service coordinates job persistence, execution, and status reporting.
type Service struct {
	repo     *Repository
	runner   Runner
	reporter pipeline.Reporter

	historyLimit int
	pollInterval time.Duration
	wake         chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *logrus.Entry
}

// NewService constructs a Service. Call Start to launch the worker.
func NewService(db *store.Database, runner Runner, logger *logrus.Entry, opts ...ServiceOption) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	s := &Service{
		repo:         NewRepository(db),
		runner:       runner,
		historyLimit: 10,
		pollInterval: 3 * time.Second,
		wake:         make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger.WithField("component", "backfill"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the background worker loop.
func (s *Service) Start() {
	if err := s.repo.ResetStuckJobs(s.ctx); err != nil {
		s.logger.WithError(err).Error("Failed to reset jobs")
	}

	s.wg.Add(1)
	go s.worker()
}

// Shutdown stops workers and waits for completion.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue validates the request and stores a queued job.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Job, error) {
	jobType, err := req.DeriveType()
	if err != nil {
		return nil, err
	}
	if _, err := pipeline.NewSpec(req.Season, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	job := &Job{
		JobType:       jobType,
		Season:        req.Season,
		DryRun:        req.DryRun,
		Status:        JobStatusQueued,
		StatusMessage: sql.NullString{String: "Queued", Valid: true},
	}
	if jobType == JobTypeDateRange {
		job.StartDate = sql.NullString{String: req.StartDate, Valid: true}
		job.EndDate = sql.NullString{String: req.EndDate, Valid: true}
	}

	stored, err := s.repo.CreateJob(ctx, job)
	if err != nil {
		return nil, err
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}

	s.logger.WithFields(logrus.Fields{
		"job_id": stored.JobID,
		"season": stored.Season,
		"type":   stored.JobType,
	}).Info("Job queued")
	return stored, nil
}

// GetStatus returns the currently running job plus recent history.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	active, err := s.repo.GetActiveJob(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListRecentJobs(ctx, s.historyLimit)
	if err != nil {
		return nil, err
	}

	return &StatusSummary{
		ActiveJob: active,
		History:   history,
	}, nil
}

// GetJob returns one job and its event log.
func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, []Event, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.repo.ListEvents(ctx, jobID, 500)
	if err != nil {
		return nil, nil, err
	}
	return job, events, nil
}

func (s *Service) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if s.ctx.Err() != nil {
			return
		}

		job, err := s.repo.MarkNextJobRunning(s.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.WithError(err).Error("Claim job error")
		}
		if job != nil {
			s.executeJob(job)
			continue
		}

		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		case <-s.wake:
		}
	}
}

func (s *Service) executeJob(job *Job) {
	log := s.logger.WithFields(logrus.Fields{"job_id": job.JobID, "season": job.Season})

	spec, err := buildSpec(job)
	if err != nil {
		log.WithError(err).Error("Invalid job parameters")
		s.setStatus(job.JobID, JobStatusFailed, "Invalid job parameters", err)
		return
	}

	reporter := pipeline.MultiReporter(&jobReporter{
		ctx:    s.ctx,
		repo:   s.repo,
		jobID:  job.JobID,
		logger: s.logger,
	}, s.reporter)

	log.Info("🚀 Job started")
	result, err := s.runner.Run(s.ctx, spec, reporter)
	switch {
	case err == nil:
		s.setStatus(job.JobID, JobStatusCompleted, completionMessage(result), nil)
		log.Info("✅ Job completed")
	case errors.Is(err, pipeline.ErrValidationFailure):
		s.setStatus(job.JobID, JobStatusRejected, "Batch rejected by validation", err)
		log.WithError(err).Warn("Job rejected")
	default:
		s.setStatus(job.JobID, JobStatusFailed, "Job failed", err)
		log.WithError(err).Error("❌ Job failed")
	}
}

func (s *Service) setStatus(jobID string, status JobStatus, message string, cause error) {
	// Recording the outcome must survive shutdown cancelling s.ctx.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 10*time.Second)
	defer cancel()
	if err := s.repo.UpdateStatus(ctx, jobID, status, message, cause); err != nil {
		s.logger.WithError(err).WithField("job_id", jobID).Error("Failed to update job status")
	}
}

func completionMessage(result *pipeline.Result) string {
	if result == nil {
		return "Job completed"
	}
	if result.Status == pipeline.StatusDryRun {
		return fmt.Sprintf("Dry run: %d rows accepted", result.Accepted())
	}
	return fmt.Sprintf("Job completed: %d inserted, %d already present", result.Inserted, result.Skipped)
}

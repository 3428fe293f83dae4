package backfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fortuna/boxscore/internal/store"
)

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("job not found")

const jobColumns = `job_id, job_type, season, start_date, end_date, dry_run,
	status, status_message, progress_current, progress_total,
	accepted_rows, dropped_rows, last_error,
	created_at, updated_at, started_at, completed_at`

// Repository handles persistence for ingest jobs and events.
type Repository struct {
	db  *store.Database
	now func() time.Time
}

// NewRepository constructs a Repository.
func NewRepository(db *store.Database) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreateJob inserts a new job row together with its "queued" event and
// returns the stored record.
func (r *Repository) CreateJob(ctx context.Context, job *Job) (*Job, error) {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	now := r.now()

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		q := r.db.Bind(tx)
		_, err := q.ExecContext(ctx, `
			INSERT INTO ingest_jobs (
				job_id, job_type, season, start_date, end_date, dry_run,
				status, status_message, progress_current, progress_total,
				created_at, updated_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`,
			job.JobID, string(job.JobType), job.Season, job.StartDate, job.EndDate, job.DryRun,
			string(job.Status), job.StatusMessage, job.ProgressCurrent, job.ProgressTotal,
			now, now,
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		return appendEvent(ctx, q, job.JobID, "queued", "Job queued", nil, nil, now)
	})
	if err != nil {
		return nil, err
	}

	return r.GetJob(ctx, job.JobID)
}

// GetJob loads one job by id.
func (r *Repository) GetJob(ctx context.Context, jobID string) (*Job, error) {
	row := r.db.Q().QueryRowContext(ctx, `SELECT `+jobColumns+` FROM ingest_jobs WHERE job_id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

// UpdateStatus updates status, message and optional error. Terminal
// statuses stamp completed_at.
func (r *Repository) UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error {
	var errText sql.NullString
	if lastErr != nil {
		errText = sql.NullString{String: lastErr.Error(), Valid: true}
	}
	now := r.now()
	var completed sql.NullTime
	if status.Terminal() {
		completed = sql.NullTime{Time: now, Valid: true}
	}

	_, err := r.db.Q().ExecContext(ctx, `
		UPDATE ingest_jobs
		SET status = $1,
			status_message = $2,
			last_error = $3,
			updated_at = $4,
			completed_at = COALESCE($5, completed_at)
		WHERE job_id = $6
	`, string(status), message, errText, now, completed, jobID)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// UpdateProgress updates the progress counters and message.
func (r *Repository) UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error {
	_, err := r.db.Q().ExecContext(ctx, `
		UPDATE ingest_jobs
		SET progress_current = $1,
			progress_total = $2,
			status_message = $3,
			updated_at = $4
		WHERE job_id = $5
	`, current, total, message, r.now(), jobID)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// RecordCounts stores the accepted and dropped row totals of a finished run.
func (r *Repository) RecordCounts(ctx context.Context, jobID string, accepted, dropped int) error {
	_, err := r.db.Q().ExecContext(ctx, `
		UPDATE ingest_jobs
		SET accepted_rows = $1,
			dropped_rows = $2,
			updated_at = $3
		WHERE job_id = $4
	`, accepted, dropped, r.now(), jobID)
	if err != nil {
		return fmt.Errorf("record job counts: %w", err)
	}
	return nil
}

// AppendEvent stores a log entry for a job.
func (r *Repository) AppendEvent(ctx context.Context, jobID string, eventType, message string, current, total *int) error {
	return appendEvent(ctx, r.db.Q(), jobID, eventType, message, current, total, r.now())
}

func appendEvent(ctx context.Context, q store.Querier, jobID, eventType, message string, current, total *int, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO ingest_job_events (job_id, event_type, message, progress_current, progress_total, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, jobID, eventType, message, nullInt(current), nullInt(total), at)
	if err != nil {
		return fmt.Errorf("insert job event: %w", err)
	}
	return nil
}

// ListEvents returns a job's log, oldest first.
func (r *Repository) ListEvents(ctx context.Context, jobID string, limit int) ([]Event, error) {
	rows, err := r.db.Q().QueryContext(ctx, `
		SELECT event_id, job_id, event_type, message, progress_current, progress_total, created_at
		FROM ingest_job_events
		WHERE job_id = $1
		ORDER BY event_id
		LIMIT $2
	`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("list job events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e          Event
			cur, total sql.NullInt64
			created    timestamp
		)
		if err := rows.Scan(&e.EventID, &e.JobID, &e.EventType, &e.Message, &cur, &total, &created); err != nil {
			return nil, err
		}
		e.ProgressCurrent = intPtr(cur)
		e.ProgressTotal = intPtr(total)
		e.CreatedAt = created.Time
		events = append(events, e)
	}
	return events, rows.Err()
}

// ResetStuckJobs moves running jobs back to queued (used during service restarts).
func (r *Repository) ResetStuckJobs(ctx context.Context) error {
	_, err := r.db.Q().ExecContext(ctx, `
		UPDATE ingest_jobs
		SET status = 'queued',
			status_message = 'Reset after service restart',
			updated_at = $1
		WHERE status = 'running'
	`, r.now())
	if err != nil {
		return fmt.Errorf("reset stuck jobs: %w", err)
	}
	return nil
}

// MarkNextJobRunning atomically claims the oldest queued job. It returns
// nil when the queue is empty.
func (r *Repository) MarkNextJobRunning(ctx context.Context) (*Job, error) {
	// SQLite serializes writers on its single connection.
	lock := ""
	if r.db.Driver() == store.DriverPostgres {
		lock = "FOR UPDATE SKIP LOCKED"
	}
	now := r.now()

	var jobID string
	err := r.db.Q().QueryRowContext(ctx, `
		UPDATE ingest_jobs
		SET status = 'running',
			status_message = 'Starting job...',
			started_at = COALESCE(started_at, $1),
			updated_at = $2
		WHERE status = 'queued' AND job_id = (
			SELECT job_id
			FROM ingest_jobs
			WHERE status = 'queued'
			ORDER BY created_at
			LIMIT 1
			`+lock+`
		)
		RETURNING job_id
	`, now, now).Scan(&jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return r.GetJob(ctx, jobID)
}

// GetActiveJob returns the currently running job, if any.
func (r *Repository) GetActiveJob(ctx context.Context) (*Job, error) {
	row := r.db.Q().QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM ingest_jobs
		WHERE status = 'running'
		ORDER BY started_at DESC
		LIMIT 1
	`)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active job: %w", err)
	}
	return job, nil
}

// ListRecentJobs returns the most recently created jobs.
func (r *Repository) ListRecentJobs(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := r.db.Q().QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM ingest_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface {
	Scan(dest ...interface{}) error
}) (*Job, error) {
	var (
		job                Job
		jobType, status    string
		created, updated   timestamp
		started, completed timestamp
	)
	err := scanner.Scan(
		&job.JobID,
		&jobType,
		&job.Season,
		&job.StartDate,
		&job.EndDate,
		&job.DryRun,
		&status,
		&job.StatusMessage,
		&job.ProgressCurrent,
		&job.ProgressTotal,
		&job.AcceptedRows,
		&job.DroppedRows,
		&job.LastError,
		&created,
		&updated,
		&started,
		&completed,
	)
	if err != nil {
		return nil, err
	}
	job.JobType = JobType(jobType)
	job.Status = JobStatus(status)
	job.CreatedAt = created.Time
	job.UpdatedAt = updated.Time
	job.StartedAt = started.NullTime
	job.CompletedAt = completed.NullTime
	return &job, nil
}

// timestamp scans TIMESTAMP columns from either driver; SQLite may hand
// them back as text.
type timestamp struct {
	sql.NullTime
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func (t *timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		t.NullTime = sql.NullTime{}
		return nil
	case time.Time:
		t.NullTime = sql.NullTime{Time: v.UTC(), Valid: true}
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (t *timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.NullTime = sql.NullTime{Time: parsed.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

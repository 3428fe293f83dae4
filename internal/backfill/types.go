package backfill

import (
	"database/sql"
	"time"
)

// JobType enumerates the supported backfill job variants.
type JobType string

const (
	JobTypeSeason    JobType = "season"
	JobTypeDateRange JobType = "date_range"
)

// JobStatus represents the lifecycle state for a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusRejected  JobStatus = "rejected"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusRejected, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job models the database representation of an ingest job.
type Job struct {
	JobID           string
	JobType         JobType
	Season          string
	StartDate       sql.NullString
	EndDate         sql.NullString
	DryRun          bool
	Status          JobStatus
	StatusMessage   sql.NullString
	ProgressCurrent int
	ProgressTotal   int
	AcceptedRows    int
	DroppedRows     int
	LastError       sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       sql.NullTime
	CompletedAt     sql.NullTime
}

// Event is one entry of a job's log.
type Event struct {
	EventID         int64     `json:"event_id"`
	JobID           string    `json:"job_id"`
	EventType       string    `json:"event_type"`
	Message         string    `json:"message"`
	ProgressCurrent *int      `json:"progress_current,omitempty"`
	ProgressTotal   *int      `json:"progress_total,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveJob *Job   `json:"active_job,omitempty"`
	History   []*Job `json:"recent_jobs,omitempty"`
}

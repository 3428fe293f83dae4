package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/boxscore/internal/backfill"
	"github.com/fortuna/boxscore/internal/logging"
)

type recordingEnqueuer struct {
	requests []backfill.Request
	err      error
}

func (r *recordingEnqueuer) Enqueue(ctx context.Context, req backfill.Request) (*backfill.Job, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.requests = append(r.requests, req)
	return &backfill.Job{
		JobID:     "job-1",
		Season:    req.Season,
		StartDate: sql.NullString{String: req.StartDate, Valid: true},
	}, nil
}

func newTestOrchestrator(t *testing.T, jobs Enqueuer) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(jobs, Config{Schedule: "0 3 * * *", CurrentSeason: "2024-25"}, logging.Discard())
	require.NoError(t, err)
	return o
}

func TestRunDailyQueuesYesterday(t *testing.T) {
	jobs := &recordingEnqueuer{}
	o := newTestOrchestrator(t, jobs)
	o.now = func() time.Time { return time.Date(2025, 1, 15, 3, 0, 0, 0, time.UTC) }

	o.runDaily()

	require.Len(t, jobs.requests, 1)
	assert.Equal(t, backfill.Request{Season: "2024-25", StartDate: "2025-01-14", EndDate: "2025-01-14"}, jobs.requests[0])
}

func TestTriggerDailySkipsOffSeason(t *testing.T) {
	jobs := &recordingEnqueuer{}
	o := newTestOrchestrator(t, jobs)

	job, err := o.TriggerDaily(context.Background(), time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.Empty(t, jobs.requests)

	job, err = o.TriggerDaily(context.Background(), time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "2025-06-30", job.StartDate.String)
}

func TestUnpinnedSeasonFollowsCalendar(t *testing.T) {
	jobs := &recordingEnqueuer{}
	o, err := NewOrchestrator(jobs, Config{Schedule: "0 3 * * *"}, logging.Discard())
	require.NoError(t, err)

	for _, now := range []time.Time{
		time.Date(2025, 1, 15, 3, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 2, 3, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 10, 3, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 20, 3, 0, 0, 0, time.UTC),
	} {
		o.now = func() time.Time { return now }
		o.runDaily()
	}

	require.Len(t, jobs.requests, 3)
	assert.Equal(t, "2024-25", jobs.requests[0].Season)
	assert.Equal(t, backfill.Request{Season: "2025-26", StartDate: "2025-11-01", EndDate: "2025-11-01"}, jobs.requests[1])
	assert.Equal(t, "2025-26", jobs.requests[2].Season)
	assert.Equal(t, "2026-27", o.GetStatus()["current_season"])
}

func TestTriggerDailyWrapsEnqueueErrors(t *testing.T) {
	boom := errors.New("db down")
	o := newTestOrchestrator(t, &recordingEnqueuer{err: boom})

	_, err := o.TriggerDaily(context.Background(), time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, boom)
}

func TestNewOrchestratorRejectsBadConfig(t *testing.T) {
	_, err := NewOrchestrator(&recordingEnqueuer{}, Config{Schedule: "not a cron", CurrentSeason: "2024-25"}, logging.Discard())
	assert.Error(t, err)

	_, err = NewOrchestrator(&recordingEnqueuer{}, Config{Schedule: "0 3 * * *", CurrentSeason: "2024-2025"}, logging.Discard())
	assert.Error(t, err)
}

func TestStatusReportsNextRun(t *testing.T) {
	o := newTestOrchestrator(t, &recordingEnqueuer{})
	o.Start()
	defer o.Stop()

	status := o.GetStatus()
	assert.Equal(t, "0 3 * * *", status["schedule"])
	next, ok := status["next_run"].(time.Time)
	require.True(t, ok)
	assert.False(t, next.IsZero())
}

package backfill

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/boxscore/internal/pipeline"
)

// Runner executes one ingestion run. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, spec pipeline.Spec, reporter pipeline.Reporter) (*pipeline.Result, error)
}

// buildSpec turns a stored job back into a pipeline spec.
func buildSpec(job *Job) (pipeline.Spec, error) {
	switch job.JobType {
	case JobTypeSeason:
	case JobTypeDateRange:
		if !job.StartDate.Valid || !job.EndDate.Valid {
			return pipeline.Spec{}, fmt.Errorf("date range job missing start/end dates")
		}
	default:
		return pipeline.Spec{}, fmt.Errorf("unknown job type %s", job.JobType)
	}

	spec, err := pipeline.NewSpec(job.Season, job.StartDate.String, job.EndDate.String)
	if err != nil {
		return pipeline.Spec{}, err
	}
	spec.JobID = job.JobID
	spec.DryRun = job.DryRun
	return spec, nil
}

// jobReporter mirrors pipeline progress into the job row and its event log.
type jobReporter struct {
	ctx    context.Context
	repo   *Repository
	jobID  string
	logger *logrus.Entry
}

func (r *jobReporter) OnRunStart(spec pipeline.Spec) {
	r.check(r.repo.UpdateProgress(r.ctx, r.jobID, 0, 0, "Job starting"))
	r.check(r.repo.AppendEvent(r.ctx, r.jobID, "started",
		fmt.Sprintf("Ingesting %s (%s)", spec.Season, spec.Range), nil, nil))
}

func (r *jobReporter) OnProgress(stage pipeline.Stage, message string, current, total int) {
	r.check(r.repo.UpdateProgress(r.ctx, r.jobID, current, total, message))
	r.check(r.repo.AppendEvent(r.ctx, r.jobID, string(stage), message, &current, &total))
}

func (r *jobReporter) OnRunComplete(result *pipeline.Result) {
	if result.Batch != nil {
		r.check(r.repo.RecordCounts(r.ctx, r.jobID, result.Accepted(), result.Batch.DroppedTotal()))
	}
	r.check(r.repo.AppendEvent(r.ctx, r.jobID, "complete", result.Summary(), nil, nil))
}

func (r *jobReporter) OnRunError(err error) {
	r.check(r.repo.AppendEvent(r.ctx, r.jobID, "error", err.Error(), nil, nil))
}

func (r *jobReporter) check(err error) {
	if err != nil {
		r.logger.WithError(err).WithField("job_id", r.jobID).Warn("⚠️  Failed to record job progress")
	}
}

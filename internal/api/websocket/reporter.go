package websocket

import (
	"sync"
	"time"

	"github.com/fortuna/boxscore/internal/pipeline"
)

// Reporter broadcasts pipeline callbacks to hub subscribers. Runs are
// expected one at a time; the job id comes from the last OnRunStart.
type Reporter struct {
	hub *Hub

	mu   sync.Mutex
	spec pipeline.Spec
}

// NewReporter returns a pipeline.Reporter backed by hub.
func NewReporter(hub *Hub) *Reporter {
	return &Reporter{hub: hub}
}

func (r *Reporter) OnRunStart(spec pipeline.Spec) {
	r.mu.Lock()
	r.spec = spec
	r.mu.Unlock()
	r.send(MessageTypeRunStarted, spec, Progress{Season: spec.Season.String(), Range: spec.Range.String()})
}

func (r *Reporter) OnProgress(stage pipeline.Stage, message string, current, total int) {
	spec := r.current()
	r.send(MessageTypeProgress, spec, Progress{
		Season:  spec.Season.String(),
		Range:   spec.Range.String(),
		Stage:   string(stage),
		Message: message,
		Current: current,
		Total:   total,
	})
}

func (r *Reporter) OnRunComplete(result *pipeline.Result) {
	out := RunOutcome{
		Season:   result.Spec.Season.String(),
		Status:   string(result.Status),
		Accepted: result.Accepted(),
		Inserted: result.Inserted,
		Skipped:  result.Skipped,
	}
	if result.Batch != nil {
		out.Dropped = make(map[string]int, len(result.Batch.Dropped))
		for reason, n := range result.Batch.Dropped {
			out.Dropped[string(reason)] = n
		}
	}
	r.send(MessageTypeRunComplete, result.Spec, out)
}

func (r *Reporter) OnRunError(err error) {
	spec := r.current()
	r.send(MessageTypeRunError, spec, RunOutcome{Season: spec.Season.String(), Error: err.Error()})
}

func (r *Reporter) current() pipeline.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.spec
}

func (r *Reporter) send(kind string, spec pipeline.Spec, payload interface{}) {
	r.hub.Broadcast(ServerMessage{
		Type:      kind,
		JobID:     spec.JobID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

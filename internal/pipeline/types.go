package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fortuna/boxscore/internal/identity"
	"github.com/fortuna/boxscore/internal/season"
	"github.com/fortuna/boxscore/internal/validate"
)

// ErrValidationFailure aborts a batch; nothing from it is persisted.
var ErrValidationFailure = errors.New("validation failed")

// Status is the terminal state of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
	StatusDryRun    Status = "dry_run"
)

// Stage names the phase a progress update belongs to.
type Stage string

const (
	StageScrape  Stage = "scrape"
	StageProcess Stage = "process"
)

// Spec describes one ingestion run.
type Spec struct {
	JobID  string
	Season season.Season
	Range  *season.DateRange
	DryRun bool
}

// NewSpec resolves a season token and optional YYYY-MM-DD bounds.
func NewSpec(token, start, end string) (Spec, error) {
	s, err := season.Parse(token)
	if err != nil {
		return Spec{}, err
	}
	rng, err := season.NewDateRange(start, end)
	if err != nil {
		return Spec{}, err
	}
	return Spec{Season: s, Range: rng}, nil
}

// Reporter receives lifecycle callbacks from the pipeline.
type Reporter interface {
	OnRunStart(spec Spec)
	OnProgress(stage Stage, message string, current int, total int)
	OnRunComplete(result *Result)
	OnRunError(err error)
}

// Result is the terminal report of a run.
type Result struct {
	Spec       Spec
	Status     Status
	Scraped    int
	Games      int
	Failed     []string
	Staged     []string
	Batch      *identity.BatchResult
	Validation validate.Report
	Inserted   int
	Skipped    int
	Duration   time.Duration
	Err        error
}

// Accepted is the number of rows that passed the identity engine.
func (r *Result) Accepted() int {
	if r.Batch == nil {
		return 0
	}
	return r.Batch.Accepted()
}

// Summary is the human readable terminal report.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "season %s (%s): %s\n", r.Spec.Season, r.Spec.Range, r.Status)
	if r.Scraped > 0 || r.Games > 0 {
		fmt.Fprintf(&b, "  scraped:   %d rows from %d games (%d pages failed)\n", r.Scraped, r.Games, len(r.Failed))
	}
	if r.Batch != nil {
		fmt.Fprintf(&b, "  input:     %d rows\n", r.Batch.Input)
		fmt.Fprintf(&b, "  accepted:  %d rows (%d games new, %d existing)\n",
			r.Batch.Accepted(), r.Batch.GamesInserted, r.Batch.GamesExisting)
		fmt.Fprintf(&b, "  dropped:   %d rows%s\n", r.Batch.DroppedTotal(), dropBreakdown(r.Batch.Dropped))
		if n := len(r.Batch.Anomalies); n > 0 {
			fmt.Fprintf(&b, "  conflicts: %d games\n", n)
		}
	}
	fmt.Fprintf(&b, "  validation: %s\n", r.Validation.Summary())
	if r.Status == StatusSucceeded {
		fmt.Fprintf(&b, "  stored:    %d inserted, %d already present\n", r.Inserted, r.Skipped)
	}
	if r.Err != nil {
		fmt.Fprintf(&b, "  error:     %v\n", r.Err)
	}
	fmt.Fprintf(&b, "  duration:  %s", r.Duration.Round(time.Millisecond))
	return b.String()
}

func dropBreakdown(dropped map[identity.DropReason]int) string {
	if len(dropped) == 0 {
		return ""
	}
	parts := make([]string, 0, len(dropped))
	for reason, n := range dropped {
		parts = append(parts, fmt.Sprintf("%s=%d", reason, n))
	}
	sort.Strings(parts)
	return " (" + strings.Join(parts, ", ") + ")"
}

// NopReporter ignores every callback.
type NopReporter struct{}

func (NopReporter) OnRunStart(Spec)                    {}
func (NopReporter) OnProgress(Stage, string, int, int) {}
func (NopReporter) OnRunComplete(*Result)              {}
func (NopReporter) OnRunError(error)                   {}

// MultiReporter fans callbacks out to every non-nil reporter in order.
func MultiReporter(reporters ...Reporter) Reporter {
	var rs multiReporter
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return rs
}

type multiReporter []Reporter

func (m multiReporter) OnRunStart(spec Spec) {
	for _, r := range m {
		r.OnRunStart(spec)
	}
}

func (m multiReporter) OnProgress(stage Stage, message string, current, total int) {
	for _, r := range m {
		r.OnProgress(stage, message, current, total)
	}
}

func (m multiReporter) OnRunComplete(result *Result) {
	for _, r := range m {
		r.OnRunComplete(result)
	}
}

func (m multiReporter) OnRunError(err error) {
	for _, r := range m {
		r.OnRunError(err)
	}
}

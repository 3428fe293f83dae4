// Package validate checks a cleaned batch before it is persisted.
package validate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/fortuna/boxscore/internal/season"
	"github.com/fortuna/boxscore/internal/store"
	"github.com/fortuna/boxscore/internal/teams"
)

// Check names an individual validation rule.
type Check string

const (
	CheckDateFormat Check = "date_format"
	CheckTeamCode   Check = "team_code"
	CheckSourceLink Check = "source_link"
	CheckNumeric    Check = "numeric"
	CheckPercentage Check = "percentage_range"
	CheckMinutes    Check = "minutes"
	CheckSameTeams  Check = "team_vs_self"
)

// Diagnostic is one finding. Row is the index into the validated slice.
type Diagnostic struct {
	Check   Check  `json:"check"`
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Column != "" {
		return fmt.Sprintf("row %d %s [%s]: %s", d.Row, d.Check, d.Column, d.Message)
	}
	return fmt.Sprintf("row %d %s: %s", d.Row, d.Check, d.Message)
}

// Report is the single verdict for a batch plus itemized findings.
// Warnings never fail a batch.
type Report struct {
	Valid    bool         `json:"valid"`
	Rows     int          `json:"rows"`
	Failures []Diagnostic `json:"failures,omitempty"`
	Warnings []Diagnostic `json:"warnings,omitempty"`
}

// FailuresByCheck counts failures per rule.
func (r *Report) FailuresByCheck() map[Check]int {
	counts := make(map[Check]int)
	for _, d := range r.Failures {
		counts[d.Check]++
	}
	return counts
}

// Summary is a one-line description for logs.
func (r *Report) Summary() string {
	if r.Valid {
		return fmt.Sprintf("%d rows valid (%d warnings)", r.Rows, len(r.Warnings))
	}
	parts := make([]string, 0, len(r.Failures))
	for check, n := range r.FailuresByCheck() {
		parts = append(parts, fmt.Sprintf("%s=%d", check, n))
	}
	sort.Strings(parts)
	return fmt.Sprintf("%d rows, %d failures (%s)", r.Rows, len(r.Failures), strings.Join(parts, ", "))
}

// Validate runs every check over stats.
func Validate(stats []store.PlayerGameStat) Report {
	report := Report{Rows: len(stats)}

	fail := func(d Diagnostic) { report.Failures = append(report.Failures, d) }
	warn := func(d Diagnostic) { report.Warnings = append(report.Warnings, d) }

	for i := range stats {
		s := &stats[i]

		if _, err := season.ParseDate(s.GameDate); err != nil {
			fail(Diagnostic{Check: CheckDateFormat, Row: i, Column: "Date", Value: s.GameDate,
				Message: "date does not round-trip as YYYY-MM-DD"})
		}

		if !teams.IsCanonical(s.Team) {
			fail(Diagnostic{Check: CheckTeamCode, Row: i, Column: "Team", Value: s.Team,
				Message: "team is not a canonical abbreviation"})
		}
		if !teams.IsCanonical(s.Opponent) {
			fail(Diagnostic{Check: CheckTeamCode, Row: i, Column: "Opponent", Value: s.Opponent,
				Message: "opponent is not a canonical abbreviation"})
		}
		if s.Team != "" && s.Team == s.Opponent {
			fail(Diagnostic{Check: CheckSameTeams, Row: i, Value: s.Team,
				Message: "team and opponent are the same"})
		}

		if strings.TrimSpace(s.SourceLink) == "" {
			fail(Diagnostic{Check: CheckSourceLink, Row: i, Column: "GameLink",
				Message: "source link is empty"})
		}

		if s.Minutes < 0 || math.IsNaN(s.Minutes) || math.IsInf(s.Minutes, 0) {
			fail(Diagnostic{Check: CheckMinutes, Row: i, Column: "MP", Value: fmt.Sprint(s.Minutes),
				Message: "minutes must be a non-negative number"})
		}

		for _, f := range store.StatFields() {
			v := s.Stats[f]
			if !v.Valid {
				warn(Diagnostic{Check: CheckNumeric, Row: i, Column: f.Header(),
					Message: "value missing"})
				continue
			}
			if math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
				fail(Diagnostic{Check: CheckNumeric, Row: i, Column: f.Header(), Value: fmt.Sprint(v.Float64),
					Message: "value is not a finite number"})
				continue
			}
			if f.IsPercentage() && (v.Float64 < 0 || v.Float64 > 1) {
				fail(Diagnostic{Check: CheckPercentage, Row: i, Column: f.Header(), Value: fmt.Sprint(v.Float64),
					Message: "percentage outside [0, 1]"})
			}
		}
	}

	report.Valid = len(report.Failures) == 0
	return report
}

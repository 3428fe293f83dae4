package validate

import (
	"database/sql"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/boxscore/internal/store"
)

func goodStat() store.PlayerGameStat {
	s := store.PlayerGameStat{
		GameID:     "0f1e",
		PlayerID:   1,
		GameDate:   "2021-10-19",
		PlayerName: "lebron james",
		Team:       "LAL",
		Opponent:   "GSW",
		IsHome:     true,
		SourceLink: "https://www.basketball-reference.com/boxscores/202110190LAL.html",
		Minutes:    37.08,
	}
	for i := range s.Stats {
		s.Stats[i] = sql.NullFloat64{Float64: 1, Valid: true}
	}
	s.Stats[store.FieldFGPct] = sql.NullFloat64{Float64: 0.5, Valid: true}
	return s
}

func TestValidateCleanBatch(t *testing.T) {
	report := Validate([]store.PlayerGameStat{goodStat(), goodStat()})
	assert.True(t, report.Valid)
	assert.Empty(t, report.Failures)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, 2, report.Rows)
}

func TestValidateEmptyBatch(t *testing.T) {
	report := Validate(nil)
	assert.True(t, report.Valid)
}

func TestValidateMissingValuesAreWarnings(t *testing.T) {
	s := goodStat()
	s.Stats[store.Field3PPct] = sql.NullFloat64{}

	report := Validate([]store.PlayerGameStat{s})
	assert.True(t, report.Valid)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "3P%", report.Warnings[0].Column)
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*store.PlayerGameStat)
		check  Check
	}{
		{"bad date", func(s *store.PlayerGameStat) { s.GameDate = "10/19/2021" }, CheckDateFormat},
		{"impossible date", func(s *store.PlayerGameStat) { s.GameDate = "2021-02-30" }, CheckDateFormat},
		{"full team name", func(s *store.PlayerGameStat) { s.Team = "Los Angeles Lakers" }, CheckTeamCode},
		{"alias opponent", func(s *store.PlayerGameStat) { s.Opponent = "BKN" }, CheckTeamCode},
		{"self matchup", func(s *store.PlayerGameStat) { s.Opponent = "LAL" }, CheckSameTeams},
		{"empty link", func(s *store.PlayerGameStat) { s.SourceLink = " " }, CheckSourceLink},
		{"negative minutes", func(s *store.PlayerGameStat) { s.Minutes = -1 }, CheckMinutes},
		{"infinite stat", func(s *store.PlayerGameStat) {
			s.Stats[store.FieldPTS] = sql.NullFloat64{Float64: math.Inf(1), Valid: true}
		}, CheckNumeric},
		{"percentage above one", func(s *store.PlayerGameStat) {
			s.Stats[store.FieldFTPct] = sql.NullFloat64{Float64: 1.2, Valid: true}
		}, CheckPercentage},
		{"negative percentage", func(s *store.PlayerGameStat) {
			s.Stats[store.FieldFGPct] = sql.NullFloat64{Float64: -0.1, Valid: true}
		}, CheckPercentage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := goodStat()
			tt.mutate(&s)

			report := Validate([]store.PlayerGameStat{goodStat(), s})
			assert.False(t, report.Valid)
			require.NotEmpty(t, report.Failures)
			assert.Equal(t, tt.check, report.Failures[0].Check)
			assert.Equal(t, 1, report.Failures[0].Row)
		})
	}
}

func TestValidatePercentageBounds(t *testing.T) {
	s := goodStat()
	s.Stats[store.FieldFGPct] = sql.NullFloat64{Float64: 0, Valid: true}
	s.Stats[store.FieldFTPct] = sql.NullFloat64{Float64: 1, Valid: true}
	report := Validate([]store.PlayerGameStat{s})
	assert.True(t, report.Valid)
}

func TestReportSummary(t *testing.T) {
	s := goodStat()
	s.Team = "XXX"
	s.SourceLink = ""
	report := Validate([]store.PlayerGameStat{s})
	assert.Equal(t, "1 rows, 2 failures (source_link=1, team_code=1)", report.Summary())
}

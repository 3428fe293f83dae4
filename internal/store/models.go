package store

import "database/sql"

// StatField indexes the numeric box-score columns that follow minutes
// played. The order matches the interchange header.
type StatField int

const (
	FieldFG StatField = iota
	FieldFGA
	FieldFGPct
	Field3P
	Field3PA
	Field3PPct
	FieldFT
	FieldFTA
	FieldFTPct
	FieldORB
	FieldDRB
	FieldTRB
	FieldAST
	FieldSTL
	FieldBLK
	FieldTOV
	FieldPF
	FieldPTS
	FieldGmSc
	FieldPlusMinus

	NumStatFields
)

type statMeta struct {
	header  string
	column  string
	dataTag string
	percent bool
}

var statMetas = [NumStatFields]statMeta{
	FieldFG:        {"FG", "fg", "fg", false},
	FieldFGA:       {"FGA", "fga", "fga", false},
	FieldFGPct:     {"FG%", "fg_percent", "fg_pct", true},
	Field3P:        {"3P", "three_p", "fg3", false},
	Field3PA:       {"3PA", "three_pa", "fg3a", false},
	Field3PPct:     {"3P%", "three_p_percent", "fg3_pct", true},
	FieldFT:        {"FT", "ft", "ft", false},
	FieldFTA:       {"FTA", "fta", "fta", false},
	FieldFTPct:     {"FT%", "ft_percent", "ft_pct", true},
	FieldORB:       {"ORB", "orb", "orb", false},
	FieldDRB:       {"DRB", "drb", "drb", false},
	FieldTRB:       {"TRB", "trb", "trb", false},
	FieldAST:       {"AST", "ast", "ast", false},
	FieldSTL:       {"STL", "stl", "stl", false},
	FieldBLK:       {"BLK", "blk", "blk", false},
	FieldTOV:       {"TOV", "tov", "tov", false},
	FieldPF:        {"PF", "pf", "pf", false},
	FieldPTS:       {"PTS", "pts", "pts", false},
	FieldGmSc:      {"GmSc", "gmsc", "game_score", false},
	FieldPlusMinus: {"+-", "plus_minus", "plus_minus", false},
}

// Header is the interchange column name, e.g. "FG%".
func (f StatField) Header() string { return statMetas[f].header }

// Column is the player_game_stats column name.
func (f StatField) Column() string { return statMetas[f].column }

// DataStat is the data-stat attribute basketball-reference uses for the cell.
func (f StatField) DataStat() string { return statMetas[f].dataTag }

// IsPercentage reports whether the field is a shooting percentage.
func (f StatField) IsPercentage() bool { return statMetas[f].percent }

// StatFields lists every numeric field in column order.
func StatFields() []StatField {
	fields := make([]StatField, NumStatFields)
	for i := range fields {
		fields[i] = StatField(i)
	}
	return fields
}

// Player is a uniquely identified player. PlayerName is the normalized
// (accent-stripped, lower-case) form.
type Player struct {
	PlayerID   int64  `json:"player_id" db:"player_id"`
	PlayerName string `json:"player_name" db:"player_name"`
}

// Game is a single contest identified by the hash of date, home and away.
type Game struct {
	GameID     string `json:"game_id" db:"game_id"`
	GameDate   string `json:"game_date" db:"game_date"`
	HomeTeam   string `json:"home_team" db:"home_team"`
	AwayTeam   string `json:"away_team" db:"away_team"`
	SourceLink string `json:"source_link" db:"source_link"`
}

// PlayerGameStat is one player's line in one game. Missing numeric values
// are stored as NULL (Valid=false), never as zero.
type PlayerGameStat struct {
	GameID     string
	PlayerID   int64
	GameDate   string
	PlayerName string
	Team       string
	Opponent   string
	IsHome     bool
	SourceLink string
	Minutes    float64
	Stats      [NumStatFields]sql.NullFloat64
}

// Stat returns the value for f.
func (s *PlayerGameStat) Stat(f StatField) sql.NullFloat64 {
	return s.Stats[f]
}

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/boxscore/internal/ingest"
	"github.com/fortuna/boxscore/internal/store"
	"github.com/fortuna/boxscore/internal/teams"
)

// Values in the minutes column that mean the player did not take the floor.
var nonParticipation = map[string]bool{
	"":                 true,
	"0:00":             true,
	"dnp":              true,
	"did not play":     true,
	"did not dress":    true,
	"not with team":    true,
	"player suspended": true,
	"inactive":         true,
}

// Stat cell values that mean "no value" rather than zero.
var missingMarkers = map[string]bool{
	"":    true,
	"-":   true,
	"—":   true,
	"dnp": true,
}

// Engine turns raw rows into identified PlayerGameStat records.
type Engine struct {
	players PlayerResolver
	games   GameRegistrar
	logger  *logrus.Entry
}

// NewEngine wires the engine to its identity stores.
func NewEngine(players PlayerResolver, games GameRegistrar, logger *logrus.Entry) *Engine {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		players: players,
		games:   games,
		logger:  logger.WithField("component", "identity"),
	}
}

type cleanRow struct {
	index    int
	date     string
	name     string
	team     string
	opponent string
	isHome   bool
	link     string
	minutes  float64
	stats    [store.NumStatFields]sql.NullFloat64
	gameKey  gameKey
	playerID int64
}

type gameKey struct {
	date string
	home string
	away string
	link string
}

type rowKey struct {
	date     string
	team     string
	opponent string
	name     string
}

// Process cleans rows and resolves identities. The steps run in a fixed
// order: dedup, team normalization, non-participation filter, minutes,
// numeric coercion, player identity, game identity, materialization.
// Rows that cannot be resolved are dropped and counted; only context
// cancellation and store failures abort the batch.
func (e *Engine) Process(ctx context.Context, rows []ingest.RawStatRow) (*BatchResult, error) {
	result := newBatchResult(len(rows))

	seen := make(map[rowKey]bool, len(rows))
	clean := make([]*cleanRow, 0, len(rows))

	for i := range rows {
		raw := &rows[i]

		key := rowKey{
			date:     strings.TrimSpace(raw.Date),
			team:     strings.TrimSpace(raw.Team),
			opponent: strings.TrimSpace(raw.Opponent),
			name:     strings.TrimSpace(raw.PlayerName),
		}
		if seen[key] {
			result.drop(i, DropDuplicate, nil)
			continue
		}
		seen[key] = true

		team, err := teams.Normalize(key.team)
		if err != nil {
			result.drop(i, DropUnknownTeam, err)
			continue
		}
		opponent, err := teams.Normalize(key.opponent)
		if err != nil {
			result.drop(i, DropUnknownTeam, err)
			continue
		}

		if IsNonParticipation(raw.Minutes) {
			result.drop(i, DropDidNotPlay, nil)
			continue
		}

		minutes, err := ParseMinutes(raw.Minutes)
		if err != nil {
			result.drop(i, DropMalformedMinutes, err)
			continue
		}

		row := &cleanRow{
			index:    i,
			date:     key.date,
			name:     ingest.NormalizePlayerName(key.name),
			team:     team,
			opponent: opponent,
			isHome:   raw.IsHome,
			link:     strings.TrimSpace(raw.SourceLink),
			minutes:  minutes,
		}
		for _, f := range store.StatFields() {
			v, err := CoerceNumeric(raw.Fields[f])
			if !v.Valid {
				result.MissingValues++
			}
			if err != nil {
				result.MalformedValues++
				e.logger.WithFields(logrus.Fields{
					"row":   i,
					"field": f.Header(),
					"value": raw.Fields[f],
				}).Debug("Stat value coerced to missing")
			}
			row.stats[f] = v
		}
		clean = append(clean, row)
	}

	clean, err := e.assignPlayers(ctx, clean, result)
	if err != nil {
		return nil, err
	}

	clean, err = e.assignGames(ctx, clean, result)
	if err != nil {
		return nil, err
	}

	materialized := make(map[string]bool, len(clean))
	for _, row := range clean {
		gameID := GameID(row.gameKey.date, row.gameKey.home, row.gameKey.away)
		statKey := gameID + "/" + strconv.FormatInt(row.playerID, 10)
		if materialized[statKey] {
			result.drop(row.index, DropDuplicate, nil)
			continue
		}
		materialized[statKey] = true

		result.Stats = append(result.Stats, store.PlayerGameStat{
			GameID:     gameID,
			PlayerID:   row.playerID,
			GameDate:   row.date,
			PlayerName: row.name,
			Team:       row.team,
			Opponent:   row.opponent,
			IsHome:     row.isHome,
			SourceLink: row.link,
			Minutes:    row.minutes,
			Stats:      row.stats,
		})
	}

	e.logger.WithFields(logrus.Fields{
		"input":    result.Input,
		"accepted": result.Accepted(),
		"dropped":  result.DroppedTotal(),
		"players":  len(result.Players),
		"games":    len(result.Games),
	}).Info("✓ Batch identities resolved")

	return result, nil
}

func (e *Engine) assignPlayers(ctx context.Context, rows []*cleanRow, result *BatchResult) ([]*cleanRow, error) {
	missing := make(map[string]error)

	for _, row := range rows {
		if row.name == "" {
			continue
		}
		if _, ok := result.Players[row.name]; ok {
			continue
		}
		if _, ok := missing[row.name]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id, err := e.players.ResolvePlayer(ctx, row.name)
		if errors.Is(err, ErrMissingIdentity) {
			missing[row.name] = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolving player %q: %w", row.name, err)
		}
		result.Players[row.name] = id
	}

	kept := rows[:0]
	for _, row := range rows {
		id, ok := result.Players[row.name]
		if !ok {
			err := missing[row.name]
			if err == nil {
				err = fmt.Errorf("%w: empty player name", ErrMissingIdentity)
			}
			result.drop(row.index, DropMissingIdentity, err)
			continue
		}
		row.playerID = id
		kept = append(kept, row)
	}
	return kept, nil
}

func (e *Engine) assignGames(ctx context.Context, rows []*cleanRow, result *BatchResult) ([]*cleanRow, error) {
	conflicts := make(map[gameKey]Conflict)
	registered := make(map[gameKey]bool)

	for _, row := range rows {
		key := gameKey{date: row.date, home: row.opponent, away: row.team, link: row.link}
		if row.isHome {
			key.home, key.away = row.team, row.opponent
		}
		row.gameKey = key

		if registered[key] {
			continue
		}
		if _, ok := conflicts[key]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		game := store.Game{
			GameID:     GameID(key.date, key.home, key.away),
			GameDate:   key.date,
			HomeTeam:   key.home,
			AwayTeam:   key.away,
			SourceLink: key.link,
		}

		reg, err := e.games.RegisterGame(ctx, game)
		if err != nil {
			return nil, fmt.Errorf("registering game %s: %w", game.SourceLink, err)
		}

		switch reg.Status {
		case Inserted:
			result.GamesInserted++
		case Existing:
			result.GamesExisting++
		case Conflicted:
			c := Conflict{Game: game, ExistingGameID: reg.ExistingGameID, ExistingSourceLink: reg.ExistingSourceLink}
			conflicts[key] = c
			result.Anomalies = append(result.Anomalies, c)
			e.logger.WithFields(logrus.Fields{
				"game_id":       game.GameID,
				"source_link":   game.SourceLink,
				"existing_id":   reg.ExistingGameID,
				"existing_link": reg.ExistingSourceLink,
			}).Warn("⚠️  Game identity conflict")
			continue
		}

		registered[key] = true
		result.Games[game.GameID] = game
	}

	kept := rows[:0]
	for _, row := range rows {
		if c, ok := conflicts[row.gameKey]; ok {
			result.drop(row.index, DropIdentityConflict, c)
			continue
		}
		kept = append(kept, row)
	}
	return kept, nil
}

// IsNonParticipation reports whether a minutes value marks a player who
// did not play.
func IsNonParticipation(minutes string) bool {
	return nonParticipation[strings.ToLower(strings.TrimSpace(minutes))]
}

// ParseMinutes converts "mm:ss" to fractional minutes. Plain numbers are
// accepted as already-converted minutes.
func ParseMinutes(value string) (float64, error) {
	v := strings.TrimSpace(value)

	mins, secs, found := strings.Cut(v, ":")
	if !found {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: %q", ErrMalformedMinutes, value)
		}
		return f, nil
	}

	m, err := strconv.Atoi(mins)
	if err != nil || m < 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedMinutes, value)
	}
	s, err := strconv.Atoi(secs)
	if err != nil || s < 0 || s > 59 || len(secs) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedMinutes, value)
	}
	return float64(m) + float64(s)/60, nil
}

// CoerceNumeric reads a stat cell. Blank and placeholder cells are
// missing; unreadable cells are missing and reported with
// ErrMalformedNumeric. A missing value is never zero.
func CoerceNumeric(value string) (sql.NullFloat64, error) {
	v := strings.TrimSpace(value)
	if missingMarkers[strings.ToLower(v)] {
		return sql.NullFloat64{}, nil
	}

	f, err := strconv.ParseFloat(strings.TrimPrefix(v, "+"), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}, fmt.Errorf("%w: %q", ErrMalformedNumeric, value)
	}
	return sql.NullFloat64{Float64: f, Valid: true}, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fortuna/boxscore/internal/store"
)

// StatsRepository handles player game statistics
type StatsRepository struct {
	q store.Querier
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(q store.Querier) *StatsRepository {
	return &StatsRepository{q: q}
}

var (
	insertStatQuery = buildInsertStatQuery()
	statSelectList  = buildStatSelectList()
)

func buildInsertStatQuery() string {
	cols := []string{"game_id", "player_id", "team", "opponent", "is_home", "minutes"}
	for _, f := range store.StatFields() {
		cols = append(cols, f.Column())
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	return fmt.Sprintf(`
		INSERT INTO player_game_stats (%s)
		VALUES (%s)
		ON CONFLICT (game_id, player_id) DO NOTHING
	`, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
}

func buildStatSelectList() string {
	cols := []string{
		"s.game_id", "s.player_id", "CAST(g.game_date AS TEXT)", "p.player_name",
		"s.team", "s.opponent", "s.is_home", "g.source_link", "s.minutes",
	}
	for _, f := range store.StatFields() {
		cols = append(cols, "s."+f.Column())
	}
	return strings.Join(cols, ", ")
}

// InsertBatch stores stat rows. Rows already present for the same game
// and player are skipped, so re-running a batch is a no-op.
func (r *StatsRepository) InsertBatch(ctx context.Context, stats []store.PlayerGameStat) (inserted, skipped int, err error) {
	for i := range stats {
		s := &stats[i]

		args := make([]interface{}, 0, 6+int(store.NumStatFields))
		args = append(args, s.GameID, s.PlayerID, s.Team, s.Opponent, s.IsHome, s.Minutes)
		for _, v := range s.Stats {
			args = append(args, v)
		}

		res, err := r.q.ExecContext(ctx, insertStatQuery, args...)
		if err != nil {
			return inserted, skipped, fmt.Errorf("inserting stat for player %d game %s: %w", s.PlayerID, s.GameID, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return inserted, skipped, fmt.Errorf("reading rows affected: %w", err)
		}
		if n == 0 {
			skipped++
		} else {
			inserted++
		}
	}

	return inserted, skipped, nil
}

// GetByPlayer returns a player's most recent game lines
func (r *StatsRepository) GetByPlayer(ctx context.Context, playerID int64, limit int) ([]store.PlayerGameStat, error) {
	query := `
		SELECT ` + statSelectList + `
		FROM player_game_stats s
		JOIN games g ON g.game_id = s.game_id
		JOIN players p ON p.player_id = s.player_id
		WHERE s.player_id = $1
		ORDER BY g.game_date DESC
		LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying player stats: %w", err)
	}
	defer rows.Close()

	return scanStats(rows)
}

// GetByPlayerBetween returns a player's lines dated from..to inclusive,
// oldest first.
func (r *StatsRepository) GetByPlayerBetween(ctx context.Context, playerID int64, from, to string) ([]store.PlayerGameStat, error) {
	query := `
		SELECT ` + statSelectList + `
		FROM player_game_stats s
		JOIN games g ON g.game_id = s.game_id
		JOIN players p ON p.player_id = s.player_id
		WHERE s.player_id = $1 AND g.game_date >= $2 AND g.game_date <= $3
		ORDER BY g.game_date
	`

	rows, err := r.q.QueryContext(ctx, query, playerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying player season stats: %w", err)
	}
	defer rows.Close()

	return scanStats(rows)
}

// GetByGame returns the box score for a game
func (r *StatsRepository) GetByGame(ctx context.Context, gameID string) ([]store.PlayerGameStat, error) {
	query := `
		SELECT ` + statSelectList + `
		FROM player_game_stats s
		JOIN games g ON g.game_id = s.game_id
		JOIN players p ON p.player_id = s.player_id
		WHERE s.game_id = $1
		ORDER BY s.team, s.minutes DESC
	`

	rows, err := r.q.QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("querying game stats: %w", err)
	}
	defer rows.Close()

	return scanStats(rows)
}

// Count returns the number of stored stat rows
func (r *StatsRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM player_game_stats`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting stats: %w", err)
	}
	return n, nil
}

func scanStats(rows *sql.Rows) ([]store.PlayerGameStat, error) {
	var stats []store.PlayerGameStat
	for rows.Next() {
		var s store.PlayerGameStat
		dest := []interface{}{
			&s.GameID, &s.PlayerID, &s.GameDate, &s.PlayerName,
			&s.Team, &s.Opponent, &s.IsHome, &s.SourceLink, &s.Minutes,
		}
		for i := range s.Stats {
			dest = append(dest, &s.Stats[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fortuna/boxscore/internal/identity"
	"github.com/fortuna/boxscore/internal/store"
)

// PlayerRepository handles player data access
type PlayerRepository struct {
	q store.Querier
}

// NewPlayerRepository creates a new player repository
func NewPlayerRepository(q store.Querier) *PlayerRepository {
	return &PlayerRepository{q: q}
}

// ResolvePlayer inserts name if it is new and returns its id either way.
// The UNIQUE constraint on player_name makes concurrent callers converge
// on one row.
func (r *PlayerRepository) ResolvePlayer(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO players (player_name)
		VALUES ($1)
		ON CONFLICT (player_name) DO NOTHING
		RETURNING player_id
	`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("inserting player: %w", err)
	}

	err = r.q.QueryRowContext(ctx, `SELECT player_id FROM players WHERE player_name = $1`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: player %q", identity.ErrMissingIdentity, name)
	}
	if err != nil {
		return 0, fmt.Errorf("querying player: %w", err)
	}
	return id, nil
}

// HasPlayer reports whether id is stored under name.
func (r *PlayerRepository) HasPlayer(ctx context.Context, id int64, name string) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx, `
		SELECT 1 FROM players WHERE player_id = $1 AND player_name = $2
	`, id, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking player: %w", err)
	}
	return true, nil
}

// GetByID finds a player by ID
func (r *PlayerRepository) GetByID(ctx context.Context, playerID int64) (*store.Player, error) {
	player := &store.Player{}
	err := r.q.QueryRowContext(ctx, `
		SELECT player_id, player_name
		FROM players
		WHERE player_id = $1
	`, playerID).Scan(&player.PlayerID, &player.PlayerName)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("player not found: %d", playerID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying player: %w", err)
	}

	return player, nil
}

// Search finds players whose normalized name contains query
func (r *PlayerRepository) Search(ctx context.Context, query string, limit int) ([]*store.Player, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	rows, err := r.q.QueryContext(ctx, `
		SELECT player_id, player_name
		FROM players
		WHERE player_name LIKE $1
		ORDER BY player_name
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching players: %w", err)
	}
	defer rows.Close()

	var players []*store.Player
	for rows.Next() {
		p := &store.Player{}
		if err := rows.Scan(&p.PlayerID, &p.PlayerName); err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		players = append(players, p)
	}

	return players, rows.Err()
}

// Count returns the number of stored players
func (r *PlayerRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM players`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting players: %w", err)
	}
	return n, nil
}

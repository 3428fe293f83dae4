package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fortuna/boxscore/internal/identity"
	"github.com/fortuna/boxscore/internal/store"
)

// GameRepository handles game data access
type GameRepository struct {
	q store.Querier
}

// NewGameRepository creates a new game repository
func NewGameRepository(q store.Querier) *GameRepository {
	return &GameRepository{q: q}
}

// RegisterGame inserts game unless its id or source link is already
// stored. A stored row with the same link and id is Existing; any other
// collision is reported as Conflicted and left untouched.
func (r *GameRepository) RegisterGame(ctx context.Context, game store.Game) (identity.Registration, error) {
	var id string
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO games (game_id, game_date, home_team, away_team, source_link)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
		RETURNING game_id
	`, game.GameID, game.GameDate, game.HomeTeam, game.AwayTeam, game.SourceLink).Scan(&id)
	if err == nil {
		return identity.Registration{Status: identity.Inserted}, nil
	}
	if err != sql.ErrNoRows {
		return identity.Registration{}, fmt.Errorf("inserting game: %w", err)
	}

	existing, err := r.getBy(ctx, "source_link", game.SourceLink)
	if err != nil {
		return identity.Registration{}, err
	}
	if existing == nil {
		existing, err = r.getBy(ctx, "game_id", game.GameID)
		if err != nil {
			return identity.Registration{}, err
		}
	}
	if existing == nil {
		return identity.Registration{}, fmt.Errorf("%w: game %s", identity.ErrMissingIdentity, game.GameID)
	}

	if existing.GameID == game.GameID && existing.SourceLink == game.SourceLink {
		return identity.Registration{Status: identity.Existing}, nil
	}
	return identity.Registration{
		Status:             identity.Conflicted,
		ExistingGameID:     existing.GameID,
		ExistingSourceLink: existing.SourceLink,
	}, nil
}

// GetByID finds a game by ID
func (r *GameRepository) GetByID(ctx context.Context, gameID string) (*store.Game, error) {
	game, err := r.getBy(ctx, "game_id", gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, fmt.Errorf("game not found: %s", gameID)
	}
	return game, nil
}

// GetByDate returns all games on a YYYY-MM-DD date
func (r *GameRepository) GetByDate(ctx context.Context, date string) ([]*store.Game, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT game_id, CAST(game_date AS TEXT), home_team, away_team, source_link
		FROM games
		WHERE game_date = $1
		ORDER BY home_team
	`, date)
	if err != nil {
		return nil, fmt.Errorf("querying games: %w", err)
	}
	defer rows.Close()

	var games []*store.Game
	for rows.Next() {
		g := &store.Game{}
		if err := rows.Scan(&g.GameID, &g.GameDate, &g.HomeTeam, &g.AwayTeam, &g.SourceLink); err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, g)
	}

	return games, rows.Err()
}

// Count returns the number of stored games
func (r *GameRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting games: %w", err)
	}
	return n, nil
}

// getBy looks a game up by a unique column. It returns nil, nil when no
// row matches.
func (r *GameRepository) getBy(ctx context.Context, column, value string) (*store.Game, error) {
	query := `
		SELECT game_id, CAST(game_date AS TEXT), home_team, away_team, source_link
		FROM games
		WHERE ` + column + ` = $1
	`

	g := &store.Game{}
	err := r.q.QueryRowContext(ctx, query, value).Scan(&g.GameID, &g.GameDate, &g.HomeTeam, &g.AwayTeam, &g.SourceLink)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying game by %s: %w", column, err)
	}
	return g, nil
}

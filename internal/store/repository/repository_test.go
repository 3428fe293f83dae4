package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/boxscore/internal/identity"
	"github.com/fortuna/boxscore/internal/store"
)

func openTestDB(t *testing.T) *store.Database {
	t.Helper()
	db, err := store.NewDatabase(store.DriverSQLite, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background()))
	return db
}

func TestMigrationsAreRepeatable(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.RunMigrations(context.Background()))
}

func TestResolvePlayerInsertOrFetch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewPlayerRepository(db.Q())

	first, err := repo.ResolvePlayer(ctx, "lebron james")
	require.NoError(t, err)
	again, err := repo.ResolvePlayer(ctx, "lebron james")
	require.NoError(t, err)
	other, err := repo.ResolvePlayer(ctx, "stephen curry")
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.NotEqual(t, first, other)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	found, err := repo.Search(ctx, "LeBron", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, first, found[0].PlayerID)

	p, err := repo.GetByID(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, "stephen curry", p.PlayerName)
}

func TestRegisterGame(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewGameRepository(db.Q())

	game := store.Game{
		GameID:     identity.GameID("2021-10-19", "LAL", "GSW"),
		GameDate:   "2021-10-19",
		HomeTeam:   "LAL",
		AwayTeam:   "GSW",
		SourceLink: "https://www.basketball-reference.com/boxscores/202110190LAL.html",
	}

	reg, err := repo.RegisterGame(ctx, game)
	require.NoError(t, err)
	assert.Equal(t, identity.Inserted, reg.Status)

	reg, err = repo.RegisterGame(ctx, game)
	require.NoError(t, err)
	assert.Equal(t, identity.Existing, reg.Status)

	mirror := game
	mirror.SourceLink = "https://mirror.example.com/202110190LAL.html"
	reg, err = repo.RegisterGame(ctx, mirror)
	require.NoError(t, err)
	assert.Equal(t, identity.Conflicted, reg.Status)
	assert.Equal(t, game.SourceLink, reg.ExistingSourceLink)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	games, err := repo.GetByDate(ctx, "2021-10-19")
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, game, *games[0])
}

func TestInsertBatchSkipsExisting(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	players := NewPlayerRepository(db.Q())
	games := NewGameRepository(db.Q())
	stats := NewStatsRepository(db.Q())

	playerID, err := players.ResolvePlayer(ctx, "lebron james")
	require.NoError(t, err)

	game := store.Game{
		GameID:     identity.GameID("2021-10-19", "LAL", "GSW"),
		GameDate:   "2021-10-19",
		HomeTeam:   "LAL",
		AwayTeam:   "GSW",
		SourceLink: "https://www.basketball-reference.com/boxscores/202110190LAL.html",
	}
	_, err = games.RegisterGame(ctx, game)
	require.NoError(t, err)

	line := store.PlayerGameStat{
		GameID:     game.GameID,
		PlayerID:   playerID,
		Team:       "LAL",
		Opponent:   "GSW",
		IsHome:     true,
		Minutes:    37.5,
		GameDate:   game.GameDate,
		PlayerName: "lebron james",
		SourceLink: game.SourceLink,
	}
	line.Stats[store.FieldPTS] = sql.NullFloat64{Float64: 34, Valid: true}

	inserted, skipped, err := stats.InsertBatch(ctx, []store.PlayerGameStat{line})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 0, skipped)

	inserted, skipped, err = stats.InsertBatch(ctx, []store.PlayerGameStat{line})
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 1, skipped)

	box, err := stats.GetByGame(ctx, game.GameID)
	require.NoError(t, err)
	require.Len(t, box, 1)
	assert.Equal(t, line, box[0])
	assert.False(t, box[0].Stat(store.FieldAST).Valid)

	history, err := stats.GetByPlayer(ctx, playerID, 5)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestInsertBatchRequiresKnownGame(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	playerID, err := NewPlayerRepository(db.Q()).ResolvePlayer(ctx, "lebron james")
	require.NoError(t, err)

	_, _, err = NewStatsRepository(db.Q()).InsertBatch(ctx, []store.PlayerGameStat{{
		GameID:   "missing",
		PlayerID: playerID,
		Team:     "LAL",
		Opponent: "GSW",
	}})
	assert.Error(t, err)
}

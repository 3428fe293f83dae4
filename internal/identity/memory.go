package identity

import (
	"context"
	"sync"

	"github.com/fortuna/boxscore/internal/store"
)

// MemoryStore keeps identities in process. It backs dry runs and follows
// the same insert-or-fetch rules as the SQL repositories.
type MemoryStore struct {
	mu          sync.Mutex
	nextID      int64
	players     map[string]int64
	gamesByID   map[string]store.Game
	gamesByLink map[string]store.Game
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players:     make(map[string]int64),
		gamesByID:   make(map[string]store.Game),
		gamesByLink: make(map[string]store.Game),
	}
}

// ResolvePlayer returns the existing id for name or allocates the next one.
func (m *MemoryStore) ResolvePlayer(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.players[name]; ok {
		return id, nil
	}
	m.nextID++
	m.players[name] = m.nextID
	return m.nextID, nil
}

// RegisterGame inserts game unless its id or source link is taken.
func (m *MemoryStore) RegisterGame(ctx context.Context, game store.Game) (Registration, error) {
	if err := ctx.Err(); err != nil {
		return Registration{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.gamesByLink[game.SourceLink]; ok {
		if existing.GameID == game.GameID {
			return Registration{Status: Existing}, nil
		}
		return conflictWith(existing), nil
	}
	if existing, ok := m.gamesByID[game.GameID]; ok {
		return conflictWith(existing), nil
	}

	m.gamesByID[game.GameID] = game
	m.gamesByLink[game.SourceLink] = game
	return Registration{Status: Inserted}, nil
}

// PlayerCount returns the number of known players.
func (m *MemoryStore) PlayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players)
}

// GameCount returns the number of known games.
func (m *MemoryStore) GameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.gamesByID)
}

func conflictWith(existing store.Game) Registration {
	return Registration{
		Status:             Conflicted,
		ExistingGameID:     existing.GameID,
		ExistingSourceLink: existing.SourceLink,
	}
}

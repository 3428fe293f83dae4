package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	ids     map[string]int64
	readErr error
	evicted []string
}

func (m *mapStore) GetPlayerID(ctx context.Context, name string) (int64, bool, error) {
	if m.readErr != nil {
		return 0, false, m.readErr
	}
	id, ok := m.ids[name]
	return id, ok, nil
}

func (m *mapStore) SetPlayerIDs(ctx context.Context, ids map[string]int64) error {
	for k, v := range ids {
		m.ids[k] = v
	}
	return nil
}

func (m *mapStore) DeletePlayerIDs(ctx context.Context, names ...string) error {
	for _, n := range names {
		delete(m.ids, n)
		m.evicted = append(m.evicted, n)
	}
	return nil
}

// countingResolver hands out sequential ids. Ids listed in missing are
// treated as absent from the database.
type countingResolver struct {
	calls   int
	next    int64
	missing map[int64]bool
}

func (c *countingResolver) ResolvePlayer(ctx context.Context, name string) (int64, error) {
	c.calls++
	c.next++
	return c.next, nil
}

func (c *countingResolver) HasPlayer(ctx context.Context, id int64, name string) (bool, error) {
	return !c.missing[id], nil
}

func TestCachedResolverCommit(t *testing.T) {
	ctx := context.Background()
	backend := &mapStore{ids: map[string]int64{"stephen curry": 30}}
	inner := &countingResolver{}
	r := NewCachedResolver(inner, backend, nil)

	id, err := r.ResolvePlayer(ctx, "stephen curry")
	require.NoError(t, err)
	assert.Equal(t, int64(30), id)
	assert.Equal(t, 0, inner.calls)
	assert.Equal(t, 1, r.Hits())

	id, err = r.ResolvePlayer(ctx, "lebron james")
	require.NoError(t, err)
	again, err := r.ResolvePlayer(ctx, "lebron james")
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, inner.calls)

	_, cached := backend.ids["lebron james"]
	assert.False(t, cached)

	require.NoError(t, r.Commit(ctx))
	assert.Equal(t, id, backend.ids["lebron james"])
}

func TestCachedResolverEvictsStaleEntry(t *testing.T) {
	ctx := context.Background()
	backend := &mapStore{ids: map[string]int64{"lebron james": 999}}
	inner := &countingResolver{missing: map[int64]bool{999: true}}
	r := NewCachedResolver(inner, backend, nil)

	id, err := r.ResolvePlayer(ctx, "lebron james")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 0, r.Hits())
	assert.Equal(t, []string{"lebron james"}, backend.evicted)

	require.NoError(t, r.Commit(ctx))
	assert.Equal(t, int64(1), backend.ids["lebron james"])
}

func TestCachedResolverUncommittedIdsStayPending(t *testing.T) {
	ctx := context.Background()
	backend := &mapStore{ids: map[string]int64{}}
	r := NewCachedResolver(&countingResolver{}, backend, nil)

	_, err := r.ResolvePlayer(ctx, "lebron james")
	require.NoError(t, err)
	assert.Empty(t, backend.ids)
}

func TestCachedResolverBypassesBrokenCache(t *testing.T) {
	backend := &mapStore{ids: map[string]int64{}, readErr: errors.New("redis down")}
	inner := &countingResolver{}
	r := NewCachedResolver(inner, backend, nil)

	id, err := r.ResolvePlayer(context.Background(), "lebron james")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, 1, inner.calls)
}

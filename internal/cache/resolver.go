package cache

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Resolver is the player lookup being cached. HasPlayer confirms that a
// cached id still names the same player in the database.
type Resolver interface {
	ResolvePlayer(ctx context.Context, name string) (int64, error)
	HasPlayer(ctx context.Context, id int64, name string) (bool, error)
}

// PlayerIDStore is the cache backend. RedisCache implements it.
type PlayerIDStore interface {
	GetPlayerID(ctx context.Context, name string) (int64, bool, error)
	SetPlayerIDs(ctx context.Context, ids map[string]int64) error
	DeletePlayerIDs(ctx context.Context, names ...string) error
}

// CachedResolver answers repeat lookups from the cache. Ids resolved
// through the wrapped resolver are held back until Commit so a rolled
// back transaction never leaks ids into the cache.
type CachedResolver struct {
	next    Resolver
	store   PlayerIDStore
	pending map[string]int64
	hits    int
	logger  *logrus.Entry
}

// NewCachedResolver wraps next with store.
func NewCachedResolver(next Resolver, store PlayerIDStore, logger *logrus.Entry) *CachedResolver {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CachedResolver{
		next:    next,
		store:   store,
		pending: make(map[string]int64),
		logger:  logger.WithField("component", "player_cache"),
	}
}

// ResolvePlayer checks the cache before delegating. Cache failures are
// logged and bypassed. A cached id that no longer matches the database
// is evicted and resolved again.
func (c *CachedResolver) ResolvePlayer(ctx context.Context, name string) (int64, error) {
	if id, ok := c.pending[name]; ok {
		return id, nil
	}

	id, ok, err := c.store.GetPlayerID(ctx, name)
	if err != nil {
		c.logger.WithError(err).Warn("Player cache read failed")
	} else if ok {
		valid, err := c.next.HasPlayer(ctx, id, name)
		if err != nil {
			return 0, err
		}
		if valid {
			c.hits++
			return id, nil
		}
		c.evict(ctx, name, id)
	}

	id, err = c.next.ResolvePlayer(ctx, name)
	if err != nil {
		return 0, err
	}
	c.pending[name] = id
	return id, nil
}

// Commit writes pending ids to the cache.
func (c *CachedResolver) Commit(ctx context.Context) error {
	if len(c.pending) == 0 {
		return nil
	}
	if err := c.store.SetPlayerIDs(ctx, c.pending); err != nil {
		return err
	}
	c.logger.WithField("players", len(c.pending)).Debug("Player ids cached")
	c.pending = make(map[string]int64)
	return nil
}

func (c *CachedResolver) evict(ctx context.Context, name string, id int64) {
	log := c.logger.WithFields(logrus.Fields{"player": name, "cached_id": id})
	log.Warn("Stale player cache entry")
	if err := c.store.DeletePlayerIDs(ctx, name); err != nil {
		log.WithError(err).Warn("Player cache eviction failed")
	}
}

// Hits is the number of lookups answered from the cache.
func (c *CachedResolver) Hits() int {
	return c.hits
}

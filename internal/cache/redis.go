package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const playerKeyPrefix = "boxscore:player_id:"

// DefaultPlayerTTL bounds how long a cached player id is trusted.
const DefaultPlayerTTL = 7 * 24 * time.Hour

// RedisCache handles caching and fast state storage
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedisCacheFromClient(client), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, ttl: DefaultPlayerTTL}
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// HealthCheck pings Redis to verify connection
func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// GetPlayerID returns a cached id. ok is false on a miss.
func (rc *RedisCache) GetPlayerID(ctx context.Context, name string) (id int64, ok bool, err error) {
	val, err := rc.client.Get(ctx, playerKeyPrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	id, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		// Unreadable entries are treated as misses and overwritten later.
		return 0, false, nil
	}
	return id, true, nil
}

// SetPlayerIDs stores name to id mappings in one round trip.
func (rc *RedisCache) SetPlayerIDs(ctx context.Context, ids map[string]int64) error {
	if len(ids) == 0 {
		return nil
	}

	pipe := rc.client.Pipeline()
	for name, id := range ids {
		pipe.Set(ctx, playerKeyPrefix+name, strconv.FormatInt(id, 10), rc.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// DeletePlayerIDs evicts cached ids.
func (rc *RedisCache) DeletePlayerIDs(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = playerKeyPrefix + n
	}
	return rc.client.Del(ctx, keys...).Err()
}

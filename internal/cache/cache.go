package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	SetEpisodeStatus(ctx context.Context, episodeID uuid.UUID, payload []byte, ttl time.Duration) error
	GetEpisodeStatus(ctx context.Context, episodeID uuid.UUID) ([]byte, bool, error)
	DeleteEpisodeStatus(ctx context.Context, episodeID uuid.UUID) error
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// SetEpisodeStatus caches the serialized status snapshot for an episode.
// The TTL is short; the snapshot only exists to absorb polling bursts.
func (c *RedisCache) SetEpisodeStatus(ctx context.Context, episodeID uuid.UUID, payload []byte, ttl time.Duration) error {
	return c.client.Set(ctx, EpisodeStatusKey(episodeID), payload, ttl).Err()
}

func (c *RedisCache) GetEpisodeStatus(ctx context.Context, episodeID uuid.UUID) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, EpisodeStatusKey(episodeID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) DeleteEpisodeStatus(ctx context.Context, episodeID uuid.UUID) error {
	return c.client.Del(ctx, EpisodeStatusKey(episodeID)).Err()
}

// IncrWithExpiry atomically increments key and sets its expiry in one
// transaction. The expiry is only set when the key has none yet, so the
// window starts at the first increment and is never extended by later ones.
func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

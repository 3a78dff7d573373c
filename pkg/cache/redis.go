package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores entries in Redis under a key prefix.
type RedisCache struct {
	client *redis.Client
	prefix string
	owned  bool
}

// NewRedisCache wraps client. Close does not close the client.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "tafarru3:cache:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

// OpenRedis connects to the server at opts.Addr and verifies it answers.
// Close closes the client.
func OpenRedis(ctx context.Context, opts *redis.Options, prefix string) (*RedisCache, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	c := NewRedisCache(client, prefix)
	c.owned = true
	return c, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

func (c *RedisCache) Close() error {
	if c.owned {
		return c.client.Close()
	}
	return nil
}

var _ Cache = (*RedisCache)(nil)

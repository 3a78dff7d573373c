package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key holding the session list.
const DefaultRedisKey = "tafarru3:sessions"

// maxTxRetries bounds optimistic retries when another writer changes the key
// between WATCH and EXEC.
const maxTxRetries = 10

// ErrTooManyConflicts is returned when an update keeps losing to concurrent
// writers.
var ErrTooManyConflicts = errors.New("too many concurrent session updates")

// RedisConfig configures [OpenRedis].
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisBackend stores the session list as one JSON value so that
// multiple server instances share the same recent-session list.
type RedisBackend struct {
	client *redis.Client
	key    string
	owned  bool
}

// NewRedisBackend wraps an existing client. The caller keeps ownership of
// the client; Close does not close it.
func NewRedisBackend(client *redis.Client, key string) *RedisBackend {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisBackend{client: client, key: key}
}

// OpenRedis connects to cfg.Addr and verifies the connection.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	b := NewRedisBackend(client, cfg.Key)
	b.owned = true
	return b, nil
}

func (b *RedisBackend) Load(ctx context.Context) ([]Session, error) {
	return b.read(ctx, b.client)
}

// Update runs fn inside WATCH/MULTI/EXEC and retries on conflict.
func (b *RedisBackend) Update(ctx context.Context, fn UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		list, err := b.read(ctx, tx)
		if err != nil {
			return err
		}
		next, err := fn(list)
		if err != nil {
			return err
		}
		if next == nil {
			next = []Session{}
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal sessions: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, b.key, data, 0)
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := b.client.Watch(ctx, txf, b.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrTooManyConflicts
}

func (b *RedisBackend) Close() error {
	if b.owned {
		return b.client.Close()
	}
	return nil
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (b *RedisBackend) read(ctx context.Context, c getter) ([]Session, error) {
	data, err := c.Get(ctx, b.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Session{}, nil
		}
		return nil, fmt.Errorf("get %s: %w", b.key, err)
	}
	var list []Session
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse sessions: %w", err)
	}
	return list, nil
}

var _ Backend = (*RedisBackend)(nil)

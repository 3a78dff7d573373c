package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	apperr "github.com/ammusto/tafarru3/pkg/errors"
)

// FileCache keeps one JSON file per entry under a directory, sharded by the
// first byte of the key hash. It suits the CLI, where each command is a new
// process.
type FileCache struct {
	dir string
	now func() time.Time
}

// NewFileCache opens a cache rooted at dir, creating it if needed. An empty
// dir uses the user cache directory (~/.cache/tafarru3/layouts on Linux).
func NewFileCache(dir string) (*FileCache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeStorage, err, "locate cache directory")
		}
		dir = filepath.Join(base, "tafarru3", "layouts")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeStorage, err, "create %s", dir)
	}
	return &FileCache{dir: dir, now: time.Now}, nil
}

type cacheEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Get returns the entry for key. Unreadable or expired entries are removed
// and reported as a miss.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Wrap(apperr.ErrCodeStorage, err, "read cache entry")
	}

	var e cacheEntry
	if json.Unmarshal(raw, &e) != nil || e.expired(c.now()) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return e.Data, true, nil
}

// Set writes the entry through a temporary file so concurrent readers never
// see a partial write.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	e := cacheEntry{Data: data}
	if ttl > 0 {
		e.ExpiresAt = c.now().Add(ttl)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.Wrap(apperr.ErrCodeStorage, err, "create cache shard")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeStorage, err, "write cache entry")
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return apperr.Wrap(apperr.ErrCodeStorage, err, "write cache entry")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return apperr.Wrap(apperr.ErrCodeStorage, err, "write cache entry")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return apperr.Wrap(apperr.ErrCodeStorage, err, "write cache entry")
	}
	return nil
}

func (c *FileCache) Delete(ctx context.Context, key string) error {
	err := os.Remove(c.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.Wrap(apperr.ErrCodeStorage, err, "delete cache entry")
	}
	return nil
}

func (c *FileCache) Close() error { return nil }

func (c *FileCache) path(key string) string {
	h := Hash([]byte(key))
	return filepath.Join(c.dir, h[:2], h[2:]+".json")
}

var _ Cache = (*FileCache)(nil)

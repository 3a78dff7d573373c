// Package config loads tafarru3 settings from a TOML file, TAFARRU3_*
// environment variables and command-line flags, in increasing order of
// precedence.
//
// Keys are dotted paths such as "session.backend"; the matching environment
// variable replaces dots with underscores (TAFARRU3_SESSION_BACKEND).
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/ammusto/tafarru3/pkg/cache"
	apperr "github.com/ammusto/tafarru3/pkg/errors"
	"github.com/ammusto/tafarru3/pkg/layout"
	"github.com/ammusto/tafarru3/pkg/session"
)

// EnvPrefix prefixes every environment variable read by [Load].
const EnvPrefix = "TAFARRU3"

// FileName is the config file looked up in [Dir].
const FileName = "config.toml"

// Config holds all settings.
type Config struct {
	Layout   LayoutConfig   `mapstructure:"layout"`
	Session  SessionConfig  `mapstructure:"session"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Autosave AutosaveConfig `mapstructure:"autosave"`
	History  HistoryConfig  `mapstructure:"history"`
	Server   ServerConfig   `mapstructure:"server"`
	Neo4j    Neo4jConfig    `mapstructure:"neo4j"`
	Log      LogConfig      `mapstructure:"log"`
}

type LayoutConfig struct {
	RankSep   float64 `mapstructure:"rank_sep"`
	NodeSep   float64 `mapstructure:"node_sep"`
	Margin    float64 `mapstructure:"margin"`
	Direction string  `mapstructure:"direction"`
	Placer    string  `mapstructure:"placer"`
}

type SessionConfig struct {
	// Backend is one of file, sqlite, redis, mongo or memory.
	Backend string `mapstructure:"backend"`
	// Dir holds sessions.json for the file backend and the default sqlite
	// database.
	Dir    string      `mapstructure:"dir"`
	Limit  int         `mapstructure:"limit"`
	SQLite string      `mapstructure:"sqlite_path"`
	Redis  RedisConfig `mapstructure:"redis"`
	Mongo  MongoConfig `mapstructure:"mongo"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	// Backend is one of memory, file, redis or none.
	Backend string      `mapstructure:"backend"`
	Dir     string      `mapstructure:"dir"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type AutosaveConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Delay   time.Duration `mapstructure:"delay"`
}

type HistoryConfig struct {
	Limit int `mapstructure:"limit"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Layout: LayoutConfig{
			RankSep:   layout.DefaultRankSep,
			NodeSep:   layout.DefaultNodeSep,
			Margin:    layout.DefaultMargin,
			Direction: string(layout.TopBottom),
			Placer:    "tidy",
		},
		Session: SessionConfig{
			Backend: "file",
			Limit:   session.DefaultLimit,
			Redis:   RedisConfig{Addr: "localhost:6379", Key: session.DefaultRedisKey},
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "tafarru3",
				Collection: "sessions",
				Timeout:    10 * time.Second,
			},
		},
		Cache: CacheConfig{
			Backend: "memory",
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
		Autosave: AutosaveConfig{Enabled: true, Delay: 2 * time.Second},
		History:  HistoryConfig{Limit: 50},
		Server:   ServerConfig{Addr: "localhost:8080", AllowedOrigins: []string{}},
		Neo4j:    Neo4jConfig{URI: "neo4j://localhost:7687", Username: "neo4j"},
		Log:      LogConfig{Level: "info"},
	}
}

// Dir returns the directory holding the config file and local sessions.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home directory: %w", err)
	}
	return filepath.Join(home, ".config", "tafarru3"), nil
}

// DefaultPath returns the config file path inside [Dir].
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// New returns a viper instance with defaults, environment binding and, when
// path is non-empty, the config file registered. A missing file at the
// default path is not an error; an explicit path must exist.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("toml")

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return v, nil
		}
		path = p
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return v, nil
		}
		return nil, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	return v, nil
}

// Decode unmarshals v into a Config and validates it.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the config file at path (or the default path) and the
// environment.
func Load(path string) (*Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := c.Layout.Options(); err != nil {
		return err
	}
	switch c.Session.Backend {
	case "file", "sqlite", "redis", "mongo", "memory":
	default:
		return apperr.New(apperr.ErrCodeInvalidConfig, "unknown session backend %q", c.Session.Backend)
	}
	switch c.Cache.Backend {
	case "memory", "file", "redis", "none", "":
	default:
		return apperr.New(apperr.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.Session.Limit < 0 || c.History.Limit < 0 {
		return apperr.New(apperr.ErrCodeInvalidConfig, "limits must not be negative")
	}
	if c.Autosave.Delay < 0 {
		return apperr.New(apperr.ErrCodeInvalidConfig, "autosave delay must not be negative")
	}
	return nil
}

// Options converts the layout settings.
func (c LayoutConfig) Options() (layout.Options, error) {
	dir, err := layout.ParseDirection(c.Direction)
	if err != nil {
		return layout.Options{}, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "layout.direction")
	}
	placer, err := layout.ParsePlacer(c.Placer)
	if err != nil {
		return layout.Options{}, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "layout.placer")
	}
	return layout.Options{
		RankSep:   c.RankSep,
		NodeSep:   c.NodeSep,
		Margin:    c.Margin,
		Direction: dir,
		Placer:    placer,
	}, nil
}

// AutosaveDelay returns the delay in the form editor.Options expects:
// negative when auto-save is off.
func (c AutosaveConfig) AutosaveDelay() time.Duration {
	if !c.Enabled {
		return -1
	}
	return c.Delay
}

// Open connects the configured session backend.
func (c SessionConfig) Open(ctx context.Context) (session.Backend, error) {
	switch c.Backend {
	case "memory":
		return session.NewMemoryBackend(), nil
	case "file", "":
		return opened[session.Backend](session.NewFileBackend(c.Dir))
	case "sqlite":
		path := c.SQLite
		if path == "" {
			dir := c.Dir
			if dir == "" {
				d, err := Dir()
				if err != nil {
					return nil, err
				}
				dir = d
			}
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, apperr.Wrap(apperr.ErrCodeStorage, err, "create %s", dir)
			}
			path = filepath.Join(dir, "sessions.db")
		}
		return opened[session.Backend](session.NewSQLiteBackend(path))
	case "redis":
		return opened[session.Backend](session.OpenRedis(ctx, session.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Key:      c.Redis.Key,
		}))
	case "mongo":
		return opened[session.Backend](session.OpenMongo(ctx, session.MongoConfig{
			URI:        c.Mongo.URI,
			Database:   c.Mongo.Database,
			Collection: c.Mongo.Collection,
			Timeout:    c.Mongo.Timeout,
		}))
	}
	return nil, apperr.New(apperr.ErrCodeInvalidConfig, "unknown session backend %q", c.Backend)
}

// opened converts a constructor result to interface I without turning a nil
// pointer into a non-nil interface.
func opened[I any, T any](v T, err error) (I, error) {
	var zero I
	if err != nil {
		return zero, err
	}
	return any(v).(I), nil
}

// Open creates the configured layout cache. "none" yields a nil cache, which
// the editor treats as uncached.
func (c CacheConfig) Open(ctx context.Context) (cache.Cache, error) {
	switch c.Backend {
	case "none", "":
		return nil, nil
	case "memory":
		return cache.NewMemoryCache(), nil
	case "file":
		return opened[cache.Cache](cache.NewFileCache(c.Dir))
	case "redis":
		rc, err := cache.OpenRedis(ctx, &redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		}, c.Redis.Key)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeStorage, err, "redis ping %s", c.Redis.Addr)
		}
		return rc, nil
	}
	return nil, apperr.New(apperr.ErrCodeInvalidConfig, "unknown cache backend %q", c.Backend)
}

// WriteDefault writes the built-in settings as a TOML file.
func WriteDefault(w io.Writer) error {
	return toml.NewEncoder(w).Encode(tree(Default()))
}

// tree flattens c into nested maps keyed like the config file. Durations are
// written as strings so the file round-trips through viper.
func tree(c Config) map[string]any {
	redisTree := func(r RedisConfig) map[string]any {
		return map[string]any{"addr": r.Addr, "password": r.Password, "db": r.DB, "key": r.Key}
	}
	return map[string]any{
		"layout": map[string]any{
			"rank_sep":  c.Layout.RankSep,
			"node_sep":  c.Layout.NodeSep,
			"margin":    c.Layout.Margin,
			"direction": c.Layout.Direction,
			"placer":    c.Layout.Placer,
		},
		"session": map[string]any{
			"backend":     c.Session.Backend,
			"dir":         c.Session.Dir,
			"limit":       c.Session.Limit,
			"sqlite_path": c.Session.SQLite,
			"redis":       redisTree(c.Session.Redis),
			"mongo": map[string]any{
				"uri":        c.Session.Mongo.URI,
				"database":   c.Session.Mongo.Database,
				"collection": c.Session.Mongo.Collection,
				"timeout":    c.Session.Mongo.Timeout.String(),
			},
		},
		"cache": map[string]any{
			"backend": c.Cache.Backend,
			"dir":     c.Cache.Dir,
			"redis":   redisTree(c.Cache.Redis),
		},
		"autosave": map[string]any{
			"enabled": c.Autosave.Enabled,
			"delay":   c.Autosave.Delay.String(),
		},
		"history": map[string]any{"limit": c.History.Limit},
		"server": map[string]any{
			"addr":            c.Server.Addr,
			"allowed_origins": c.Server.AllowedOrigins,
		},
		"neo4j": map[string]any{
			"uri":      c.Neo4j.URI,
			"username": c.Neo4j.Username,
			"password": c.Neo4j.Password,
			"database": c.Neo4j.Database,
		},
		"log": map[string]any{"level": c.Log.Level},
	}
}

// setDefaults registers every key so that environment variables are seen by
// Unmarshal even when the file does not mention them.
func setDefaults(v *viper.Viper, c Config) {
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, val := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := val.(map[string]any); ok {
				walk(key, sub)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree(c))
}

// Keys lists every config key in dotted form.
func Keys() []string {
	v := viper.New()
	setDefaults(v, Default())
	return v.AllKeys()
}

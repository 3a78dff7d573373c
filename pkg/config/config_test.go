package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	apperr "github.com/ammusto/tafarru3/pkg/errors"
	"github.com/ammusto/tafarru3/pkg/layout"
	"github.com/ammusto/tafarru3/pkg/session"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
[layout]
rank_sep = 140
direction = "LR"
placer = "graphviz"

[session]
backend = "sqlite"
limit = 5

[autosave]
delay = "750ms"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Layout.RankSep != 140 || cfg.Layout.Direction != "LR" || cfg.Layout.Placer != "graphviz" {
		t.Errorf("layout = %+v", cfg.Layout)
	}
	if cfg.Layout.NodeSep != layout.DefaultNodeSep {
		t.Errorf("unset node_sep = %v, want default", cfg.Layout.NodeSep)
	}
	if cfg.Session.Backend != "sqlite" || cfg.Session.Limit != 5 {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Autosave.Delay != 750*time.Millisecond || !cfg.Autosave.Enabled {
		t.Errorf("autosave = %+v", cfg.Autosave)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "[session]\nbackend = \"sqlite\"\n")
	t.Setenv("TAFARRU3_SESSION_BACKEND", "memory")
	t.Setenv("TAFARRU3_HISTORY_LIMIT", "7")
	t.Setenv("TAFARRU3_AUTOSAVE_ENABLED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Backend != "memory" || cfg.History.Limit != 7 {
		t.Errorf("env not applied: session=%q history=%d", cfg.Session.Backend, cfg.History.Limit)
	}
	if got := cfg.Autosave.AutosaveDelay(); got >= 0 {
		t.Errorf("disabled autosave delay = %v, want negative", got)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"BadDirection", "[layout]\ndirection = \"diagonal\"\n"},
		{"BadPlacer", "[layout]\nplacer = \"spring\"\n"},
		{"BadSessionBackend", "[session]\nbackend = \"ftp\"\n"},
		{"BadCacheBackend", "[cache]\nbackend = \"disk\"\n"},
		{"NegativeLimit", "[history]\nlimit = -1\n"},
		{"Syntax", "[layout\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			if !apperr.Is(err, apperr.ErrCodeInvalidConfig) {
				t.Errorf("Load() error = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if !apperr.Is(err, apperr.ErrCodeInvalidConfig) {
		t.Errorf("Load(missing) = %v, want INVALID_CONFIG", err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") = %v", err)
	}
	if cfg.Session.Backend != "file" {
		t.Errorf("backend = %q, want file", cfg.Session.Backend)
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDefault(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "[layout]") || !strings.Contains(buf.String(), `delay = "2s"`) {
		t.Errorf("WriteDefault output:\n%s", buf.String())
	}

	cfg, err := Load(writeFile(t, buf.String()))
	if err != nil {
		t.Fatalf("Load(default file): %v", err)
	}
	want := Default()
	if cfg.Autosave != want.Autosave || cfg.Layout != want.Layout || cfg.Session.Mongo != want.Session.Mongo {
		t.Errorf("round trip = %+v, want %+v", cfg, want)
	}
}

func TestLayoutOptions(t *testing.T) {
	opts, err := LayoutConfig{Direction: "lr", Placer: "dot", RankSep: 80}.Options()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Direction != layout.LeftRight || opts.RankSep != 80 {
		t.Errorf("options = %+v", opts)
	}
	if _, ok := opts.Placer.(layout.GraphvizPlacer); !ok {
		t.Errorf("placer = %T, want GraphvizPlacer", opts.Placer)
	}
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, name := range []string{"memory", "file", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			b, err := SessionConfig{Backend: name, Dir: dir}.Open(ctx)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer b.Close()
			s := session.NewStore(b)
			if _, err := s.List(ctx); err != nil {
				t.Errorf("List: %v", err)
			}
		})
	}

	if _, err := (SessionConfig{Backend: "carrier-pigeon"}).Open(ctx); !apperr.Is(err, apperr.ErrCodeInvalidConfig) {
		t.Errorf("unknown backend = %v", err)
	}

	c, err := CacheConfig{Backend: "none"}.Open(ctx)
	if err != nil || c != nil {
		t.Errorf("none cache = %v, %v", c, err)
	}
	c, err = CacheConfig{Backend: "file", Dir: t.TempDir()}.Open(ctx)
	if err != nil || c == nil {
		t.Fatalf("file cache = %v, %v", c, err)
	}
	c.Close()
}

func TestKeys(t *testing.T) {
	keys := Keys()
	for _, want := range []string{"layout.rank_sep", "session.redis.addr", "autosave.delay", "neo4j.uri"} {
		if !slices.Contains(keys, want) {
			t.Errorf("Keys() missing %q", want)
		}
	}
}

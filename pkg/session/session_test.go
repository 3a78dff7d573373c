package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	apperr "github.com/ammusto/tafarru3/pkg/errors"
	"github.com/ammusto/tafarru3/pkg/graph"
)

func doc(n int) graph.Document {
	var d graph.Document
	for i := 1; i <= n; i++ {
		d.Nodes = append(d.Nodes, graph.Node{
			ID:       fmt.Sprintf("node-%d", i),
			Position: graph.Position{X: float64(i * 10), Y: 50},
			Data:     graph.DefaultNodeData(),
		})
	}
	if n >= 2 {
		d.Edges = append(d.Edges, graph.Edge{
			ID:           "e1",
			Source:       "node-1",
			Target:       "node-2",
			SourceHandle: graph.HandleBottom,
			TargetHandle: graph.HandleTop,
			Data:         graph.DefaultEdgeData(),
		})
		d.Nodes[1].ParentID = "node-1"
	}
	return d
}

// fixedClock returns times one minute apart, starting at a fixed instant.
func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

func names(t *testing.T, s *Store) []string {
	t.Helper()
	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	out := make([]string, len(list))
	for i, sum := range list {
		out[i] = sum.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// runBackendTests exercises the Store contract against a backend.
func runBackendTests(t *testing.T, newBackend func(t *testing.T) Backend) {
	ctx := context.Background()

	t.Run("EmptyList", func(t *testing.T) {
		s := NewStore(newBackend(t))
		if got := names(t, s); len(got) != 0 {
			t.Errorf("List = %v, want empty", got)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		s := NewStore(newBackend(t), WithClock(fixedClock()))
		if err := s.Save(ctx, "Isnad", doc(3)); err != nil {
			t.Fatalf("Save: %v", err)
		}
		sess, err := s.Load(ctx, "Isnad")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(sess.Nodes) != 3 || len(sess.Edges) != 1 {
			t.Fatalf("loaded %d nodes, %d edges; want 3, 1", len(sess.Nodes), len(sess.Edges))
		}
		if sess.Nodes[1].ParentID != "node-1" {
			t.Errorf("ParentID = %q, want node-1", sess.Nodes[1].ParentID)
		}
		if sess.Edges[0].SourceHandle != graph.HandleBottom {
			t.Errorf("SourceHandle = %q, want bottom", sess.Edges[0].SourceHandle)
		}
		want := time.Date(2024, 3, 1, 12, 1, 0, 0, time.UTC)
		if !sess.SavedAt.Equal(want) {
			t.Errorf("SavedAt = %v, want %v", sess.SavedAt, want)
		}
	})

	t.Run("PrependAndOverwriteInPlace", func(t *testing.T) {
		s := NewStore(newBackend(t), WithClock(fixedClock()))
		for _, name := range []string{"a", "b", "c"} {
			if err := s.Save(ctx, name, doc(1)); err != nil {
				t.Fatalf("Save(%s): %v", name, err)
			}
		}
		if got, want := names(t, s), []string{"c", "b", "a"}; !equalStrings(got, want) {
			t.Fatalf("List = %v, want %v", got, want)
		}

		if err := s.Save(ctx, "b", doc(4)); err != nil {
			t.Fatalf("Save(b): %v", err)
		}
		if got, want := names(t, s), []string{"c", "b", "a"}; !equalStrings(got, want) {
			t.Errorf("after overwrite List = %v, want %v", got, want)
		}
		sess, err := s.Load(ctx, "b")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(sess.Nodes) != 4 {
			t.Errorf("overwritten session has %d nodes, want 4", len(sess.Nodes))
		}
	})

	t.Run("Limit", func(t *testing.T) {
		s := NewStore(newBackend(t), WithLimit(3))
		for i := 1; i <= 5; i++ {
			if err := s.Save(ctx, fmt.Sprintf("p%d", i), doc(1)); err != nil {
				t.Fatal(err)
			}
		}
		if got, want := names(t, s), []string{"p5", "p4", "p3"}; !equalStrings(got, want) {
			t.Errorf("List = %v, want %v", got, want)
		}
	})

	t.Run("LoadMissing", func(t *testing.T) {
		s := NewStore(newBackend(t))
		_, err := s.Load(ctx, "nope")
		if !apperr.Is(err, apperr.ErrCodeSessionNotFound) {
			t.Errorf("Load error = %v, want SESSION_NOT_FOUND", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := NewStore(newBackend(t))
		s.Save(ctx, "a", doc(1))
		s.Save(ctx, "b", doc(1))
		if err := s.Delete(ctx, "a"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if got, want := names(t, s), []string{"b"}; !equalStrings(got, want) {
			t.Errorf("List = %v, want %v", got, want)
		}
		if err := s.Delete(ctx, "a"); !apperr.Is(err, apperr.ErrCodeSessionNotFound) {
			t.Errorf("second Delete error = %v, want SESSION_NOT_FOUND", err)
		}
	})

	t.Run("EmptyDocument", func(t *testing.T) {
		s := NewStore(newBackend(t))
		if err := s.Save(ctx, "empty", graph.Document{}); err != nil {
			t.Fatalf("Save: %v", err)
		}
		sess, err := s.Load(ctx, "empty")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(sess.Nodes) != 0 || len(sess.Edges) != 0 {
			t.Errorf("got %d nodes, %d edges", len(sess.Nodes), len(sess.Edges))
		}
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		s := NewStore(newBackend(t), WithLimit(20))
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := s.Save(ctx, fmt.Sprintf("c%d", i), doc(1)); err != nil {
					t.Errorf("Save: %v", err)
				}
			}(i)
		}
		wg.Wait()
		if got := names(t, s); len(got) != 8 {
			t.Errorf("List has %d sessions, want 8: %v", len(got), got)
		}
	})
}

func TestMemoryBackend(t *testing.T) {
	runBackendTests(t, func(t *testing.T) Backend { return NewMemoryBackend() })
}

func TestFileBackend(t *testing.T) {
	runBackendTests(t, func(t *testing.T) Backend {
		b, err := NewFileBackend(t.TempDir())
		if err != nil {
			t.Fatalf("NewFileBackend: %v", err)
		}
		return b
	})
}

func TestSQLiteBackend(t *testing.T) {
	runBackendTests(t, func(t *testing.T) Backend {
		b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "sessions.db"))
		if err != nil {
			t.Fatalf("NewSQLiteBackend: %v", err)
		}
		t.Cleanup(func() { b.Close() })
		return b
	})
}

func TestRedisBackend(t *testing.T) {
	runBackendTests(t, func(t *testing.T) Backend {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("Failed to start miniredis: %v", err)
		}
		t.Cleanup(mr.Close)

		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		return NewRedisBackend(client, "")
	})
}

func TestSaveRejectsInvalidName(t *testing.T) {
	s := NewStore(NewMemoryBackend())
	tests := []string{"", "   ", "bad\x00name"}
	for _, name := range tests {
		err := s.Save(context.Background(), name, doc(1))
		if !apperr.Is(err, apperr.ErrCodeInvalidInput) {
			t.Errorf("Save(%q) error = %v, want INVALID_INPUT", name, err)
		}
	}
}

func TestFileBackendPermissions(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(b)
	if err := s.Save(context.Background(), "p", doc(2)); err != nil {
		t.Fatal(err)
	}
	if b.Path() != filepath.Join(dir, DefaultFileName) {
		t.Errorf("Path = %q", b.Path())
	}
	info, err := os.Stat(b.Path())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
}

func TestFileBackendCorrupt(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b.Path(), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err = NewStore(b).List(context.Background())
	if !apperr.Is(err, apperr.ErrCodeStorage) {
		t.Errorf("List error = %v, want STORAGE_ERROR", err)
	}
}

func TestStoreCloseIdempotent(t *testing.T) {
	s := NewStore(NewMemoryBackend())
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestUpsert(t *testing.T) {
	list := []Session{{Name: "a"}, {Name: "b"}}
	got := upsert(list, Session{Name: "c"}, 2)
	if len(got) != 2 || got[0].Name != "c" || got[1].Name != "a" {
		t.Errorf("upsert prepend = %+v", got)
	}
	got = upsert(list, Session{Name: "b", Nodes: []graph.Node{{ID: "node-1"}}}, 2)
	if len(got) != 2 || got[1].Name != "b" || len(got[1].Nodes) != 1 {
		t.Errorf("upsert overwrite = %+v", got)
	}
}

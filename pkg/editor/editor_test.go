package editor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ammusto/tafarru3/pkg/cache"
	apperr "github.com/ammusto/tafarru3/pkg/errors"
	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/session"
	"github.com/ammusto/tafarru3/pkg/store"
)

func counterIDs() store.EdgeIDFunc {
	n := 0
	return func(string, string) string {
		n++
		return fmt.Sprintf("edge-%d", n)
	}
}

func newEditor(t *testing.T, opts Options) *Editor {
	t.Helper()
	if opts.EdgeIDs == nil {
		opts.EdgeIDs = counterIDs()
	}
	if opts.AutosaveDelay == 0 {
		opts.AutosaveDelay = -1
	}
	e := New(opts)
	t.Cleanup(func() { e.Close(context.Background()) })
	return e
}

// family adds a root with two children.
func family(e *Editor) {
	s := e.Store
	s.AddNode(store.NodeSpec{Position: graph.Position{X: 0, Y: 0}})
	s.AddNode(store.NodeSpec{Position: graph.Position{X: 0, Y: 0}})
	s.AddNode(store.NodeSpec{Position: graph.Position{X: 0, Y: 0}})
	for _, child := range []string{"node-2", "node-3"} {
		s.Connect(store.ConnectSpec{Source: "node-1", Target: child, SourceHandle: graph.HandleBottom, TargetHandle: graph.HandleTop})
	}
}

func TestCSVRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newEditor(t, Options{})
	family(src)
	src.Store.UpdateNode("node-2", graph.NodePatch{Label: graph.Ptr("al-Hasan")})

	var buf bytes.Buffer
	if err := src.ExportCSV(ctx, &buf); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if src.Store.State().UnsavedChanges {
		t.Error("export should clear the unsaved flag")
	}

	dst := newEditor(t, Options{})
	dst.Store.AddNode(store.NodeSpec{})
	res, err := dst.ImportCSV(ctx, &buf)
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if res.LaidOut {
		t.Error("exported rows carry coordinates; layout should not run")
	}
	st := dst.Store.State()
	if len(st.Nodes) != 3 || len(st.Edges) != 2 {
		t.Fatalf("imported %d nodes, %d edges; want 3, 2", len(st.Nodes), len(st.Edges))
	}
	if st.Nodes[1].Data.Label != "al-Hasan" || st.Nodes[1].ParentID != "node-1" {
		t.Errorf("node-2 = %+v", st.Nodes[1])
	}
	if dst.History.CanUndo() {
		t.Error("import should start a fresh history")
	}
}

func TestJSONFiles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tree.json")

	src := newEditor(t, Options{})
	family(src)
	if err := src.ExportJSONFile(ctx, path); err != nil {
		t.Fatalf("ExportJSONFile: %v", err)
	}

	dst := newEditor(t, Options{})
	if err := dst.ImportJSONFile(ctx, path); err != nil {
		t.Fatalf("ImportJSONFile: %v", err)
	}
	if got := len(dst.Store.State().Nodes); got != 3 {
		t.Errorf("imported %d nodes, want 3", got)
	}
}

func TestImportErrors(t *testing.T) {
	ctx := context.Background()
	e := newEditor(t, Options{})

	if _, err := e.ImportCSVFile(ctx, filepath.Join(t.TempDir(), "missing.csv")); !apperr.Is(err, apperr.ErrCodeFileNotFound) {
		t.Errorf("missing file error = %v, want FILE_NOT_FOUND", err)
	}
	if _, err := e.ImportCSVFile(ctx, ""); !apperr.Is(err, apperr.ErrCodeInvalidPath) {
		t.Errorf("empty path error = %v, want INVALID_PATH", err)
	}
	if _, err := e.ImportCSV(ctx, strings.NewReader("Name\nx\n")); !apperr.Is(err, apperr.ErrCodeInvalidFormat) {
		t.Errorf("missing ID column error = %v, want INVALID_FORMAT", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte("{"), 0600)
	if err := e.ImportJSONFile(ctx, bad); !apperr.Is(err, apperr.ErrCodeInvalidFormat) {
		t.Errorf("bad JSON error = %v, want INVALID_FORMAT", err)
	}

	loop := `{"nodes": [{"id": "node-1", "parentId": "node-2"}, {"id": "node-2", "parentId": "node-1"}], "edges": []}`
	if err := e.ImportJSON(ctx, strings.NewReader(loop)); !apperr.Is(err, apperr.ErrCodeInvalidFormat) {
		t.Errorf("ancestor loop error = %v, want INVALID_FORMAT", err)
	}
	if n := len(e.Store.State().Nodes); n != 0 {
		t.Errorf("rejected import left %d nodes", n)
	}
}

func TestAutoLayoutIsOneUndoStep(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()
	e := newEditor(t, Options{Cache: c})
	family(e)
	before := e.History.Len()

	hit, err := e.AutoLayout(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("first layout should not be cached")
	}
	st := e.Store.State()
	root, _ := st.Node("node-1")
	child, _ := st.Node("node-2")
	if root.Position.Y >= child.Position.Y {
		t.Errorf("root y = %v, child y = %v; want root above", root.Position.Y, child.Position.Y)
	}
	if got := e.History.Len(); got != before+1 {
		t.Errorf("history grew by %d, want 1", got-before)
	}

	e.History.Undo()
	root, _ = e.Store.State().Node("node-1")
	if root.Position != (graph.Position{}) {
		t.Errorf("undo left root at %v", root.Position)
	}

	if hit, _ := e.AutoLayout(ctx); !hit {
		t.Error("second layout should come from the cache")
	}
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	sessions := session.NewStore(session.NewMemoryBackend())
	e := newEditor(t, Options{Sessions: sessions})
	family(e)
	e.Store.SetProjectName("Banu Hashim")

	if err := e.SaveSession(ctx); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if e.Store.State().UnsavedChanges {
		t.Error("SaveSession should clear the unsaved flag")
	}

	other := newEditor(t, Options{Sessions: sessions})
	if err := other.OpenSession(ctx, "Banu Hashim"); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	st := other.Store.State()
	if st.ProjectName != "Banu Hashim" || len(st.Nodes) != 3 {
		t.Errorf("opened %q with %d nodes", st.ProjectName, len(st.Nodes))
	}
	if other.History.CanUndo() {
		t.Error("opening a session should start a fresh history")
	}

	list, err := other.Sessions(ctx)
	if err != nil || len(list) != 1 || list[0].Nodes != 3 {
		t.Errorf("Sessions = %+v, %v", list, err)
	}

	if err := other.OpenSession(ctx, "missing"); !apperr.Is(err, apperr.ErrCodeSessionNotFound) {
		t.Errorf("OpenSession(missing) = %v, want SESSION_NOT_FOUND", err)
	}

	if err := other.DeleteSession(ctx, "Banu Hashim"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if list, _ := other.Sessions(ctx); len(list) != 0 {
		t.Errorf("after delete Sessions = %+v", list)
	}
	if len(other.Store.State().Nodes) != 3 {
		t.Error("deleting a session should not touch the open diagram")
	}
}

func TestSessionsNotConfigured(t *testing.T) {
	e := newEditor(t, Options{})
	if err := e.SaveSession(context.Background()); !apperr.Is(err, apperr.ErrCodeUnsupported) {
		t.Errorf("SaveSession = %v, want UNSUPPORTED", err)
	}
}

func TestCloseFlushesAutosave(t *testing.T) {
	ctx := context.Background()
	sessions := session.NewStore(session.NewMemoryBackend())
	e := New(Options{Sessions: sessions, AutosaveDelay: 1 << 40})
	e.Store.SetProjectName("Draft")
	e.Store.AddNode(store.NodeSpec{})
	if err := e.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := sessions.Load(ctx, "Draft"); err != nil {
		t.Errorf("auto-saved session missing: %v", err)
	}
}

func TestNormalizeChord(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "Ctrl+Z", want: "ctrl+z"},
		{in: "shift+ctrl+z", want: "ctrl+shift+z"},
		{in: "Meta+S", want: "ctrl+s"},
		{in: "cmd+shift+z", want: "ctrl+shift+z"},
		{in: "Esc", want: "escape"},
		{in: "Delete", want: "delete"},
		{in: "ctrl+ctrl+a", want: "ctrl+a"},
		{in: "", wantErr: true},
		{in: "ctrl+", wantErr: true},
		{in: "a+b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeChord(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeChord(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeChord(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHandleKey(t *testing.T) {
	ctx := context.Background()
	e := newEditor(t, Options{})
	e.Store.AddNode(store.NodeSpec{})
	e.Store.AddNode(store.NodeSpec{})

	// Typing in a text field never reaches the store.
	if action, err := e.HandleKey(ctx, "Delete", true); action != "" || err != nil {
		t.Errorf("text field key ran %q, %v", action, err)
	}

	tests := []struct {
		chord string
		want  Action
		check func(st *store.State) bool
	}{
		{"n", ActionAddNodeMode, func(st *store.State) bool { return st.Mode == graph.ModeAddNode }},
		{"escape", ActionClearSelection, func(st *store.State) bool { return st.Mode == graph.ModeSelect }},
		{"g", ActionToggleGrid, func(st *store.State) bool { return st.GridEnabled }},
		{"ctrl+a", ActionSelectAll, func(st *store.State) bool { return len(st.Selection.Nodes) == 2 }},
		{"Delete", ActionDeleteSelected, func(st *store.State) bool { return len(st.Nodes) == 0 }},
		{"Meta+Z", ActionUndo, func(st *store.State) bool { return len(st.Nodes) == 2 }},
		{"ctrl+shift+z", ActionRedo, func(st *store.State) bool { return len(st.Nodes) == 0 }},
		{"q", "", func(st *store.State) bool { return len(st.Nodes) == 0 }},
	}
	for _, tt := range tests {
		action, err := e.HandleKey(ctx, tt.chord, false)
		if err != nil {
			t.Fatalf("HandleKey(%q): %v", tt.chord, err)
		}
		if action != tt.want {
			t.Errorf("HandleKey(%q) = %q, want %q", tt.chord, action, tt.want)
		}
		if !tt.check(e.Store.State()) {
			t.Errorf("HandleKey(%q): unexpected state %+v", tt.chord, e.Store.State())
		}
	}
}

func TestRunUnknownAction(t *testing.T) {
	e := newEditor(t, Options{})
	if err := e.Run(context.Background(), "fly"); !apperr.Is(err, apperr.ErrCodeInvalidInput) {
		t.Errorf("Run(fly) = %v, want INVALID_INPUT", err)
	}
}

package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ammusto/tafarru3/pkg/config"
	apperr "github.com/ammusto/tafarru3/pkg/errors"
	"github.com/ammusto/tafarru3/pkg/session"
)

const familyCSV = "ID,ParentID,Label,X,Y\n1,,Ali,0,0\n2,1,Hasan,0,150\n3,1,Husayn,200,150\n"

// isolate points every config location at fresh temp directories.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TAFARRU3_SESSION_BACKEND", "file")
	t.Setenv("TAFARRU3_SESSION_DIR", filepath.Join(home, "sessions"))
	t.Setenv("TAFARRU3_CACHE_BACKEND", "none")
	return home
}

// run executes the root command with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = defaultStdout })

	root := New(io.Discard, LogInfo).RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTemplateCommand(t *testing.T) {
	isolate(t)
	out, err := run(t, "template")
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if !strings.Contains(out, "ParentID") || !strings.Contains(out, "Abu Bakr al-Razi") {
		t.Errorf("template output:\n%s", out)
	}
}

func TestImportListExport(t *testing.T) {
	home := isolate(t)
	in := writeTemp(t, home, "family.csv", familyCSV)

	out, err := run(t, "import", in, "--name", "Ahl al-Bayt")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "3 people · 2 links") {
		t.Errorf("import output:\n%s", out)
	}

	out, err = run(t, "sessions", "list")
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	if !strings.Contains(out, "Ahl al-Bayt") {
		t.Errorf("sessions list output:\n%s", out)
	}

	exported := filepath.Join(home, "out.csv")
	if _, err := run(t, "export", "Ahl al-Bayt", "-o", exported); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Ali", "Hasan", "Husayn"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("exported CSV missing %q:\n%s", want, data)
		}
	}

	out, err = run(t, "export", "Ahl al-Bayt", "--format", "json")
	if err != nil {
		t.Fatalf("export json: %v", err)
	}
	if !strings.Contains(out, `"Husayn"`) {
		t.Errorf("JSON export:\n%s", out)
	}

	if _, err := run(t, "sessions", "delete", "Ahl al-Bayt"); err != nil {
		t.Fatalf("sessions delete: %v", err)
	}
	if _, err := run(t, "export", "Ahl al-Bayt"); !apperr.Is(err, apperr.ErrCodeSessionNotFound) {
		t.Errorf("export after delete = %v, want SESSION_NOT_FOUND", err)
	}
}

func TestImportNameFromFile(t *testing.T) {
	home := isolate(t)
	in := writeTemp(t, home, "Banu Hashim.csv", familyCSV)
	if _, err := run(t, "import", in); err != nil {
		t.Fatalf("import: %v", err)
	}
	out, err := run(t, "sessions", "show", "Banu Hashim")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "Banu Hashim") || !strings.Contains(out, "3") {
		t.Errorf("show output:\n%s", out)
	}
}

func TestLayoutCommand(t *testing.T) {
	home := isolate(t)
	in := writeTemp(t, home, "tree.csv", "ID,ParentID,Label\n1,,Ali\n2,1,Hasan\n3,1,Husayn\n")

	out, err := run(t, "layout", in, "--placer", "tidy", "--rank-sep", "120")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if !strings.Contains(out, "Layout complete") || !strings.Contains(out, "tidy") {
		t.Errorf("layout output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(home, "tree.layout.csv")); err != nil {
		t.Errorf("default output missing: %v", err)
	}
}

func TestLayoutRejectsBadPlacer(t *testing.T) {
	home := isolate(t)
	in := writeTemp(t, home, "tree.csv", familyCSV)
	if _, err := run(t, "layout", in, "--placer", "spring"); !apperr.Is(err, apperr.ErrCodeInvalidConfig) {
		t.Errorf("layout --placer spring = %v, want INVALID_CONFIG", err)
	}
}

func TestConfigInit(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "conf", config.FileName)

	if _, err := run(t, "config", "init", "--config", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := config.Load(path); err != nil {
		t.Errorf("written config does not load: %v", err)
	}
	if _, err := run(t, "config", "init", "--config", path); !apperr.Is(err, apperr.ErrCodeConflict) {
		t.Errorf("second init = %v, want CONFLICT", err)
	}
	if _, err := run(t, "config", "init", "--config", path, "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}

	out, err := run(t, "config", "path", "--config", path)
	if err != nil || strings.TrimSpace(out) != path {
		t.Errorf("config path = %q, %v", out, err)
	}
}

func TestConfigShowMasksPasswords(t *testing.T) {
	isolate(t)
	t.Setenv("TAFARRU3_NEO4J_PASSWORD", "hunter2")
	out, err := run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "hunter2") {
		t.Error("password printed in clear")
	}
	if !strings.Contains(out, "neo4j.password") || !strings.Contains(out, "layout.placer") {
		t.Errorf("config show output:\n%s", out)
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		flag, path string
		want       string
		wantErr    bool
	}{
		{"", "tree.csv", formatCSV, false},
		{"", "tree.JSON", formatJSON, false},
		{"", "", formatCSV, false},
		{"json", "tree.csv", formatJSON, false},
		{" CSV ", "", formatCSV, false},
		{"xml", "", "", true},
	}
	for _, tt := range tests {
		got, err := formatFor(tt.flag, tt.path)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("formatFor(%q, %q) = %q, %v", tt.flag, tt.path, got, err)
		}
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := relativeTime(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("relativeTime(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
	if got := relativeTime(time.Time{}, now); got != "—" {
		t.Errorf("zero time = %q", got)
	}
}

func TestPlural(t *testing.T) {
	if got := plural(1, "person", "people"); got != "1 person" {
		t.Errorf("plural(1) = %q", got)
	}
	if got := plural(0, "person", "people"); got != "0 people" {
		t.Errorf("plural(0) = %q", got)
	}
}

func TestSessionListModel(t *testing.T) {
	now := time.Now()
	list := []session.Summary{
		{Name: "Ahl al-Bayt", Nodes: 3, Edges: 2, SavedAt: now},
		{Name: "Banu Umayya", Nodes: 5, Edges: 4, SavedAt: now.Add(-time.Hour)},
	}
	key := func(s string) tea.KeyMsg {
		switch s {
		case "down":
			return tea.KeyMsg{Type: tea.KeyDown}
		case "enter":
			return tea.KeyMsg{Type: tea.KeyEnter}
		}
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}

	var m tea.Model = NewSessionListModel(list, now)
	m, _ = m.Update(key("down"))
	m, _ = m.Update(key("j")) // already at the end
	if got := m.(SessionListModel).Cursor; got != 1 {
		t.Fatalf("cursor = %d, want 1", got)
	}
	m, _ = m.Update(key("k"))
	m, _ = m.Update(key("down"))

	if view := m.View(); !strings.Contains(view, "Banu Umayya") || !strings.Contains(view, "[2/2]") {
		t.Errorf("view:\n%s", view)
	}

	m, cmd := m.Update(key("enter"))
	if cmd == nil {
		t.Fatal("enter should quit")
	}
	sel := m.(SessionListModel).Selected
	if sel == nil || sel.Name != "Banu Umayya" {
		t.Errorf("selected = %+v", sel)
	}

	m, _ = NewSessionListModel(list, now).Update(key("q"))
	if m.(SessionListModel).Selected != nil {
		t.Error("q should not select")
	}
}

func TestSessionTable(t *testing.T) {
	now := time.Now()
	out := sessionTable([]session.Summary{{Name: "Ahl al-Bayt", Nodes: 3, Edges: 2, SavedAt: now}}, now)
	for _, want := range []string{"Project", "Ahl al-Bayt", "just now"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

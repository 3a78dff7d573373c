// Package editor wires the graph store, undo history, auto-save, codecs,
// layout and session persistence into one editing session.
//
// Both the CLI and the HTTP server drive diagrams through an [Editor] so file
// import, auto-layout and session handling behave the same everywhere.
//
//	ed := editor.New(editor.Options{Sessions: sessions, Logger: logger})
//	defer ed.Close(ctx)
//
//	if _, err := ed.ImportCSVFile(ctx, "isnad.csv"); err != nil {
//	    return err
//	}
//	ed.Store.AddNode(store.NodeSpec{})
//	ed.History.Undo()
package editor

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ammusto/tafarru3/pkg/autosave"
	"github.com/ammusto/tafarru3/pkg/cache"
	"github.com/ammusto/tafarru3/pkg/codec"
	apperr "github.com/ammusto/tafarru3/pkg/errors"
	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/history"
	"github.com/ammusto/tafarru3/pkg/layout"
	"github.com/ammusto/tafarru3/pkg/observability"
	"github.com/ammusto/tafarru3/pkg/session"
	"github.com/ammusto/tafarru3/pkg/store"
)

// Options configures an Editor. The zero value is usable: no sessions, no
// layout cache, default layout spacing.
type Options struct {
	// Sessions enables SaveSession, OpenSession and auto-save.
	Sessions *session.Store
	// Cache memoizes AutoLayout results. Nil disables caching.
	Cache cache.Cache
	// Layout is used by AutoLayout and by CSV import of unpositioned rows.
	Layout layout.Options
	// AutosaveDelay is the auto-save quiet period. Zero uses the default; a
	// negative value disables auto-save.
	AutosaveDelay time.Duration
	// HistoryLimit caps undo steps. Zero uses the default.
	HistoryLimit int
	// EdgeIDs overrides edge id generation, mainly for tests.
	EdgeIDs store.EdgeIDFunc
	Logger  *log.Logger
}

// Editor is one open diagram.
type Editor struct {
	Store   *store.Store
	History *history.Manager

	sessions *session.Store
	autosave *autosave.Autosaver
	cache    cache.Cache
	layout   layout.Options
	edgeIDs  store.EdgeIDFunc
	logger   *log.Logger
}

// New creates an editor with an empty diagram.
func New(opts Options) *Editor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	storeOpts := []store.Option{store.WithLogger(logger)}
	if opts.EdgeIDs != nil {
		storeOpts = append(storeOpts, store.WithEdgeIDs(opts.EdgeIDs))
	}
	s := store.New(storeOpts...)

	e := &Editor{
		Store:    s,
		History:  history.New(s, history.WithLimit(opts.HistoryLimit), history.WithLogger(logger)),
		sessions: opts.Sessions,
		cache:    opts.Cache,
		layout:   opts.Layout,
		edgeIDs:  opts.EdgeIDs,
		logger:   logger,
	}
	if opts.Sessions != nil && opts.AutosaveDelay >= 0 {
		e.autosave = autosave.New(s, opts.Sessions,
			autosave.WithDelay(opts.AutosaveDelay),
			autosave.WithLogger(logger),
			autosave.WithHook(func(r autosave.Result) {
				if !r.Skipped {
					observability.Editor().OnSessionSave(context.Background(), true, r.Err)
				}
			}))
	}
	return e
}

// Close flushes pending auto-saves and releases the store. The session store
// passed in Options is not closed.
func (e *Editor) Close(ctx context.Context) error {
	var err error
	if e.autosave != nil {
		err = e.autosave.Close(ctx)
	}
	e.History.Close()
	e.Store.Close()
	return err
}

// NewDocument replaces the diagram with doc and starts a fresh undo history.
func (e *Editor) NewDocument(doc graph.Document) error {
	if err := e.Store.ImportData(doc); err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidInput, err, "load document")
	}
	e.History.Clear()
	return nil
}

// Reset clears the diagram and the undo history.
func (e *Editor) Reset() {
	e.Store.ClearAll()
	e.History.Clear()
}

// =============================================================================
// Files
// =============================================================================

// ImportCSV decodes a CSV diagram and replaces the current one.
func (e *Editor) ImportCSV(ctx context.Context, r io.Reader) (*codec.Result, error) {
	start := time.Now()
	observability.Editor().OnImportStart(ctx, "csv")

	res, err := codec.DecodeCSV(ctx, r, codec.DecodeOptions{Layout: e.layout, EdgeID: e.edgeIDs})
	if err == nil {
		err = e.NewDocument(res.Document)
	}
	nodes := 0
	if res != nil {
		nodes = len(res.Document.Nodes)
	}
	observability.Editor().OnImportComplete(ctx, "csv", nodes, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	e.logger.Info("imported CSV",
		"nodes", nodes,
		"edges", len(res.Document.Edges),
		"legacy", res.Legacy,
		"laidOut", res.LaidOut,
		"dropped", res.Dropped)
	return res, nil
}

// ImportCSVFile reads a CSV diagram from path.
func (e *Editor) ImportCSVFile(ctx context.Context, path string) (*codec.Result, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return e.ImportCSV(ctx, f)
}

// ExportCSV writes the diagram as CSV and clears the unsaved-changes flag.
func (e *Editor) ExportCSV(ctx context.Context, w io.Writer) error {
	start := time.Now()
	doc := e.Store.State().Document()
	err := codec.EncodeCSV(w, doc)
	observability.Editor().OnExportComplete(ctx, "csv", len(doc.Nodes), time.Since(start), err)
	if err != nil {
		return err
	}
	e.Store.MarkSaved()
	return nil
}

// ExportCSVFile writes the diagram as CSV to path.
func (e *Editor) ExportCSVFile(ctx context.Context, path string) error {
	return writeFile(path, func(w io.Writer) error { return e.ExportCSV(ctx, w) })
}

// ImportJSON reads a JSON snapshot and replaces the current diagram.
func (e *Editor) ImportJSON(ctx context.Context, r io.Reader) error {
	start := time.Now()
	observability.Editor().OnImportStart(ctx, "json")

	doc, err := codec.ReadJSON(r)
	if err == nil {
		err = e.NewDocument(doc)
	}
	observability.Editor().OnImportComplete(ctx, "json", len(doc.Nodes), time.Since(start), err)
	return err
}

// ImportJSONFile reads a JSON snapshot from path.
func (e *Editor) ImportJSONFile(ctx context.Context, path string) error {
	f, err := openFile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return e.ImportJSON(ctx, f)
}

// ExportJSON writes the diagram as a JSON snapshot.
func (e *Editor) ExportJSON(ctx context.Context, w io.Writer) error {
	start := time.Now()
	doc := e.Store.State().Document()
	err := codec.WriteJSON(w, doc)
	observability.Editor().OnExportComplete(ctx, "json", len(doc.Nodes), time.Since(start), err)
	if err != nil {
		return err
	}
	e.Store.MarkSaved()
	return nil
}

// ExportJSONFile writes the diagram as a JSON snapshot to path.
func (e *Editor) ExportJSONFile(ctx context.Context, path string) error {
	return writeFile(path, func(w io.Writer) error { return e.ExportJSON(ctx, w) })
}

func openFile(path string) (*os.File, error) {
	if err := apperr.ValidatePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, apperr.New(apperr.ErrCodeFileNotFound, "file not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := apperr.ValidatePath(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// =============================================================================
// Layout
// =============================================================================

// AutoLayout positions every node as a single undoable step. It reports
// whether the result came from the layout cache.
func (e *Editor) AutoLayout(ctx context.Context) (bool, error) {
	st := e.Store.State()
	placer := placerName(e.layout.Placer)
	start := time.Now()
	observability.Editor().OnLayoutStart(ctx, placer, len(st.Nodes))

	pos, hit, err := cache.Layout(ctx, e.cache, st.Nodes, st.Edges, e.layout)
	observability.Editor().OnLayoutComplete(ctx, placer, time.Since(start), err)
	if err != nil {
		return false, err
	}
	e.Store.ApplyPositions(pos)
	e.logger.Debug("auto-layout", "nodes", len(pos), "cached", hit, "duration", time.Since(start))
	return hit, nil
}

func placerName(p layout.Placer) string {
	switch p.(type) {
	case layout.GraphvizPlacer, *layout.GraphvizPlacer:
		return "graphviz"
	default:
		return "tidy"
	}
}

// =============================================================================
// Sessions
// =============================================================================

// ErrNoSessions is returned by session operations when the editor was built
// without a session store.
var ErrNoSessions = apperr.New(apperr.ErrCodeUnsupported, "session storage is not configured")

// SaveSession stores the diagram under the project name and clears the
// unsaved-changes flag.
func (e *Editor) SaveSession(ctx context.Context) error {
	if e.sessions == nil {
		return ErrNoSessions
	}
	st := e.Store.State()
	name := st.ProjectName
	if name == "" {
		name = autosave.DefaultName
	}
	err := e.sessions.Save(ctx, name, st.Document())
	observability.Editor().OnSessionSave(ctx, false, err)
	if err != nil {
		return err
	}
	e.Store.MarkSaved()
	e.logger.Info("session saved", "name", name)
	return nil
}

// OpenSession replaces the diagram with the named session.
func (e *Editor) OpenSession(ctx context.Context, name string) error {
	if e.sessions == nil {
		return ErrNoSessions
	}
	sess, err := e.sessions.Load(ctx, name)
	if err != nil {
		return err
	}
	if err := e.NewDocument(sess.Document()); err != nil {
		return err
	}
	e.Store.SetProjectName(sess.Name)
	e.logger.Info("session opened", "name", sess.Name, "nodes", len(sess.Nodes))
	return nil
}

// Sessions lists saved sessions, most recent first.
func (e *Editor) Sessions(ctx context.Context) ([]session.Summary, error) {
	if e.sessions == nil {
		return nil, ErrNoSessions
	}
	return e.sessions.List(ctx)
}

// DeleteSession removes the named session from the store. The open diagram
// is untouched.
func (e *Editor) DeleteSession(ctx context.Context, name string) error {
	if e.sessions == nil {
		return ErrNoSessions
	}
	if err := e.sessions.Delete(ctx, name); err != nil {
		return err
	}
	e.logger.Info("session deleted", "name", name)
	return nil
}

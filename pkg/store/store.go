package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/ids"
	"github.com/ammusto/tafarru3/pkg/observability"
)

// ErrClosed is returned by [Store.ImportData] after [Store.Close].
var ErrClosed = errors.New("store is closed")

// Listener receives the snapshots before and after a committed operation.
type Listener func(prev, next *State)

// EdgeIDFunc generates the id of a new edge.
type EdgeIDFunc func(source, target string) string

// NewEdgeID returns "e<source>-<target>-<uuid v4>". Ids are unique
// regardless of call timing.
func NewEdgeID(source, target string) string {
	return "e" + source + "-" + target + "-" + uuid.NewString()
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for debug output about ignored operations.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEdgeIDs overrides the edge id generator.
func WithEdgeIDs(fn EdgeIDFunc) Option {
	return func(s *Store) {
		if fn != nil {
			s.edgeID = fn
		}
	}
}

// Store is the graph store. The zero value is not usable; use [New].
type Store struct {
	mu        sync.Mutex
	state     *State
	listeners map[int]Listener
	nextSub   int
	closed    bool

	edgeID EdgeIDFunc
	logger *log.Logger
}

// New creates an empty store in select mode.
func New(opts ...Option) *Store {
	s := &Store{
		state:     emptyState(),
		listeners: make(map[int]Listener),
		edgeID:    NewEdgeID,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current snapshot. It must not be modified.
func (s *Store) State() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to be called after every committed operation.
// The returned function removes the subscription; it is safe to call twice.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Close disposes of the store: subscribers are dropped and every later
// operation is a no-op. The last snapshot stays readable.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.listeners = make(map[int]Listener)
}

// update runs fn against the current state under the lock and commits the
// snapshot it returns. fn returns nil to signal "nothing changed".
func (s *Store) update(op string, fn func(cur *State) *State) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	prev := s.state
	next := fn(prev)
	if next == nil || next == prev {
		s.mu.Unlock()
		return false
	}
	next.Version = prev.Version + 1
	s.state = next

	keys := make([]int, 0, len(s.listeners))
	for k := range s.listeners {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	listeners := make([]Listener, len(keys))
	for i, k := range keys {
		listeners[i] = s.listeners[k]
	}
	s.mu.Unlock()

	s.logger.Debug("store commit", "op", op, "version", next.Version, "nodes", len(next.Nodes), "edges", len(next.Edges))
	observability.Store().OnCommit(op, len(next.Nodes), len(next.Edges))
	for _, l := range listeners {
		l(prev, next)
	}
	return true
}

func (s *Store) ignored(op string, kv ...any) {
	s.logger.Debug(op+" ignored", kv...)
}

// =============================================================================
// Document-level operations
// =============================================================================

// ImportData replaces the whole graph with doc, clears the selection and
// marks the diagram as saved. The document must satisfy [graph.Validate] and
// use node-<n> ids; otherwise the store is left untouched. Non-contiguous ids
// are renumbered.
func (s *Store) ImportData(doc graph.Document) error {
	if err := graph.Validate(doc); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	for _, n := range doc.Nodes {
		if _, ok := ids.Suffix(n.ID); !ok {
			return fmt.Errorf("import: node id %q is not of the form %s<n>", n.ID, ids.Prefix)
		}
	}
	doc = doc.Clone()
	res := ids.Renumber(doc.Nodes, doc.Edges, graph.Selection{})

	applied := s.update("importData", func(cur *State) *State {
		next := cur.clone()
		next.Nodes = nonNil(res.Nodes)
		next.Edges = nonNilEdges(res.Edges)
		next.Selection = graph.Selection{}
		next.UnsavedChanges = false
		return next
	})
	if !applied {
		return ErrClosed
	}
	return nil
}

// ClearAll empties the diagram and marks it as saved.
func (s *Store) ClearAll() bool {
	return s.update("clearAll", func(cur *State) *State {
		next := cur.clone()
		next.Nodes = []graph.Node{}
		next.Edges = []graph.Edge{}
		next.Selection = graph.Selection{}
		next.UnsavedChanges = false
		return next
	})
}

// Restore replaces nodes and edges with a previously captured document, as
// done by undo and redo. Selected ids that no longer exist are dropped and
// the diagram is marked as having unsaved changes.
func (s *Store) Restore(doc graph.Document) bool {
	doc = doc.Clone()
	return s.update("restore", func(cur *State) *State {
		next := cur.clone()
		next.Nodes = nonNil(doc.Nodes)
		next.Edges = nonNilEdges(doc.Edges)
		next.pruneSelection()
		next.UnsavedChanges = true
		return next
	})
}

// MarkSaved clears the unsaved-changes flag.
func (s *Store) MarkSaved() bool {
	return s.update("markSaved", func(cur *State) *State {
		if !cur.UnsavedChanges {
			return nil
		}
		next := cur.clone()
		next.UnsavedChanges = false
		return next
	})
}

// SetProjectName sets the name used for session persistence.
func (s *Store) SetProjectName(name string) bool {
	return s.update("setProjectName", func(cur *State) *State {
		if cur.ProjectName == name {
			return nil
		}
		next := cur.clone()
		next.ProjectName = name
		return next
	})
}

func nonNil(n []graph.Node) []graph.Node {
	if n == nil {
		return []graph.Node{}
	}
	return n
}

func nonNilEdges(e []graph.Edge) []graph.Edge {
	if e == nil {
		return []graph.Edge{}
	}
	return e
}

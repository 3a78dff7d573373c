package history

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/store"
)

// DefaultLimit is the number of undo steps kept when no limit is configured.
const DefaultLimit = 50

// Phase is the state of the recording state machine.
type Phase int

const (
	// Idle records a snapshot after every committed change.
	Idle Phase = iota
	// Interacting suppresses snapshots until the gesture ends.
	Interacting
)

func (p Phase) String() string {
	if p == Interacting {
		return "interacting"
	}
	return "idle"
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText decodes a phase name written by MarshalText.
func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*p = Idle
	case "interacting":
		*p = Interacting
	default:
		return fmt.Errorf("unknown history phase %q", b)
	}
	return nil
}

// Status is the observable state of a Manager.
type Status struct {
	CanUndo bool  `json:"canUndo"`
	CanRedo bool  `json:"canRedo"`
	Past    int   `json:"past"`
	Future  int   `json:"future"`
	Phase   Phase `json:"phase"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithLimit sets the maximum number of undo steps. Values below one are
// ignored.
func WithLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.limit = n
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// Manager keeps the past and future snapshot stacks of one store.
type Manager struct {
	mu      sync.Mutex
	store   *store.Store
	limit   int
	phase   Phase
	present graph.Document
	past    []graph.Document
	future  []graph.Document

	listeners map[int]func(Status)
	nextSub   int
	cancel    func()
	logger    *log.Logger
}

// New attaches a manager to s. The current contents of s become the baseline
// that the first undo returns to.
func New(s *store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:     s,
		limit:     DefaultLimit,
		present:   snapshot(s.State()),
		listeners: make(map[int]func(Status)),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cancel = s.Subscribe(m.onChange)
	return m
}

// Close detaches the manager from its store.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.listeners = make(map[int]func(Status))
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Subscribe registers fn to be called whenever the undo or redo availability
// or the phase changes. The returned function removes the subscription.
func (m *Manager) Subscribe(fn func(Status)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Manager) onChange(_, next *store.State) {
	m.mu.Lock()
	if m.phase == Interacting {
		m.mu.Unlock()
		return
	}
	changed := m.record(snapshot(next))
	m.unlockAndNotify(changed)
}

// record pushes the current baseline and makes doc the new one. It reports
// whether anything was pushed. Callers hold m.mu.
func (m *Manager) record(doc graph.Document) bool {
	if reflect.DeepEqual(doc, m.present) {
		return false
	}
	m.past = append(m.past, m.present)
	if over := len(m.past) - m.limit; over > 0 {
		m.past = append([]graph.Document(nil), m.past[over:]...)
	}
	m.present = doc
	m.future = nil
	m.logger.Debug("history push", "past", len(m.past))
	return true
}

// BeginInteraction enters the Interacting phase. It is a no-op when a
// gesture is already in progress.
func (m *Manager) BeginInteraction() {
	m.mu.Lock()
	if m.phase == Interacting {
		m.mu.Unlock()
		return
	}
	m.phase = Interacting
	m.unlockAndNotify(true)
}

// EndInteraction returns to Idle and records the store's current state as a
// single entry covering the whole gesture.
func (m *Manager) EndInteraction() {
	m.mu.Lock()
	if m.phase == Idle {
		m.mu.Unlock()
		return
	}
	m.endLocked()
	m.unlockAndNotify(true)
}

func (m *Manager) endLocked() {
	m.phase = Idle
	m.record(snapshot(m.store.State()))
}

// Undo restores the previous snapshot into the store. A gesture in progress
// is ended first. It reports whether a snapshot was applied.
func (m *Manager) Undo() bool {
	return m.step(&m.past, &m.future, "undo")
}

// Redo reapplies the most recently undone snapshot.
func (m *Manager) Redo() bool {
	return m.step(&m.future, &m.past, "redo")
}

func (m *Manager) step(from, to *[]graph.Document, op string) bool {
	m.mu.Lock()
	ended := m.phase == Interacting
	if ended {
		m.endLocked()
	}
	if len(*from) == 0 {
		m.unlockAndNotify(ended)
		return false
	}
	doc := (*from)[len(*from)-1]
	*from = (*from)[:len(*from)-1]
	*to = append(*to, m.present)
	m.present = doc
	m.logger.Debug("history "+op, "past", len(m.past), "future", len(m.future))
	m.mu.Unlock()

	// The store notifies onChange synchronously; the restored state equals
	// the new baseline, so nothing is pushed.
	m.store.Restore(doc)
	m.notify()
	return true
}

// Clear empties both stacks and makes the store's current state the new
// baseline. It is called after a document is loaded so undo cannot cross a
// document boundary.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.past = nil
	m.future = nil
	m.phase = Idle
	m.present = snapshot(m.store.State())
	m.unlockAndNotify(true)
}

// CanUndo reports whether an undo step is available.
func (m *Manager) CanUndo() bool { return m.Status().CanUndo }

// CanRedo reports whether a redo step is available.
func (m *Manager) CanRedo() bool { return m.Status().CanRedo }

// Len returns the number of undo steps.
func (m *Manager) Len() int { return m.Status().Past }

// Status returns the current stack sizes and phase.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	return Status{
		CanUndo: len(m.past) > 0,
		CanRedo: len(m.future) > 0,
		Past:    len(m.past),
		Future:  len(m.future),
		Phase:   m.phase,
	}
}

func (m *Manager) unlockAndNotify(changed bool) {
	m.mu.Unlock()
	if changed {
		m.notify()
	}
}

func (m *Manager) notify() {
	m.mu.Lock()
	st := m.statusLocked()
	keys := make([]int, 0, len(m.listeners))
	for k := range m.listeners {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fns := make([]func(Status), len(keys))
	for i, k := range keys {
		fns[i] = m.listeners[k]
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// snapshot copies the history-relevant part of a store state. Empty slices
// are normalized so that equality does not depend on nil versus empty.
func snapshot(st *store.State) graph.Document {
	doc := st.Document()
	if doc.Nodes == nil {
		doc.Nodes = []graph.Node{}
	}
	if doc.Edges == nil {
		doc.Edges = []graph.Edge{}
	}
	return doc
}

// Package autosave writes the diagram to the session store after edits
// settle.
//
// An [Autosaver] subscribes to a [store.Store]. Every change to nodes, edges
// or the project name restarts a quiet-period timer ([DefaultDelay]); when
// it fires, the current snapshot is saved under the project name (or
// [DefaultName]). Selection, mode and grid changes do not count as edits.
// Snapshots whose content hash matches the last successful save are
// skipped, as are diagrams with no nodes.
//
//	saver := autosave.New(st, sessions, autosave.WithDelay(time.Second))
//	defer saver.Close(ctx)
package autosave

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ammusto/tafarru3/pkg/cache"
	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/store"
)

// Defaults.
const (
	DefaultDelay = 2 * time.Second
	DefaultName  = "Untitled"
)

// Saver persists a named document. *session.Store satisfies it.
type Saver interface {
	Save(ctx context.Context, name string, doc graph.Document) error
}

// Result describes one save attempt.
type Result struct {
	Name    string
	Nodes   int
	Skipped bool
	Err     error
}

// Option configures an Autosaver.
type Option func(*Autosaver)

// WithDelay sets the quiet period. Non-positive values are ignored.
func WithDelay(d time.Duration) Option {
	return func(a *Autosaver) {
		if d > 0 {
			a.delay = d
		}
	}
}

// WithDefaultName sets the session name used when the project is unnamed.
func WithDefaultName(name string) Option {
	return func(a *Autosaver) {
		if name != "" {
			a.defaultName = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Autosaver) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithHook registers fn to receive the result of every save attempt.
func WithHook(fn func(Result)) Option {
	return func(a *Autosaver) { a.hook = fn }
}

// Autosaver debounces store changes into session saves.
type Autosaver struct {
	mu      sync.Mutex
	store   *store.Store
	saver   Saver
	delay   time.Duration
	timer   *time.Timer
	pending bool
	closed  bool
	cancel  func()

	saveMu   sync.Mutex
	lastHash string

	defaultName string
	hook        func(Result)
	logger      *log.Logger
}

// New subscribes to s and starts watching for edits.
func New(s *store.Store, saver Saver, opts ...Option) *Autosaver {
	a := &Autosaver{
		store:       s,
		saver:       saver,
		delay:       DefaultDelay,
		defaultName: DefaultName,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.cancel = s.Subscribe(a.onChange)
	return a
}

// Pending reports whether a save is scheduled.
func (a *Autosaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

func (a *Autosaver) onChange(prev, next *store.State) {
	if !edited(prev, next) {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.pending = true
	if a.timer == nil {
		a.timer = time.AfterFunc(a.delay, a.fire)
		return
	}
	a.timer.Reset(a.delay)
}

func (a *Autosaver) fire() {
	a.mu.Lock()
	if !a.pending || a.closed {
		a.mu.Unlock()
		return
	}
	a.pending = false
	a.mu.Unlock()

	a.save(context.Background())
}

// Flush saves immediately if a save is scheduled.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if !a.pending {
		a.mu.Unlock()
		return nil
	}
	a.pending = false
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()

	return a.save(ctx).Err
}

// Close flushes any scheduled save and unsubscribes from the store.
func (a *Autosaver) Close(ctx context.Context) error {
	err := a.Flush(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return err
	}
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.cancel()
	return err
}

// save writes the current snapshot. Saves never run concurrently.
func (a *Autosaver) save(ctx context.Context) Result {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	st := a.store.State()
	doc := st.Document()
	name := st.ProjectName
	if name == "" {
		name = a.defaultName
	}
	res := Result{Name: name, Nodes: len(doc.Nodes)}

	hash := name + ":" + cache.DocumentHash(doc)
	if len(doc.Nodes) == 0 || hash == a.lastHash {
		res.Skipped = true
		a.report(res)
		return res
	}

	if err := a.saver.Save(ctx, name, doc); err != nil {
		res.Err = err
		a.logger.Warn("autosave failed", "name", name, "err", err)
		a.report(res)
		return res
	}
	a.lastHash = hash
	a.logger.Debug("autosaved", "name", name, "nodes", res.Nodes)
	a.report(res)
	return res
}

func (a *Autosaver) report(res Result) {
	if a.hook != nil {
		a.hook(res)
	}
}

// edited reports whether the change touched saved content.
func edited(prev, next *store.State) bool {
	if prev == nil {
		return true
	}
	if prev.ProjectName != next.ProjectName {
		return true
	}
	return !reflect.DeepEqual(prev.Nodes, next.Nodes) || !reflect.DeepEqual(prev.Edges, next.Edges)
}

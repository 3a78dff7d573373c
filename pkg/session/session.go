// Package session persists recently edited diagrams ("local sessions").
//
// A [Store] keeps at most [DefaultLimit] sessions keyed by project name, most
// recently saved first. Saving a name that already exists overwrites it in
// place; a new name is prepended and the oldest session beyond the limit is
// dropped.
//
// Storage is delegated to a [Backend]:
//   - [MemoryBackend]: in-process, for tests and ephemeral servers
//   - [FileBackend]: a JSON file under ~/.config/tafarru3, for the CLI
//   - [RedisBackend]: shared storage for multi-instance servers
//   - [SQLiteBackend]: a single-file database
//   - [MongoBackend]: a document collection
//
// # Usage
//
//	backend, err := session.NewFileBackend("")
//	if err != nil {
//	    return err
//	}
//	sessions := session.NewStore(backend)
//	defer sessions.Close()
//
//	err = sessions.Save(ctx, "Isnad of al-Bukhari", state.Document())
//	sess, err := sessions.Load(ctx, "Isnad of al-Bukhari")
package session

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	apperr "github.com/ammusto/tafarru3/pkg/errors"
	"github.com/ammusto/tafarru3/pkg/graph"
)

// DefaultLimit is the number of sessions retained.
const DefaultLimit = 10

// Session is one saved diagram.
type Session struct {
	Name    string       `json:"name" bson:"name"`
	Nodes   []graph.Node `json:"nodes" bson:"nodes"`
	Edges   []graph.Edge `json:"edges" bson:"edges"`
	SavedAt time.Time    `json:"savedAt" bson:"saved_at"`
}

// Document returns a deep copy of the session's nodes and edges.
func (s Session) Document() graph.Document {
	return graph.Document{Nodes: s.Nodes, Edges: s.Edges}.Clone()
}

// Summary describes a session without its contents.
type Summary struct {
	Name    string    `json:"name"`
	Nodes   int       `json:"nodes"`
	Edges   int       `json:"edges"`
	SavedAt time.Time `json:"savedAt"`
}

// UpdateFunc transforms the stored session list. The list is ordered most
// recent first.
type UpdateFunc func(sessions []Session) ([]Session, error)

// Backend stores the session list.
//
// Update must apply fn atomically with respect to other Update calls on the
// same underlying storage. Backends shared between processes retry fn when a
// concurrent writer wins.
type Backend interface {
	// Load returns the stored list, most recent first. A backend with no data
	// returns an empty list.
	Load(ctx context.Context) ([]Session, error)

	// Update replaces the list with the result of fn.
	Update(ctx context.Context, fn UpdateFunc) error

	// Close releases connections held by the backend.
	Close() error
}

// Option configures a Store.
type Option func(*Store)

// WithLimit overrides [DefaultLimit]. Values below 1 are ignored.
func WithLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for SavedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the capped session list.
type Store struct {
	backend Backend
	limit   int
	now     func() time.Time
	logger  *log.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewStore creates a store over backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		limit:   DefaultLimit,
		now:     time.Now,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns summaries of the stored sessions, most recent first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	sessions, err := s.backend.Load(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeStorage, err, "list sessions")
	}
	out := make([]Summary, len(sessions))
	for i, sess := range sessions {
		out[i] = Summary{
			Name:    sess.Name,
			Nodes:   len(sess.Nodes),
			Edges:   len(sess.Edges),
			SavedAt: sess.SavedAt,
		}
	}
	return out, nil
}

// Save stores doc under name. An existing session with the same name keeps
// its position in the list.
func (s *Store) Save(ctx context.Context, name string, doc graph.Document) error {
	if err := apperr.ValidateProjectName(name); err != nil {
		return err
	}
	doc = doc.Clone()
	sess := Session{
		Name:    name,
		Nodes:   nonNil(doc.Nodes),
		Edges:   nonNil(doc.Edges),
		SavedAt: s.now().UTC(),
	}
	err := s.backend.Update(ctx, func(list []Session) ([]Session, error) {
		return upsert(list, sess, s.limit), nil
	})
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeStorage, err, "save session %q", name)
	}
	s.logger.Debug("session saved", "name", name, "nodes", len(sess.Nodes), "edges", len(sess.Edges))
	return nil
}

// Load returns the session stored under name.
func (s *Store) Load(ctx context.Context, name string) (*Session, error) {
	sessions, err := s.backend.Load(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeStorage, err, "load session %q", name)
	}
	for _, sess := range sessions {
		if sess.Name == name {
			return &sess, nil
		}
	}
	return nil, apperr.New(apperr.ErrCodeSessionNotFound, "session %q not found", name)
}

// Delete removes the session stored under name. Deleting an unknown name
// returns a SESSION_NOT_FOUND error.
func (s *Store) Delete(ctx context.Context, name string) error {
	found := false
	err := s.backend.Update(ctx, func(list []Session) ([]Session, error) {
		found = false
		out := make([]Session, 0, len(list))
		for _, sess := range list {
			if sess.Name == name {
				found = true
				continue
			}
			out = append(out, sess)
		}
		return out, nil
	})
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeStorage, err, "delete session %q", name)
	}
	if !found {
		return apperr.New(apperr.ErrCodeSessionNotFound, "session %q not found", name)
	}
	return nil
}

// Close closes the backend. It is safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.backend.Close() })
	return s.closeErr
}

// upsert overwrites the session with the same name in place, or prepends
// sess and trims the list to limit.
func upsert(list []Session, sess Session, limit int) []Session {
	out := make([]Session, 0, len(list)+1)
	replaced := false
	for _, existing := range list {
		if existing.Name == sess.Name {
			out = append(out, sess)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append([]Session{sess}, out...)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

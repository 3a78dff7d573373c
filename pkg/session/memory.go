package session

import (
	"context"
	"sync"
)

// MemoryBackend keeps sessions in process memory.
type MemoryBackend struct {
	mu   sync.Mutex
	list []Session
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Load(ctx context.Context) ([]Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneSessions(b.list), nil
}

func (b *MemoryBackend) Update(ctx context.Context, fn UpdateFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	next, err := fn(cloneSessions(b.list))
	if err != nil {
		return err
	}
	b.list = cloneSessions(next)
	return nil
}

func (b *MemoryBackend) Close() error { return nil }

func cloneSessions(list []Session) []Session {
	out := make([]Session, len(list))
	for i, sess := range list {
		doc := sess.Document()
		sess.Nodes, sess.Edges = nonNil(doc.Nodes), nonNil(doc.Edges)
		out[i] = sess
	}
	return out
}

var _ Backend = (*MemoryBackend)(nil)

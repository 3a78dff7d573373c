package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultFileName is the session file created under the config directory.
const DefaultFileName = "sessions.json"

// FileBackend stores sessions as a single JSON file for CLI use.
type FileBackend struct {
	mu   sync.RWMutex
	path string
}

// NewFileBackend creates a file backend rooted at baseDir.
// If baseDir is empty, defaults to ~/.config/tafarru3/
func NewFileBackend(baseDir string) (*FileBackend, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		baseDir = filepath.Join(home, ".config", "tafarru3")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileBackend{path: filepath.Join(baseDir, DefaultFileName)}, nil
}

func (b *FileBackend) Load(ctx context.Context) ([]Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.read()
}

func (b *FileBackend) Update(ctx context.Context, fn UpdateFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	list, err := b.read()
	if err != nil {
		return err
	}
	next, err := fn(list)
	if err != nil {
		return err
	}
	return b.write(next)
}

func (b *FileBackend) Close() error { return nil }

// Path returns the session file path.
func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) read() ([]Session, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Session{}, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var list []Session
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse sessions: %w", err)
	}
	return list, nil
}

// write replaces the file atomically so a crash never leaves a torn list.
func (b *FileBackend) write(list []Session) error {
	if list == nil {
		list = []Session{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".sessions-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

var _ Backend = (*FileBackend)(nil)

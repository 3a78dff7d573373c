package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBackend stores sessions in a SQLite database, one row per session.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database at dbPath.
// It enables WAL mode and creates the schema when missing.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		name TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		saved_at TEXT NOT NULL,
		nodes JSON NOT NULL,
		edges JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_position ON sessions(position);
	`
	_, err := b.db.Exec(query)
	return err
}

func (b *SQLiteBackend) Load(ctx context.Context) ([]Session, error) {
	return b.query(ctx, b.db)
}

// Update rewrites the table inside a single transaction.
func (b *SQLiteBackend) Update(ctx context.Context, fn UpdateFunc) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	list, err := b.query(ctx, tx)
	if err != nil {
		return err
	}
	next, err := fn(list)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO sessions (name, position, saved_at, nodes, edges) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, sess := range next {
		nodes, err := json.Marshal(nonNil(sess.Nodes))
		if err != nil {
			return fmt.Errorf("marshal nodes: %w", err)
		}
		edges, err := json.Marshal(nonNil(sess.Edges))
		if err != nil {
			return fmt.Errorf("marshal edges: %w", err)
		}
		savedAt := sess.SavedAt.UTC().Format(time.RFC3339Nano)
		if _, err := stmt.ExecContext(ctx, sess.Name, i, savedAt, string(nodes), string(edges)); err != nil {
			return fmt.Errorf("insert session %q: %w", sess.Name, err)
		}
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (b *SQLiteBackend) query(ctx context.Context, q queryer) ([]Session, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT name, saved_at, nodes, edges FROM sessions ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	list := []Session{}
	for rows.Next() {
		var (
			sess         Session
			savedAt      string
			nodes, edges string
		)
		if err := rows.Scan(&sess.Name, &savedAt, &nodes, &edges); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if sess.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
			return nil, fmt.Errorf("session %q: parse saved_at: %w", sess.Name, err)
		}
		if err := json.Unmarshal([]byte(nodes), &sess.Nodes); err != nil {
			return nil, fmt.Errorf("session %q: parse nodes: %w", sess.Name, err)
		}
		if err := json.Unmarshal([]byte(edges), &sess.Edges); err != nil {
			return nil, fmt.Errorf("session %q: parse edges: %w", sess.Name, err)
		}
		list = append(list, sess)
	}
	return list, rows.Err()
}

var _ Backend = (*SQLiteBackend)(nil)

// Package sqlite persists the run ledger to a local SQLite file. Each record
// is stored as a JSON payload next to the columns it is queried by.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"rndharness/internal/ledger/core"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ core.Store = (*Store)(nil)

const defaultPath = "rnd-ledger.db"

// Store is a SQLite-backed ledger.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewStore opens (or creates) the ledger database at path.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS attempts (
			id TEXT PRIMARY KEY,
			run_group TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS selections (
			id TEXT PRIMARY KEY,
			run_group TEXT NOT NULL,
			payload BLOB NOT NULL
		)`,
	} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create ledger tables: %w", err)
		}
	}
	return &Store{db: db, path: path, now: time.Now}, nil
}

// RecordAttempt implements core.Store.
func (s *Store) RecordAttempt(ctx context.Context, rec core.AttemptRecord) error {
	rec, err := core.PrepareAttempt(rec, s.now())
	if err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts(id,run_group,attempt,payload) VALUES(?,?,?,?)`,
		rec.ID, rec.RunGroup, rec.Attempt, payload); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// RecordSelection implements core.Store.
func (s *Store) RecordSelection(ctx context.Context, rec core.SelectionRecord) error {
	rec, err := core.PrepareSelection(rec, s.now())
	if err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO selections(id,run_group,payload) VALUES(?,?,?)`,
		rec.ID, rec.RunGroup, payload); err != nil {
		return fmt.Errorf("insert selection: %w", err)
	}
	return nil
}

// ListAttempts implements core.Store.
func (s *Store) ListAttempts(ctx context.Context, runGroup string) ([]core.AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM attempts WHERE run_group = ? ORDER BY attempt, rowid`, runGroup)
	if err != nil {
		return nil, fmt.Errorf("select attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []core.AttemptRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var rec core.AttemptRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode attempt: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for test assertions.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

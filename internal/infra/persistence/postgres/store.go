// Package postgres persists the run ledger to Postgres through the pgx
// database/sql driver, storing each record as a JSONB payload.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"rndharness/internal/ledger/core"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ core.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/rndharness?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS rnd_attempts (
		id TEXT PRIMARY KEY,
		run_group TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		payload JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rnd_selections (
		id TEXT PRIMARY KEY,
		run_group TEXT NOT NULL,
		payload JSONB NOT NULL
	)`,
}

// Store is a Postgres-backed ledger.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore connects using dsn (defaultDSN when empty) and ensures the ledger
// tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure ledger tables: %w", err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
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
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO rnd_attempts(id,run_group,attempt,payload) VALUES($1,$2,$3,$4)`,
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
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO rnd_selections(id,run_group,payload) VALUES($1,$2,$3)`,
		rec.ID, rec.RunGroup, payload); err != nil {
		return fmt.Errorf("insert selection: %w", err)
	}
	return nil
}

// ListAttempts implements core.Store.
func (s *Store) ListAttempts(ctx context.Context, runGroup string) ([]core.AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM rnd_attempts WHERE run_group = $1 ORDER BY attempt`, runGroup)
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

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sql.Open implementation, returning a restore
// function. Tests use it to inject a stub database.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

// Package memory provides an in-process ledger store for tests and runs that
// do not need durable history.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"rndharness/internal/ledger/core"
)

var _ core.Store = (*Store)(nil)

// Store keeps ledger records in memory, keyed by run group.
type Store struct {
	mu         sync.RWMutex
	attempts   map[string][]core.AttemptRecord
	selections map[string][]core.SelectionRecord
	now        func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		attempts:   make(map[string][]core.AttemptRecord),
		selections: make(map[string][]core.SelectionRecord),
		now:        time.Now,
	}
}

// RecordAttempt implements core.Store.
func (s *Store) RecordAttempt(ctx context.Context, rec core.AttemptRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, err := core.PrepareAttempt(rec, s.now())
	if err != nil {
		return err
	}
	rec.KPI = slices.Clone(rec.KPI)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[rec.RunGroup] = append(s.attempts[rec.RunGroup], rec)
	return nil
}

// RecordSelection implements core.Store.
func (s *Store) RecordSelection(ctx context.Context, rec core.SelectionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, err := core.PrepareSelection(rec, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections[rec.RunGroup] = append(s.selections[rec.RunGroup], rec)
	return nil
}

// ListAttempts implements core.Store.
func (s *Store) ListAttempts(ctx context.Context, runGroup string) ([]core.AttemptRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := slices.Clone(s.attempts[runGroup])
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b core.AttemptRecord) int { return a.Attempt - b.Attempt })
	return out, nil
}

// Selections returns the selection records of a run group in write order.
func (s *Store) Selections(runGroup string) []core.SelectionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.selections[runGroup])
}

// Close implements core.Store.
func (s *Store) Close() error { return nil }

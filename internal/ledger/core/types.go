// Package core defines the run-ledger records and the Store contract the
// persistence backends implement.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Driver identifies a ledger backend.
type Driver string

const (
	// DriverMemory keeps records in process; used in tests.
	DriverMemory Driver = "memory"
	// DriverSQLite stores records in a local SQLite file.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres stores records in Postgres through pgx.
	DriverPostgres Driver = "postgres"
	// DriverNone disables the ledger.
	DriverNone Driver = "none"
)

// ErrInvalidRecord is returned for a record missing its run group or run id.
var ErrInvalidRecord = errors.New("ledger: invalid record")

// AttemptRecord is one training attempt as the orchestrator scored it.
type AttemptRecord struct {
	ID                       string          `json:"id"`
	RunGroup                 string          `json:"run_group"`
	RunID                    string          `json:"run_id"`
	Attempt                  int             `json:"attempt"`
	Stage                    int             `json:"stage"`
	Profile                  string          `json:"profile"`
	Seed                     int64           `json:"seed"`
	DataScale                float64         `json:"data_scale"`
	GatePassed               bool            `json:"gate_passed"`
	StabilityBufferSatisfied bool            `json:"stability_buffer_satisfied"`
	WeightedPassScorePercent float64         `json:"weighted_pass_score_percent"`
	WeightedObjectiveScore   float64         `json:"weighted_objective_score"`
	RecordedAt               time.Time       `json:"recorded_at"`
	KPI                      json.RawMessage `json:"kpi,omitempty"`
}

// SelectionRecord names the attempt chosen for a run group.
type SelectionRecord struct {
	ID                       string    `json:"id"`
	RunGroup                 string    `json:"run_group"`
	RunID                    string    `json:"run_id"`
	Attempt                  int       `json:"attempt"`
	GatePassed               bool      `json:"gate_passed"`
	StabilityBufferSatisfied bool      `json:"stability_buffer_satisfied"`
	ObjectiveTargetSatisfied bool      `json:"objective_target_satisfied"`
	WeightedObjectiveScore   float64   `json:"weighted_objective_score"`
	RecordedAt               time.Time `json:"recorded_at"`
}

// Store persists attempt and selection records.
type Store interface {
	RecordAttempt(ctx context.Context, rec AttemptRecord) error
	RecordSelection(ctx context.Context, rec SelectionRecord) error
	// ListAttempts returns a run group's attempts ordered by attempt number.
	ListAttempts(ctx context.Context, runGroup string) ([]AttemptRecord, error)
	Close() error
}

// PrepareAttempt validates rec and fills its id and timestamp when unset.
func PrepareAttempt(rec AttemptRecord, now time.Time) (AttemptRecord, error) {
	if err := requireKeys(rec.RunGroup, rec.RunID); err != nil {
		return AttemptRecord{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = now.UTC()
	}
	return rec, nil
}

// PrepareSelection is PrepareAttempt for selection records.
func PrepareSelection(rec SelectionRecord, now time.Time) (SelectionRecord, error) {
	if err := requireKeys(rec.RunGroup, rec.RunID); err != nil {
		return SelectionRecord{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = now.UTC()
	}
	return rec, nil
}

func requireKeys(runGroup, runID string) error {
	switch {
	case runGroup == "":
		return fmt.Errorf("%w: run_group is required", ErrInvalidRecord)
	case runID == "":
		return fmt.Errorf("%w: run_id is required", ErrInvalidRecord)
	}
	return nil
}

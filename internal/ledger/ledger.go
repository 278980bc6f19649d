// Package ledger records every training attempt and the final selection so
// runs can be compared across invocations. Backends live under
// internal/infra/persistence; callers depend only on this package.
package ledger

import (
	"context"
	"fmt"

	"rndharness/internal/infra/persistence/memory"
	"rndharness/internal/infra/persistence/postgres"
	"rndharness/internal/infra/persistence/sqlite"
	"rndharness/internal/ledger/core"
)

type (
	// Driver identifies a ledger backend.
	Driver = core.Driver
	// AttemptRecord is one scored training attempt.
	AttemptRecord = core.AttemptRecord
	// SelectionRecord names the chosen attempt of a run group.
	SelectionRecord = core.SelectionRecord
	// Store persists ledger records.
	Store = core.Store
)

const (
	DriverMemory   = core.DriverMemory
	DriverSQLite   = core.DriverSQLite
	DriverPostgres = core.DriverPostgres
	DriverNone     = core.DriverNone
)

// ErrInvalidRecord is returned for records missing their keys.
var ErrInvalidRecord = core.ErrInvalidRecord

// Open returns the store for driver. dsn is the SQLite path or the Postgres
// DSN; both fall back to their backend default when empty. DriverNone
// returns a nil Store.
func Open(ctx context.Context, driver Driver, dsn string) (Store, error) {
	switch driver {
	case DriverNone, "":
		return nil, nil
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		return sqlite.NewStore(ctx, dsn)
	case DriverPostgres:
		return postgres.NewStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("ledger: unknown driver %q", driver)
	}
}

// NewMemory returns an in-process store.
func NewMemory() *memory.Store { return memory.NewStore() }

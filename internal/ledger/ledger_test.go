package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	none, err := Open(ctx, DriverNone, "")
	require.NoError(t, err)
	assert.Nil(t, none)

	mem, err := Open(ctx, DriverMemory, "")
	require.NoError(t, err)
	require.NotNil(t, mem)
	require.NoError(t, mem.RecordAttempt(ctx, AttemptRecord{RunGroup: "g", RunID: "r", Attempt: 1}))
	got, err := mem.ListAttempts(ctx, "g")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	lite, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lite.Close() })
	require.ErrorIs(t, lite.RecordAttempt(ctx, AttemptRecord{RunGroup: "g"}), ErrInvalidRecord)

	_, err = Open(ctx, Driver("cassandra"), "")
	require.Error(t, err)
}

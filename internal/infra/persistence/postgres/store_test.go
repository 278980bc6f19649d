package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"rndharness/internal/infra/persistence/postgres/testutil"
	"rndharness/internal/ledger/core"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driverName, _ string) (*sql.DB, error) {
		if driverName != defaultDriver {
			t.Fatalf("unexpected driver %q", driverName)
		}
		return db, nil
	})
	t.Cleanup(restore)
	s, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, conn
}

func TestNewStoreEnsuresTables(t *testing.T) {
	_, conn := openStub(t)
	creates := 0
	for _, stmt := range conn.Execs {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS") {
			creates++
		}
	}
	if creates != len(ddl) {
		t.Fatalf("expected %d create statements, got %d: %v", len(ddl), creates, conn.Execs)
	}
}

func TestRecordAndListAttemptsByGroup(t *testing.T) {
	s, conn := openStub(t)
	ctx := context.Background()
	for i, group := range []string{"a", "b", "a"} {
		if err := s.RecordAttempt(ctx, core.AttemptRecord{RunGroup: group, RunID: "run", Attempt: i + 1}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := s.RecordSelection(ctx, core.SelectionRecord{RunGroup: "a", RunID: "run", Attempt: 3}); err != nil {
		t.Fatalf("record selection: %v", err)
	}
	got, err := s.ListAttempts(ctx, "a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Attempt != 1 || got[1].Attempt != 3 {
		t.Fatalf("unexpected attempts %+v", got)
	}
	if len(conn.Tables["rnd_selections"]) != 1 {
		t.Fatalf("expected one selection row, got %v", conn.Tables["rnd_selections"])
	}
}

func TestNewStorePropagatesPingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://example"); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestWriteErrorsAreWrapped(t *testing.T) {
	s, conn := openStub(t)
	conn.FailExec = true
	err := s.RecordAttempt(context.Background(), core.AttemptRecord{RunGroup: "g", RunID: "r"})
	if err == nil || !strings.Contains(err.Error(), "insert attempt") {
		t.Fatalf("expected insert error, got %v", err)
	}
	if err := s.RecordAttempt(context.Background(), core.AttemptRecord{RunID: "r"}); !errors.Is(err, core.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
	conn.FailQuery = true
	if _, err := s.ListAttempts(context.Background(), "g"); err == nil {
		t.Fatalf("expected query error")
	}
}

package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"rndharness/internal/ledger/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "nested", "ledger.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAttemptsRoundTripInAttemptOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, n := range []int{2, 1} {
		rec := core.AttemptRecord{
			RunGroup:               "20260227-auto",
			RunID:                  "rnd-ai-run",
			Attempt:                n,
			Profile:                "standard",
			WeightedObjectiveScore: float64(n) * 10,
			KPI:                    json.RawMessage(`{"recommendation_accuracy_percent":81.5}`),
		}
		if err := s.RecordAttempt(ctx, rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := s.ListAttempts(ctx, "20260227-auto")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Attempt != 1 || got[1].Attempt != 2 {
		t.Fatalf("unexpected attempts %+v", got)
	}
	if got[1].WeightedObjectiveScore != 20 {
		t.Fatalf("payload not preserved: %+v", got[1])
	}
	var payload map[string]float64
	if err := json.Unmarshal(got[0].KPI, &payload); err != nil || payload["recommendation_accuracy_percent"] != 81.5 {
		t.Fatalf("kpi payload not preserved: %s (%v)", got[0].KPI, err)
	}
	if got[0].ID == "" || got[0].RecordedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be filled: %+v", got[0])
	}
}

func TestSelectionIsStored(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.RecordSelection(ctx, core.SelectionRecord{RunGroup: "g", RunID: "r", Attempt: 1}); err != nil {
		t.Fatalf("record selection: %v", err)
	}
	var n int
	if err := s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM selections WHERE run_group = ?`, "g").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one selection row, got %d", n)
	}
}

func TestStoreReopensExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()
	first, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := first.RecordAttempt(ctx, core.AttemptRecord{RunGroup: "g", RunID: "r", Attempt: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}
	_ = first.Close()

	second, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = second.Close() }()
	got, err := second.ListAttempts(ctx, "g")
	if err != nil || len(got) != 1 {
		t.Fatalf("expected persisted attempt, got %v (%v)", got, err)
	}
	if second.Path() != path {
		t.Fatalf("unexpected path %s", second.Path())
	}
}

func TestRecordRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordAttempt(context.Background(), core.AttemptRecord{RunGroup: "g"}); !errors.Is(err, core.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"rndharness/internal/ledger/core"
)

func TestRecordAttemptFillsIDAndOrdersByAttempt(t *testing.T) {
	s := NewStore()
	fixed := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	for _, n := range []int{3, 1, 2} {
		rec := core.AttemptRecord{RunGroup: "g", RunID: "run", Attempt: n, KPI: json.RawMessage(`{}`)}
		if err := s.RecordAttempt(ctx, rec); err != nil {
			t.Fatalf("record attempt %d: %v", n, err)
		}
	}
	got, err := s.ListAttempts(ctx, "g")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(got))
	}
	for i, rec := range got {
		if rec.Attempt != i+1 {
			t.Fatalf("attempt %d out of order: %+v", i, got)
		}
		if rec.ID == "" {
			t.Fatalf("expected generated id")
		}
		if !rec.RecordedAt.Equal(fixed) {
			t.Fatalf("expected recorded_at %v, got %v", fixed, rec.RecordedAt)
		}
	}
	if other, _ := s.ListAttempts(ctx, "other"); len(other) != 0 {
		t.Fatalf("expected no attempts for unknown group")
	}
}

func TestRecordRejectsMissingKeys(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.RecordAttempt(ctx, core.AttemptRecord{RunID: "r"}); !errors.Is(err, core.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
	if err := s.RecordSelection(ctx, core.SelectionRecord{RunGroup: "g"}); !errors.Is(err, core.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestRecordSelectionAndCancelledContext(t *testing.T) {
	s := NewStore()
	if err := s.RecordSelection(context.Background(), core.SelectionRecord{RunGroup: "g", RunID: "r", Attempt: 2}); err != nil {
		t.Fatalf("record selection: %v", err)
	}
	if sel := s.Selections("g"); len(sel) != 1 || sel[0].Attempt != 2 {
		t.Fatalf("unexpected selections %+v", sel)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.RecordAttempt(ctx, core.AttemptRecord{RunGroup: "g", RunID: "r"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

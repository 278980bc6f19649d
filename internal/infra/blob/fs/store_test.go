package fs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"rndharness/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	body := []byte(`{"sample_id":"safety-000001"}` + "\n")
	info, err := store.Put(ctx, "run-1/data/safety-samples.jsonl", bytes.NewReader(body),
		core.PutOptions{ContentType: "application/x-ndjson", Metadata: map[string]string{"kind": "dataset"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	sum := sha256.Sum256(body)
	if info.Size != int64(len(body)) || info.ETag != hex.EncodeToString(sum[:]) {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "run-1/data/safety-samples.jsonl", bytes.NewReader(body), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := store.Get(ctx, "run-1/data/safety-samples.jsonl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !bytes.Equal(b, body) || got.ETag != info.ETag || got.Metadata["kind"] != "dataset" {
		t.Fatalf("unexpected get %+v %q", got, b)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "run-1", "data", "safety-samples.jsonl.meta")); err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}

	ok, err := store.Delete(ctx, "run-1/data/safety-samples.jsonl")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "run-1/data/safety-samples.jsonl"); err != nil || ok {
		t.Fatalf("second delete should report false, got %v %v", ok, err)
	}
	if _, err := store.Head(ctx, "run-1/data/safety-samples.jsonl"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreListFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, k := range []string{"run-2/model/b.json", "run-1/model/a.json", "run-2/data/x.jsonl", "latest.json"} {
		if _, err := store.Put(ctx, k, bytes.NewReader([]byte(k)), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	list, err := store.List(ctx, "run-2/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "run-2/data/x.jsonl" || list[1].Key != "run-2/model/b.json" {
		t.Fatalf("unexpected list %+v", list)
	}
	all, err := store.List(ctx, "")
	if err != nil || len(all) != 4 {
		t.Fatalf("list all: %v %d", err, len(all))
	}
}

func TestStoreRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, k := range []string{"", "  ", "/abs.json", "../escape.json", "a/../../escape.json", "x.json.meta"} {
		if _, err := store.Put(ctx, k, bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", k, err)
		}
	}
	if _, _, err := store.Get(ctx, "../escape.json"); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("get: expected ErrInvalidKey, got %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestStorePutReadFailureLeavesNothing(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "run/a.json", failingReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected read error")
	}
	if _, err := store.Head(ctx, "run/a.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected no blob after failed put, got %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(store.Root(), "run"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "a.json", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := store.List(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("list: expected context.Canceled, got %v", err)
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	t.Chdir(t.TempDir())
	store, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.Root() != defaultRoot || store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected store %q %s", store.Root(), store.Driver())
	}
}

package artifact

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rndharness/internal/blob"
	"rndharness/internal/observability"
	"rndharness/internal/orchestrator"
	"rndharness/internal/pipeline"
	"rndharness/internal/scenario"
	"rndharness/internal/world"
)

const (
	datasetFileCount = 29
	modelFileCount   = 10
	reportFileCount  = 6
)

var fixedNow = time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)

func testReport(runID string) orchestrator.Report {
	res := pipeline.Result{
		RunID:       runID,
		GeneratedAt: "2026-02-27T09:30:00.000Z",
		Profile:     world.ProfileSmoke,
		Seed:        pipeline.DefaultSeed,
		Datasets: pipeline.Datasets{
			TrainUsers: []world.User{{ID: "train-user-0001", Age: 41}, {ID: "train-user-0002", Age: 55}},
			TestUsers:  []world.User{{ID: "test-user-0001", Age: 33}},
			LLM:        []scenario.LLMRecord{{SampleID: "llm-000001", ExpectedKey: "dose"}},
		},
	}
	return orchestrator.Report{
		Attempts:        []orchestrator.AttemptSummary{{Attempt: 1, RunID: runID, Result: res}},
		SelectedAttempt: 1,
		SelectedRunID:   runID,
		GatePassed:      true,
	}
}

func newTestWriter(store blob.Store) *Writer {
	w := NewWriter(store, nil)
	w.now = func() time.Time { return fixedNow }
	n := 0
	w.newID = func() string {
		n++
		return fmt.Sprintf("bundle-%d", n)
	}
	return w
}

func readAll(t *testing.T, store blob.Store, key string) []byte {
	t.Helper()
	_, rc, err := store.Get(context.Background(), key)
	require.NoError(t, err, key)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return b
}

func TestWriteExportsRunAndVerifies(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	rec := observability.NewPrometheusRecorder()
	rec.RecordAttempt(1, 131.2, true)
	exp := Export{
		Report:      testReport("rnd-ai-a"),
		Environment: CollectEnvironment("test"),
		Metrics:     rec,
		Trace:       []observability.JSONTraceEntry{{Operation: "pipeline.world", Status: "success"}},
	}
	m, err := newTestWriter(store).Write(ctx, exp)
	require.NoError(t, err)

	assert.Equal(t, "rnd-ai-a/", m.Prefix)
	assert.Len(t, m.Files, datasetFileCount+modelFileCount+reportFileCount+2)
	assert.True(t, m.Verification.AllVerified)
	assert.Equal(t, datasetFileCount+modelFileCount, m.Verification.CheckedCount)

	listed, err := store.List(ctx, "rnd-ai-a/")
	require.NoError(t, err)
	assert.Len(t, listed, len(m.Files)+2, "files plus bundle and verify report")

	bundle, err := ReadBundle(ctx, store, m.BundleKey)
	require.NoError(t, err)
	assert.Equal(t, "bundle-1", bundle.BundleID)
	assert.Equal(t, "sha256", bundle.Algorithm)
	assert.Equal(t, datasetFileCount+modelFileCount, bundle.FileCount)
	for _, e := range bundle.Files {
		assert.NotEqual(t, KindReport, e.Kind, e.Key)
		assert.Len(t, e.SHA256, 64)
	}

	users := readAll(t, store, "rnd-ai-a/data/users-train.jsonl")
	lines := strings.Split(strings.TrimSpace(string(users)), "\n")
	require.Len(t, lines, 2)
	var u world.User
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &u))
	assert.Equal(t, "train-user-0002", u.ID)

	assert.Contains(t, string(readAll(t, store, "rnd-ai-a/metrics.prom")), "rnd_attempts_total")
	assert.Contains(t, string(readAll(t, store, "rnd-ai-a/trace.jsonl")), `"operation":"pipeline.world"`)

	var env Environment
	require.NoError(t, json.Unmarshal(readAll(t, store, "rnd-ai-a/execution-environment.json"), &env))
	assert.Equal(t, "test", env.InvokedBy)
	assert.NotEmpty(t, env.GoVersion)

	latest, err := ReadLatest(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "rnd-ai-a", latest.RunID)
	assert.True(t, latest.AllVerified)
	assert.Equal(t, m.BundleKey, latest.BundleKey)
}

func TestWriteReplacesLatestPointer(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	w := newTestWriter(store)
	_, err := w.Write(ctx, Export{Report: testReport("rnd-ai-a")})
	require.NoError(t, err)
	_, err = w.Write(ctx, Export{Report: testReport("rnd-ai-b")})
	require.NoError(t, err)

	latest, err := ReadLatest(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "rnd-ai-b", latest.RunID)
	assert.Equal(t, "bundle-2", latest.BundleID)

	_, err = w.Write(ctx, Export{Report: testReport("rnd-ai-b")})
	assert.ErrorIs(t, err, blob.ErrExists, "run directories are never overwritten")

	kept, err := store.List(ctx, "rnd-ai-b/")
	require.NoError(t, err)
	assert.Len(t, kept, datasetFileCount+modelFileCount+reportFileCount+2, "a failed rerun leaves the earlier export alone")
	latest, err = ReadLatest(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "bundle-2", latest.BundleID)
}

// failPutStore rejects Put for one key.
type failPutStore struct {
	blob.Store
	key string
}

func (s failPutStore) Put(ctx context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	if key == s.key {
		return blob.Info{}, errors.New("disk full")
	}
	return s.Store.Put(ctx, key, r, opts)
}

func TestWriteRollsBackFailedExport(t *testing.T) {
	ctx := context.Background()
	mem := blob.NewMemory()
	_, err := newTestWriter(mem).Write(ctx, Export{Report: testReport("rnd-ai-a")})
	require.NoError(t, err)

	store := failPutStore{Store: mem, key: "rnd-ai-b/" + BundleName}
	_, err = newTestWriter(store).Write(ctx, Export{Report: testReport("rnd-ai-b")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrVerification)
	assert.Contains(t, err.Error(), "disk full")

	left, err := mem.List(ctx, "rnd-ai-b/")
	require.NoError(t, err)
	assert.Empty(t, left, "keys written before the failure are deleted")
	earlier, err := mem.List(ctx, "rnd-ai-a/")
	require.NoError(t, err)
	assert.NotEmpty(t, earlier)
	latest, err := ReadLatest(ctx, mem)
	require.NoError(t, err)
	assert.Equal(t, "rnd-ai-a", latest.RunID)
}

func TestWriteRequiresSelection(t *testing.T) {
	_, err := newTestWriter(blob.NewMemory()).Write(context.Background(), Export{})
	require.Error(t, err)
}

// tamperStore serves altered bytes or hides keys on Get.
type tamperStore struct {
	blob.Store
	replace map[string][]byte
	hide    map[string]bool
}

func (s tamperStore) Get(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	if s.hide[key] {
		return blob.Info{}, nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	if b, ok := s.replace[key]; ok {
		return blob.Info{Key: key}, io.NopCloser(bytes.NewReader(b)), nil
	}
	return s.Store.Get(ctx, key)
}

func TestVerifyClassifiesFailures(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	m, err := newTestWriter(store).Write(ctx, Export{Report: testReport("rnd-ai-a")})
	require.NoError(t, err)
	bundle, err := ReadBundle(ctx, store, m.BundleKey)
	require.NoError(t, err)

	testUsers := "rnd-ai-a/data/users-test.jsonl"
	original := readAll(t, store, testUsers)
	flipped := bytes.Clone(original)
	flipped[len(flipped)-2] ^= 0x01
	tampered := tamperStore{
		Store: store,
		replace: map[string][]byte{
			testUsers:                                    flipped,
			"rnd-ai-a/model/two-tower.json":              []byte("{}"),
			"rnd-ai-a/data/llm-samples.jsonl":            original,
			"rnd-ai-a/model/integration-classifier.json": nil,
		},
		hide: map[string]bool{"rnd-ai-a/data/catalog.json": true},
	}
	ver, err := Verify(ctx, tampered, bundle)
	require.NoError(t, err)
	assert.False(t, ver.AllVerified)
	assert.Equal(t, 5, ver.FailedCount)

	status := map[string]Status{}
	for _, it := range ver.Items {
		status[it.Key] = it.Status
	}
	assert.Equal(t, StatusHashMismatch, status[testUsers])
	assert.Equal(t, StatusSizeMismatch, status["rnd-ai-a/model/two-tower.json"])
	assert.Equal(t, StatusSizeMismatch, status["rnd-ai-a/model/integration-classifier.json"])
	assert.Equal(t, StatusMissing, status["rnd-ai-a/data/catalog.json"])
	assert.Equal(t, StatusOK, status["rnd-ai-a/data/safety-samples.jsonl"])
}

func TestWriteReportsVerificationFailure(t *testing.T) {
	ctx := context.Background()
	mem := blob.NewMemory()
	store := tamperStore{Store: mem, hide: map[string]bool{"rnd-ai-a/model/reranker.json": true}}
	m, err := newTestWriter(store).Write(ctx, Export{Report: testReport("rnd-ai-a")})
	require.ErrorIs(t, err, ErrVerification)
	assert.Equal(t, 1, m.Verification.FailedCount)

	var ver Verification
	require.NoError(t, json.Unmarshal(readAll(t, mem, m.VerifyKey), &ver))
	assert.False(t, ver.AllVerified)
	latest, err := ReadLatest(ctx, mem)
	require.NoError(t, err)
	assert.False(t, latest.AllVerified)
}

func TestWriteToFilesystem(t *testing.T) {
	root := t.TempDir()
	store, err := blob.NewFilesystem(root)
	require.NoError(t, err)
	_, err = newTestWriter(store).Write(context.Background(), Export{Report: testReport("rnd-ai-fs")})
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(root, "rnd-ai-fs", "data", "llm-samples.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan())
	assert.Contains(t, sc.Text(), `"expected_key":"dose"`)
	_, err = os.Stat(filepath.Join(root, LatestKey))
	assert.NoError(t, err)
}

func TestEncodeJSONLEmpty(t *testing.T) {
	b, err := encodeJSONL([]world.User(nil))
	require.NoError(t, err)
	assert.Empty(t, b)
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"rndharness/internal/artifact"
	"rndharness/internal/blob"
	"rndharness/internal/orchestrator"
	"rndharness/internal/pipeline"
	"rndharness/internal/world"
)

const runID = "rnd-ai-2026-02-27T09-30-00-000Z-smoke-s20260227"

func exportedStore(t *testing.T) blob.Store {
	t.Helper()
	store := blob.NewMemory()
	res := pipeline.Result{
		RunID:       runID,
		GeneratedAt: "2026-02-27T09:30:00.000Z",
		Profile:     world.ProfileSmoke,
		Seed:        pipeline.DefaultSeed,
		Datasets: pipeline.Datasets{
			TrainUsers: []world.User{{ID: "train-user-0001", Age: 41}},
		},
	}
	rep := orchestrator.Report{
		Attempts:        []orchestrator.AttemptSummary{{Attempt: 1, RunID: runID, Result: res}},
		SelectedAttempt: 1,
		SelectedRunID:   runID,
		GatePassed:      true,
	}
	if _, err := artifact.NewWriter(store, nil).Write(context.Background(), artifact.Export{Report: rep}); err != nil {
		t.Fatalf("export: %v", err)
	}
	return store
}

func useStore(t *testing.T, store blob.Store) {
	t.Helper()
	old := openStore
	openStore = func(context.Context, blob.Config) (blob.Store, error) { return store, nil }
	t.Cleanup(func() { openStore = old })
}

func decode(t *testing.T, b []byte) result {
	t.Helper()
	var r result
	if err := json.Unmarshal(b, &r); err != nil {
		t.Fatalf("decode output: %v\n%s", err, b)
	}
	return r
}

func TestVerifyLatestBundle(t *testing.T) {
	useStore(t, exportedStore(t))
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"--blob-driver", "memory"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	r := decode(t, stdout.Bytes())
	if r.Latest == nil || r.Latest.RunID != runID {
		t.Fatalf("latest = %+v", r.Latest)
	}
	if r.BundleKey != runID+"/"+artifact.BundleName {
		t.Fatalf("bundle key = %q", r.BundleKey)
	}
	if !r.Verification.AllVerified || r.Verification.CheckedCount == 0 {
		t.Fatalf("verification = %+v", r.Verification)
	}
}

func TestVerifyReportsMissingFile(t *testing.T) {
	store := exportedStore(t)
	if _, err := store.Delete(context.Background(), runID+"/data/users-train.jsonl"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	useStore(t, store)
	var stdout, stderr bytes.Buffer
	code := cli([]string{"--blob-driver", "memory", "--bundle", runID + "/" + artifact.BundleName}, &stdout, &stderr)
	if code != exitFail {
		t.Fatalf("exit code = %d, want %d", code, exitFail)
	}
	r := decode(t, stdout.Bytes())
	if r.Latest != nil {
		t.Fatal("explicit bundle should not read the latest pointer")
	}
	if r.Verification.FailedCount != 1 {
		t.Fatalf("failed = %d, want 1", r.Verification.FailedCount)
	}
	for _, it := range r.Verification.Items {
		if strings.HasSuffix(it.Key, "users-train.jsonl") && it.Status != artifact.StatusMissing {
			t.Fatalf("status = %s, want %s", it.Status, artifact.StatusMissing)
		}
	}
	if !strings.Contains(stderr.String(), "verification failed") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestVerifyWithoutLatestPointer(t *testing.T) {
	useStore(t, blob.NewMemory())
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"--blob-driver", "memory"}, &stdout, &stderr); code != exitFail {
		t.Fatalf("exit code = %d, want %d", code, exitFail)
	}
	if !strings.Contains(stderr.String(), "read latest pointer") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestVerifyFilesystemStore(t *testing.T) {
	root := t.TempDir()
	store, err := blob.NewFilesystem(root)
	if err != nil {
		t.Fatalf("filesystem store: %v", err)
	}
	src := exportedStore(t)
	ctx := context.Background()
	keys, err := src.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, info := range keys {
		_, rc, err := src.Get(ctx, info.Key)
		if err != nil {
			t.Fatalf("get %s: %v", info.Key, err)
		}
		if _, err := store.Put(ctx, info.Key, rc, blob.PutOptions{ContentType: info.ContentType}); err != nil {
			t.Fatalf("put %s: %v", info.Key, err)
		}
		_ = rc.Close()
	}
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"--out-root", root}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
}

func TestVerifyRejectsBadOptions(t *testing.T) {
	for _, args := range [][]string{
		{"--blob-driver", "tape"},
		{"--blob-driver", "s3"},
		{"--no-such-flag"},
		{"positional"},
	} {
		var stdout, stderr bytes.Buffer
		if code := cli(args, &stdout, &stderr); code != exitUsage {
			t.Fatalf("%v: exit code = %d, want %d", args, code, exitUsage)
		}
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	var codes []int
	old := exitFunc
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc = old }()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"verify-artifacts", "--blob-driver", "tape"}
	main()
	if len(codes) != 1 || codes[0] != exitUsage {
		t.Fatalf("exit codes = %v", codes)
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rndharness/internal/artifact"
	"rndharness/internal/ledger"
)

func TestCLIRejectsInvalidOptions(t *testing.T) {
	cases := map[string][]string{
		"unknown profile": {"--profile", "huge"},
		"attempts range":  {"--max-attempts", "0"},
		"seed step range": {"--seed-step", "0"},
		"bad timestamp":   {"--generated-at", "yesterday"},
		"unknown flag":    {"--no-such-flag"},
		"bad flag value":  {"--seed", "abc"},
		"positional arg":  {"extra"},
		"missing config":  {"--config", filepath.Join(t.TempDir(), "absent.yaml")},
		"s3 needs bucket": {"--blob-driver", "s3"},
		"unknown ledger":  {"--ledger", "redis"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := cli(args, &stdout, &stderr); code != exitUsage {
				t.Fatalf("exit code = %d, want %d (stderr: %s)", code, exitUsage, stderr.String())
			}
			if stdout.Len() != 0 {
				t.Fatalf("unexpected stdout: %s", stdout.String())
			}
			if !strings.Contains(stderr.String(), "train-all:") {
				t.Fatalf("stderr missing error: %q", stderr.String())
			}
		})
	}
}

func TestCLIConfigFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.yaml")
	if err := os.WriteFile(path, []byte("profile: smoke\nturbo: true\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"--config", path}, &stdout, &stderr); code != exitUsage {
		t.Fatalf("exit code = %d, want %d", code, exitUsage)
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	var codes []int
	old := exitFunc
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc = old }()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"train-all", "--help"}
	main()
	os.Args = []string{"train-all", "--profile", "huge"}
	main()
	if len(codes) != 2 || codes[0] != exitOK || codes[1] != exitUsage {
		t.Fatalf("exit codes = %v, want [0 2]", codes)
	}
}

func TestCLISmokeRunExportsArtifacts(t *testing.T) {
	if testing.Short() {
		t.Skip("trains a full smoke attempt")
	}
	dir := t.TempDir()
	root := filepath.Join(dir, "artifacts")
	reportPath := filepath.Join(dir, "report.json")
	metricsPath := filepath.Join(dir, "metrics.prom")
	tracePath := filepath.Join(dir, "trace.jsonl")
	dbPath := filepath.Join(dir, "ledger.db")
	configPath := filepath.Join(dir, "opts.yaml")
	if err := os.WriteFile(configPath, []byte("profile: standard\nseed_step: 11\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := cli([]string{
		"--config", configPath,
		"--profile", "smoke",
		"--seed", "20260227",
		"--generated-at", "2026-02-27T09:30:00Z",
		"--allow-fail",
		"--blob-driver", "fs",
		"--out-root", root,
		"--ledger", "sqlite",
		"--ledger-dsn", dbPath,
		"--metrics-out", metricsPath,
		"--trace-out", tracePath,
		"--output", reportPath,
		"--invoked-by", "cli-test",
	}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if stdout.Len() != 0 {
		t.Fatalf("report should go to --output, stdout: %s", stdout.String())
	}

	raw, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var doc output
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(doc.Attempts) != 1 || doc.SelectedAttempt != 1 {
		t.Fatalf("explicit seed should run one attempt, got %d (selected %d)", len(doc.Attempts), doc.SelectedAttempt)
	}
	if doc.SelectedSeed != 20260227 || doc.Options.SeedStep != 11 {
		t.Fatalf("seed %d step %d, want 20260227 and the config file's 11", doc.SelectedSeed, doc.Options.SeedStep)
	}
	if !strings.HasPrefix(doc.SelectedRunID, "rnd-ai-") {
		t.Fatalf("run id = %q", doc.SelectedRunID)
	}
	if !doc.Artifacts.AllVerified || doc.Artifacts.LatestKey != artifact.LatestKey {
		t.Fatalf("artifact summary = %+v", doc.Artifacts)
	}

	latest, err := os.ReadFile(filepath.Join(root, artifact.LatestKey))
	if err != nil {
		t.Fatalf("read latest pointer: %v", err)
	}
	var ptr artifact.LatestPointer
	if err := json.Unmarshal(latest, &ptr); err != nil {
		t.Fatalf("decode latest pointer: %v", err)
	}
	if ptr.RunID != doc.SelectedRunID {
		t.Fatalf("latest run id = %q, want %q", ptr.RunID, doc.SelectedRunID)
	}

	metrics, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !bytes.Contains(metrics, []byte("rnd_attempts_total")) {
		t.Fatalf("metrics missing attempts counter:\n%s", metrics)
	}
	trace, err := os.ReadFile(tracePath)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if len(bytes.TrimSpace(trace)) == 0 {
		t.Fatal("trace file is empty")
	}

	store, err := ledger.Open(context.Background(), ledger.DriverSQLite, dbPath)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	defer store.Close()
	attempts, err := store.ListAttempts(context.Background(), "20260227-smoke")
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("ledger attempts = %d, want 1", len(attempts))
	}
}

func TestCLIFailsWhenObjectiveTargetMissed(t *testing.T) {
	if testing.Short() {
		t.Skip("trains a full smoke attempt")
	}
	var stdout, stderr bytes.Buffer
	code := cli([]string{
		"--profile", "smoke",
		"--seed", "7",
		"--allow-fail",
		"--require-objective-target",
		"--auto-min-objective", "500",
		"--blob-driver", "memory",
	}, &stdout, &stderr)
	if code != exitFail {
		t.Fatalf("exit code = %d, want %d", code, exitFail)
	}
	var doc output
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		t.Fatalf("report should still be printed: %v", err)
	}
	if doc.ObjectiveTargetSatisfied {
		t.Fatal("objective target of 500 reported as satisfied")
	}
	if !strings.Contains(stderr.String(), "objective") {
		t.Fatalf("stderr should name the failed gate: %s", stderr.String())
	}
}

func TestCLIRerunStillPrintsReport(t *testing.T) {
	if testing.Short() {
		t.Skip("trains two full smoke attempts")
	}
	root := t.TempDir()
	args := []string{
		"--profile", "smoke",
		"--seed", "20260227",
		"--generated-at", "2026-02-27T09:30:00Z",
		"--allow-fail",
		"--blob-driver", "fs",
		"--out-root", root,
	}

	var firstOut, firstErr bytes.Buffer
	if code := cli(args, &firstOut, &firstErr); code != exitOK {
		t.Fatalf("first run exit code = %d, stderr: %s", code, firstErr.String())
	}
	var first output
	if err := json.Unmarshal(firstOut.Bytes(), &first); err != nil {
		t.Fatalf("decode first report: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if code := cli(args, &stdout, &stderr); code != exitFail {
		t.Fatalf("rerun exit code = %d, want %d", code, exitFail)
	}
	var doc output
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		t.Fatalf("rerun must still print the report: %v (stdout %d bytes)", err, stdout.Len())
	}
	if doc.SelectedRunID != first.SelectedRunID {
		t.Fatalf("rerun run id = %q, want %q", doc.SelectedRunID, first.SelectedRunID)
	}
	if !strings.Contains(doc.Artifacts.Error, "already exists") || doc.Artifacts.AllVerified {
		t.Fatalf("artifact summary = %+v", doc.Artifacts)
	}
	if !strings.Contains(stderr.String(), "already exists") {
		t.Fatalf("stderr should carry the export error: %s", stderr.String())
	}

	raw, err := os.ReadFile(filepath.Join(root, artifact.LatestKey))
	if err != nil {
		t.Fatalf("first run's latest pointer should survive: %v", err)
	}
	var ptr artifact.LatestPointer
	if err := json.Unmarshal(raw, &ptr); err != nil {
		t.Fatalf("decode latest pointer: %v", err)
	}
	if ptr.RunID != first.SelectedRunID || !ptr.AllVerified {
		t.Fatalf("latest pointer = %+v", ptr)
	}
}

// Package artifact exports a selected training run to a blob store:
// datasets, models, reports, a sha256 checksum bundle with its
// verification, and the latest-run pointer.
package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rndharness/internal/blob"
	"rndharness/internal/observability"
	"rndharness/internal/orchestrator"
	"rndharness/internal/pipeline"
)

const (
	contentJSON  = "application/json"
	contentJSONL = "application/x-ndjson"
	contentText  = "text/plain; version=0.0.4"

	// LatestKey is the store-wide pointer to the most recent export.
	LatestKey = "latest-train-all-run.json"

	defaultWriteParallelism = 4
)

// Kind groups exported files.
type Kind string

const (
	KindDataset Kind = "dataset"
	KindModel   Kind = "model"
	KindReport  Kind = "report"
)

// Entry is one written file.
type Entry struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// Environment describes the process that produced an export.
type Environment struct {
	GoVersion        string `json:"go_version"`
	GOOS             string `json:"goos"`
	GOARCH           string `json:"goarch"`
	NumCPU           int    `json:"num_cpu"`
	WorkingDirectory string `json:"working_directory"`
	InvokedBy        string `json:"invoked_by"`
}

// CollectEnvironment snapshots the running process.
func CollectEnvironment(invokedBy string) Environment {
	cwd, _ := os.Getwd()
	return Environment{
		GoVersion:        runtime.Version(),
		GOOS:             runtime.GOOS,
		GOARCH:           runtime.GOARCH,
		NumCPU:           runtime.NumCPU(),
		WorkingDirectory: cwd,
		InvokedBy:        invokedBy,
	}
}

// Export is everything written for one run. Metrics and Trace are
// optional.
type Export struct {
	Report      orchestrator.Report
	Environment Environment
	Metrics     *observability.PrometheusRecorder
	Trace       []observability.JSONTraceEntry
}

// Manifest lists what an export wrote.
type Manifest struct {
	RunID        string       `json:"run_id"`
	Prefix       string       `json:"prefix"`
	Files        []Entry      `json:"files"`
	BundleKey    string       `json:"bundle_key"`
	VerifyKey    string       `json:"verify_key"`
	LatestKey    string       `json:"latest_key"`
	Verification Verification `json:"verification"`
}

// LatestPointer is the content of LatestKey.
type LatestPointer struct {
	RunID                    string    `json:"run_id"`
	Prefix                   string    `json:"prefix"`
	GeneratedAt              string    `json:"generated_at"`
	SelectedAttempt          int       `json:"selected_attempt"`
	GatePassed               bool      `json:"pass_gate"`
	StabilityBufferSatisfied bool      `json:"stability_buffer_satisfied"`
	ObjectiveTargetSatisfied bool      `json:"objective_target_satisfied"`
	BundleID                 string    `json:"bundle_id"`
	BundleKey                string    `json:"bundle_key"`
	AllVerified              bool      `json:"all_verified"`
	WrittenAt                time.Time `json:"written_at"`
}

// Writer exports runs to a blob store.
type Writer struct {
	store       blob.Store
	logger      observability.Logger
	now         func() time.Time
	parallelism int
	newID       func() string
}

// NewWriter returns a Writer over store. A nil logger discards logs.
func NewWriter(store blob.Store, logger observability.Logger) *Writer {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Writer{
		store:       store,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		parallelism: defaultWriteParallelism,
		newID:       uuid.NewString,
	}
}

// session records the keys one Write created.
type session struct {
	mu   sync.Mutex
	keys []string
}

func (s *session) add(key string) {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
}

// rollback deletes what s created, newest first. Keys written by earlier
// runs are never touched.
func (w *Writer) rollback(ctx context.Context, s *session) {
	ctx = context.WithoutCancel(ctx)
	keys := slices.Clone(s.keys)
	slices.Reverse(keys)
	for _, key := range keys {
		if _, err := w.store.Delete(ctx, key); err != nil {
			w.logger.Warn("artifact rollback failed", "key", key, "error", err)
		}
	}
	if len(keys) > 0 {
		w.logger.Info("artifact export rolled back", "deleted", len(keys))
	}
}

func (w *Writer) put(ctx context.Context, s *session, key, name string, kind Kind, contentType string, data []byte) (Entry, error) {
	sum := sha256.Sum256(data)
	_, err := w.store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"kind": string(kind)},
	})
	if err != nil {
		return Entry{}, fmt.Errorf("artifact: write %s: %w", key, err)
	}
	s.add(key)
	w.logger.Debug("artifact written", "key", key, "size_bytes", len(data))
	return Entry{Key: key, Name: name, Kind: kind, SizeBytes: int64(len(data)), SHA256: hex.EncodeToString(sum[:])}, nil
}

// putAll encodes and writes files concurrently. Entries keep file order.
func (w *Writer) putAll(ctx context.Context, s *session, prefix string, kind Kind, files []file) ([]Entry, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.parallelism)
	out := make([]Entry, len(files))
	for i, f := range files {
		g.Go(func() error {
			data, err := f.encode()
			if err != nil {
				return fmt.Errorf("artifact: encode %s: %w", f.name, err)
			}
			e, err := w.put(gctx, s, prefix+f.name, f.name, kind, f.contentType, data)
			if err != nil {
				return err
			}
			out[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Write exports the selected attempt of exp.Report. It returns
// ErrVerification, with the manifest filled in, when the re-read bundle
// does not match what was written; the written files are kept as evidence.
// Any other failure deletes the keys this call created.
func (w *Writer) Write(ctx context.Context, exp Export) (_ Manifest, err error) {
	s := &session{}
	defer func() {
		if err != nil && !errors.Is(err, ErrVerification) {
			w.rollback(ctx, s)
		}
	}()
	rep := exp.Report
	sel := rep.Selected()
	res := sel.Result
	if res.RunID == "" {
		return Manifest{}, errors.New("artifact: report has no selected run")
	}
	prefix := res.RunID + "/"
	m := Manifest{RunID: res.RunID, Prefix: prefix, LatestKey: LatestKey}

	datasets, err := w.putAll(ctx, s, prefix+"data/", KindDataset, datasetFiles(res.Datasets))
	if err != nil {
		return Manifest{}, err
	}
	models, err := w.putAll(ctx, s, prefix+"model/", KindModel, modelFiles(res.Models))
	if err != nil {
		return Manifest{}, err
	}
	reports, err := w.putAll(ctx, s, prefix, KindReport, reportFiles(exp, res))
	if err != nil {
		return Manifest{}, err
	}
	m.Files = append(append(append(m.Files, datasets...), models...), reports...)

	if exp.Metrics != nil {
		var buf bytes.Buffer
		if err := exp.Metrics.WriteText(&buf); err != nil {
			return Manifest{}, fmt.Errorf("artifact: metrics: %w", err)
		}
		e, err := w.put(ctx, s, prefix+"metrics.prom", "metrics.prom", KindReport, contentText, buf.Bytes())
		if err != nil {
			return Manifest{}, err
		}
		m.Files = append(m.Files, e)
	}
	if len(exp.Trace) > 0 {
		data, err := encodeJSONL(exp.Trace)
		if err != nil {
			return Manifest{}, fmt.Errorf("artifact: encode trace: %w", err)
		}
		e, err := w.put(ctx, s, prefix+"trace.jsonl", "trace.jsonl", KindReport, contentJSONL, data)
		if err != nil {
			return Manifest{}, err
		}
		m.Files = append(m.Files, e)
	}

	bundle := NewBundle(w.newID(), res, rep.SelectedAttempt, append(append([]Entry(nil), datasets...), models...), w.now())
	m.BundleKey = prefix + BundleName
	if err := w.writeJSON(ctx, s, m.BundleKey, bundle); err != nil {
		return Manifest{}, err
	}
	ver, err := Verify(ctx, w.store, bundle)
	if err != nil {
		return Manifest{}, err
	}
	ver.VerifiedAt = w.now()
	m.Verification = ver
	m.VerifyKey = prefix + VerifyName
	if err := w.writeJSON(ctx, s, m.VerifyKey, ver); err != nil {
		return Manifest{}, err
	}

	pointer := LatestPointer{
		RunID:                    res.RunID,
		Prefix:                   prefix,
		GeneratedAt:              res.GeneratedAt,
		SelectedAttempt:          rep.SelectedAttempt,
		GatePassed:               rep.GatePassed,
		StabilityBufferSatisfied: rep.StabilityBufferSatisfied,
		ObjectiveTargetSatisfied: rep.ObjectiveTargetSatisfied,
		BundleID:                 bundle.BundleID,
		BundleKey:                m.BundleKey,
		AllVerified:              ver.AllVerified,
		WrittenAt:                w.now(),
	}
	if err := w.replaceLatest(ctx, s, pointer); err != nil {
		return Manifest{}, err
	}
	w.logger.Info("artifacts exported",
		"run_id", res.RunID, "files", len(m.Files), "bundle_files", len(bundle.Files),
		"all_verified", ver.AllVerified, "driver", w.store.Driver())
	if !ver.AllVerified {
		return m, fmt.Errorf("%w: %d of %d files failed", ErrVerification, ver.FailedCount, ver.CheckedCount)
	}
	return m, nil
}

func (w *Writer) writeJSON(ctx context.Context, s *session, key string, v any) error {
	data, err := encodeJSON(v)
	if err != nil {
		return fmt.Errorf("artifact: encode %s: %w", key, err)
	}
	_, err = w.put(ctx, s, key, key, KindReport, contentJSON, data)
	return err
}

// replaceLatest deletes the previous pointer; blob writes are create-only.
func (w *Writer) replaceLatest(ctx context.Context, s *session, p LatestPointer) error {
	if _, err := w.store.Delete(ctx, LatestKey); err != nil {
		return fmt.Errorf("artifact: delete %s: %w", LatestKey, err)
	}
	return w.writeJSON(ctx, s, LatestKey, p)
}

// ReadLatest returns the current latest-run pointer.
func ReadLatest(ctx context.Context, store blob.Store) (LatestPointer, error) {
	var p LatestPointer
	if err := readJSON(ctx, store, LatestKey, &p); err != nil {
		return LatestPointer{}, err
	}
	return p, nil
}

type selectionReport struct {
	orchestrator.Report
	RunID string `json:"run_id"`
}

type kpiEvaluationSummary struct {
	RunID                    string                             `json:"run_id"`
	GeneratedAt              string                             `json:"generated_at"`
	SelectedAttempt          int                                `json:"selected_attempt"`
	GatePassed               bool                               `json:"pass_gate"`
	StabilityBufferSatisfied bool                               `json:"stability_buffer_satisfied"`
	ObjectiveTargetSatisfied bool                               `json:"objective_target_satisfied"`
	WeightedPassScorePercent float64                            `json:"weighted_pass_score_percent"`
	WeightedObjectiveScore   float64                            `json:"weighted_objective_score"`
	KPIs                     []orchestrator.WeightedKPIItem     `json:"kpis"`
	StabilityThresholds      orchestrator.StabilityThresholds   `json:"stability_thresholds"`
	Stability                orchestrator.StabilityReport       `json:"stability"`
	KPI                      pipeline.KPISummary                `json:"kpi"`
	KPIReports               pipeline.KPIReports                `json:"kpi_reports"`
	DataRequirements         orchestrator.DataRequirementReport `json:"data_requirements"`
}

type coverageReport struct {
	RunID                  string                      `json:"run_id"`
	ImplementationCoverage orchestrator.CoverageReport `json:"implementation_coverage"`
}

func reportFiles(exp Export, res pipeline.Result) []file {
	rep := exp.Report
	return []file{
		jsonFile("train-report.json", res),
		jsonFile("dataset-config.json", res.DatasetConfig),
		jsonFile("execution-environment.json", exp.Environment),
		jsonFile("attempt-selection-report.json", selectionReport{Report: rep, RunID: res.RunID}),
		jsonFile("kpi-evaluation-summary.json", kpiEvaluationSummary{
			RunID:                    res.RunID,
			GeneratedAt:              res.GeneratedAt,
			SelectedAttempt:          rep.SelectedAttempt,
			GatePassed:               rep.GatePassed,
			StabilityBufferSatisfied: rep.StabilityBufferSatisfied,
			ObjectiveTargetSatisfied: rep.ObjectiveTargetSatisfied,
			WeightedPassScorePercent: rep.WeightedPassScorePercent,
			WeightedObjectiveScore:   rep.WeightedObjectiveScore,
			KPIs:                     rep.WeightedKPIs,
			StabilityThresholds:      rep.StabilityThresholds,
			Stability:                rep.Stability,
			KPI:                      res.KPI,
			KPIReports:               res.KPIReports,
			DataRequirements:         rep.DataRequirements,
		}),
		jsonFile("implementation-coverage.json", coverageReport{RunID: res.RunID, ImplementationCoverage: rep.ImplementationCoverage}),
	}
}

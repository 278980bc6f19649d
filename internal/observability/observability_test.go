package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZapLoggerHonorsVerbose(t *testing.T) {
	var buf bytes.Buffer
	quiet := NewZapLogger(&buf, false)
	quiet.Debug("hidden", "k", 1)
	quiet.Info("shown", "attempt", 2)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 2, entry["attempt"])

	buf.Reset()
	NewZapLogger(&buf, true).Debug("visible")
	assert.Contains(t, buf.String(), `"visible"`)
}

func TestPrometheusRecorderExportsText(t *testing.T) {
	rec := NewPrometheusRecorder()
	rec.Observe(context.Background(), "pipeline.train", true, 20*time.Millisecond)
	rec.Observe(context.Background(), "pipeline.train", false, time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Second)
	rec.SetKPI("kpi-01", 100)
	rec.RecordAttempt(1, 0.93, true)
	rec.RecordAttempt(2, 0.41, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.attempts.WithLabelValues("passed")))
	assert.Equal(t, 100.0, testutil.ToFloat64(rec.kpi.WithLabelValues("kpi-01")))
	assert.Equal(t, 2, testutil.CollectAndCount(rec.stage))

	var buf bytes.Buffer
	require.NoError(t, rec.WriteText(&buf))
	text := buf.String()
	assert.Contains(t, text, `rnd_stage_duration_seconds_count{stage="pipeline.train",status="success"} 1`)
	assert.Contains(t, text, `rnd_attempt_objective_score{attempt="2"} 0.41`)
	assert.Contains(t, text, `rnd_attempts_total{gate="failed"} 1`)
}

func TestJSONTracerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	tr := NewJSONTracer(&buf)
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time {
		tick = tick.Add(5 * time.Millisecond)
		return tick
	}
	rec := NopRecorder()
	require.NoError(t, Instrument(context.Background(), tr, rec, "ok", func(context.Context) error { return nil }))
	boom := errors.New("boom")
	require.ErrorIs(t, Instrument(context.Background(), tr, rec, "bad", func(context.Context) error { return boom }), boom)

	entries := tr.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "success", entries[0].Status)
	assert.Equal(t, 5.0, entries[0].DurationMS)
	assert.Equal(t, "error", entries[1].Status)
	assert.Equal(t, "boom", entries[1].Error)
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 2)
	assert.NoError(t, tr.Err())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("pipe closed") }

type recordingLogger struct {
	warns []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(msg string, args ...any) {
	l.warns = append(l.warns, msg)
}
func (l *recordingLogger) Error(string, ...any) {}

func TestJSONTracerReportsEncodeFailure(t *testing.T) {
	logs := &recordingLogger{}
	tr := NewJSONTracer(failingWriter{}).WithLogger(logs)
	_, span := tr.Start(context.Background(), "pipeline.train")
	span.End(nil)
	_, span = tr.Start(context.Background(), "pipeline.score")
	span.End(nil)

	assert.Len(t, tr.Entries(), 2)
	assert.Equal(t, []string{"trace encode failed", "trace encode failed"}, logs.warns)
	err := tr.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.train")
	assert.Contains(t, err.Error(), "pipe closed")
}

func TestNopImplementations(t *testing.T) {
	ctx, span := NopTracer().Start(context.Background(), "x")
	span.End(nil)
	assert.NotNil(t, ctx)
	NopLogger().Info("ignored")
}

package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// TraceSpan is an in-flight operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type nopSpan struct{}

func (nopSpan) End(error) {}

type nopTracer struct{}

func (nopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, nopSpan{}
}

// NopTracer starts spans that record nothing.
func NopTracer() Tracer { return nopTracer{} }

// JSONTraceEntry is one finished span.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes finished spans as JSON lines and keeps them for
// later export.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
	now     func() time.Time
	logger  Logger
	err     error
}

// NewJSONTracer returns a tracer writing to w; a nil w only retains spans.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{now: func() time.Time { return time.Now().UTC() }, logger: NopLogger()}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// WithLogger reports span encode failures to l.
func (t *JSONTraceTracer) WithLogger(l Logger) *JSONTraceTracer {
	if l != nil {
		t.logger = l
	}
	return t
}

// Err returns the first span encode failure, if any.
func (t *JSONTraceTracer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Entries returns a copy of the finished spans in end order.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{tracer: t, operation: operation, started: t.now()}
}

type jsonSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
}

func (s *jsonSpan) End(err error) {
	ended := s.tracer.now()
	entry := JSONTraceEntry{
		Operation:  s.operation,
		Status:     "success",
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		if werr := s.tracer.enc.Encode(entry); werr != nil {
			s.tracer.logger.Warn("trace encode failed", "operation", s.operation, "error", werr)
			if s.tracer.err == nil {
				s.tracer.err = fmt.Errorf("encode span %s: %w", s.operation, werr)
			}
		}
	}
}

// Instrument runs fn inside a span and records its duration.
func Instrument(ctx context.Context, tr Tracer, rec MetricsRecorder, operation string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := tr.Start(ctx, operation)
	err := fn(ctx)
	span.End(err)
	rec.Observe(ctx, operation, err == nil, time.Since(start))
	return err
}

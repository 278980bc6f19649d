package observability

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// MetricsRecorder observes timed operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Observe(context.Context, string, bool, time.Duration) {}

// NopRecorder discards observations.
func NopRecorder() MetricsRecorder { return nopRecorder{} }

// PrometheusRecorder keeps run metrics on a private registry so concurrent
// runs in one process never collide.
type PrometheusRecorder struct {
	registry  *prometheus.Registry
	stage     *prometheus.HistogramVec
	kpi       *prometheus.GaugeVec
	objective *prometheus.GaugeVec
	attempts  *prometheus.CounterVec
}

// NewPrometheusRecorder registers the run metrics on a fresh registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &PrometheusRecorder{
		registry: reg,
		stage: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rnd_stage_duration_seconds",
			Help:    "Duration of pipeline and orchestration stages.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"stage", "status"}),
		kpi: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rnd_kpi_value",
			Help: "Measured KPI value of the selected attempt.",
		}, []string{"kpi"}),
		objective: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rnd_attempt_objective_score",
			Help: "Weighted objective score per attempt.",
		}, []string{"attempt"}),
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rnd_attempts_total",
			Help: "Attempts run, by quality gate outcome.",
		}, []string{"gate"}),
	}
}

// Observe records a stage duration.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.stage.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// SetKPI publishes one KPI value.
func (r *PrometheusRecorder) SetKPI(id string, value float64) {
	r.kpi.WithLabelValues(id).Set(value)
}

// RecordAttempt publishes an attempt's objective and gate outcome.
func (r *PrometheusRecorder) RecordAttempt(attempt int, objective float64, gatePassed bool) {
	r.objective.WithLabelValues(strconv.Itoa(attempt)).Set(objective)
	gate := "failed"
	if gatePassed {
		gate = "passed"
	}
	r.attempts.WithLabelValues(gate).Inc()
}

// Registry exposes the underlying registry for inspection.
func (r *PrometheusRecorder) Registry() *prometheus.Registry { return r.registry }

// WriteText renders the registry in the text exposition format.
func (r *PrometheusRecorder) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

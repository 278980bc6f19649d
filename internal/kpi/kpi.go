// Package kpi scores emitted samples against the fixed KPI formulas. The
// evaluators are pure; they fail only on malformed input.
package kpi

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"rndharness/internal/numeric"
)

// ErrInvalidSample marks malformed evaluator input: an empty sample list, a
// blank required field or an unparseable timestamp.
var ErrInvalidSample = errors.New("kpi: invalid sample")

// DefaultMinSampleCount is the sample floor shared by most KPIs.
const DefaultMinSampleCount = 100

// Report is the common header every evaluator returns.
type Report struct {
	KPIID                   string  `json:"kpi_id"`
	Module                  string  `json:"module"`
	Formula                 string  `json:"formula"`
	EvaluatedAt             string  `json:"evaluated_at"`
	SampleCount             int     `json:"sample_count"`
	PassedCount             int     `json:"passed_count"`
	Value                   float64 `json:"value"`
	Target                  float64 `json:"target"`
	MinSampleCount          int     `json:"min_sample_count"`
	TargetSatisfied         bool    `json:"target_satisfied"`
	MinSampleCountSatisfied bool    `json:"min_sample_count_satisfied"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSample, fmt.Sprintf(format, args...))
}

func requireSamples(n int, what string) error {
	if n == 0 {
		return invalid("%s evaluation requires at least one sample", what)
	}
	return nil
}

func requireField(value, location string) error {
	if strings.TrimSpace(value) == "" {
		return invalid("%s must be a non-empty string", location)
	}
	return nil
}

func requireList(values []string, location string) error {
	if len(values) == 0 {
		return invalid("%s must include at least one entry", location)
	}
	for i, v := range values {
		if err := requireField(v, fmt.Sprintf("%s[%d]", location, i)); err != nil {
			return err
		}
	}
	return nil
}

func parseTime(value, location string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, invalid("%s must be an RFC 3339 timestamp: %v", location, err)
	}
	return t, nil
}

// normalizedSet trims, drops blanks, dedupes and sorts.
func normalizedSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func sameSet(a, b []string) bool {
	return slices.Equal(normalizedSet(a), normalizedSet(b))
}

func percent(passed, total int) float64 {
	return numeric.RoundTo(float64(passed)/float64(total)*100, 2)
}

// TimestampLayout is RFC 3339 with millisecond precision, the form every
// emitted timestamp takes.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

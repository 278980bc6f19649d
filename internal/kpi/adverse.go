package kpi

import (
	"fmt"
	"math"
)

// Adverse-event limits.
const (
	AdverseEventMaxPerYear       = 5
	AdverseWindowMinCoverageDays = 300
)

// AdverseEventSample is one reported adverse event.
type AdverseEventSample struct {
	SampleID       string `json:"sample_id"`
	EventID        string `json:"event_id"`
	CaseID         string `json:"case_id"`
	ReportedAt     string `json:"reported_at"`
	LinkedToEngine bool   `json:"linked_to_engine_recommendation"`
}

// AdverseEventCase is the per-event outcome.
type AdverseEventCase struct {
	SampleID string `json:"sample_id"`
	EventID  string `json:"event_id"`
	InWindow bool   `json:"included_in_window"`
	Counted  bool   `json:"counted"`
}

// AdverseEventReport is kpi06. Value holds the counted events; lower is better.
type AdverseEventReport struct {
	Report
	WindowStart       string             `json:"window_start"`
	WindowEnd         string             `json:"window_end"`
	CountedEventCount int                `json:"counted_event_count"`
	CoverageDays      int                `json:"window_coverage_days"`
	CoverageSatisfied bool               `json:"window_coverage_satisfied"`
	Cases             []AdverseEventCase `json:"case_results"`
}

// EvaluateAdverseEvents counts engine-linked events reported within the twelve
// months ending at evaluatedAt, bounds inclusive. Coverage is the span in whole
// days between the earliest and latest in-window report.
func EvaluateAdverseEvents(samples []AdverseEventSample, evaluatedAt string) (AdverseEventReport, error) {
	if err := requireSamples(len(samples), "adverse-event"); err != nil {
		return AdverseEventReport{}, err
	}
	end, err := parseTime(evaluatedAt, "evaluated_at")
	if err != nil {
		return AdverseEventReport{}, err
	}
	end = end.UTC()
	start := end.AddDate(-1, 0, 0)

	cases := make([]AdverseEventCase, 0, len(samples))
	counted := 0
	var first, last int64
	seen := false
	for i, s := range samples {
		loc := fmt.Sprintf("samples[%d]", i)
		if err := firstErr(
			requireField(s.SampleID, loc+".sample_id"),
			requireField(s.EventID, loc+".event_id"),
			requireField(s.CaseID, loc+".case_id"),
		); err != nil {
			return AdverseEventReport{}, err
		}
		at, err := parseTime(s.ReportedAt, loc+".reported_at")
		if err != nil {
			return AdverseEventReport{}, err
		}
		in := !at.Before(start) && !at.After(end)
		c := AdverseEventCase{SampleID: s.SampleID, EventID: s.EventID, InWindow: in, Counted: in && s.LinkedToEngine}
		if c.Counted {
			counted++
		}
		if in {
			ms := at.UnixMilli()
			if !seen || ms < first {
				first = ms
			}
			if !seen || ms > last {
				last = ms
			}
			seen = true
		}
		cases = append(cases, c)
	}
	coverage := 0
	if seen {
		coverage = int(math.Floor(float64(last-first) / float64(24*60*60*1000)))
	}
	return AdverseEventReport{
		Report: Report{
			KPIID:                   "kpi-06",
			Module:                  "03_personal_safety_validation_engine",
			Formula:                 "AdverseEventCount = count(linked_to_engine = true and reported_at within last 12 months)",
			EvaluatedAt:             end.Format(TimestampLayout),
			SampleCount:             len(samples),
			PassedCount:             len(samples) - counted,
			Value:                   float64(counted),
			Target:                  AdverseEventMaxPerYear,
			MinSampleCount:          1,
			TargetSatisfied:         counted <= AdverseEventMaxPerYear,
			MinSampleCountSatisfied: true,
		},
		WindowStart:       start.Format(TimestampLayout),
		WindowEnd:         end.Format(TimestampLayout),
		CountedEventCount: counted,
		CoverageDays:      coverage,
		CoverageSatisfied: coverage >= AdverseWindowMinCoverageDays,
		Cases:             cases,
	}, nil
}

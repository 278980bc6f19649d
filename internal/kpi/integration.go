package kpi

import (
	"fmt"

	"rndharness/internal/numeric"
	"rndharness/internal/world"
)

// Integration-rate limits.
const (
	IntegrationTarget         = 90
	IntegrationMinSourceCount = 10
)

// IntegrationSample is one ingestion session.
type IntegrationSample struct {
	SampleID       string           `json:"sample_id"`
	Source         world.DataSource `json:"source"`
	SessionSuccess bool             `json:"session_success"`
	DataLakeLinked bool             `json:"data_lake_linked"`
}

// IntegrationSourceResult is the rate for one feed.
type IntegrationSourceResult struct {
	Source                  world.DataSource `json:"source"`
	TotalCount              int              `json:"total_sample_count"`
	SuccessfulCount         int              `json:"successful_sample_count"`
	RatePercent             float64          `json:"integration_rate_percent"`
	TargetSatisfied         bool             `json:"target_satisfied"`
	MinSourceCountSatisfied bool             `json:"min_source_sample_count_satisfied"`
}

// IntegrationReport is kpi07.
type IntegrationReport struct {
	Report
	SourceCoverageSatisfied bool                      `json:"source_coverage_satisfied"`
	PerSourceMinSatisfied   bool                      `json:"per_source_min_sample_count_satisfied"`
	MinSourceSampleCount    int                       `json:"min_source_sample_count"`
	Sources                 []IntegrationSourceResult `json:"source_results"`
}

// EvaluateIntegration averages the per-source share of sessions that both
// succeeded and reached the data lake. A source with no sessions rates 0.
func EvaluateIntegration(samples []IntegrationSample, evaluatedAt string) (IntegrationReport, error) {
	if err := requireSamples(len(samples), "integration"); err != nil {
		return IntegrationReport{}, err
	}
	if _, err := parseTime(evaluatedAt, "evaluated_at"); err != nil {
		return IntegrationReport{}, err
	}
	total := make(map[world.DataSource]int, len(world.DataSources))
	ok := make(map[world.DataSource]int, len(world.DataSources))
	for i, s := range samples {
		loc := fmt.Sprintf("samples[%d]", i)
		if err := requireField(s.SampleID, loc+".sample_id"); err != nil {
			return IntegrationReport{}, err
		}
		if !s.Source.Valid() {
			return IntegrationReport{}, invalid("%s.source %q is not a data source", loc, s.Source)
		}
		total[s.Source]++
		if s.SessionSuccess && s.DataLakeLinked {
			ok[s.Source]++
		}
	}

	rep := IntegrationReport{
		SourceCoverageSatisfied: true,
		PerSourceMinSatisfied:   true,
		MinSourceSampleCount:    IntegrationMinSourceCount,
	}
	rates := make([]float64, 0, len(world.DataSources))
	passed := 0
	for _, src := range world.DataSources {
		r := IntegrationSourceResult{Source: src, TotalCount: total[src], SuccessfulCount: ok[src]}
		if r.TotalCount > 0 {
			r.RatePercent = percent(r.SuccessfulCount, r.TotalCount)
		} else {
			rep.SourceCoverageSatisfied = false
		}
		r.TargetSatisfied = r.RatePercent >= IntegrationTarget
		r.MinSourceCountSatisfied = r.TotalCount >= IntegrationMinSourceCount
		if !r.MinSourceCountSatisfied {
			rep.PerSourceMinSatisfied = false
		}
		rates = append(rates, r.RatePercent)
		passed += r.SuccessfulCount
		rep.Sources = append(rep.Sources, r)
	}
	value := numeric.RoundTo(numeric.Average(rates), 2)
	rep.Report = Report{
		KPIID:                   "kpi-07",
		Module:                  "07_biosensor_and_genetic_data_integration",
		Formula:                 "r_s = 100 * successful_s / total_s; R = (r_W + r_C + r_G) / 3",
		EvaluatedAt:             evaluatedAt,
		SampleCount:             len(samples),
		PassedCount:             passed,
		Value:                   value,
		Target:                  IntegrationTarget,
		MinSampleCount:          DefaultMinSampleCount,
		TargetSatisfied:         value >= IntegrationTarget,
		MinSampleCountSatisfied: len(samples) >= DefaultMinSampleCount,
	}
	return rep, nil
}

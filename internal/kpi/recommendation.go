package kpi

import (
	"fmt"
	"slices"
	"strings"

	"rndharness/internal/numeric"
)

// RecommendationTarget is the kpi01 mean overlap floor.
const RecommendationTarget = 80

// TopRecommendation links a case to the combination actually offered.
type TopRecommendation struct {
	ComboID string   `json:"combo_id"`
	ItemIDs []string `json:"item_ids"`
}

// RecommendationSample compares the oracle set with the pick for one case.
type RecommendationSample struct {
	SampleID          string            `json:"sample_id"`
	CaseID            string            `json:"case_id"`
	Expected          []string          `json:"expected_ingredient_codes"`
	Observed          []string          `json:"observed_ingredient_codes"`
	TopRecommendation TopRecommendation `json:"top_recommendation"`
}

// RecommendationCase is the per-case breakdown.
type RecommendationCase struct {
	SampleID     string   `json:"sample_id"`
	CaseID       string   `json:"case_id"`
	Overlap      int      `json:"overlap_ingredient_count"`
	ScorePercent float64  `json:"score_percent"`
	Missing      []string `json:"missing_ingredient_codes"`
	Extra        []string `json:"extra_ingredient_codes"`
	// LinkReady reports whether the top pick names a combo with items.
	LinkReady bool `json:"intervention_link_ready"`
}

// RecommendationReport is kpi01.
type RecommendationReport struct {
	Report
	InterventionLinkReadyPercent float64              `json:"intervention_link_readiness_percent"`
	Cases                        []RecommendationCase `json:"case_results"`
}

func normalizeCodes(values []string) []string {
	lowered := make([]string, len(values))
	for i, v := range values {
		lowered[i] = strings.ToLower(v)
	}
	return normalizedSet(lowered)
}

// EvaluateRecommendation scores mean per-case overlap of expected codes.
func EvaluateRecommendation(samples []RecommendationSample, evaluatedAt string) (RecommendationReport, error) {
	if err := requireSamples(len(samples), "recommendation"); err != nil {
		return RecommendationReport{}, err
	}
	if _, err := parseTime(evaluatedAt, "evaluated_at"); err != nil {
		return RecommendationReport{}, err
	}
	cases := make([]RecommendationCase, len(samples))
	scores := make([]float64, len(samples))
	ready := 0
	for i, s := range samples {
		loc := fmt.Sprintf("samples[%d]", i)
		if err := firstErr(
			requireField(s.SampleID, loc+".sample_id"),
			requireField(s.CaseID, loc+".case_id"),
			requireList(s.Expected, loc+".expected_ingredient_codes"),
			requireList(s.Observed, loc+".observed_ingredient_codes"),
			requireField(s.TopRecommendation.ComboID, loc+".top_recommendation.combo_id"),
			requireList(s.TopRecommendation.ItemIDs, loc+".top_recommendation.item_ids"),
		); err != nil {
			return RecommendationReport{}, err
		}
		expected, observed := normalizeCodes(s.Expected), normalizeCodes(s.Observed)
		c := RecommendationCase{SampleID: s.SampleID, CaseID: s.CaseID, Missing: []string{}, Extra: []string{}}
		for _, code := range expected {
			if slices.Contains(observed, code) {
				c.Overlap++
			} else {
				c.Missing = append(c.Missing, code)
			}
		}
		for _, code := range observed {
			if !slices.Contains(expected, code) {
				c.Extra = append(c.Extra, code)
			}
		}
		c.ScorePercent = numeric.RoundTo(float64(c.Overlap)/float64(len(expected))*100, 2)
		c.LinkReady = s.TopRecommendation.ComboID != "" && len(s.TopRecommendation.ItemIDs) > 0
		if c.LinkReady {
			ready++
		}
		cases[i], scores[i] = c, c.ScorePercent
	}
	mean := numeric.RoundTo(numeric.Average(scores), 2)
	return RecommendationReport{
		Report: Report{
			KPIID:                   "kpi-01",
			Module:                  "05_optimization_engine",
			Formula:                 "s_i = 100 * |R_i ∩ Γ_i| / |R_i|; Score = (1/N) * sum(s_i)",
			EvaluatedAt:             evaluatedAt,
			SampleCount:             len(samples),
			PassedCount:             countAtLeast(scores, 100),
			Value:                   mean,
			Target:                  RecommendationTarget,
			MinSampleCount:          DefaultMinSampleCount,
			TargetSatisfied:         mean >= RecommendationTarget,
			MinSampleCountSatisfied: len(samples) >= DefaultMinSampleCount,
		},
		InterventionLinkReadyPercent: percent(ready, len(samples)),
		Cases:                        cases,
	}, nil
}

func countAtLeast(values []float64, floor float64) int {
	n := 0
	for _, v := range values {
		if v >= floor {
			n++
		}
	}
	return n
}

package kpi

import (
	"fmt"
	"math"

	"rndharness/internal/numeric"
)

// ImprovementSample is one user's pre/post PRO z pair.
type ImprovementSample struct {
	SampleID     string  `json:"sample_id"`
	EvaluationID string  `json:"evaluation_id"`
	UserHash     string  `json:"app_user_id_hash"`
	PreZ         float64 `json:"pre_z_score"`
	PostZ        float64 `json:"post_z_score"`
}

// ImprovementCase is the per-user breakdown.
type ImprovementCase struct {
	SampleID      string  `json:"sample_id"`
	DeltaZ        float64 `json:"delta_z_score"`
	ImprovementPp float64 `json:"improvement_pp"`
}

// ImprovementReport is kpi02. Value is SCGI in percentage points.
type ImprovementReport struct {
	Report
	MeanDeltaZ float64           `json:"mean_delta_z_score"`
	Cases      []ImprovementCase `json:"case_results"`
}

// EvaluateImprovement averages 100*(Phi(post)-Phi(pre)). The target is
// strictly positive.
func EvaluateImprovement(samples []ImprovementSample, evaluatedAt string) (ImprovementReport, error) {
	if err := requireSamples(len(samples), "improvement"); err != nil {
		return ImprovementReport{}, err
	}
	if _, err := parseTime(evaluatedAt, "evaluated_at"); err != nil {
		return ImprovementReport{}, err
	}
	cases := make([]ImprovementCase, len(samples))
	pps := make([]float64, len(samples))
	deltas := make([]float64, len(samples))
	improved := 0
	for i, s := range samples {
		loc := fmt.Sprintf("samples[%d]", i)
		if err := firstErr(
			requireField(s.SampleID, loc+".sample_id"),
			requireField(s.EvaluationID, loc+".evaluation_id"),
			requireField(s.UserHash, loc+".app_user_id_hash"),
		); err != nil {
			return ImprovementReport{}, err
		}
		if !finite(s.PreZ) || !finite(s.PostZ) {
			return ImprovementReport{}, invalid("%s z scores must be finite", loc)
		}
		pp := (numeric.NormalCDF(s.PostZ) - numeric.NormalCDF(s.PreZ)) * 100
		c := ImprovementCase{
			SampleID:      s.SampleID,
			DeltaZ:        numeric.RoundTo(s.PostZ-s.PreZ, 4),
			ImprovementPp: numeric.RoundTo(pp, 4),
		}
		if c.ImprovementPp > 0 {
			improved++
		}
		cases[i], pps[i], deltas[i] = c, c.ImprovementPp, c.DeltaZ
	}
	scgi := numeric.RoundTo(numeric.Average(pps), 4)
	return ImprovementReport{
		Report: Report{
			KPIID:                   "kpi-02",
			Module:                  "04_efficacy_quantification_model",
			Formula:                 "p_i = 100 * (Phi(z_post_i) - Phi(z_pre_i)); SCGI = (1/N) * sum(p_i)",
			EvaluatedAt:             evaluatedAt,
			SampleCount:             len(samples),
			PassedCount:             improved,
			Value:                   scgi,
			Target:                  0,
			MinSampleCount:          DefaultMinSampleCount,
			TargetSatisfied:         scgi > 0,
			MinSampleCountSatisfied: len(samples) >= DefaultMinSampleCount,
		},
		MeanDeltaZ: numeric.RoundTo(numeric.Average(deltas), 4),
		Cases:      cases,
	}, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rndharness/internal/pipeline"
	"rndharness/internal/world"
)

func atTargetKPI() pipeline.KPISummary {
	return pipeline.KPISummary{
		RecommendationAccuracyPercent: 80,
		EfficacySCGIPp:                10,
		ActionAccuracyPercent:         80,
		LLMAccuracyPercent:            91,
		ReferenceAccuracyPercent:      95,
		AdverseEventCountPerYear:      5,
		IntegrationRatePercent:        90,
		AllTargetsSatisfied:           true,
		AllDataRequirementsSatisfied:  true,
	}
}

func TestScoreAtTargets(t *testing.T) {
	s := Score(atTargetKPI())
	assert.Equal(t, 100.0, s.WeightedPassScorePercent)
	// efficacy contributes 20 * (1 + 10/20)
	assert.InDelta(t, 110.0, s.WeightedObjectiveScore, 1e-9)
}

func TestScoreEfficacyAndAdverseEdges(t *testing.T) {
	k := atTargetKPI()
	k.EfficacySCGIPp = 0
	k.AdverseEventCountPerYear = 0
	s := Score(k)
	assert.Equal(t, 80.0, s.WeightedPassScorePercent, "zero improvement earns no efficacy pass weight")
	// efficacy 0, adverse capped at 2 x 5
	assert.InDelta(t, 85.0, s.WeightedObjectiveScore, 1e-9)

	k.EfficacySCGIPp = -40
	k.AdverseEventCountPerYear = 10
	s = Score(k)
	assert.Equal(t, 77.5, s.WeightedPassScorePercent)
	assert.InDelta(t, 57.5, s.WeightedObjectiveScore, 1e-9)

	k.EfficacySCGIPp = 100
	assert.InDelta(t, 20*2.5, WeightedKPIs(k)[1].WeightedObjectiveContribution, 1e-9, "efficacy bonus caps at 1.5")
}

func TestWeightedKPIsMatchScore(t *testing.T) {
	k := pipeline.KPISummary{
		RecommendationAccuracyPercent: 83.17,
		EfficacySCGIPp:                7.42,
		ActionAccuracyPercent:         88.01,
		LLMAccuracyPercent:            93.3,
		ReferenceAccuracyPercent:      97.9,
		AdverseEventCountPerYear:      4,
		IntegrationRatePercent:        91.2,
	}
	items := WeightedKPIs(k)
	require.Len(t, items, 7)
	var weight float64
	for _, it := range items {
		weight += it.WeightPercent
	}
	assert.Equal(t, 100.0, weight)
	assert.Equal(t, "kpi01", items[0].ID)
	assert.Equal(t, "Health Supplement Recommendation Accuracy", items[0].Label)
	assert.Equal(t, ">= 80%", items[0].TargetDescription)
	assert.Equal(t, 4.0, items[5].MeasuredValue)
	assert.True(t, items[5].TargetSatisfied)

	totals := sumContributions(items)
	s := Score(k)
	assert.InDelta(t, s.WeightedPassScorePercent, totals.WeightedPassScorePercent, 0.02)
	assert.InDelta(t, s.WeightedObjectiveScore, totals.WeightedObjectiveScore, 0.001)
}

func TestStabilityThresholds(t *testing.T) {
	k := atTargetKPI()
	r := Stability(k)
	assert.False(t, r.AllSatisfied)
	assert.False(t, r.RecommendationAccuracySatisfied)
	assert.True(t, r.EfficacySCGISatisfied, "scgi buffer is inclusive at 5pp")
	assert.False(t, r.AdverseEventCountSatisfied)

	k = pipeline.KPISummary{
		RecommendationAccuracyPercent: 85,
		EfficacySCGIPp:                5,
		ActionAccuracyPercent:         85,
		LLMAccuracyPercent:            94,
		ReferenceAccuracyPercent:      97,
		AdverseEventCountPerYear:      4,
		IntegrationRatePercent:        92,
	}
	assert.True(t, Stability(k).AllSatisfied)
}

func TestGatePassedNeedsTargetsAndData(t *testing.T) {
	k := atTargetKPI()
	assert.True(t, GatePassed(k))
	k.AllDataRequirementsSatisfied = false
	assert.False(t, GatePassed(k))
}

func TestAttemptDataScale(t *testing.T) {
	cases := []struct {
		option         string
		base           float64
		stage, attempt int
		autoMax        float64
		want           float64
	}{
		{"standard", 1, 1, 2, 3.2, 1},
		{"max", 12, 0, 0, 3.2, 10},
		{"smoke", 0.2, 0, 0, 3.2, 1},
		{ProfileAuto, 1.2, 0, 0, 3.2, 1.2},
		{ProfileAuto, 1.2, 0, 1, 3.2, 1.5},
		{ProfileAuto, 1.2, 0, 2, 3.2, 1.8},
		{ProfileAuto, 1.2, 1, 0, 3.2, 1.7},
		{ProfileAuto, 1.2, 1, 2, 3.2, 2.3},
		{ProfileAuto, 3, 1, 2, 3.2, 3.2},
		{ProfileAuto, 3, 1, 2, 40, 4.1},
	}
	for _, tc := range cases {
		got := AttemptDataScale(tc.option, tc.base, tc.stage, tc.attempt, tc.autoMax)
		assert.InDelta(t, tc.want, got, 1e-9, "%s base=%v stage=%d attempt=%d", tc.option, tc.base, tc.stage, tc.attempt)
	}
}

func TestAttemptSeedAndPlan(t *testing.T) {
	assert.Equal(t, int64(20260227), AttemptSeed(20260227, 0, 0, 3, 137))
	assert.Equal(t, int64(20260227+3*137+2*137), AttemptSeed(20260227, 1, 2, 3, 137))

	assert.Equal(t, []world.Profile{world.ProfileStandard, world.ProfileMax}, ProfilePlan(ProfileAuto))
	assert.Equal(t, []world.Profile{world.ProfileSmoke}, ProfilePlan("smoke"))

	assert.Equal(t, 3, StageBudget(ProfileAuto, 0, true, 3, 2))
	assert.Equal(t, 2, StageBudget(ProfileAuto, 1, true, 3, 2))
	assert.Equal(t, 3, StageBudget(ProfileAuto, 1, false, 3, 2))
	assert.Equal(t, 1, StageBudget(ProfileAuto, 1, true, 1, 2))
	assert.Equal(t, 1, StageBudget(ProfileAuto, 1, true, 3, 0))
	assert.Equal(t, 3, StageBudget("max", 1, true, 3, 2))

	base := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Add(4*time.Second), AttemptGeneratedAt(base, 4))
}

func TestRankOrdering(t *testing.T) {
	attempts := []AttemptSummary{
		{Attempt: 1, GatePassed: false, StabilityBufferSatisfied: true, WeightedObjectiveScore: 200},
		{Attempt: 2, GatePassed: true, StabilityBufferSatisfied: false, WeightedObjectiveScore: 150},
		{Attempt: 3, GatePassed: true, StabilityBufferSatisfied: true, WeightedObjectiveScore: 120},
		{Attempt: 4, GatePassed: true, StabilityBufferSatisfied: true, WeightedObjectiveScore: 130, WeightedPassScorePercent: 90},
		{Attempt: 5, GatePassed: true, StabilityBufferSatisfied: true, WeightedObjectiveScore: 130, WeightedPassScorePercent: 95},
		{Attempt: 6, GatePassed: true, StabilityBufferSatisfied: true, WeightedObjectiveScore: 130, WeightedPassScorePercent: 95,
			KPI: pipeline.KPISummary{RecommendationAccuracyPercent: 91}},
		{Attempt: 7, GatePassed: true, StabilityBufferSatisfied: true, WeightedObjectiveScore: 130, WeightedPassScorePercent: 95,
			KPI: pipeline.KPISummary{RecommendationAccuracyPercent: 91}},
	}
	got := Rank(attempts)
	order := make([]int, len(got))
	for i, a := range got {
		order[i] = a.Attempt
	}
	assert.Equal(t, []int{6, 7, 5, 4, 3, 2, 1}, order)
	assert.Equal(t, 1, attempts[0].Attempt, "input slice is not reordered")
}

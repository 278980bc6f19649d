package world

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rndharness/internal/prng"
)

func TestResolveProfileSmokeAtUnitScale(t *testing.T) {
	cfg, err := ResolveProfile(ProfileSmoke, 1)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.TrainUsers)
	assert.Equal(t, 220, cfg.TestUsers)
	assert.Equal(t, 8, cfg.RecommenderEpochs)
	assert.Equal(t, 2, cfg.ActionFineTuneEpochs)
}

func TestResolveProfileScalesUsersLinearlyAndEpochsBySqrt(t *testing.T) {
	cfg, err := ResolveProfile(ProfileStandard, 1.2)
	require.NoError(t, err)
	assert.Equal(t, 10800, cfg.TrainUsers)
	assert.Equal(t, 1800, cfg.TestUsers)
	assert.Equal(t, 15, cfg.RecommenderEpochs) // 14*sqrt(1.2)=15.34

	capped, err := ResolveProfile(ProfileSmoke, 40)
	require.NoError(t, err)
	assert.Equal(t, 8000, capped.TrainUsers)
	assert.Equal(t, 20, capped.RecommenderEpochs) // epoch scale caps at 2.5

	_, err = ResolveProfile("huge", 1)
	require.Error(t, err)
}

func TestBuildCatalogIsDeterministicAndTuned(t *testing.T) {
	a := BuildCatalog(20260227)
	b := BuildCatalog(20260227)
	require.Len(t, a, 25)
	assert.Equal(t, a, b)
	assert.Equal(t, IngredientIDs, a.IDs())

	lookup := a.Lookup()
	assert.Equal(t, [3]float64{0.05, 0.95, 0.05}, lookup["melatonin"].GoalAffinity)
	assert.Equal(t, 1.1, lookup["folate"].GeneticsAffinity[0])
	assert.Equal(t, 0.62, lookup["vitamin_k"].Risk)
	for _, ing := range a {
		assert.Len(t, ing.Feature, 10)
		assert.GreaterOrEqual(t, ing.Cost, 0.15)
		assert.Less(t, ing.Cost, 1.45+1e-12)
	}
	assert.NotEqual(t, a, BuildCatalog(20260228))
}

func TestGenerateUsersInvariants(t *testing.T) {
	users := GenerateUsers(2000, 20260227^TrainUserSeedOffset, "train")
	require.Len(t, users, 2000)
	assert.Equal(t, "train-000001", users[0].ID)
	assert.Equal(t, "train-002000", users[1999].ID)
	for _, u := range users {
		assert.InDelta(t, 1, u.GoalEnergy+u.GoalSleep+u.GoalMetabolic, 1e-9)
		if u.Pregnancy {
			assert.False(t, u.SexMale)
			assert.True(t, u.Age >= 20 && u.Age <= 44)
		}
		if u.Metformin {
			assert.True(t, u.Diabetes)
		}
		if u.Antihypertensive {
			assert.True(t, u.Hypertension)
		}
		for _, g := range u.Genes.Vector() {
			assert.True(t, g >= 0 && g <= 1)
		}
		assert.True(t, u.TimeInRange >= 0.32 && u.TimeInRange <= 0.98)
	}
	again := GenerateUsers(2000, 20260227^TrainUserSeedOffset, "train")
	assert.Equal(t, users, again)
}

func TestEvaluateSafetyRules(t *testing.T) {
	warfarin := User{Warfarin: true}
	got := EvaluateSafety(warfarin, "vitamin_k")
	assert.Equal(t, DecisionBlock, got.Decision)
	assert.Equal(t, []string{"ref-warfarin-vitamin-k"}, got.ReferenceIDs)
	assert.Equal(t, "vitamin_k:block", got.LogicID)
	assert.Equal(t, []SourceKind{SourceMedicalDatabase, SourcePublicSafety}, got.SourceKinds)

	limit := EvaluateSafety(warfarin, "omega3")
	assert.Equal(t, DecisionLimit, limit.Decision)
	assert.Equal(t, []SourceKind{SourceMedicalDatabase, SourceLiterature}, limit.SourceKinds)

	both := EvaluateSafety(User{Warfarin: true, SeafoodAllergy: true}, "omega3")
	assert.Equal(t, DecisionBlock, both.Decision)
	assert.Equal(t, []string{"ref-warfarin-omega3", "ref-seafood-allergy-omega3"}, both.ReferenceIDs)

	safe := EvaluateSafety(User{}, "zinc")
	assert.Equal(t, DecisionAllow, safe.Decision)
	assert.Equal(t, []string{GeneralSafeReference}, safe.ReferenceIDs)
	assert.Equal(t, []SourceKind{SourceInternalCompute}, safe.SourceKinds)

	caffeine := EvaluateSafety(User{Genes: Genes{CYP1A2: 0.73}}, "caffeine")
	assert.Equal(t, DecisionLimit, caffeine.Decision)
	assert.Equal(t, DecisionAllow, EvaluateSafety(User{Genes: Genes{CYP1A2: 0.72}}, "caffeine").Decision)
}

func TestDecisionClassRoundTrip(t *testing.T) {
	for i, d := range Decisions {
		assert.Equal(t, i, d.Class())
		assert.Equal(t, d, DecisionFromClass(i))
	}
	assert.Equal(t, 1.5, DecisionBlock.Penalty())
	assert.Equal(t, 0.4, DecisionLimit.Penalty())
	assert.Equal(t, 0.0, DecisionAllow.Penalty())
}

func TestExpectedSetSkipsBlocked(t *testing.T) {
	catalog := BuildCatalog(7)
	users := GenerateUsers(400, 7^TrainUserSeedOffset, "train")
	for _, u := range users {
		set := ExpectedSet(u, catalog)
		require.Len(t, set, 3)
		for _, id := range set {
			assert.NotEqual(t, DecisionBlock, EvaluateSafety(u, id).Decision, "user %s id %s", u.ID, id)
		}
	}
}

func TestTrueComboDeltaBoundedAndStreamDriven(t *testing.T) {
	catalog := BuildCatalog(11)
	u := GenerateUsers(1, 11, "u")[0]
	combo := catalog[:3]
	a := TrueComboDelta(u, combo, prng.New(5))
	b := TrueComboDelta(u, combo, prng.New(5))
	assert.Equal(t, a, b)

	r := prng.New(6)
	first := TrueComboDelta(u, combo, r)
	second := TrueComboDelta(u, combo, r)
	assert.NotEqual(t, first, second)
	for _, v := range []float64{a, first, second} {
		assert.True(t, v >= -0.5 && v <= 0.9)
	}
}

func TestBuildProAssessmentOrientsLowerIsBetter(t *testing.T) {
	rec := BuildProAssessment("pro-1", "u-1", 0, 0.8, prng.New(3))
	require.Len(t, rec.Metrics, 4)
	assert.Greater(t, rec.PostZ, rec.PreZ)
	for _, m := range rec.Metrics {
		if m.MetricID == "psqi" {
			// improvement lowers the raw sleep-quality index
			assert.Less(t, m.PostRaw, m.PreRaw)
		}
		assert.False(t, math.IsNaN(m.PreZ))
	}
}

func TestDeriveGeneticAdjustments(t *testing.T) {
	adj := DeriveGeneticAdjustments(User{Genes: Genes{MTHFR: 0.6, CYP1A2: 0.61, TCF7L2: 0.7}})
	assert.Equal(t, []GeneticRuleID{RuleMTHFRFolate, RuleCYP1A2Caffeine, RuleTCF7L2Glucose}, adj.ActiveRules)
	assert.Equal(t, []string{"caffeine"}, adj.Safety.Limited)
	assert.Equal(t, []string{"post_meal_glucose_monitoring"}, adj.Safety.Monitor)
	assert.Equal(t, []string{}, adj.Safety.Blocked)
	assert.Equal(t, 0.24, adj.Weights.SyntheticFolateBoost)
	assert.Equal(t, 0.2, adj.Weights.SugarPenalty)

	fallback := DeriveGeneticAdjustments(User{Genes: Genes{MTHFR: 0.1, LCT: 0.2, CYP1A2: 0.3, FTO: 0.4, TCF7L2: 0.1, LPL: 0.5}})
	assert.Equal(t, []GeneticRuleID{RuleLPLTriglyceride}, fallback.ActiveRules)
	assert.Equal(t, 0.1, fallback.Weights.Omega3Boost)
	assert.Equal(t, 0.08, fallback.Weights.HighFatPenalty)
}

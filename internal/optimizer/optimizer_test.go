package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rndharness/internal/world"
)

type constScorer float64

func (c constScorer) Score(_, _ []float64) float64 { return float64(c) }

type constClassifier int

func (c constClassifier) Predict(_ []float64) int { return int(c) }

type constRegressor float64

func (c constRegressor) Predict(_ []float64) float64 { return float64(c) }

func cand(id string, score, cost, risk float64) Candidate {
	return Candidate{
		ID:         id,
		Score:      score,
		Decision:   world.DecisionAllow,
		Ingredient: world.Ingredient{ID: id, Cost: cost, Risk: risk},
	}
}

func TestResolveBounds(t *testing.T) {
	c := Resolve(world.User{GoalMetabolic: 1, TimeInRange: 0.32})
	assert.Equal(t, 3, c.MaxCount)
	assert.InDelta(t, 3.25+0.28+0.068, c.Budget, 1e-12)
	assert.InDelta(t, 0.68, c.MaxAverageRisk, 1e-12)

	tight := Resolve(world.User{KidneyRisk: true, Warfarin: true, Pregnancy: true, TimeInRange: 1})
	assert.InDelta(t, 0.54, tight.MaxAverageRisk, 1e-12)
	assert.InDelta(t, 3.05, tight.Budget, 1e-12)
}

func TestOptimizePrefersFeasibleOverHigherRelaxed(t *testing.T) {
	c := Constraints{MaxCount: 3, Budget: 3, MaxAverageRisk: 0.5}
	cands := []Candidate{
		cand("pricey", 5, 4, 0.1),
		cand("a", 1, 0.5, 0.2),
		cand("b", 1, 0.5, 0.2),
		cand("c", 1, 0.5, 0.2),
	}
	out := Optimize(cands, c)
	assert.Equal(t, Feasible, out.Kind)
	assert.Equal(t, []string{"a", "b", "c"}, out.IDs)
}

func TestOptimizeRelaxesWhenNothingFeasible(t *testing.T) {
	c := Constraints{MaxCount: 3, Budget: 0.1, MaxAverageRisk: 0.01}
	cands := []Candidate{
		cand("a", 3, 1, 0.3),
		cand("b", 2, 1, 0.3),
		cand("c", 1, 1, 0.3),
		cand("d", 0, 1, 0.3),
	}
	out := Optimize(cands, c)
	assert.Equal(t, Relaxed, out.Kind)
	assert.Equal(t, []string{"a", "b", "c"}, out.IDs)
}

func TestOptimizeSmallPoolReturnsAll(t *testing.T) {
	c := Constraints{MaxCount: 3, Budget: 3, MaxAverageRisk: 0.5}
	out := Optimize([]Candidate{cand("a", 1, 0.2, 0.1), cand("b", 1, 0.2, 0.1)}, c)
	assert.Equal(t, Feasible, out.Kind)
	assert.Equal(t, []string{"a", "b"}, out.IDs)
}

func TestPickTopNeverReturnsRuleBlocked(t *testing.T) {
	catalog := world.BuildCatalog(20260227)
	u := world.User{Warfarin: true, GoalEnergy: 0.2, GoalSleep: 0.3, GoalMetabolic: 0.5, TimeInRange: 0.7, SleepHours: 7}
	require.Equal(t, world.DecisionBlock, world.EvaluateSafety(u, "vitamin_k").Decision)

	// a safety model that always predicts allow must not leak vitamin_k
	m := Models{Recommender: constScorer(0), Safety: constClassifier(0), Reranker: constRegressor(0)}
	pool := Score(u, catalog, m)
	require.Len(t, pool, 14)
	for _, c := range pool {
		assert.NotEqual(t, "vitamin_k", c.ID)
	}
	out := PickTop(u, catalog, m)
	require.Len(t, out.IDs, 3)
	assert.NotContains(t, out.IDs, "vitamin_k")
}

func TestPickTopFallsBackToSafeCatalogPrefix(t *testing.T) {
	catalog := world.BuildCatalog(1)
	u := world.User{SeafoodAllergy: true, TimeInRange: 0.7, SleepHours: 7}
	m := Models{Recommender: constScorer(0), Safety: constClassifier(0), Reranker: constRegressor(-100)}
	require.Empty(t, Score(u, catalog, m))
	out := PickTop(u, catalog, m)
	assert.Equal(t, []string{"multivitamin", "vitamin_c", "vitamin_d"}, out.IDs)
}

func TestPredictedBlockIsExcluded(t *testing.T) {
	catalog := world.BuildCatalog(1)
	m := Models{Recommender: constScorer(0), Safety: constClassifier(2)}
	assert.Empty(t, Score(world.User{}, catalog, m))
}

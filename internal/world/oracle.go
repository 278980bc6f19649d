package world

import (
	"sort"

	"rndharness/internal/numeric"
	"rndharness/internal/prng"
)

// ComboMaxCount is the size of a recommended combination.
const ComboMaxCount = 3

// The oracle coefficients below are the ground truth models are trained to
// approximate. They are reproduced exactly and are not hyperparameters.

// TrueScore is the ground-truth utility of an ingredient for a user.
func TrueScore(u User, ing Ingredient) float64 {
	goals := u.Goals()
	conds := u.Conditions()
	genes := u.Genes.Vector()
	penalty := EvaluateSafety(u, ing.ID).Decision.Penalty()
	sleepWeight := 0.1
	if ing.ID == "melatonin" {
		sleepWeight = 0.6
	}
	return ing.BaseUtility +
		numeric.Dot(goals[:], ing.GoalAffinity[:])*0.85 +
		numeric.Dot(conds[:], ing.ConditionAffinity[:])*0.5 +
		numeric.Dot(genes[:], ing.GeneticsAffinity[:])*0.4 +
		(u.TimeInRange-0.7)*0.3 +
		((7.2-u.SleepHours)/4)*sleepWeight -
		ing.Risk*0.35 -
		ing.Cost*0.12 -
		penalty
}

// ScoredIngredient pairs an ingredient id with its true score.
type ScoredIngredient struct {
	ID    string
	Score float64
}

// RankByTrueScore returns every non-blocked ingredient sorted by descending
// true score. Ties keep catalog order.
func RankByTrueScore(u User, catalog Catalog) []ScoredIngredient {
	ranked := make([]ScoredIngredient, 0, len(catalog))
	for _, ing := range catalog {
		if EvaluateSafety(u, ing.ID).Decision == DecisionBlock {
			continue
		}
		ranked = append(ranked, ScoredIngredient{ID: ing.ID, Score: TrueScore(u, ing)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// ExpectedSet is the oracle top-3 for a user.
func ExpectedSet(u User, catalog Catalog) []string {
	ranked := RankByTrueScore(u, catalog)
	n := min(ComboMaxCount, len(ranked))
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = ranked[i].ID
	}
	return ids
}

// ComboStats returns the mean cost and mean risk of a combination.
func ComboStats(combo []Ingredient) (meanCost, meanRisk float64) {
	for _, ing := range combo {
		meanCost += ing.Cost
		meanRisk += ing.Risk
	}
	n := float64(len(combo))
	return meanCost / n, meanRisk / n
}

// TrueComboDelta is the ground-truth treatment effect of a combination,
// clamped to [-0.5, 0.9]. Exactly one normal draw is consumed from rng.
func TrueComboDelta(u User, combo []Ingredient, rng *prng.Rand) float64 {
	var benefit float64
	for _, ing := range combo {
		benefit += TrueScore(u, ing)
	}
	benefit /= float64(len(combo))
	meanCost, meanRisk := ComboStats(combo)
	biosensor := (u.TimeInRange-0.72)*0.9 +
		((115-u.Glucose)/140)*0.4 +
		((7.0-u.SleepHours)/4)*0.3
	genetic := u.Genes.MTHFR*0.1 +
		u.Genes.LCT*0.08 +
		(1-u.Genes.CYP1A2)*0.06 +
		u.Genes.TCF7L2*0.1
	noise := rng.Normal(0, 0.035)
	return numeric.Clamp(
		0.12+benefit*0.28+biosensor*0.16+genetic*0.12-meanRisk*0.2-meanCost*0.06+noise,
		-0.5, 0.9,
	)
}

// Resolve maps ids to catalog entries, skipping unknown ids.
func Resolve(lookup map[string]Ingredient, ids []string) []Ingredient {
	out := make([]Ingredient, 0, len(ids))
	for _, id := range ids {
		if ing, ok := lookup[id]; ok {
			out = append(out, ing)
		}
	}
	return out
}

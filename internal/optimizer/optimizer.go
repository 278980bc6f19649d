// Package optimizer picks a bounded-size ingredient combination per user
// under budget, risk and safety constraints.
package optimizer

import (
	"math"
	"sort"

	"rndharness/internal/features"
	"rndharness/internal/numeric"
	"rndharness/internal/world"
)

// Scorer scores a (user, item) vector pair.
type Scorer interface {
	Score(user, item []float64) float64
}

// Classifier predicts a class index.
type Classifier interface {
	Predict(x []float64) int
}

// Regressor predicts a scalar.
type Regressor interface {
	Predict(x []float64) float64
}

// Models are the trained components PickTop consults. Reranker may be nil.
type Models struct {
	Recommender Scorer
	Safety      Classifier
	Reranker    Regressor
}

// Constraints bound a combination.
type Constraints struct {
	MaxCount       int     `json:"max_count"`
	Budget         float64 `json:"budget"`
	MaxAverageRisk float64 `json:"max_average_risk"`
}

// Kind tags how a combination was chosen.
type Kind string

const (
	// Feasible combinations satisfy every constraint.
	Feasible Kind = "feasible"
	// Relaxed combinations maximise the penalised objective because no
	// feasible combination exists.
	Relaxed Kind = "relaxed"
)

// Candidate is a scored, predicted-safe ingredient.
type Candidate struct {
	ID           string
	Score        float64
	GoalFit      float64
	ConditionFit float64
	GeneticFit   float64
	TwoTower     float64
	Decision     world.Decision
	Ingredient   world.Ingredient
}

// Outcome is the chosen combination.
type Outcome struct {
	Kind Kind
	IDs  []string
}

const (
	candidatePool = 14
	scoreFloor    = -8
)

// Resolve derives per-user constraints.
func Resolve(u world.User) Constraints {
	kidney, warfarin, pregnancy := world.Flag(u.KidneyRisk), world.Flag(u.Warfarin), world.Flag(u.Pregnancy)
	return Constraints{
		MaxCount: world.ComboMaxCount,
		Budget: numeric.Clamp(
			3.25+u.GoalMetabolic*0.28+u.GoalEnergy*0.1-kidney*0.12-warfarin*0.08+(1-u.TimeInRange)*0.1,
			2.6, 4.2),
		MaxAverageRisk: numeric.Clamp(
			0.68+u.GoalSleep*0.03-kidney*0.06-warfarin*0.05-pregnancy*0.05,
			0.54, 0.74),
	}
}

// Satisfied reports whether a combination meets c.
func (c Constraints) Satisfied(combo []world.Ingredient) bool {
	if len(combo) == 0 || len(combo) > c.MaxCount {
		return false
	}
	var cost, risk float64
	for _, ing := range combo {
		cost += ing.Cost
		risk += ing.Risk
	}
	return cost <= c.Budget && risk/float64(len(combo)) <= c.MaxAverageRisk
}

// Score ranks every ingredient that is neither predicted nor rule-table
// blocked and returns the top pool in descending score order.
func Score(u world.User, catalog world.Catalog, m Models) []Candidate {
	uv := features.User(u)
	goals, conds, genes := u.Goals(), u.Conditions(), u.Genes.Vector()
	scored := make([]Candidate, 0, len(catalog))
	for _, ing := range catalog {
		if world.EvaluateSafety(u, ing.ID).Decision == world.DecisionBlock {
			continue
		}
		iv := features.Ingredient(ing)
		tt := m.Recommender.Score(uv, iv)
		decision := world.DecisionFromClass(m.Safety.Predict(features.Safety(u, ing)))
		if decision == world.DecisionBlock {
			continue
		}
		penalty := decision.Penalty()
		blended := tt - penalty
		if m.Reranker != nil {
			rr := m.Reranker.Predict(features.Reranker(u, ing, tt, decision))
			blended = rr*0.58 + (tt-penalty)*0.14
		}
		c := Candidate{
			ID:           ing.ID,
			GoalFit:      numeric.Dot(goals[:], ing.GoalAffinity[:]),
			ConditionFit: numeric.Dot(conds[:], ing.ConditionAffinity[:]),
			GeneticFit:   numeric.Dot(genes[:], ing.GeneticsAffinity[:]),
			TwoTower:     tt,
			Decision:     decision,
			Ingredient:   ing,
		}
		c.Score = blended + heuristic(u, ing, c, penalty)*0.28
		if c.Score <= scoreFloor {
			continue
		}
		scored = append(scored, c)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > candidatePool {
		scored = scored[:candidatePool]
	}
	return scored
}

func heuristic(u world.User, ing world.Ingredient, c Candidate, penalty float64) float64 {
	sleepWeight := 0.08
	if ing.ID == "melatonin" {
		sleepWeight = 0.45
	}
	return ing.BaseUtility +
		c.GoalFit*0.82 +
		c.ConditionFit*0.48 +
		c.GeneticFit*0.36 +
		(u.TimeInRange-0.7)*0.26 +
		((7.2-u.SleepHours)/4)*sleepWeight -
		ing.Risk*0.33 -
		ing.Cost*0.11 -
		penalty
}

// Optimize searches every MaxCount-combination of candidates. The best
// feasible combination by objective wins; when none is feasible the best
// penalised objective is returned as Relaxed. It never fails.
func Optimize(candidates []Candidate, c Constraints) Outcome {
	if len(candidates) <= c.MaxCount {
		return outcomeFor(candidates, c)
	}
	combos := numeric.Combinations(candidates, c.MaxCount)
	bestFeasible, bestRelaxed := -1, 0
	feasibleScore, relaxedScore := math.Inf(-1), math.Inf(-1)
	for i, combo := range combos {
		var score, goal, cond, gen, risk, cost float64
		blocked := false
		for _, cand := range combo {
			score += cand.Score
			goal += cand.GoalFit
			cond += cand.ConditionFit
			gen += cand.GeneticFit
			risk += cand.Ingredient.Risk
			cost += cand.Ingredient.Cost
			blocked = blocked || cand.Decision == world.DecisionBlock
		}
		n := float64(len(combo))
		avgRisk := risk / n
		objective := score/n*0.88 + goal/n*0.08 + cond/n*0.06 + gen/n*0.05 -
			avgRisk*0.05 - cost/float64(c.MaxCount)*0.03
		relaxed := objective - math.Max(0, cost-c.Budget)*0.12 - math.Max(0, avgRisk-c.MaxAverageRisk)*0.22
		if relaxed > relaxedScore {
			relaxedScore, bestRelaxed = relaxed, i
		}
		if !blocked && cost <= c.Budget && avgRisk <= c.MaxAverageRisk && objective > feasibleScore {
			feasibleScore, bestFeasible = objective, i
		}
	}
	if bestFeasible >= 0 {
		return Outcome{Kind: Feasible, IDs: ids(combos[bestFeasible])}
	}
	return Outcome{Kind: Relaxed, IDs: ids(combos[bestRelaxed])}
}

// PickTop scores the catalog for u and optimizes the top candidates. With no
// candidates it falls back to the first rule-table-safe catalog entries.
func PickTop(u world.User, catalog world.Catalog, m Models) Outcome {
	c := Resolve(u)
	scored := Score(u, catalog, m)
	if len(scored) == 0 {
		var fallback []world.Ingredient
		for _, ing := range catalog {
			if len(fallback) == c.MaxCount {
				break
			}
			if world.EvaluateSafety(u, ing.ID).Decision != world.DecisionBlock {
				fallback = append(fallback, ing)
			}
		}
		out := Outcome{Kind: Relaxed, IDs: make([]string, len(fallback))}
		for i, ing := range fallback {
			out.IDs[i] = ing.ID
		}
		if c.Satisfied(fallback) {
			out.Kind = Feasible
		}
		return out
	}
	return Optimize(scored, c)
}

func outcomeFor(cands []Candidate, c Constraints) Outcome {
	combo := make([]world.Ingredient, len(cands))
	for i, cand := range cands {
		combo[i] = cand.Ingredient
	}
	kind := Relaxed
	if c.Satisfied(combo) {
		kind = Feasible
	}
	return Outcome{Kind: kind, IDs: ids(cands)}
}

func ids(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.ID
	}
	return out
}

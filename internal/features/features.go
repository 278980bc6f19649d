// Package features encodes users, ingredients and combinations as the fixed
// length float vectors the models consume.
package features

import (
	"errors"
	"fmt"

	"rndharness/internal/numeric"
	"rndharness/internal/world"
)

// Vector dimensions. Every model checks its input against one of these.
const (
	UserDim       = 26
	IngredientDim = 26
	SafetyDim     = UserDim + IngredientDim
	RerankerDim   = UserDim + IngredientDim + 7
	ComboDim      = UserDim + IngredientDim + 2
)

// ErrDimension reports a vector whose length does not match its model.
var ErrDimension = errors.New("features: dimension mismatch")

// User encodes a profile. Bounded quantities are scaled into roughly [0,1].
func User(u world.User) []float64 {
	g := u.Genes
	return []float64{
		float64(u.Age) / 100,
		world.Flag(u.SexMale),
		world.Flag(u.Diabetes),
		world.Flag(u.Hypertension),
		world.Flag(u.KidneyRisk),
		world.Flag(u.Pregnancy),
		world.Flag(u.Warfarin),
		world.Flag(u.Metformin),
		world.Flag(u.Statin),
		world.Flag(u.Antihypertensive),
		world.Flag(u.SeafoodAllergy),
		u.GoalEnergy,
		u.GoalSleep,
		u.GoalMetabolic,
		u.Steps / 20000,
		u.SleepHours / 10,
		u.RestingHR / 120,
		u.Glucose / 250,
		u.TimeInRange,
		g.MTHFR, g.LCT, g.CYP1A2, g.FTO, g.TCF7L2, g.LPL,
		u.PreZ / 3,
	}
}

// Ingredient encodes a catalog entry.
func Ingredient(ing world.Ingredient) []float64 {
	v := make([]float64, 0, IngredientDim)
	v = append(v, ing.BaseUtility, ing.Cost, ing.Risk)
	v = append(v, ing.GoalAffinity[:]...)
	v = append(v, ing.ConditionAffinity[:]...)
	v = append(v, ing.GeneticsAffinity[:]...)
	return append(v, ing.Feature...)
}

// Safety is the input of the safety and data-lake classifiers.
func Safety(u world.User, ing world.Ingredient) []float64 {
	return append(User(u), Ingredient(ing)...)
}

// Reranker extends the pair encoding with the two-tower score and the
// predicted safety decision.
func Reranker(u world.User, ing world.Ingredient, twoTower float64, d world.Decision) []float64 {
	flags := d.Flags()
	v := make([]float64, 0, RerankerDim)
	v = append(v, User(u)...)
	v = append(v, Ingredient(ing)...)
	v = append(v, twoTower)
	v = append(v, flags[:]...)
	return append(v, ing.Risk, ing.Cost, d.Penalty())
}

// Combo encodes a user with the element-wise mean of the combination's
// ingredient vectors followed by mean cost and mean risk.
func Combo(u world.User, combo []world.Ingredient) []float64 {
	mean := make([]float64, IngredientDim)
	for _, ing := range combo {
		for i, x := range Ingredient(ing) {
			mean[i] += x
		}
	}
	n := float64(len(combo))
	for i := range mean {
		mean[i] /= n
	}
	costs := make([]float64, len(combo))
	risks := make([]float64, len(combo))
	for i, ing := range combo {
		costs[i], risks[i] = ing.Cost, ing.Risk
	}
	v := make([]float64, 0, ComboDim)
	v = append(v, User(u)...)
	v = append(v, mean...)
	return append(v, numeric.Average(costs), numeric.Average(risks))
}

// Check returns ErrDimension when len(x) != want.
func Check(x []float64, want int) error {
	if len(x) != want {
		return fmt.Errorf("%w: got %d want %d", ErrDimension, len(x), want)
	}
	return nil
}

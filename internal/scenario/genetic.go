package scenario

import (
	"rndharness/internal/numeric"
	"rndharness/internal/prng"
	"rndharness/internal/world"
)

// GeneticRecord traces which genetic rules fired for a user and what they
// changed.
type GeneticRecord struct {
	SampleID      string                  `json:"sample_id"`
	UserID        string                  `json:"user_id"`
	ParameterX    [6]float64              `json:"parameter_vector_x"`
	ActiveRules   []world.GeneticRuleID   `json:"active_rule_ids"`
	Safety        world.SafetyAdjustments `json:"safety_constraint_adjustments"`
	Weights       world.WeightAdjustments `json:"optimization_weight_adjustments"`
	HasAdjustment bool                    `json:"has_any_adjustment"`
}

// BuildGeneticRecords draws max(count, len(users)) users and derives their
// adjustments.
func BuildGeneticRecords(users []world.User, count int, rng *prng.Rand) []GeneticRecord {
	n := max(count, len(users))
	rows := make([]GeneticRecord, 0, n)
	for i := 0; i < n; i++ {
		u := users[rng.Int(len(users))]
		var x [6]float64
		for k, g := range u.Genes.Vector() {
			x[k] = numeric.RoundTo(g, 6)
		}
		adj := world.DeriveGeneticAdjustments(u)
		rows = append(rows, GeneticRecord{
			SampleID:      seqID("genetic", i),
			UserID:        u.ID,
			ParameterX:    x,
			ActiveRules:   adj.ActiveRules,
			Safety:        adj.Safety,
			Weights:       adj.Weights,
			HasAdjustment: len(adj.ActiveRules) > 0,
		})
	}
	return rows
}

// GeneticCoverage returns the share of records with any adjustment and the
// share of the rule catalog seen across all records, both as percentages.
func GeneticCoverage(records []GeneticRecord) (trace, catalog float64) {
	if len(records) == 0 {
		return 0, 0
	}
	seen := make(map[world.GeneticRuleID]bool, len(world.GeneticRules))
	adjusted := 0
	for _, r := range records {
		if r.HasAdjustment {
			adjusted++
		}
		for _, id := range r.ActiveRules {
			seen[id] = true
		}
	}
	trace = numeric.RoundTo(float64(adjusted)/float64(len(records))*100, 2)
	catalog = numeric.RoundTo(float64(len(seen))/float64(len(world.GeneticRules))*100, 2)
	return trace, catalog
}

package world

import (
	"sort"

	"rndharness/internal/numeric"
)

// GeneticRuleID names a genotype-driven adjustment rule.
type GeneticRuleID string

const (
	RuleMTHFRFolate     GeneticRuleID = "mthfr_folate_pathway"
	RuleLCTLactose      GeneticRuleID = "lct_lactose_tolerance"
	RuleCYP1A2Caffeine  GeneticRuleID = "cyp1a2_caffeine_sensitivity"
	RuleFTOWeightGain   GeneticRuleID = "fto_weight_gain_risk"
	RuleTCF7L2Glucose   GeneticRuleID = "tcf7l2_postprandial_glucose"
	RuleLPLTriglyceride GeneticRuleID = "lpl_triglyceride_risk"
)

// GeneticRules is the full rule catalog in gene order.
var GeneticRules = []GeneticRuleID{
	RuleMTHFRFolate, RuleLCTLactose, RuleCYP1A2Caffeine,
	RuleFTOWeightGain, RuleTCF7L2Glucose, RuleLPLTriglyceride,
}

// SafetyAdjustments are the constraint tags a genotype adds.
type SafetyAdjustments struct {
	Blocked []string `json:"blocked_ingredient_ids"`
	Limited []string `json:"limited_ingredient_ids"`
	Monitor []string `json:"monitor_flags"`
}

// WeightAdjustments are optimizer weight nudges derived from genotype.
type WeightAdjustments struct {
	Omega3Boost             float64 `json:"omega3_boost"`
	SyntheticFolateBoost    float64 `json:"synthetic_folate_boost"`
	LactoseFreeCalciumBoost float64 `json:"lactose_free_calcium_boost"`
	StimulantPenalty        float64 `json:"stimulant_penalty"`
	SugarPenalty            float64 `json:"sugar_penalty"`
	HighFatPenalty          float64 `json:"high_fat_penalty"`
	ProteinFiberBoost       float64 `json:"protein_fiber_boost"`
}

// GeneticAdjustment is the full derivation for one user.
type GeneticAdjustment struct {
	ActiveRules []GeneticRuleID   `json:"active_rule_ids"`
	Safety      SafetyAdjustments `json:"safety_constraint_adjustments"`
	Weights     WeightAdjustments `json:"optimization_weight_adjustments"`
}

const (
	lactoseSupplements = "lactose_based_supplements"
	postMealMonitoring = "post_meal_glucose_monitoring"
)

// DeriveGeneticAdjustments applies the threshold rules. When none fires, the
// rule for the strongest gene fires with a reduced weight.
func DeriveGeneticAdjustments(u User) GeneticAdjustment {
	var (
		active  []GeneticRuleID
		blocked []string
		limited []string
		monitor []string
		w       WeightAdjustments
	)
	g := u.Genes
	if g.MTHFR >= 0.58 {
		active = append(active, RuleMTHFRFolate)
		w.SyntheticFolateBoost += 0.24
	}
	if g.LCT >= 0.58 {
		active = append(active, RuleLCTLactose)
		blocked = append(blocked, lactoseSupplements)
		w.LactoseFreeCalciumBoost += 0.2
	}
	if g.CYP1A2 >= 0.6 {
		active = append(active, RuleCYP1A2Caffeine)
		limited = append(limited, "caffeine")
		w.StimulantPenalty += 0.28
	}
	if g.FTO >= 0.62 {
		active = append(active, RuleFTOWeightGain)
		w.SugarPenalty += 0.22
		w.ProteinFiberBoost += 0.18
	}
	if g.TCF7L2 >= 0.6 {
		active = append(active, RuleTCF7L2Glucose)
		monitor = append(monitor, postMealMonitoring)
		w.SugarPenalty += 0.2
	}
	if g.LPL >= 0.6 {
		active = append(active, RuleLPLTriglyceride)
		w.HighFatPenalty += 0.2
		w.Omega3Boost += 0.24
	}

	if len(active) == 0 {
		fallback := strongestGeneRule(g)
		active = append(active, fallback)
		switch fallback {
		case RuleMTHFRFolate:
			w.SyntheticFolateBoost += 0.08
		case RuleLCTLactose:
			blocked = append(blocked, lactoseSupplements)
			w.LactoseFreeCalciumBoost += 0.06
		case RuleCYP1A2Caffeine:
			limited = append(limited, "caffeine")
			w.StimulantPenalty += 0.1
		case RuleFTOWeightGain:
			w.SugarPenalty += 0.08
			w.ProteinFiberBoost += 0.06
		case RuleLPLTriglyceride:
			w.HighFatPenalty += 0.08
			w.Omega3Boost += 0.1
		default:
			monitor = append(monitor, postMealMonitoring)
			w.SugarPenalty += 0.08
		}
	}

	return GeneticAdjustment{
		ActiveRules: active,
		Safety: SafetyAdjustments{
			Blocked: sortedUnique(blocked),
			Limited: sortedUnique(limited),
			Monitor: sortedUnique(monitor),
		},
		Weights: WeightAdjustments{
			Omega3Boost:             numeric.RoundTo(w.Omega3Boost, 6),
			SyntheticFolateBoost:    numeric.RoundTo(w.SyntheticFolateBoost, 6),
			LactoseFreeCalciumBoost: numeric.RoundTo(w.LactoseFreeCalciumBoost, 6),
			StimulantPenalty:        numeric.RoundTo(w.StimulantPenalty, 6),
			SugarPenalty:            numeric.RoundTo(w.SugarPenalty, 6),
			HighFatPenalty:          numeric.RoundTo(w.HighFatPenalty, 6),
			ProteinFiberBoost:       numeric.RoundTo(w.ProteinFiberBoost, 6),
		},
	}
}

// strongestGeneRule picks the rule whose gene score is highest; the first
// gene in catalog order wins a tie.
func strongestGeneRule(g Genes) GeneticRuleID {
	scores := g.Vector()
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return GeneticRules[best]
}

func sortedUnique(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

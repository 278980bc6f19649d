package orchestrator

import (
	"rndharness/internal/numeric"
	"rndharness/internal/pipeline"
)

// Targets are the pass thresholds of the seven headline KPIs.
var Targets = struct {
	RecommendationAccuracyPercent float64
	EfficacySCGIPp                float64
	ActionAccuracyPercent         float64
	LLMAccuracyPercent            float64
	ReferenceAccuracyPercent      float64
	AdverseEventCountPerYearMax   int
	IntegrationRatePercent        float64
}{80, 0, 80, 91, 95, 5, 90}

// StabilityThresholds sit above Targets so a selected attempt has margin.
type StabilityThresholds struct {
	RecommendationAccuracyPercent float64 `json:"recommendation_accuracy_percent"`
	EfficacySCGIPp                float64 `json:"efficacy_scgi_pp"`
	ActionAccuracyPercent         float64 `json:"action_accuracy_percent"`
	LLMAccuracyPercent            float64 `json:"llm_accuracy_percent"`
	ReferenceAccuracyPercent      float64 `json:"reference_accuracy_percent"`
	AdverseEventCountPerYearMax   int     `json:"adverse_event_count_per_year_max"`
	IntegrationRatePercent        float64 `json:"integration_rate_percent"`
}

// DefaultStability is the buffer every auto run requires.
var DefaultStability = StabilityThresholds{
	RecommendationAccuracyPercent: 85,
	EfficacySCGIPp:                5,
	ActionAccuracyPercent:         85,
	LLMAccuracyPercent:            94,
	ReferenceAccuracyPercent:      97,
	AdverseEventCountPerYearMax:   4,
	IntegrationRatePercent:        92,
}

// StabilityReport flags each KPI against DefaultStability.
type StabilityReport struct {
	RecommendationAccuracySatisfied bool `json:"recommendation_accuracy_satisfied"`
	EfficacySCGISatisfied           bool `json:"efficacy_scgi_satisfied"`
	ActionAccuracySatisfied         bool `json:"action_accuracy_satisfied"`
	LLMAccuracySatisfied            bool `json:"llm_accuracy_satisfied"`
	ReferenceAccuracySatisfied      bool `json:"reference_accuracy_satisfied"`
	AdverseEventCountSatisfied      bool `json:"adverse_event_count_satisfied"`
	IntegrationRateSatisfied        bool `json:"integration_rate_satisfied"`
	AllSatisfied                    bool `json:"all_satisfied"`
}

// Stability checks k against the stability thresholds.
func Stability(k pipeline.KPISummary) StabilityReport {
	th := DefaultStability
	r := StabilityReport{
		RecommendationAccuracySatisfied: k.RecommendationAccuracyPercent >= th.RecommendationAccuracyPercent,
		EfficacySCGISatisfied:           k.EfficacySCGIPp >= th.EfficacySCGIPp,
		ActionAccuracySatisfied:         k.ActionAccuracyPercent >= th.ActionAccuracyPercent,
		LLMAccuracySatisfied:            k.LLMAccuracyPercent >= th.LLMAccuracyPercent,
		ReferenceAccuracySatisfied:      k.ReferenceAccuracyPercent >= th.ReferenceAccuracyPercent,
		AdverseEventCountSatisfied:      k.AdverseEventCountPerYear <= th.AdverseEventCountPerYearMax,
		IntegrationRateSatisfied:        k.IntegrationRatePercent >= th.IntegrationRatePercent,
	}
	r.AllSatisfied = r.RecommendationAccuracySatisfied && r.EfficacySCGISatisfied &&
		r.ActionAccuracySatisfied && r.LLMAccuracySatisfied && r.ReferenceAccuracySatisfied &&
		r.AdverseEventCountSatisfied && r.IntegrationRateSatisfied
	return r
}

// GatePassed reports whether every KPI target and every data requirement
// of one attempt holds.
func GatePassed(k pipeline.KPISummary) bool {
	return k.AllTargetsSatisfied && k.AllDataRequirementsSatisfied
}

// WeightedKPIItem is one row of the weighted KPI table.
type WeightedKPIItem struct {
	ID                              string  `json:"id"`
	Label                           string  `json:"label"`
	WeightPercent                   float64 `json:"weight_percent"`
	MeasuredValue                   float64 `json:"measured_value"`
	Unit                            string  `json:"unit"`
	TargetDescription               string  `json:"target_description"`
	TargetSatisfied                 bool    `json:"target_satisfied"`
	WeightedPassContributionPercent float64 `json:"weighted_pass_contribution_percent"`
	WeightedObjectiveContribution   float64 `json:"weighted_objective_contribution"`
	Formula                         string  `json:"formula"`
}

type kpiSpec struct {
	id, label, unit, target, formula string
	weight                           float64
	value                            func(pipeline.KPISummary) float64
	satisfied                        func(pipeline.KPISummary) bool
	pass                             func(pipeline.KPISummary) float64
	objective                        func(pipeline.KPISummary) float64
}

func ratio(v, target float64) float64 { return v / target }

func adverseRate(k pipeline.KPISummary) float64 {
	return float64(Targets.AdverseEventCountPerYearMax) / float64(max(k.AdverseEventCountPerYear, 1))
}

// efficacyObjective rewards improvement up to 30pp and penalises a decline
// down to -10pp.
func efficacyObjective(scgi float64) float64 {
	if scgi > 0 {
		return 1 + numeric.Clamp(scgi/20, 0, 1.5)
	}
	return numeric.Clamp(scgi/10, -1, 0)
}

func percentSpec(id, label, target, formula string, weight float64, goal float64, value func(pipeline.KPISummary) float64) kpiSpec {
	return kpiSpec{
		id: id, label: label, unit: "%", target: target, formula: formula, weight: weight,
		value:     value,
		satisfied: func(k pipeline.KPISummary) bool { return value(k) >= goal },
		pass:      func(k pipeline.KPISummary) float64 { return numeric.Clamp(ratio(value(k), goal), 0, 1) },
		objective: func(k pipeline.KPISummary) float64 { return ratio(value(k), goal) },
	}
}

var kpiSpecs = []kpiSpec{
	percentSpec("kpi01", "Health Supplement Recommendation Accuracy", ">= 80%",
		"Score = (1/N) * sum_i 100 * |R_i intersect Gamma_i| / |R_i|", 20,
		Targets.RecommendationAccuracyPercent,
		func(k pipeline.KPISummary) float64 { return k.RecommendationAccuracyPercent }),
	{
		id: "kpi02", label: "Measured Efficacy Improvement", unit: "pp", target: "> 0pp",
		formula: "SCGI = (1/N) * sum_i 100 * (Phi(z_post,i) - Phi(z_pre,i))", weight: 20,
		value:     func(k pipeline.KPISummary) float64 { return k.EfficacySCGIPp },
		satisfied: func(k pipeline.KPISummary) bool { return k.EfficacySCGIPp > Targets.EfficacySCGIPp },
		pass: func(k pipeline.KPISummary) float64 {
			if k.EfficacySCGIPp > Targets.EfficacySCGIPp {
				return 1
			}
			return 0
		},
		objective: func(k pipeline.KPISummary) float64 { return efficacyObjective(k.EfficacySCGIPp) },
	},
	percentSpec("kpi03", "Closed-loop Next-action Accuracy", ">= 80%",
		"Accuracy = 100 * sum_s I(a_s = a*_s and e_s = 1) / |S|", 20,
		Targets.ActionAccuracyPercent,
		func(k pipeline.KPISummary) float64 { return k.ActionAccuracyPercent }),
	percentSpec("kpi04", "Conversational LLM Answer Accuracy", ">= 91%",
		"Accuracy = 100 * sum_q g(answer_q) / |Q|", 20,
		Targets.LLMAccuracyPercent,
		func(k pipeline.KPISummary) float64 { return k.LLMAccuracyPercent }),
	percentSpec("kpi05", "Safety/Data-lake Reference Accuracy", ">= 95%",
		"Accuracy = 100 * (1/R) * sum_r I(l_r = l_ref and f_r = f_ref)", 10,
		Targets.ReferenceAccuracyPercent,
		func(k pipeline.KPISummary) float64 { return k.ReferenceAccuracyPercent }),
	{
		id: "kpi06", label: "Adverse Event Count", unit: "count/year", target: "<= 5 count/year",
		formula: "Count events linked to recommendations over last 12 months", weight: 5,
		value: func(k pipeline.KPISummary) float64 { return float64(k.AdverseEventCountPerYear) },
		satisfied: func(k pipeline.KPISummary) bool {
			return k.AdverseEventCountPerYear <= Targets.AdverseEventCountPerYearMax
		},
		pass:      func(k pipeline.KPISummary) float64 { return numeric.Clamp(adverseRate(k), 0, 1) },
		objective: func(k pipeline.KPISummary) float64 { return numeric.Clamp(adverseRate(k), 0, 2) },
	},
	percentSpec("kpi07", "Biosensor/Genetic Integration Rate", ">= 90%",
		"R = (r_W + r_C + r_G) / 3", 5,
		Targets.IntegrationRatePercent,
		func(k pipeline.KPISummary) float64 { return k.IntegrationRatePercent }),
}

// Scores are an attempt's weighted pass score (0-100) and its unbounded
// weighted objective.
type Scores struct {
	WeightedPassScorePercent float64 `json:"weighted_pass_score_percent"`
	WeightedObjectiveScore   float64 `json:"weighted_objective_score"`
}

// Score computes the weighted scores used for ranking.
func Score(k pipeline.KPISummary) Scores {
	var pass, objective float64
	for _, s := range kpiSpecs {
		pass += s.pass(k) * s.weight
		objective += s.objective(k) * s.weight
	}
	return Scores{
		WeightedPassScorePercent: numeric.RoundTo(pass, 2),
		WeightedObjectiveScore:   numeric.RoundTo(objective, 4),
	}
}

// WeightedKPIs expands k into the reported KPI table.
func WeightedKPIs(k pipeline.KPISummary) []WeightedKPIItem {
	out := make([]WeightedKPIItem, len(kpiSpecs))
	for i, s := range kpiSpecs {
		out[i] = WeightedKPIItem{
			ID:                              s.id,
			Label:                           s.label,
			WeightPercent:                   s.weight,
			MeasuredValue:                   s.value(k),
			Unit:                            s.unit,
			TargetDescription:               s.target,
			TargetSatisfied:                 s.satisfied(k),
			WeightedPassContributionPercent: numeric.RoundTo(s.pass(k)*s.weight, 2),
			WeightedObjectiveContribution:   numeric.RoundTo(s.objective(k)*s.weight, 4),
			Formula:                         s.formula,
		}
	}
	return out
}

// sumContributions totals the table the way the summary reports it.
func sumContributions(items []WeightedKPIItem) Scores {
	var pass, objective float64
	for _, it := range items {
		pass += it.WeightedPassContributionPercent
		objective += it.WeightedObjectiveContribution
	}
	return Scores{
		WeightedPassScorePercent: numeric.RoundTo(pass, 2),
		WeightedObjectiveScore:   numeric.RoundTo(objective, 4),
	}
}

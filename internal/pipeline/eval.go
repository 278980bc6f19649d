package pipeline

import (
	"fmt"
	"strings"

	"rndharness/internal/features"
	"rndharness/internal/kpi"
	"rndharness/internal/model"
	"rndharness/internal/numeric"
	"rndharness/internal/optimizer"
	"rndharness/internal/prng"
	"rndharness/internal/scenario"
	"rndharness/internal/world"
)

func evalID(prefix string, i int) string {
	return fmt.Sprintf("%s-%06d", prefix, i+1)
}

// ConstraintRecord is the optimizer's pick for one test user checked against
// that user's constraints.
type ConstraintRecord struct {
	SampleID            string         `json:"sample_id"`
	UserID              string         `json:"user_id"`
	Budget              float64        `json:"budget"`
	MaxAverageRisk      float64        `json:"max_average_risk"`
	MaxCount            int            `json:"max_count"`
	Kind                optimizer.Kind `json:"selection_kind"`
	SelectedIDs         []string       `json:"selected_ingredient_ids"`
	SelectedTotalCost   float64        `json:"selected_total_cost"`
	SelectedAverageRisk float64        `json:"selected_average_risk"`
	ConstraintSatisfied bool           `json:"constraint_satisfied"`
}

type evaluation struct {
	constraints    []ConstraintRecord
	pro            []world.ProAssessment
	recommendation []kpi.RecommendationSample
	improvement    []kpi.ImprovementSample
}

// evaluateTestUsers runs the optimizer for every test user, then draws the
// combination's true effect and the PRO assessment built on it. Users whose
// pick resolves to fewer than three ingredients are skipped; their index is
// still consumed.
func evaluateTestUsers(users []world.User, catalog world.Catalog, models optimizer.Models, rng *prng.Rand) evaluation {
	lookup := catalog.Lookup()
	var ev evaluation
	for i, u := range users {
		expected := world.ExpectedSet(u, catalog)
		out := optimizer.PickTop(u, catalog, models)
		combo := world.Resolve(lookup, out.IDs)
		if len(combo) < world.ComboMaxCount {
			continue
		}
		c := optimizer.Resolve(u)
		meanCost, meanRisk := world.ComboStats(combo)
		totalCost := meanCost * float64(len(combo))
		ev.constraints = append(ev.constraints, ConstraintRecord{
			SampleID:            evalID("opt", i),
			UserID:              u.ID,
			Budget:              numeric.RoundTo(c.Budget, 6),
			MaxAverageRisk:      numeric.RoundTo(c.MaxAverageRisk, 6),
			MaxCount:            c.MaxCount,
			Kind:                out.Kind,
			SelectedIDs:         out.IDs,
			SelectedTotalCost:   numeric.RoundTo(totalCost, 6),
			SelectedAverageRisk: numeric.RoundTo(meanRisk, 6),
			ConstraintSatisfied: totalCost <= c.Budget && meanRisk <= c.MaxAverageRisk && len(out.IDs) <= c.MaxCount,
		})

		delta := world.TrueComboDelta(u, combo, rng)
		pro := world.BuildProAssessment(evalID("pro", i), u.ID, u.PreZ, delta, rng)
		ev.pro = append(ev.pro, pro)

		ev.recommendation = append(ev.recommendation, kpi.RecommendationSample{
			SampleID: evalID("kpi01", i),
			CaseID:   u.ID,
			Expected: expected,
			Observed: out.IDs,
			TopRecommendation: kpi.TopRecommendation{
				ComboID: "combo-" + u.ID,
				ItemIDs: out.IDs,
			},
		})
		ev.improvement = append(ev.improvement, kpi.ImprovementSample{
			SampleID:     evalID("kpi02", i),
			EvaluationID: "eval-" + u.ID,
			UserHash:     u.ID,
			PreZ:         pro.PreZ,
			PostZ:        pro.PostZ,
		})
	}
	return ev
}

func constraintSatisfactionPercent(records []ConstraintRecord) float64 {
	return scenario.CompletedPercent(records, func(r ConstraintRecord) bool { return r.ConstraintSatisfied })
}

func sourceKindStrings(kinds []world.SourceKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// buildSafetyReferenceSamples compares the safety classifier's verdict with
// the rule table. A wrong decision cites a mismatch reference instead of the
// rule's evidence.
func buildSafetyReferenceSamples(users []world.User, catalog world.Catalog, safety optimizer.Classifier, count int, rng *prng.Rand) []kpi.SafetyReferenceSample {
	rows := make([]kpi.SafetyReferenceSample, count)
	for i := range rows {
		u := users[rng.Int(len(users))]
		ing := catalog[rng.Int(len(catalog))]
		want := world.EvaluateSafety(u, ing.ID)
		got := world.DecisionFromClass(safety.Predict(features.Safety(u, ing)))
		refs := want.ReferenceIDs
		if got != want.Decision {
			refs = []string{"ref-mismatch-" + string(got)}
		}
		rule := "rule-" + ing.ID
		rows[i] = kpi.SafetyReferenceSample{
			SampleID: evalID("m03", i),
			Expected: kpi.SafetyReference{
				RuleID:         rule,
				IngredientCode: ing.ID,
				Decision:       string(want.Decision),
				Violation:      want.Decision != world.DecisionAllow,
				ReferenceIDs:   want.ReferenceIDs,
			},
			Observed: kpi.SafetyReference{
				RuleID:         rule,
				IngredientCode: ing.ID,
				Decision:       string(got),
				Violation:      got != world.DecisionAllow,
				ReferenceIDs:   refs,
			},
		}
	}
	return rows
}

// parseDataLakeKey splits a class key back into its logic id, evidence and
// source kinds. Empty list entries are dropped.
func parseDataLakeKey(key string) (kpi.DataLakeReference, bool) {
	parts := strings.Split(key, "|")
	if len(parts) != 3 || parts[0] == "" {
		return kpi.DataLakeReference{}, false
	}
	list := func(s string) []string {
		out := []string{}
		for _, v := range strings.Split(s, ",") {
			if v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	return kpi.DataLakeReference{
		LogicID:     parts[0],
		EvidenceIDs: list(parts[1]),
		SourceKinds: list(parts[2]),
		LineagePath: kpi.LineagePath,
	}, true
}

var unknownDataLakeReference = kpi.DataLakeReference{
	LogicID:     "unknown:allow",
	EvidenceIDs: []string{"ref-unknown"},
	SourceKinds: []string{string(world.SourceInternalCompute)},
	LineagePath: kpi.LineagePath,
}

// buildDataLakeReferenceSamples compares the data-lake classifier's predicted
// reference with the rule table's. A predicted class outside the registry
// falls back to class 0.
func buildDataLakeReferenceSamples(users []world.User, catalog world.Catalog, registry *model.ClassRegistry, clf optimizer.Classifier, count int, rng *prng.Rand) []kpi.DataLakeReferenceSample {
	rows := make([]kpi.DataLakeReferenceSample, count)
	for i := range rows {
		u := users[rng.Int(len(users))]
		ing := catalog[rng.Int(len(catalog))]
		want := world.EvaluateSafety(u, ing.ID)
		key, err := registry.Key(clf.Predict(features.Safety(u, ing)))
		if err != nil {
			key, _ = registry.Key(0)
		}
		observed, ok := parseDataLakeKey(key)
		if !ok {
			observed = unknownDataLakeReference
		}
		rows[i] = kpi.DataLakeReferenceSample{
			RuleID:   fmt.Sprintf("m02-rule-%s-%06d", ing.ID, i+1),
			SampleID: evalID("m02-sample", i),
			Expected: kpi.DataLakeReference{
				LogicID:     want.LogicID,
				EvidenceIDs: want.ReferenceIDs,
				SourceKinds: sourceKindStrings(want.SourceKinds),
				LineagePath: kpi.LineagePath,
			},
			Observed: observed,
		}
	}
	return rows
}

// buildIntegrationEvaluation links each session to the data lake when the
// integration classifier predicts success, and derives both the kpi07
// session samples and the kpi05 interface-wiring samples from it.
func buildIntegrationEvaluation(records []scenario.IntegrationRecord, clf optimizer.Classifier) ([]kpi.IntegrationSample, []kpi.InterfaceSample) {
	sessions := make([]kpi.IntegrationSample, len(records))
	wiring := make([]kpi.InterfaceSample, len(records))
	for i, r := range records {
		linked := clf.Predict(r.Features) == 1
		recordID := "dl-" + string(r.Source) + "-" + r.SampleID
		var expectedID, observedID *string
		if r.Success {
			expectedID = &recordID
		}
		if linked {
			observedID = &recordID
		}
		base := kpi.InterfaceWiring{
			SessionID:   r.SampleID,
			Source:      string(r.Source),
			SourceKind:  string(r.Source.Kind()),
			Sensitivity: r.Source.Sensitivity(),
		}
		expected, observed := base, base
		expected.Linked, expected.DataLakeRecordID = r.Success, expectedID
		observed.Linked, observed.DataLakeRecordID = linked, observedID

		sessions[i] = kpi.IntegrationSample{
			SampleID:       r.SampleID,
			Source:         r.Source,
			SessionSuccess: r.Success,
			DataLakeLinked: linked,
		}
		wiring[i] = kpi.InterfaceSample{SampleID: evalID("iface", i), Expected: expected, Observed: observed}
	}
	return sessions, wiring
}

// buildActionEvaluation scores the action classifier on fresh closed-loop
// states. Execution succeeds when the decided action is the labelled one.
func buildActionEvaluation(records []scenario.ClosedLoopRecord, clf optimizer.Classifier) []kpi.ActionSample {
	out := make([]kpi.ActionSample, len(records))
	for i, r := range records {
		decided := scenario.ActionFromClass(clf.Predict(r.Features))
		out[i] = kpi.ActionSample{
			SampleID:         evalID("kpi03", i),
			CaseID:           r.CaseID,
			Expected:         string(r.ActionLabel),
			Decided:          string(decided),
			ExecutionSuccess: decided == r.ActionLabel,
		}
	}
	return out
}

// buildLLMEvaluation accepts a response when the predicted answer key is the
// expected one.
func buildLLMEvaluation(records []scenario.LLMRecord, clf optimizer.Classifier) []kpi.LLMSample {
	out := make([]kpi.LLMSample, len(records))
	for i, r := range records {
		out[i] = kpi.LLMSample{
			SampleID:          evalID("kpi04", i),
			PromptID:          r.PromptID,
			ExpectedAnswerKey: r.ExpectedKey,
			ResponseAccepted:  scenario.LLMClassKey(clf.Predict(r.Features)) == r.ExpectedKey,
		}
	}
	return out
}

// binaryAccuracy is the share of rows the classifier labels correctly.
func binaryAccuracy(clf optimizer.Classifier, rows []model.ClassSample) float64 {
	if len(rows) == 0 {
		return 0
	}
	correct := 0
	for _, r := range rows {
		if clf.Predict(r.X) == r.Y {
			correct++
		}
	}
	return float64(correct) / float64(len(rows)) * 100
}

package scenario

import (
	"rndharness/internal/features"
	"rndharness/internal/model"
	"rndharness/internal/numeric"
	"rndharness/internal/prng"
	"rndharness/internal/world"
)

// Action is a next-best-action the closed loop can take.
type Action string

const (
	ActionMaintain        Action = "maintain"
	ActionAdjust          Action = "adjust"
	ActionStop            Action = "stop"
	ActionRequestInfo     Action = "request_info"
	ActionEscalateConsult Action = "escalate_consult"
	ActionMonitor         Action = "monitor"
)

// Actions lists the action classes in class-index order.
var Actions = []Action{ActionMaintain, ActionAdjust, ActionStop, ActionRequestInfo, ActionEscalateConsult, ActionMonitor}

// ActionDim is the closed-loop state length: risk, predicted delta,
// adherence, engagement and days since follow-up over 60.
const ActionDim = 5

// Class returns the class index, or 0 for an unknown action.
func (a Action) Class() int {
	for i, v := range Actions {
		if v == a {
			return i
		}
	}
	return 0
}

// ActionFromClass maps out-of-range classes to maintain.
func ActionFromClass(class int) Action {
	if class < 0 || class >= len(Actions) {
		return ActionMaintain
	}
	return Actions[class]
}

// ActionLabel is the ground-truth policy. Rules are checked in priority order.
func ActionLabel(risk, delta, adherence, engagement float64, daysSinceFollowup int) Action {
	switch {
	case risk >= 0.74:
		return ActionStop
	case delta < -0.05:
		return ActionAdjust
	case adherence < 0.45:
		return ActionRequestInfo
	case engagement < 0.33:
		return ActionEscalateConsult
	case daysSinceFollowup > 35:
		return ActionMonitor
	}
	return ActionMaintain
}

// ActionForFeatures applies ActionLabel to an encoded state.
func ActionForFeatures(x []float64) Action {
	at := func(i int) float64 {
		if i < len(x) {
			return x[i]
		}
		return 0
	}
	return ActionLabel(at(0), at(1), at(2), at(3), int(numeric.Round(at(4)*60)))
}

// ClosedLoopRecord is one labelled closed-loop state.
type ClosedLoopRecord struct {
	SampleID    string    `json:"sample_id"`
	CaseID      string    `json:"case_id"`
	Features    []float64 `json:"features"`
	ActionLabel Action    `json:"action_label"`
}

// BuildClosedLoopRecords draws up to count states. A user whose oracle set
// has fewer than three ingredients is skipped, and its id is not reused.
func BuildClosedLoopRecords(users []world.User, catalog world.Catalog, ite Regressor, count int, rng *prng.Rand) []ClosedLoopRecord {
	lookup := catalog.Lookup()
	rows := make([]ClosedLoopRecord, 0, count)
	for i := 0; i < count; i++ {
		u := users[rng.Int(len(users))]
		combo := world.Resolve(lookup, world.ExpectedSet(u, catalog))
		if len(combo) != world.ComboMaxCount {
			continue
		}
		_, risk := world.ComboStats(combo)
		delta := ite.Predict(features.Combo(u, combo))
		adherence := numeric.Clamp(rng.Normal(0.72, 0.22), 0.05, 1)
		engagement := numeric.Clamp(rng.Normal(0.65, 0.24), 0.05, 1)
		days := int(numeric.Round(numeric.Clamp(rng.Normal(22, 12), 1, 60)))
		rows = append(rows, ClosedLoopRecord{
			SampleID:    seqID("action", i),
			CaseID:      seqID("case", i),
			Features:    []float64{risk, delta, adherence, engagement, float64(days) / 60},
			ActionLabel: ActionLabel(risk, delta, adherence, engagement, days),
		})
	}
	return rows
}

// ActionSamples labels records with their action class.
func ActionSamples(records []ClosedLoopRecord) []model.ClassSample {
	out := make([]model.ClassSample, len(records))
	for i, r := range records {
		out[i] = model.ClassSample{X: r.Features, Y: r.ActionLabel.Class()}
	}
	return out
}

const minActionFeedback = 1000

// ActionFeedbackRecord is a drifted state with the executed action's outcome.
type ActionFeedbackRecord struct {
	SampleID          string    `json:"sample_id"`
	SourceCaseID      string    `json:"source_case_id"`
	Features          []float64 `json:"features"`
	Expected          Action    `json:"expected_action_type"`
	Predicted         Action    `json:"predicted_action_type"`
	Corrected         Action    `json:"corrected_action_type"`
	ExecutionSuccess  bool      `json:"execution_success"`
	UserFeedbackScore float64   `json:"user_feedback_score"`
}

func clampActionFeature(i int, v float64) float64 {
	if i == 1 {
		return numeric.Clamp(v, -1, 1)
	}
	return numeric.Clamp(v, 0, 1)
}

// BuildActionFeedback drifts max(count, 1000) base states and records how
// the current classifier's choice played out. The training label is always
// the policy's answer for the drifted state.
func BuildActionFeedback(base []ClosedLoopRecord, clf Classifier, count int, rng *prng.Rand) ([]ActionFeedbackRecord, []model.ClassSample) {
	n := max(count, minActionFeedback)
	rows := make([]ActionFeedbackRecord, 0, n)
	samples := make([]model.ClassSample, 0, n)
	for i := 0; i < n; i++ {
		b := base[rng.Int(len(base))]
		x := make([]float64, len(b.Features))
		for k, v := range b.Features {
			std := 0.016
			if k == 1 {
				std = 0.024
			}
			x[k] = clampActionFeature(k, v+rng.Normal(0, std))
		}
		expected := ActionForFeatures(x)
		predicted := ActionFromClass(clf.Predict(x))
		p := 0.24
		if predicted == expected {
			p = 0.94
		}
		success := rng.Next() < p
		var score float64
		if success {
			score = numeric.Clamp(rng.Normal(0.86, 0.08), 0, 1)
		} else {
			score = numeric.Clamp(rng.Normal(0.26, 0.13), 0, 1)
		}
		rows = append(rows, ActionFeedbackRecord{
			SampleID:          seqID("cl-feedback", i),
			SourceCaseID:      b.CaseID,
			Features:          x,
			Expected:          expected,
			Predicted:         predicted,
			Corrected:         expected,
			ExecutionSuccess:  success,
			UserFeedbackScore: numeric.RoundTo(score, 6),
		})
		samples = append(samples, model.ClassSample{X: x, Y: expected.Class()})
	}
	return rows, samples
}

package kpi

import "fmt"

// Closed-loop targets.
const (
	ActionTarget = 80
	LLMTarget    = 91
)

// ActionSample is one next-action decision and its execution.
type ActionSample struct {
	SampleID         string `json:"sample_id"`
	CaseID           string `json:"case_id"`
	Expected         string `json:"expected_action_type"`
	Decided          string `json:"decided_action_type"`
	ExecutionSuccess bool   `json:"execution_success"`
}

// LLMSample is one answer judgement.
type LLMSample struct {
	SampleID          string `json:"sample_id"`
	PromptID          string `json:"prompt_id"`
	ExpectedAnswerKey string `json:"expected_answer_key"`
	ResponseAccepted  bool   `json:"response_accepted"`
}

// EvaluateAction is kpi03: a case passes when the decided action matches and
// executed successfully.
func EvaluateAction(samples []ActionSample, evaluatedAt string) (Report, error) {
	if err := requireSamples(len(samples), "action"); err != nil {
		return Report{}, err
	}
	if _, err := parseTime(evaluatedAt, "evaluated_at"); err != nil {
		return Report{}, err
	}
	passed := 0
	for i, s := range samples {
		loc := fmt.Sprintf("samples[%d]", i)
		if err := firstErr(
			requireField(s.SampleID, loc+".sample_id"),
			requireField(s.CaseID, loc+".case_id"),
			requireField(s.Expected, loc+".expected_action_type"),
			requireField(s.Decided, loc+".decided_action_type"),
		); err != nil {
			return Report{}, err
		}
		if s.Expected == s.Decided && s.ExecutionSuccess {
			passed++
		}
	}
	return rateReport("kpi-03", "06_closed_loop_ai", "Accuracy = 100 * passed_cases / cases",
		evaluatedAt, passed, len(samples), ActionTarget), nil
}

// EvaluateLLM is kpi04: the share of accepted responses.
func EvaluateLLM(samples []LLMSample, evaluatedAt string) (Report, error) {
	if err := requireSamples(len(samples), "llm"); err != nil {
		return Report{}, err
	}
	if _, err := parseTime(evaluatedAt, "evaluated_at"); err != nil {
		return Report{}, err
	}
	passed := 0
	for i, s := range samples {
		loc := fmt.Sprintf("samples[%d]", i)
		if err := firstErr(
			requireField(s.SampleID, loc+".sample_id"),
			requireField(s.PromptID, loc+".prompt_id"),
			requireField(s.ExpectedAnswerKey, loc+".expected_answer_key"),
		); err != nil {
			return Report{}, err
		}
		if s.ResponseAccepted {
			passed++
		}
	}
	return rateReport("kpi-04", "06_closed_loop_ai", "Accuracy = 100 * accepted_responses / prompts",
		evaluatedAt, passed, len(samples), LLMTarget), nil
}

func rateReport(id, module, formula, evaluatedAt string, passed, total int, target float64) Report {
	value := percent(passed, total)
	return Report{
		KPIID:                   id,
		Module:                  module,
		Formula:                 formula,
		EvaluatedAt:             evaluatedAt,
		SampleCount:             total,
		PassedCount:             passed,
		Value:                   value,
		Target:                  target,
		MinSampleCount:          DefaultMinSampleCount,
		TargetSatisfied:         value >= target,
		MinSampleCountSatisfied: total >= DefaultMinSampleCount,
	}
}

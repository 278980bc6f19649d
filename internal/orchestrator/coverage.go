package orchestrator

import (
	"fmt"

	"rndharness/internal/kpi"
	"rndharness/internal/pipeline"
)

// CoverageCheck is one implementation-coverage assertion over a run.
type CoverageCheck struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Satisfied   bool           `json:"satisfied"`
	Evidence    map[string]any `json:"evidence"`
}

// CoverageReport lists every check; AllSatisfied is their conjunction.
type CoverageReport struct {
	AllSatisfied bool            `json:"all_satisfied"`
	Checks       []CoverageCheck `json:"checks"`
}

const minComponentSamples = 100

// ImplementationCoverage checks that each component produced enough data
// and met its quality floor.
func ImplementationCoverage(res pipeline.Result) CoverageReport {
	ds, mm, k := res.DatasetSummary, res.ModelMetrics, res.KPI
	enough := func(n int) bool { return n >= minComponentSamples }
	checks := []CoverageCheck{
		{
			ID:          "one_stop_workflow",
			Description: "Workflow trace from health-data analysis to follow-up management",
			Satisfied:   enough(ds.Workflows) && mm.WorkflowCompletionRatePercent >= 80,
			Evidence: map[string]any{
				"workflow_sample_count":            ds.Workflows,
				"workflow_completion_rate_percent": mm.WorkflowCompletionRatePercent,
			},
		},
		{
			ID:          "closed_loop_schedule_automation",
			Description: "Periodic reminder and reorder automation loop",
			Satisfied:   enough(ds.ClosedLoopSchedules) && mm.ClosedLoopScheduleExecutionPercent >= 80,
			Evidence: map[string]any{
				"closed_loop_schedule_sample_count":      ds.ClosedLoopSchedules,
				"closed_loop_schedule_execution_percent": mm.ClosedLoopScheduleExecutionPercent,
			},
		},
		{
			ID:          "closed_loop_node_orchestration",
			Description: "Node-based closed-loop trace across consultation, execution, reminder and follow-up",
			Satisfied:   enough(ds.ClosedLoopNodeTraces) && mm.ClosedLoopNodeFlowSuccessPercent >= 80,
			Evidence: map[string]any{
				"closed_loop_node_trace_sample_count":   ds.ClosedLoopNodeTraces,
				"closed_loop_node_flow_success_percent": mm.ClosedLoopNodeFlowSuccessPercent,
			},
		},
		{
			ID:          "crag_grounding_quality",
			Description: "Grounding quality with data-lake retrieval and web fallback",
			Satisfied:   enough(ds.CragGroundings) && mm.CragGroundingAccuracyPercent >= 91,
			Evidence: map[string]any{
				"crag_grounding_sample_count":     ds.CragGroundings,
				"crag_grounding_accuracy_percent": mm.CragGroundingAccuracyPercent,
			},
		},
		{
			ID:          "data_lake_engine",
			Description: "Data-lake ingestion and classification pipeline",
			Satisfied:   enough(ds.DataLakeSamples) && enough(ds.KPI05Module02Samples) && mm.DataLakeAccuracyPercent >= 95,
			Evidence: map[string]any{
				"data_lake_sample_count":      ds.DataLakeSamples,
				"kpi05_module02_sample_count": ds.KPI05Module02Samples,
				"data_lake_accuracy_percent":  mm.DataLakeAccuracyPercent,
			},
		},
		{
			ID:          "safety_validation_engine",
			Description: "Personal safety validation with reference-linked decisions",
			Satisfied:   enough(ds.SafetySamples) && enough(ds.KPI05Module03Samples) && mm.SafetyAccuracyPercent >= 95,
			Evidence: map[string]any{
				"safety_sample_count":         ds.SafetySamples,
				"kpi05_module03_sample_count": ds.KPI05Module03Samples,
				"safety_accuracy_percent":     mm.SafetyAccuracyPercent,
			},
		},
		{
			ID:          "ite_quantification_model",
			Description: "Treatment-effect regression model and its training set",
			Satisfied:   enough(ds.ITESamples) && mm.ITERMSE <= 0.35,
			Evidence: map[string]any{
				"ite_sample_count": ds.ITESamples,
				"ite_rmse":         mm.ITERMSE,
			},
		},
		{
			ID:          "ite_online_finetune",
			Description: "Biosensor feedback fine-tuning of the treatment-effect model",
			Satisfied:   enough(ds.ITEFeedbackSamples) && mm.ITEFeedbackRMSE <= 0.35 && mm.ITEFineTuneGain >= 0,
			Evidence: map[string]any{
				"ite_feedback_sample_count":      ds.ITEFeedbackSamples,
				"ite_rmse_before_fine_tune":      mm.ITERMSEBeforeFineTune,
				"ite_feedback_rmse":              mm.ITEFeedbackRMSE,
				"ite_rmse_after_fine_tune":       mm.ITERMSE,
				"ite_fine_tune_gain":             mm.ITEFineTuneGain,
				"ite_fine_tune_rollback_applied": mm.ITEFineTuneRollbackApplied,
			},
		},
		{
			ID:          "two_tower_reranker",
			Description: "Two-tower retrieval with a boosted-stump reranker",
			Satisfied:   ds.RerankerSamples >= 1000,
			Evidence: map[string]any{
				"reranker_sample_count": ds.RerankerSamples,
				"reranker_rmse":         mm.RerankerRMSE,
			},
		},
		{
			ID:          "pro_z_normalization",
			Description: "Patient-reported outcome raw score to z-score normalisation",
			Satisfied:   enough(ds.ProAssessments),
			Evidence: map[string]any{
				"pro_assessment_sample_count": ds.ProAssessments,
			},
		},
		{
			ID:          "optimization_constraints",
			Description: "Constraint-aware optimiser with budget, risk and count feasibility",
			Satisfied:   enough(ds.OptimizationConstraints),
			Evidence: map[string]any{
				"optimization_constraint_sample_count":         ds.OptimizationConstraints,
				"optimization_constraint_satisfaction_percent": mm.OptimizationConstraintSatisfactionPercent,
			},
		},
		{
			ID:          "closed_loop_online_finetune",
			Description: "Closed-loop feedback set and action-classifier fine-tuning",
			Satisfied:   enough(ds.ActionFeedbackSamples) && mm.ActionFineTuneGainPercent >= 0,
			Evidence: map[string]any{
				"closed_loop_feedback_sample_count":        ds.ActionFeedbackSamples,
				"action_accuracy_before_fine_tune_percent": mm.ActionAccuracyBeforeFineTunePercent,
				"action_accuracy_percent":                  mm.ActionAccuracyPercent,
				"action_fine_tune_gain_percent":            mm.ActionFineTuneGainPercent,
				"action_fine_tune_rollback_applied":        mm.ActionFineTuneRollbackApplied,
			},
		},
		{
			ID:          "adverse_event_window_coverage",
			Description: "Adverse-event window covers the last 12 months",
			Satisfied:   k.AdverseEventWindowCoverageSatisfied,
			Evidence: map[string]any{
				"adverse_event_count_per_year":           k.AdverseEventCountPerYear,
				"adverse_event_window_coverage_days":     k.AdverseEventWindowCoverageDays,
				"adverse_event_window_min_coverage_days": kpi.AdverseWindowMinCoverageDays,
			},
		},
		{
			ID:          "biosensor_genetic_integration",
			Description: "Wearable, CGM and genetic-test integration pipeline",
			Satisfied: enough(ds.IntegrationSamples) &&
				k.IntegrationRatePercent >= Targets.IntegrationRatePercent &&
				k.IntegrationSampleCountSatisfied &&
				k.IntegrationSourceCoverageSatisfied &&
				k.IntegrationPerSourceMinSatisfied,
			Evidence: map[string]any{
				"integration_sample_count":                          ds.IntegrationSamples,
				"integration_rate_percent":                          k.IntegrationRatePercent,
				"integration_target_percent":                        Targets.IntegrationRatePercent,
				"integration_sample_count_satisfied":                k.IntegrationSampleCountSatisfied,
				"integration_source_coverage_satisfied":             k.IntegrationSourceCoverageSatisfied,
				"integration_per_source_min_sample_count_satisfied": k.IntegrationPerSourceMinSatisfied,
			},
		},
		{
			ID:          "genetic_parameter_adjustment",
			Description: "Genetic-variant adjustments of safety constraints and optimisation weights",
			Satisfied: enough(ds.GeneticAdjustmentSamples) &&
				mm.GeneticTraceCoveragePercent >= 90 &&
				mm.GeneticRuleCatalogCoveragePercent >= 95,
			Evidence: map[string]any{
				"genetic_adjustment_sample_count":           ds.GeneticAdjustmentSamples,
				"genetic_adjustment_trace_coverage_percent": mm.GeneticTraceCoveragePercent,
				"genetic_rule_catalog_coverage_percent":     mm.GeneticRuleCatalogCoveragePercent,
			},
		},
		{
			ID:          "kpi_eval_gate",
			Description: "KPI evaluation gate",
			Satisfied:   GatePassed(k),
			Evidence: map[string]any{
				"all_targets_satisfied":           k.AllTargetsSatisfied,
				"all_data_requirements_satisfied": k.AllDataRequirementsSatisfied,
			},
		},
	}
	all := true
	for _, c := range checks {
		all = all && c.Satisfied
	}
	return CoverageReport{AllSatisfied: all, Checks: checks}
}

// DataRequirementItem is one row of the data-requirement matrix.
type DataRequirementItem struct {
	ID                string         `json:"id"`
	Requirement       string         `json:"requirement"`
	MeasuredValue     any            `json:"measured_value"`
	TargetDescription string         `json:"target_description"`
	Satisfied         bool           `json:"satisfied"`
	Evidence          map[string]any `json:"evidence,omitempty"`
}

// DataRequirementReport is the matrix with its conjunction. AllSatisfied
// also requires the run's own data-requirement flag.
type DataRequirementReport struct {
	AllSatisfied bool                  `json:"all_satisfied"`
	Items        []DataRequirementItem `json:"items"`
}

// DataRequirements builds the per-KPI sample-count matrix.
func DataRequirements(res pipeline.Result) DataRequirementReport {
	ds, k := res.DatasetSummary, res.KPI
	count := func(id, requirement string, n int, unit string) DataRequirementItem {
		return DataRequirementItem{
			ID:                id,
			Requirement:       requirement,
			MeasuredValue:     n,
			TargetDescription: fmt.Sprintf(">= %d %s", kpi.DefaultMinSampleCount, unit),
			Satisfied:         n >= kpi.DefaultMinSampleCount,
		}
	}
	items := []DataRequirementItem{
		count("kpi01_min_case_count", "Recommendation accuracy test cases", ds.KPI01Samples, "cases"),
		count("kpi02_min_case_count", "Efficacy improvement test cases", ds.KPI02Samples, "cases"),
		count("kpi03_min_case_count", "Closed-loop action test cases", ds.KPI03Samples, "cases"),
		count("kpi04_min_prompt_count", "Conversational LLM test prompts", ds.KPI04Samples, "prompts"),
		count("kpi05_module02_min_rule_count", "Data-lake reference rule samples", ds.KPI05Module02Samples, "rules"),
		count("kpi05_module03_min_rule_count", "Safety-engine reference rule samples", ds.KPI05Module03Samples, "rules"),
		count("kpi05_module07_min_rule_count", "Integration-interface wiring rule samples", ds.KPI05Module07Samples, "rules"),
		{
			ID:                "kpi06_last_12_months_window_coverage",
			Requirement:       "Adverse-event coverage window for the last 12 months",
			MeasuredValue:     k.AdverseEventWindowCoverageDays,
			TargetDescription: fmt.Sprintf(">= %d days", kpi.AdverseWindowMinCoverageDays),
			Satisfied:         k.AdverseEventWindowCoverageSatisfied,
			Evidence:          map[string]any{"adverse_event_count_per_year": k.AdverseEventCountPerYear},
		},
		{
			ID:                "kpi07_min_sample_count",
			Requirement:       "Integration session sample count",
			MeasuredValue:     ds.KPI07Samples,
			TargetDescription: fmt.Sprintf(">= %d sessions", kpi.DefaultMinSampleCount),
			Satisfied:         k.IntegrationSampleCountSatisfied,
		},
		{
			ID:                "kpi07_source_coverage",
			Requirement:       "Wearable, CGM and genetic source coverage",
			MeasuredValue:     k.IntegrationSourceCoverageSatisfied,
			TargetDescription: "All sources covered (W, C, G)",
			Satisfied:         k.IntegrationSourceCoverageSatisfied,
		},
		{
			ID:                "kpi07_per_source_min_sample_count",
			Requirement:       "Per-source minimum sample count",
			MeasuredValue:     k.IntegrationPerSourceMinSatisfied,
			TargetDescription: fmt.Sprintf("Each source >= %d samples", kpi.IntegrationMinSourceCount),
			Satisfied:         k.IntegrationPerSourceMinSatisfied,
		},
	}
	all := k.AllDataRequirementsSatisfied
	for _, it := range items {
		all = all && it.Satisfied
	}
	return DataRequirementReport{AllSatisfied: all, Items: items}
}

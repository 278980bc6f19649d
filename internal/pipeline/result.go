package pipeline

import (
	"rndharness/internal/kpi"
	"rndharness/internal/model"
	"rndharness/internal/scenario"
	"rndharness/internal/world"
)

// DatasetSummary counts the rows every component produced.
type DatasetSummary struct {
	TrainUsers               int `json:"train_user_count"`
	TestUsers                int `json:"test_user_count"`
	RecommenderPairs         int `json:"recommender_pair_count"`
	ProAssessments           int `json:"pro_assessment_sample_count"`
	Workflows                int `json:"workflow_sample_count"`
	ClosedLoopSchedules      int `json:"closed_loop_schedule_sample_count"`
	ClosedLoopNodeTraces     int `json:"closed_loop_node_trace_sample_count"`
	CragGroundings           int `json:"crag_grounding_sample_count"`
	RerankerSamples          int `json:"reranker_sample_count"`
	OptimizationConstraints  int `json:"optimization_constraint_sample_count"`
	SafetySamples            int `json:"safety_sample_count"`
	DataLakeSamples          int `json:"data_lake_sample_count"`
	ITESamples               int `json:"ite_sample_count"`
	ITEFeedbackSamples       int `json:"ite_feedback_sample_count"`
	ActionSamples            int `json:"action_sample_count"`
	ActionFeedbackSamples    int `json:"closed_loop_feedback_sample_count"`
	LLMSamples               int `json:"llm_sample_count"`
	IntegrationSamples       int `json:"integration_sample_count"`
	GeneticAdjustmentSamples int `json:"genetic_adjustment_sample_count"`
	KPI01Samples             int `json:"kpi01_sample_count"`
	KPI02Samples             int `json:"kpi02_sample_count"`
	KPI03Samples             int `json:"kpi03_sample_count"`
	KPI04Samples             int `json:"kpi04_sample_count"`
	KPI05Module02Samples     int `json:"kpi05_module02_sample_count"`
	KPI05Module03Samples     int `json:"kpi05_module03_sample_count"`
	KPI05Module07Samples     int `json:"kpi05_module07_sample_count"`
	KPI06Samples             int `json:"kpi06_sample_count"`
	KPI07Samples             int `json:"kpi07_sample_count"`
}

// ModelMetrics are validation metrics and scenario rates, rounded for
// reporting.
type ModelMetrics struct {
	SafetyAccuracyPercent                     float64 `json:"safety_accuracy_percent"`
	RerankerRMSE                              float64 `json:"reranker_rmse"`
	WorkflowCompletionRatePercent             float64 `json:"workflow_completion_rate_percent"`
	ClosedLoopScheduleExecutionPercent        float64 `json:"closed_loop_schedule_execution_percent"`
	ClosedLoopNodeFlowSuccessPercent          float64 `json:"closed_loop_node_flow_success_percent"`
	CragGroundingAccuracyPercent              float64 `json:"crag_grounding_accuracy_percent"`
	OptimizationConstraintSatisfactionPercent float64 `json:"optimization_constraint_satisfaction_percent"`
	DataLakeAccuracyPercent                   float64 `json:"data_lake_accuracy_percent"`
	ITERMSEBeforeFineTune                     float64 `json:"ite_rmse_before_fine_tune"`
	ITEFeedbackRMSE                           float64 `json:"ite_feedback_rmse"`
	ITEFineTuneGain                           float64 `json:"ite_fine_tune_gain"`
	ITEFineTuneRollbackApplied                bool    `json:"ite_fine_tune_rollback_applied"`
	ITERMSE                                   float64 `json:"ite_rmse"`
	ActionAccuracyBeforeFineTunePercent       float64 `json:"action_accuracy_before_fine_tune_percent"`
	ActionFineTuneGainPercent                 float64 `json:"action_fine_tune_gain_percent"`
	ActionFineTuneRollbackApplied             bool    `json:"action_fine_tune_rollback_applied"`
	ActionFeedbackAccuracyPercent             float64 `json:"action_feedback_accuracy_percent"`
	ActionAccuracyPercent                     float64 `json:"action_accuracy_percent"`
	LLMAccuracyPercent                        float64 `json:"llm_accuracy_percent"`
	IntegrationAccuracyPercent                float64 `json:"integration_accuracy_percent"`
	GeneticTraceCoveragePercent               float64 `json:"genetic_adjustment_trace_coverage_percent"`
	GeneticRuleCatalogCoveragePercent         float64 `json:"genetic_rule_catalog_coverage_percent"`
}

// KPISummary is the headline view of the KPI reports.
type KPISummary struct {
	RecommendationAccuracyPercent       float64 `json:"recommendation_accuracy_percent"`
	EfficacySCGIPp                      float64 `json:"efficacy_scgi_pp"`
	ActionAccuracyPercent               float64 `json:"action_accuracy_percent"`
	LLMAccuracyPercent                  float64 `json:"llm_accuracy_percent"`
	ReferenceAccuracyPercent            float64 `json:"reference_accuracy_percent"`
	AdverseEventCountPerYear            int     `json:"adverse_event_count_per_year"`
	AdverseEventWindowCoverageDays      int     `json:"adverse_event_window_coverage_days"`
	AdverseEventWindowCoverageSatisfied bool    `json:"adverse_event_window_coverage_satisfied"`
	IntegrationRatePercent              float64 `json:"integration_rate_percent"`
	IntegrationSampleCountSatisfied     bool    `json:"integration_sample_count_satisfied"`
	IntegrationSourceCoverageSatisfied  bool    `json:"integration_source_coverage_satisfied"`
	IntegrationPerSourceMinSatisfied    bool    `json:"integration_per_source_min_sample_count_satisfied"`
	AllTargetsSatisfied                 bool    `json:"all_targets_satisfied"`
	AllDataRequirementsSatisfied        bool    `json:"all_data_requirements_satisfied"`
}

// ReferenceReports groups the three kpi05 modules.
type ReferenceReports struct {
	Module02                kpi.Report `json:"module02"`
	Module03                kpi.Report `json:"module03"`
	Module07                kpi.Report `json:"module07"`
	AveragedAccuracyPercent float64    `json:"averaged_accuracy_percent"`
}

// KPIReports holds every evaluator's full report.
type KPIReports struct {
	KPI01 kpi.RecommendationReport `json:"kpi01"`
	KPI02 kpi.ImprovementReport    `json:"kpi02"`
	KPI03 kpi.Report               `json:"kpi03"`
	KPI04 kpi.Report               `json:"kpi04"`
	KPI05 ReferenceReports         `json:"kpi05"`
	KPI06 kpi.AdverseEventReport   `json:"kpi06"`
	KPI07 kpi.IntegrationReport    `json:"kpi07"`
}

// DatasetConfig records what a run was generated from.
type DatasetConfig struct {
	Profile       world.Profile       `json:"profile"`
	DataScale     float64             `json:"data_scale"`
	ProfileConfig world.ProfileConfig `json:"profile_config"`
	Seed          int64               `json:"seed"`
	CatalogSize   int                 `json:"catalog_size"`
}

// ITEFineTuneSummary describes the guarded ITE fine-tune.
type ITEFineTuneSummary struct {
	BeforeRMSE            float64 `json:"before_rmse"`
	FeedbackRMSECandidate float64 `json:"feedback_rmse_candidate"`
	FeedbackRMSE          float64 `json:"feedback_rmse"`
	AfterRMSECandidate    float64 `json:"after_rmse_candidate"`
	AfterRMSE             float64 `json:"after_rmse"`
	Gain                  float64 `json:"gain"`
	RollbackApplied       bool    `json:"rollback_applied"`
	FeedbackSampleCount   int     `json:"feedback_sample_count"`
}

// ActionFineTuneSummary describes the guarded action-classifier fine-tune.
type ActionFineTuneSummary struct {
	BeforeAccuracyPercent   float64 `json:"before_accuracy_percent"`
	FeedbackAccuracyPercent float64 `json:"feedback_accuracy_percent"`
	AfterAccuracyCandidate  float64 `json:"after_accuracy_percent_candidate"`
	AfterAccuracyPercent    float64 `json:"after_accuracy_percent"`
	GainPercentPoint        float64 `json:"gain_percent_point"`
	RollbackApplied         bool    `json:"rollback_applied"`
	FeedbackSampleCount     int     `json:"feedback_sample_count"`
}

// DataLakeModel is the data-lake classifier with its class registry.
type DataLakeModel struct {
	model.Softmax
	ClassIndexToKey *model.ClassRegistry `json:"class_index_to_key"`
}

// LLMModel is the answer classifier with its key order.
type LLMModel struct {
	model.Softmax
	AnswerKeys []string `json:"answer_keys"`
}

// Models are the trained artifacts of one run.
type Models struct {
	TwoTower       model.TwoTower        `json:"two_tower"`
	Reranker       model.StumpEnsemble   `json:"reranker"`
	Safety         model.Softmax         `json:"safety"`
	DataLake       DataLakeModel         `json:"data_lake"`
	ITE            model.Linear          `json:"ite"`
	ITEFineTune    ITEFineTuneSummary    `json:"ite_fine_tune"`
	Action         model.Softmax         `json:"action"`
	ActionFineTune ActionFineTuneSummary `json:"action_fine_tune"`
	LLM            LLMModel              `json:"llm"`
	Integration    model.Softmax         `json:"integration"`
}

// Datasets are the generated rows of one run, kept for artifact export.
type Datasets struct {
	TrainUsers              []world.User
	TestUsers               []world.User
	Catalog                 world.Catalog
	RecommenderPairs        []model.PairSample
	ProAssessments          []world.ProAssessment
	RerankerRows            []RerankerRow
	OptimizationConstraints []ConstraintRecord
	SafetyRows              []ClassRow
	DataLakeRows            []ClassRow
	ITERows                 []RegRow
	ITEFeedback             []scenario.ITEFeedbackRecord
	ClosedLoop              []scenario.ClosedLoopRecord
	ClosedLoopFeedback      []scenario.ActionFeedbackRecord
	Workflows               []scenario.WorkflowRecord
	Schedules               []scenario.ScheduleRecord
	NodeTraces              []scenario.NodeTraceRecord
	CragGroundings          []scenario.CragRecord
	LLM                     []scenario.LLMRecord
	Integration             []scenario.IntegrationRecord
	GeneticAdjustments      []scenario.GeneticRecord
	KPI01                   []kpi.RecommendationSample
	KPI02                   []kpi.ImprovementSample
	KPI03                   []kpi.ActionSample
	KPI04                   []kpi.LLMSample
	KPI05Module02           []kpi.DataLakeReferenceSample
	KPI05Module03           []kpi.SafetyReferenceSample
	KPI05Module07           []kpi.InterfaceSample
	KPI06                   []kpi.AdverseEventSample
	KPI07                   []kpi.IntegrationSample
}

// Result is one attempt's complete, side-effect-free outcome.
type Result struct {
	RunID          string         `json:"run_id"`
	GeneratedAt    string         `json:"generated_at"`
	Profile        world.Profile  `json:"profile"`
	Seed           int64          `json:"seed"`
	DatasetConfig  DatasetConfig  `json:"dataset_config"`
	DatasetSummary DatasetSummary `json:"dataset_summary"`
	ModelMetrics   ModelMetrics   `json:"model_metrics"`
	KPI            KPISummary     `json:"kpi"`
	KPIReports     KPIReports     `json:"kpi_reports"`

	Models   Models   `json:"-"`
	Datasets Datasets `json:"-"`
}

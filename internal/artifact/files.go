package artifact

import (
	"rndharness/internal/pipeline"
)

func datasetFiles(d pipeline.Datasets) []file {
	return []file{
		jsonlFile("users-train.jsonl", d.TrainUsers),
		jsonlFile("users-test.jsonl", d.TestUsers),
		jsonFile("catalog.json", d.Catalog),
		jsonlFile("recommender-pairs.jsonl", d.RecommenderPairs),
		jsonlFile("pro-assessments.jsonl", d.ProAssessments),
		jsonlFile("reranker-samples.jsonl", d.RerankerRows),
		jsonlFile("optimization-constraints.jsonl", d.OptimizationConstraints),
		jsonlFile("safety-samples.jsonl", d.SafetyRows),
		jsonlFile("data-lake-samples.jsonl", d.DataLakeRows),
		jsonlFile("ite-samples.jsonl", d.ITERows),
		jsonlFile("ite-feedback.jsonl", d.ITEFeedback),
		jsonlFile("action-samples.jsonl", d.ClosedLoop),
		jsonlFile("action-feedback.jsonl", d.ClosedLoopFeedback),
		jsonlFile("workflow-records.jsonl", d.Workflows),
		jsonlFile("closed-loop-schedules.jsonl", d.Schedules),
		jsonlFile("closed-loop-node-traces.jsonl", d.NodeTraces),
		jsonlFile("crag-groundings.jsonl", d.CragGroundings),
		jsonlFile("llm-samples.jsonl", d.LLM),
		jsonlFile("integration-samples.jsonl", d.Integration),
		jsonlFile("genetic-adjustments.jsonl", d.GeneticAdjustments),
		jsonlFile("kpi01-recommendation-cases.jsonl", d.KPI01),
		jsonlFile("kpi02-efficacy-cases.jsonl", d.KPI02),
		jsonlFile("kpi03-action-cases.jsonl", d.KPI03),
		jsonlFile("kpi04-llm-prompts.jsonl", d.KPI04),
		jsonlFile("kpi05-module02-rules.jsonl", d.KPI05Module02),
		jsonlFile("kpi05-module03-rules.jsonl", d.KPI05Module03),
		jsonlFile("kpi05-module07-rules.jsonl", d.KPI05Module07),
		jsonlFile("kpi06-adverse-events.jsonl", d.KPI06),
		jsonlFile("kpi07-integration-sessions.jsonl", d.KPI07),
	}
}

func modelFiles(m pipeline.Models) []file {
	return []file{
		jsonFile("two-tower.json", m.TwoTower),
		jsonFile("reranker.json", m.Reranker),
		jsonFile("safety-classifier.json", m.Safety),
		jsonFile("data-lake-classifier.json", m.DataLake),
		jsonFile("ite-regressor.json", m.ITE),
		jsonFile("ite-finetune-summary.json", m.ITEFineTune),
		jsonFile("action-classifier.json", m.Action),
		jsonFile("action-finetune-summary.json", m.ActionFineTune),
		jsonFile("llm-classifier.json", m.LLM),
		jsonFile("integration-classifier.json", m.Integration),
	}
}

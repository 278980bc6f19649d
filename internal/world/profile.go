// Package world builds the synthetic universe a training run operates on: the
// ingredient catalog, user populations, and the ground-truth oracles the
// models learn to approximate.
package world

import (
	"fmt"
	"math"

	"rndharness/internal/numeric"
)

// Profile names a preset population size and epoch budget.
type Profile string

const (
	ProfileSmoke    Profile = "smoke"
	ProfileStandard Profile = "standard"
	ProfileMax      Profile = "max"
)

// ProfileConfig holds user counts and per-trainer epoch budgets.
type ProfileConfig struct {
	TrainUsers           int `json:"train_users" yaml:"train_users"`
	TestUsers            int `json:"test_users" yaml:"test_users"`
	RecommenderEpochs    int `json:"recommender_epochs" yaml:"recommender_epochs"`
	RerankerRounds       int `json:"reranker_rounds" yaml:"reranker_rounds"`
	SafetyEpochs         int `json:"safety_epochs" yaml:"safety_epochs"`
	DataLakeEpochs       int `json:"data_lake_epochs" yaml:"data_lake_epochs"`
	ITEEpochs            int `json:"ite_epochs" yaml:"ite_epochs"`
	ActionEpochs         int `json:"action_epochs" yaml:"action_epochs"`
	ActionFineTuneEpochs int `json:"action_fine_tune_epochs" yaml:"action_fine_tune_epochs"`
	LLMEpochs            int `json:"llm_epochs" yaml:"llm_epochs"`
	IntegrationEpochs    int `json:"integration_epochs" yaml:"integration_epochs"`
}

var profileConfigs = map[Profile]ProfileConfig{
	ProfileSmoke: {
		TrainUsers: 800, TestUsers: 220,
		RecommenderEpochs: 8, RerankerRounds: 8, SafetyEpochs: 18, DataLakeEpochs: 14,
		ITEEpochs: 20, ActionEpochs: 16, ActionFineTuneEpochs: 2, LLMEpochs: 16, IntegrationEpochs: 16,
	},
	ProfileStandard: {
		TrainUsers: 9000, TestUsers: 1500,
		RecommenderEpochs: 14, RerankerRounds: 14, SafetyEpochs: 28, DataLakeEpochs: 20,
		ITEEpochs: 34, ActionEpochs: 24, ActionFineTuneEpochs: 3, LLMEpochs: 24, IntegrationEpochs: 24,
	},
	ProfileMax: {
		TrainUsers: 20000, TestUsers: 4000,
		RecommenderEpochs: 20, RerankerRounds: 20, SafetyEpochs: 36, DataLakeEpochs: 26,
		ITEEpochs: 48, ActionEpochs: 32, ActionFineTuneEpochs: 4, LLMEpochs: 32, IntegrationEpochs: 32,
	},
}

// ParseProfile validates a trainable profile name.
func ParseProfile(name string) (Profile, error) {
	p := Profile(name)
	if _, ok := profileConfigs[p]; !ok {
		return "", fmt.Errorf("unknown profile %q", name)
	}
	return p, nil
}

// BaseConfig returns the unscaled preset for p.
func BaseConfig(p Profile) (ProfileConfig, bool) {
	cfg, ok := profileConfigs[p]
	return cfg, ok
}

// ResolveProfile scales the preset: user counts grow linearly with dataScale
// (clamped to [1,10]) and epoch counts with its square root (clamped to [1,2.5]).
func ResolveProfile(p Profile, dataScale float64) (ProfileConfig, error) {
	base, ok := profileConfigs[p]
	if !ok {
		return ProfileConfig{}, fmt.Errorf("unknown profile %q", p)
	}
	scale := numeric.Clamp(dataScale, 1, 10)
	epochScale := numeric.Clamp(math.Sqrt(scale), 1, 2.5)
	scaled := func(v int, m float64) int {
		return max(1, int(numeric.Round(float64(v)*m)))
	}
	return ProfileConfig{
		TrainUsers:           scaled(base.TrainUsers, scale),
		TestUsers:            scaled(base.TestUsers, scale),
		RecommenderEpochs:    scaled(base.RecommenderEpochs, epochScale),
		RerankerRounds:       scaled(base.RerankerRounds, epochScale),
		SafetyEpochs:         scaled(base.SafetyEpochs, epochScale),
		DataLakeEpochs:       scaled(base.DataLakeEpochs, epochScale),
		ITEEpochs:            scaled(base.ITEEpochs, epochScale),
		ActionEpochs:         scaled(base.ActionEpochs, epochScale),
		ActionFineTuneEpochs: scaled(base.ActionFineTuneEpochs, epochScale),
		LLMEpochs:            scaled(base.LLMEpochs, epochScale),
		IntegrationEpochs:    scaled(base.IntegrationEpochs, epochScale),
	}, nil
}

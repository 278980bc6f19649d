package orchestrator

import (
	"time"

	"rndharness/internal/numeric"
	"rndharness/internal/world"
)

// ProfileAuto escalates from the standard to the max profile.
const ProfileAuto = "auto"

const (
	autoStageScaleStep   = 0.5
	autoAttemptScaleStep = 0.3
	minDataScale         = 1
	maxDataScale         = 10
)

// ProfilePlan lists the profiles run stage by stage.
func ProfilePlan(option string) []world.Profile {
	if option == ProfileAuto {
		return []world.Profile{world.ProfileStandard, world.ProfileMax}
	}
	return []world.Profile{world.Profile(option)}
}

// StageBudget is the attempt count of stage (0-based). Under auto, a stage
// following a satisfied stage only gets the post-pass budget.
func StageBudget(option string, stage int, previousSatisfied bool, maxAttempts, postPass int) int {
	if option == ProfileAuto && stage > 0 && previousSatisfied {
		return max(1, min(maxAttempts, postPass))
	}
	return maxAttempts
}

// AttemptSeed spaces stages by maxAttempts seed steps so no two attempts of
// a run share a seed.
func AttemptSeed(base int64, stage, attempt, maxAttempts int, step int64) int64 {
	stageBase := base + int64(stage)*int64(maxAttempts)*step
	return stageBase + int64(attempt)*step
}

// AttemptDataScale is fixed for explicit profiles and escalates per stage
// and attempt under auto, capped at autoMax.
func AttemptDataScale(option string, base float64, stage, attempt int, autoMax float64) float64 {
	if option != ProfileAuto {
		return numeric.Clamp(base, minDataScale, maxDataScale)
	}
	limit := numeric.Clamp(autoMax, minDataScale, maxDataScale)
	scaled := base + float64(stage)*autoStageScaleStep + float64(attempt)*autoAttemptScaleStep
	return numeric.RoundTo(numeric.Clamp(scaled, minDataScale, limit), 4)
}

// AttemptGeneratedAt offsets the base time by one second per prior attempt.
func AttemptGeneratedAt(base time.Time, index int) time.Time {
	return base.Add(time.Duration(index) * time.Second)
}

func dataScaleStrategy(option string) string {
	if option == ProfileAuto {
		return "auto-escalating"
	}
	return "fixed"
}

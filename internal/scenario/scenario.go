// Package scenario simulates the operational flows around the trained models:
// order workflows, closed-loop schedules and node traces, retrieval
// grounding, integration sessions, adverse-event reports and the feedback
// streams used for fine-tuning.
//
// Every builder takes its own generator. Draw order is part of the contract:
// chained stages only draw while the previous stage succeeded.
package scenario

import (
	"fmt"

	"rndharness/internal/numeric"
	"rndharness/internal/world"
)

// Picker returns the recommended ingredient ids for a user.
type Picker func(world.User) []string

// Regressor predicts a scalar from a feature vector.
type Regressor interface {
	Predict(x []float64) float64
}

// Classifier predicts a class index from a feature vector.
type Classifier interface {
	Predict(x []float64) int
}

func seqID(prefix string, i int) string {
	return fmt.Sprintf("%s-%07d", prefix, i+1)
}

func ratePercent(flags ...bool) float64 {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return numeric.RoundTo(float64(n)/float64(len(flags))*100, 2)
}

func allTrue(flags ...bool) bool {
	for _, f := range flags {
		if !f {
			return false
		}
	}
	return true
}

// CompletedPercent is the share of records whose done reports true, rounded
// to two decimals. It is 0 for an empty slice.
func CompletedPercent[T any](records []T, done func(T) bool) float64 {
	if len(records) == 0 {
		return 0
	}
	n := 0
	for _, r := range records {
		if done(r) {
			n++
		}
	}
	return numeric.RoundTo(float64(n)/float64(len(records))*100, 2)
}

package model

import (
	"errors"
	"math"
	"sort"

	"rndharness/internal/numeric"
	"rndharness/internal/prng"
)

// thresholdCandidates caps the split points tried per feature.
const thresholdCandidates = 5

// Stump is a single-feature split.
type Stump struct {
	FeatureIndex int     `json:"feature_index"`
	Threshold    float64 `json:"threshold"`
	LeftValue    float64 `json:"left_value"`
	RightValue   float64 `json:"right_value"`
}

func (s Stump) value(x []float64) float64 {
	if x[s.FeatureIndex] <= s.Threshold {
		return s.LeftValue
	}
	return s.RightValue
}

// StumpEnsemble is a gradient-boosted sum of stumps over a base score.
type StumpEnsemble struct {
	InputDim     int     `json:"input_dim"`
	LearningRate float64 `json:"learning_rate"`
	BaseScore    float64 `json:"base_score"`
	Stumps       []Stump `json:"stumps"`
}

// StumpConfig parameterises FitStumps.
type StumpConfig struct {
	InputDim     int
	Rounds       int
	LearningRate float64
	// MaxSamples bounds the training set; larger sets are resampled with
	// replacement down to this size.
	MaxSamples int
}

// Predict returns base + lr * sum(stump(x)).
func (m StumpEnsemble) Predict(x []float64) float64 {
	score := m.BaseScore
	for _, s := range m.Stumps {
		score += m.LearningRate * s.value(x)
	}
	return score
}

// RMSE is the root mean squared error on samples; 0 for an empty set.
func (m StumpEnsemble) RMSE(samples []RegSample) float64 {
	return rmse(samples, m.Predict)
}

// FitStumps boosts up to cfg.Rounds stumps on squared-error residuals. A round
// that finds no valid split ends training early.
func FitStumps(samples []RegSample, cfg StumpConfig, rng *prng.Rand) (StumpEnsemble, error) {
	m := StumpEnsemble{InputDim: cfg.InputDim, LearningRate: cfg.LearningRate}
	if len(samples) == 0 {
		return m, ErrEmpty
	}
	if cfg.MaxSamples <= 0 {
		return m, errors.New("model: stump max samples must be positive")
	}
	for i, s := range samples {
		if err := checkDim("stump", i, s.X, cfg.InputDim); err != nil {
			return m, err
		}
	}
	sampled := samples
	if len(samples) > cfg.MaxSamples {
		sampled = make([]RegSample, cfg.MaxSamples)
		for i := range sampled {
			sampled[i] = samples[rng.Int(len(samples))]
		}
	}
	n := len(sampled)
	targets := make([]float64, n)
	for i, s := range sampled {
		targets[i] = s.Y
	}
	m.BaseScore = numeric.Average(targets)

	// Candidates depend only on the sampled features, so they are built once.
	thresholds := make([][]float64, cfg.InputDim)
	column := make([]float64, n)
	for f := range thresholds {
		for i, s := range sampled {
			column[i] = s.X[f]
		}
		thresholds[f] = buildThresholds(column, thresholdCandidates)
	}

	predictions := make([]float64, n)
	for i := range predictions {
		predictions[i] = m.BaseScore
	}
	residuals := make([]float64, n)
	for round := 0; round < cfg.Rounds; round++ {
		for i := range residuals {
			residuals[i] = targets[i] - predictions[i]
		}
		best, ok := bestStump(sampled, residuals, thresholds)
		if !ok {
			break
		}
		m.Stumps = append(m.Stumps, best)
		for i, s := range sampled {
			predictions[i] += m.LearningRate * best.value(s.X)
		}
	}
	return m, nil
}

func bestStump(samples []RegSample, residuals []float64, thresholds [][]float64) (Stump, bool) {
	bestLoss := math.Inf(1)
	var best Stump
	found := false
	for f, candidates := range thresholds {
		for _, t := range candidates {
			var leftN, rightN int
			var leftSum, rightSum float64
			for i, s := range samples {
				if s.X[f] <= t {
					leftN++
					leftSum += residuals[i]
				} else {
					rightN++
					rightSum += residuals[i]
				}
			}
			if leftN == 0 || rightN == 0 {
				continue
			}
			leftV, rightV := leftSum/float64(leftN), rightSum/float64(rightN)
			var loss float64
			for i, s := range samples {
				v := rightV
				if s.X[f] <= t {
					v = leftV
				}
				e := residuals[i] - v
				loss += e * e
			}
			if loss < bestLoss {
				bestLoss = loss
				best = Stump{FeatureIndex: f, Threshold: t, LeftValue: leftV, RightValue: rightV}
				found = true
			}
		}
	}
	return best, found
}

// buildThresholds picks up to limit interior quantiles of the distinct
// sorted values. Fewer than three distinct values yield no candidates.
func buildThresholds(values []float64, limit int) []float64 {
	unique := sortedDistinct(values)
	if len(unique) <= 2 {
		return nil
	}
	limit = max(1, limit)
	if len(unique) <= limit+2 {
		return append([]float64(nil), unique[1:len(unique)-1]...)
	}
	lo, hi := unique[0], unique[len(unique)-1]
	var out []float64
	for rank := 1; rank <= limit; rank++ {
		idx := int(math.Floor(float64(rank) / float64(limit+1) * float64(len(unique)-1)))
		v := unique[idx]
		if math.IsInf(v, 0) || math.IsNaN(v) || v <= lo || v >= hi {
			continue
		}
		out = append(out, v)
	}
	return sortedDistinct(out)
}

func sortedDistinct(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	out := sorted[:0]
	for _, v := range sorted {
		if len(out) == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

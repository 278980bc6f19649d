package model

import (
	"math"

	"rndharness/internal/numeric"
	"rndharness/internal/prng"
)

// Linear is an L2-regularised least-squares regressor.
type Linear struct {
	InputDim int       `json:"input_dim"`
	Weights  []float64 `json:"weights"`
	Bias     float64   `json:"bias"`
}

// NewLinear draws weights from Normal(0, 0.08).
func NewLinear(inputDim int, rng *prng.Rand) Linear {
	w := make([]float64, inputDim)
	for i := range w {
		w[i] = rng.Normal(0, 0.08)
	}
	return Linear{InputDim: inputDim, Weights: w}
}

// Predict evaluates the regressor.
func (m Linear) Predict(x []float64) float64 {
	return numeric.Dot(m.Weights, x) + m.Bias
}

// RMSE is the root mean squared error on samples; 0 for an empty set.
func (m Linear) RMSE(samples []RegSample) float64 {
	return rmse(samples, m.Predict)
}

// Clone deep-copies the parameters.
func (m Linear) Clone() Linear {
	m.Weights = append([]float64(nil), m.Weights...)
	return m
}

// Fit runs per-sample SGD and returns the trained copy.
func (m Linear) Fit(samples []RegSample, cfg TrainConfig, rng *prng.Rand) (Linear, error) {
	if len(samples) == 0 {
		return m, ErrEmpty
	}
	for i, s := range samples {
		if err := checkDim("regression", i, s.X, m.InputDim); err != nil {
			return m, err
		}
	}
	out := m.Clone()
	lr, l2 := cfg.LearningRate, cfg.L2
	order := identity(len(samples))
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		shuffledOrder(order, rng)
		for _, idx := range order {
			s := samples[idx]
			e := out.Predict(s.X) - s.Y
			for f := range out.Weights {
				out.Weights[f] -= lr * (e*s.X[f] + l2*out.Weights[f])
			}
			out.Bias -= lr * e
		}
	}
	return out, nil
}

func rmse(samples []RegSample, predict func([]float64) float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		e := predict(s.X) - s.Y
		sum += e * e
	}
	return math.Sqrt(sum / float64(len(samples)))
}

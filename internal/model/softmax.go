package model

import (
	"rndharness/internal/numeric"
	"rndharness/internal/prng"
)

// Softmax is a multinomial logistic classifier.
type Softmax struct {
	ClassCount int         `json:"class_count"`
	InputDim   int         `json:"input_dim"`
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
}

// NewSoftmax draws weights from Normal(0, 0.08) row by row; biases start at 0.
func NewSoftmax(classCount, inputDim int, rng *prng.Rand) Softmax {
	return Softmax{
		ClassCount: classCount,
		InputDim:   inputDim,
		Weights:    normalMatrix(classCount, inputDim, 0.08, rng),
		Bias:       make([]float64, classCount),
	}
}

func (m Softmax) probabilities(x []float64) []float64 {
	logits := make([]float64, m.ClassCount)
	for c, row := range m.Weights {
		logits[c] = numeric.Dot(row, x) + m.Bias[c]
	}
	return numeric.Softmax(logits)
}

// Predict returns the most probable class. Ties go to the lowest index.
func (m Softmax) Predict(x []float64) int {
	probs := m.probabilities(x)
	best := 0
	for c := 1; c < len(probs); c++ {
		if probs[c] > probs[best] {
			best = c
		}
	}
	return best
}

// Accuracy is the percentage of samples predicted correctly.
func (m Softmax) Accuracy(samples []ClassSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	correct := 0
	for _, s := range samples {
		if m.Predict(s.X) == s.Y {
			correct++
		}
	}
	return float64(correct) / float64(len(samples)) * 100
}

// Clone deep-copies the parameters.
func (m Softmax) Clone() Softmax {
	m.Weights = cloneMatrix(m.Weights)
	m.Bias = append([]float64(nil), m.Bias...)
	return m
}

// Fit runs per-sample cross-entropy SGD and returns the trained copy.
func (m Softmax) Fit(samples []ClassSample, cfg TrainConfig, rng *prng.Rand) (Softmax, error) {
	if len(samples) == 0 {
		return m, ErrEmpty
	}
	for i, s := range samples {
		if err := checkDim("class", i, s.X, m.InputDim); err != nil {
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
			probs := out.probabilities(s.X)
			for c := 0; c < out.ClassCount; c++ {
				grad := probs[c]
				if c == s.Y {
					grad--
				}
				w := out.Weights[c]
				for f := range w {
					w[f] -= lr * (grad*s.X[f] + l2*w[f])
				}
				out.Bias[c] -= lr * grad
			}
		}
	}
	return out, nil
}

package model

import (
	"rndharness/internal/numeric"
	"rndharness/internal/prng"
)

// TwoTower scores a (user, item) pair as the dot product of two linear
// embeddings.
type TwoTower struct {
	UserDim      int         `json:"user_dim"`
	ItemDim      int         `json:"item_dim"`
	EmbeddingDim int         `json:"embedding_dim"`
	UserWeight   [][]float64 `json:"user_weight"`
	ItemWeight   [][]float64 `json:"item_weight"`
}

// NewTwoTower draws both towers from Normal(0, 0.12), user tower first.
func NewTwoTower(userDim, itemDim, embeddingDim int, rng *prng.Rand) TwoTower {
	m := TwoTower{UserDim: userDim, ItemDim: itemDim, EmbeddingDim: embeddingDim}
	m.UserWeight = normalMatrix(embeddingDim, userDim, 0.12, rng)
	m.ItemWeight = normalMatrix(embeddingDim, itemDim, 0.12, rng)
	return m
}

func normalMatrix(rows, cols int, std float64, rng *prng.Rand) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = rng.Normal(0, std)
		}
	}
	return m
}

func embed(w [][]float64, x []float64) []float64 {
	out := make([]float64, len(w))
	for i, row := range w {
		out[i] = numeric.Dot(row, x)
	}
	return out
}

// Score returns the pair affinity.
func (m TwoTower) Score(user, item []float64) float64 {
	return numeric.Dot(embed(m.UserWeight, user), embed(m.ItemWeight, item))
}

// Clone deep-copies the weights.
func (m TwoTower) Clone() TwoTower {
	m.UserWeight = cloneMatrix(m.UserWeight)
	m.ItemWeight = cloneMatrix(m.ItemWeight)
	return m
}

// Fit runs pairwise logistic SGD and returns the trained copy. Gradients for
// a triple are computed from the embeddings taken before that triple's
// update; the item tower is updated for the positive and then the negative.
func (m TwoTower) Fit(samples []PairSample, cfg TrainConfig, rng *prng.Rand) (TwoTower, error) {
	if len(samples) == 0 {
		return m, ErrEmpty
	}
	for i, s := range samples {
		if err := checkDim("pair user", i, s.User, m.UserDim); err != nil {
			return m, err
		}
		if err := checkDim("pair positive", i, s.Positive, m.ItemDim); err != nil {
			return m, err
		}
		if err := checkDim("pair negative", i, s.Negative, m.ItemDim); err != nil {
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
			ue := embed(out.UserWeight, s.User)
			pe := embed(out.ItemWeight, s.Positive)
			ne := embed(out.ItemWeight, s.Negative)
			scale := numeric.Sigmoid(-(numeric.Dot(ue, pe) - numeric.Dot(ue, ne)))
			for r := 0; r < out.EmbeddingDim; r++ {
				uw, iw := out.UserWeight[r], out.ItemWeight[r]
				userGrad := (pe[r] - ne[r]) * scale
				for c := range uw {
					uw[c] += lr * (userGrad*s.User[c] - l2*uw[c])
				}
				posGrad := ue[r] * scale
				for c := range iw {
					iw[c] += lr * (posGrad*s.Positive[c] - l2*iw[c])
				}
				negGrad := -ue[r] * scale
				for c := range iw {
					iw[c] += lr * (negGrad*s.Negative[c] - l2*iw[c])
				}
			}
		}
	}
	return out, nil
}

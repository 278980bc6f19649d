// Package model implements the from-scratch learners: a pairwise two-tower
// ranker, a gradient-boosted stump regressor, a multinomial softmax
// classifier and an L2 linear regressor.
//
// Every Fit returns a new value and leaves its receiver untouched, so a
// caller holding the previous model already holds its snapshot.
package model

import (
	"errors"
	"fmt"

	"rndharness/internal/prng"
)

var (
	// ErrDimension is returned when a sample's vector length does not match
	// the model's input dimension.
	ErrDimension = errors.New("model: input dimension mismatch")
	// ErrEmpty is returned when a fit or metric has no samples to work on.
	ErrEmpty = errors.New("model: empty sample set")
)

// TrainConfig holds the SGD hyperparameters shared by the gradient learners.
type TrainConfig struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

// PairSample is one (user, positive, negative) ranking triple.
type PairSample struct {
	UserID     string    `json:"user_id"`
	PositiveID string    `json:"positive_ingredient_id"`
	NegativeID string    `json:"negative_ingredient_id"`
	User       []float64 `json:"user"`
	Positive   []float64 `json:"positive"`
	Negative   []float64 `json:"negative"`
}

// ClassSample is a labelled classification row.
type ClassSample struct {
	X []float64 `json:"x"`
	Y int       `json:"y"`
}

// RegSample is a regression row.
type RegSample struct {
	X []float64 `json:"x"`
	Y float64   `json:"y"`
}

// Split cuts rows at max(1, floor(n*ratio)). An empty side falls back to the
// other one so neither result is empty when rows is not.
func Split[T any](rows []T, ratio float64) (train, validation []T) {
	cut := max(1, int(float64(len(rows))*ratio))
	cut = min(cut, len(rows))
	train, validation = rows[:cut], rows[cut:]
	if len(train) == 0 {
		train = rows
	}
	if len(validation) == 0 {
		validation = train
	}
	return train, validation
}

func shuffledOrder(indices []int, rng *prng.Rand) {
	rng.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func checkDim(what string, i int, x []float64, want int) error {
	if len(x) != want {
		return fmt.Errorf("%s sample %d: %w: got %d want %d", what, i, ErrDimension, len(x), want)
	}
	return nil
}

func cloneMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

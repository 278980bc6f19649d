package model

// Direction says which way a validation metric improves.
type Direction int

const (
	LowerIsBetter Direction = iota
	HigherIsBetter
)

func (d Direction) worse(candidate, baseline float64) bool {
	if d == LowerIsBetter {
		return candidate > baseline
	}
	return candidate < baseline
}

// FineTuneResult reports a guarded fine-tune. Model is the candidate when it
// was accepted and the untouched base otherwise.
type FineTuneResult[M any] struct {
	Model           M
	Before          float64
	Candidate       float64
	After           float64
	RollbackApplied bool
}

// FineTune trains a candidate from base and keeps it only when metric, taken
// on the original validation set, is not worse than it was for base.
func FineTune[M any](base M, fit func(M) (M, error), metric func(M) float64, dir Direction) (FineTuneResult[M], error) {
	before := metric(base)
	candidate, err := fit(base)
	if err != nil {
		return FineTuneResult[M]{}, err
	}
	res := FineTuneResult[M]{Model: candidate, Before: before, Candidate: metric(candidate)}
	if dir.worse(res.Candidate, before) {
		res.Model = base
		res.RollbackApplied = true
	}
	res.After = metric(res.Model)
	return res, nil
}

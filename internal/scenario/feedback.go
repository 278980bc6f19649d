package scenario

import (
	"rndharness/internal/features"
	"rndharness/internal/model"
	"rndharness/internal/numeric"
	"rndharness/internal/prng"
	"rndharness/internal/world"
)

// BiosensorObservation is the re-measured sensor state after an intervention.
type BiosensorObservation struct {
	Steps       float64 `json:"steps"`
	SleepHours  float64 `json:"sleep_hours"`
	Glucose     float64 `json:"glucose"`
	TimeInRange float64 `json:"tir"`
}

// ITEFeedbackRecord is observed treatment-effect feedback for a pick.
type ITEFeedbackRecord struct {
	SampleID          string               `json:"sample_id"`
	UserID            string               `json:"user_id"`
	IngredientIDs     []string             `json:"ingredient_ids"`
	Observation       BiosensorObservation `json:"biosensor_observation"`
	PredictedBefore   float64              `json:"predicted_delta_before_fine_tune"`
	CorrectedDelta    float64              `json:"corrected_delta"`
	UserFeedbackScore float64              `json:"user_feedback_score"`
}

// observe shifts the sensor readings the way a follow-up measurement would.
func observe(u world.User, rng *prng.Rand) world.User {
	u.Steps = numeric.Clamp(u.Steps+rng.Normal(380, 900), 1400, 18000)
	u.SleepHours = numeric.Clamp(u.SleepHours+rng.Normal(0.18, 0.28), 3.8, 9.2)
	u.Glucose = numeric.Clamp(u.Glucose+rng.Normal(-3.5, 9), 74, 190)
	u.TimeInRange = numeric.Clamp(u.TimeInRange+rng.Normal(0.015, 0.05), 0.32, 0.98)
	return u
}

// BuildITEFeedback draws max(count, len(users)) feedback rows for each
// drawn user's current pick. Picks shorter than three are skipped.
func BuildITEFeedback(users []world.User, catalog world.Catalog, pick Picker, ite Regressor, count int, rng *prng.Rand) ([]ITEFeedbackRecord, []model.RegSample) {
	lookup := catalog.Lookup()
	n := max(count, len(users))
	rows := make([]ITEFeedbackRecord, 0, n)
	samples := make([]model.RegSample, 0, n)
	for i := 0; i < n; i++ {
		u := users[rng.Int(len(users))]
		ids := pick(u)
		combo := world.Resolve(lookup, ids)
		if len(combo) < world.ComboMaxCount {
			continue
		}
		obs := observe(u, rng)
		x := features.Combo(obs, combo)
		before := numeric.Clamp(ite.Predict(x), -0.5, 0.9)
		corrected := numeric.Clamp(world.TrueComboDelta(obs, combo, rng)+rng.Normal(0, 0.015), -0.5, 0.9)
		score := numeric.Clamp(0.5+corrected*0.5+rng.Normal(0, 0.08), 0, 1)
		rows = append(rows, ITEFeedbackRecord{
			SampleID:      seqID("itefb", i),
			UserID:        u.ID,
			IngredientIDs: ids,
			Observation: BiosensorObservation{
				Steps:       numeric.RoundTo(obs.Steps, 4),
				SleepHours:  numeric.RoundTo(obs.SleepHours, 6),
				Glucose:     numeric.RoundTo(obs.Glucose, 6),
				TimeInRange: numeric.RoundTo(obs.TimeInRange, 6),
			},
			PredictedBefore:   numeric.RoundTo(before, 6),
			CorrectedDelta:    numeric.RoundTo(corrected, 6),
			UserFeedbackScore: numeric.RoundTo(score, 6),
		})
		samples = append(samples, model.RegSample{X: x, Y: corrected})
	}
	return rows, samples
}

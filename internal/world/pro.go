package world

import (
	"math"

	"rndharness/internal/numeric"
	"rndharness/internal/prng"
)

// ProMetric configures one patient-reported outcome instrument.
type ProMetric struct {
	ID             string
	Mean           float64
	Std            float64
	HigherIsBetter bool
	Min            float64
	Max            float64
}

// ProMetrics are the instruments scored per assessment, in draw order.
var ProMetrics = []ProMetric{
	{ID: "psqi", Mean: 8.2, Std: 2.9, Min: 0, Max: 21},
	{ID: "isi", Mean: 11.1, Std: 4.8, Min: 0, Max: 28},
	{ID: "fatigue_index", Mean: 57.5, Std: 11.5, Min: 0, Max: 100},
	{ID: "wellbeing_index", Mean: 54.2, Std: 10.4, HigherIsBetter: true, Min: 0, Max: 100},
}

// ProMetricScore is one instrument's pre/post reading.
type ProMetricScore struct {
	MetricID string  `json:"metric_id"`
	PreRaw   float64 `json:"pre_raw_score"`
	PostRaw  float64 `json:"post_raw_score"`
	PreZ     float64 `json:"pre_z_score"`
	PostZ    float64 `json:"post_z_score"`
}

// ProAssessment aggregates instruments into a single pre/post z pair.
type ProAssessment struct {
	SampleID string           `json:"sample_id"`
	UserID   string           `json:"user_id"`
	Metrics  []ProMetricScore `json:"metrics"`
	PreZ     float64          `json:"pre_z_score"`
	PostZ    float64          `json:"post_z_score"`
}

func (m ProMetric) rawFromLatent(latent float64, rng *prng.Rand) float64 {
	oriented := latent
	if !m.HigherIsBetter {
		oriented = -latent
	}
	raw := m.Mean + oriented*m.Std + rng.Normal(0, math.Max(0.2, m.Std*0.06))
	return numeric.Clamp(raw, m.Min, m.Max)
}

func (m ProMetric) zFromRaw(raw float64) float64 {
	z := (raw - m.Mean) / m.Std
	if m.HigherIsBetter {
		return z
	}
	return -z
}

// BuildProAssessment turns a baseline z and a treatment delta into
// instrument readings. Latent pre/post are drawn first, then pre and post raw
// scores per metric.
func BuildProAssessment(sampleID, userID string, baselineZ, delta float64, rng *prng.Rand) ProAssessment {
	latentPre := numeric.Clamp(baselineZ+rng.Normal(0, 0.06), -2.7, 2.7)
	latentPost := numeric.Clamp(latentPre+delta+rng.Normal(0, 0.04), -2.7, 3)
	scores := make([]ProMetricScore, len(ProMetrics))
	var preSum, postSum float64
	for i, m := range ProMetrics {
		preRaw := m.rawFromLatent(latentPre, rng)
		postRaw := m.rawFromLatent(latentPost, rng)
		s := ProMetricScore{
			MetricID: m.ID,
			PreRaw:   numeric.RoundTo(preRaw, 6),
			PostRaw:  numeric.RoundTo(postRaw, 6),
			PreZ:     numeric.RoundTo(m.zFromRaw(preRaw), 6),
			PostZ:    numeric.RoundTo(m.zFromRaw(postRaw), 6),
		}
		preSum += s.PreZ
		postSum += s.PostZ
		scores[i] = s
	}
	n := float64(len(scores))
	return ProAssessment{
		SampleID: sampleID,
		UserID:   userID,
		Metrics:  scores,
		PreZ:     numeric.RoundTo(preSum/n, 6),
		PostZ:    numeric.RoundTo(postSum/n, 6),
	}
}

package scenario

import (
	"rndharness/internal/model"
	"rndharness/internal/numeric"
	"rndharness/internal/prng"
	"rndharness/internal/world"
)

// IntegrationDim is the integration feature length: the source one-hot then
// api quality, schema drift, consent, completeness and latency.
const IntegrationDim = 8

// IntegrationRecord is one ingestion session from a data source.
type IntegrationRecord struct {
	SampleID string           `json:"sample_id"`
	Source   world.DataSource `json:"source"`
	Features []float64        `json:"features"`
	Success  bool             `json:"success"`
}

// BuildIntegrationRecords draws max(1, count/3) sessions per source, sources
// in world.DataSources order. Ids run across sources.
func BuildIntegrationRecords(count int, rng *prng.Rand) []IntegrationRecord {
	perSource := max(1, count/len(world.DataSources))
	rows := make([]IntegrationRecord, 0, perSource*len(world.DataSources))
	for _, src := range world.DataSources {
		for k := 0; k < perSource; k++ {
			api := numeric.Clamp(rng.Normal(0.86, 0.09), 0, 1)
			drift := rng.Next() < 0.05
			consent := rng.Next() < 0.985
			completeness := numeric.Clamp(rng.Normal(0.91, 0.08), 0, 1)
			latency := numeric.Clamp(rng.Normal(0.32, 0.14), 0, 1)
			hot := src.OneHot()
			rows = append(rows, IntegrationRecord{
				SampleID: seqID("integration", len(rows)),
				Source:   src,
				Features: []float64{hot[0], hot[1], hot[2], api, world.Flag(drift), world.Flag(consent), completeness, latency},
				Success:  consent && !drift && api > 0.36 && completeness > 0.42 && latency < 0.88,
			})
		}
	}
	return rows
}

// IntegrationSamples labels records 1 on success.
func IntegrationSamples(records []IntegrationRecord) []model.ClassSample {
	out := make([]model.ClassSample, len(records))
	for i, r := range records {
		y := 0
		if r.Success {
			y = 1
		}
		out[i] = model.ClassSample{X: r.Features, Y: y}
	}
	return out
}

package scenario

import (
	"rndharness/internal/numeric"
	"rndharness/internal/prng"
)

// minCragRecords is the floor on simulated grounding prompts.
const minCragRecords = 1200

// Retrieval is what the corrective-RAG step found for a prompt.
type Retrieval struct {
	DataLakeHits          int  `json:"data_lake_hits"`
	WebHits               int  `json:"web_hits"`
	UsedWebFallback       bool `json:"used_web_fallback"`
	ContradictionDetected bool `json:"contradiction_detected"`
}

// CragRecord is one grounded-answer simulation.
type CragRecord struct {
	SampleID       string    `json:"sample_id"`
	PromptID       string    `json:"prompt_id"`
	Retrieval      Retrieval `json:"retrieval"`
	Grounded       bool      `json:"grounded"`
	AnswerAccepted bool      `json:"answer_accepted"`
}

// BuildCragRecords simulates max(count, 1200) prompts. A contradiction always
// forces the web fallback; an answer is grounded when the data lake hit and
// any needed fallback ran.
func BuildCragRecords(count int, rng *prng.Rand) []CragRecord {
	n := max(count, minCragRecords)
	rows := make([]CragRecord, 0, n)
	for i := 0; i < n; i++ {
		var r Retrieval
		r.DataLakeHits = max(1, int(numeric.Round(rng.Normal(4.2, 1.3))))
		r.ContradictionDetected = rng.Next() < 0.082
		fallback := r.ContradictionDetected || rng.Next() < 0.17
		if fallback {
			r.WebHits = max(1, int(numeric.Round(rng.Normal(2.5, 1.1))))
		}
		r.UsedWebFallback = fallback && rng.Next() < 0.964
		grounded := r.DataLakeHits > 0 && (!fallback || r.UsedWebFallback)
		p := 0.73
		switch {
		case grounded && r.ContradictionDetected:
			p = 0.931
		case grounded:
			p = 0.978
		}
		rows = append(rows, CragRecord{
			SampleID:       seqID("crag", i),
			PromptID:       seqID("prompt", i),
			Retrieval:      r,
			Grounded:       grounded,
			AnswerAccepted: rng.Next() < p,
		})
	}
	return rows
}

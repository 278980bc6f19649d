package scenario

import (
	"fmt"
	"slices"

	"rndharness/internal/model"
	"rndharness/internal/prng"
)

// LLMKeys are the answer intents in class-index order.
var LLMKeys = []string{"safety", "efficacy", "dose", "interaction", "followup", "general"}

// LLMDim is the LLM feature length: the key one-hot plus three noise terms.
const LLMDim = 9

var llmPrompts = map[string]string{
	"safety":      "Is this combination safe with my current medication?",
	"efficacy":    "How soon should I expect this combination to help?",
	"dose":        "How much of each ingredient should I take per day?",
	"interaction": "Does any of these interact with what I already take?",
	"followup":    "When should I check back on my progress?",
}

const generalPrompt = "Tell me more about this recommendation."

// LLMRecord is one synthetic consultation prompt.
type LLMRecord struct {
	SampleID    string    `json:"sample_id"`
	PromptID    string    `json:"prompt_id"`
	Prompt      string    `json:"prompt"`
	Features    []float64 `json:"features"`
	ExpectedKey string    `json:"expected_key"`
}

// LLMKeyClass maps a key to its class index; unknown keys map to 0.
func LLMKeyClass(key string) int {
	return max(0, slices.Index(LLMKeys, key))
}

// LLMClassKey maps a class index back to its key; out-of-range maps to the
// first key.
func LLMClassKey(class int) string {
	if class < 0 || class >= len(LLMKeys) {
		return LLMKeys[0]
	}
	return LLMKeys[class]
}

func llmPrompt(key string, seq int) string {
	text, ok := llmPrompts[key]
	if !ok {
		text = generalPrompt
	}
	return fmt.Sprintf("%s %d", text, seq%11)
}

// BuildLLMRecords draws count prompts. Each draws its key, then three noise
// features.
func BuildLLMRecords(count int, rng *prng.Rand) []LLMRecord {
	rows := make([]LLMRecord, count)
	for i := range rows {
		key := LLMKeys[rng.Int(len(LLMKeys))]
		x := make([]float64, 0, LLMDim)
		for _, k := range LLMKeys {
			if k == key {
				x = append(x, 1)
			} else {
				x = append(x, 0)
			}
		}
		x = append(x, rng.Range(0, 1), rng.Range(0, 1), rng.Range(0, 1))
		rows[i] = LLMRecord{
			SampleID:    seqID("llm", i),
			PromptID:    seqID("prompt", i),
			Prompt:      llmPrompt(key, i+1),
			Features:    x,
			ExpectedKey: key,
		}
	}
	return rows
}

// LLMSamples labels records with their key class.
func LLMSamples(records []LLMRecord) []model.ClassSample {
	out := make([]model.ClassSample, len(records))
	for i, r := range records {
		out[i] = model.ClassSample{X: r.Features, Y: LLMKeyClass(r.ExpectedKey)}
	}
	return out
}

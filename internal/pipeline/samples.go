package pipeline

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"rndharness/internal/features"
	"rndharness/internal/model"
	"rndharness/internal/numeric"
	"rndharness/internal/optimizer"
	"rndharness/internal/prng"
	"rndharness/internal/world"
)

const (
	hardNegatives    = 6
	pairsPerPositive = 12
)

// ClassRow is a labelled classification row tied to its (user, ingredient).
type ClassRow struct {
	SampleID     string    `json:"sample_id"`
	UserID       string    `json:"user_id"`
	IngredientID string    `json:"ingredient_id"`
	ClassKey     string    `json:"class_key,omitempty"`
	X            []float64 `json:"x"`
	Y            int       `json:"y"`
}

// RegRow is a labelled regression row over a combination.
type RegRow struct {
	SampleID      string    `json:"sample_id"`
	UserID        string    `json:"user_id"`
	IngredientIDs []string  `json:"ingredient_ids"`
	X             []float64 `json:"x"`
	Y             float64   `json:"y"`
}

// RerankerRow is one reranker training example.
type RerankerRow struct {
	SampleID       string         `json:"sample_id"`
	UserID         string         `json:"user_id"`
	IngredientID   string         `json:"ingredient_id"`
	TwoTowerScore  float64        `json:"two_tower_score"`
	SafetyDecision world.Decision `json:"safety_decision"`
	FeatureVector  []float64      `json:"feature_vector"`
	TargetScore    float64        `json:"target_score"`
}

func rowID(prefix string, i int) string {
	return fmt.Sprintf("%s-%07d", prefix, i+1)
}

func ingredientVectors(catalog world.Catalog) map[string][]float64 {
	out := make(map[string][]float64, len(catalog))
	for _, ing := range catalog {
		out[ing.ID] = features.Ingredient(ing)
	}
	return out
}

// buildRecommenderPairs pairs every oracle positive with the six hardest
// negatives plus random negatives up to twelve.
func buildRecommenderPairs(users []world.User, catalog world.Catalog, rng *prng.Rand) []model.PairSample {
	vectors := ingredientVectors(catalog)
	var pairs []model.PairSample
	for _, u := range users {
		expected := world.ExpectedSet(u, catalog)
		type scored struct {
			id    string
			score float64
		}
		var ranked []scored
		for _, ing := range catalog {
			if slices.Contains(expected, ing.ID) {
				continue
			}
			ranked = append(ranked, scored{ing.ID, world.TrueScore(u, ing)})
		}
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score < ranked[j].score })
		negatives := make([]string, len(ranked))
		for i, r := range ranked {
			negatives[i] = r.id
		}

		uv := features.User(u)
		for _, pos := range expected {
			sampled := append([]string(nil), negatives[:min(hardNegatives, len(negatives))]...)
			for len(sampled) < pairsPerPositive && len(negatives) > 0 {
				sampled = append(sampled, negatives[rng.Int(len(negatives))])
			}
			for _, neg := range sampled {
				pairs = append(pairs, model.PairSample{
					UserID:     u.ID,
					PositiveID: pos,
					NegativeID: neg,
					User:       uv,
					Positive:   vectors[pos],
					Negative:   vectors[neg],
				})
			}
		}
	}
	return pairs
}

// rerankerSampleCount is the requested reranker dataset size before the
// per-user floor.
func rerankerSampleCount(trainUsers int) int {
	return min(max(trainUsers*16, 18000), 480000)
}

// buildRerankerRows draws max(count, 4*len(users)) random (user, ingredient)
// pairs. The target blends the true score with the two-tower score and the
// predicted safety penalty.
func buildRerankerRows(users []world.User, catalog world.Catalog, rec optimizer.Scorer, safety optimizer.Classifier, count int, rng *prng.Rand) ([]RerankerRow, []model.RegSample) {
	n := max(count, len(users)*4)
	rows := make([]RerankerRow, 0, n)
	samples := make([]model.RegSample, 0, n)
	for i := 0; i < n; i++ {
		u := users[rng.Int(len(users))]
		ing := catalog[rng.Int(len(catalog))]
		tt := rec.Score(features.User(u), features.Ingredient(ing))
		decision := world.DecisionFromClass(safety.Predict(features.Safety(u, ing)))
		x := features.Reranker(u, ing, tt, decision)
		target := world.TrueScore(u, ing) + tt*0.2 - decision.Penalty()*0.45 + rng.Normal(0, 0.03)
		rows = append(rows, RerankerRow{
			SampleID:       rowID("reranker", i),
			UserID:         u.ID,
			IngredientID:   ing.ID,
			TwoTowerScore:  numeric.RoundTo(tt, 6),
			SafetyDecision: decision,
			FeatureVector:  x,
			TargetScore:    numeric.RoundTo(target, 6),
		})
		samples = append(samples, model.RegSample{X: x, Y: target})
	}
	return rows, samples
}

// rerankerMaxSamples bounds the stump training set.
func rerankerMaxSamples(trainLen int) int {
	return min(max(int(numeric.Round(float64(trainLen)*0.24)), 9000), 15000)
}

// buildSafetyRows labels every (user, ingredient) pair with its rule-table
// decision.
func buildSafetyRows(users []world.User, catalog world.Catalog) []ClassRow {
	rows := make([]ClassRow, 0, len(users)*len(catalog))
	for _, u := range users {
		for _, ing := range catalog {
			rows = append(rows, ClassRow{
				SampleID:     rowID("safety", len(rows)),
				UserID:       u.ID,
				IngredientID: ing.ID,
				X:            features.Safety(u, ing),
				Y:            world.EvaluateSafety(u, ing.ID).Decision.Class(),
			})
		}
	}
	return rows
}

// DataLakeKey is the class key of a safety verdict: logic id, reference ids
// and source kinds joined as "logic|ref,ref|kind,kind".
func DataLakeKey(ev world.SafetyEvaluation) string {
	kinds := make([]string, len(ev.SourceKinds))
	for i, k := range ev.SourceKinds {
		kinds[i] = string(k)
	}
	return ev.LogicID + "|" + strings.Join(ev.ReferenceIDs, ",") + "|" + strings.Join(kinds, ",")
}

// buildDataLakeRows labels every pair with its data-lake class, registering
// keys in first-seen order.
func buildDataLakeRows(users []world.User, catalog world.Catalog, registry *model.ClassRegistry) []ClassRow {
	rows := make([]ClassRow, 0, len(users)*len(catalog))
	for _, u := range users {
		for _, ing := range catalog {
			key := DataLakeKey(world.EvaluateSafety(u, ing.ID))
			rows = append(rows, ClassRow{
				SampleID:     rowID("datalake", len(rows)),
				UserID:       u.ID,
				IngredientID: ing.ID,
				ClassKey:     key,
				X:            features.Safety(u, ing),
				Y:            registry.Register(key),
			})
		}
	}
	return rows
}

// relabel rebuilds class labels from the row keys against a stored registry.
// A key the registry never assigned is an invariant violation.
func relabel(rows []ClassRow, registry *model.ClassRegistry) ([]model.ClassSample, error) {
	out := make([]model.ClassSample, len(rows))
	for i, r := range rows {
		y, err := registry.Lookup(r.ClassKey)
		if err != nil {
			return nil, fmt.Errorf("pipeline: data-lake row %s: %w: %w", r.SampleID, ErrInvariant, err)
		}
		out[i] = model.ClassSample{X: r.X, Y: y}
	}
	return out, nil
}

// buildITERows draws count combinations. Each candidate pool is the oracle
// set topped up with random catalog ids to four; one 3-combination is drawn
// from it. Rows that do not resolve to three ingredients are skipped.
func buildITERows(users []world.User, catalog world.Catalog, count int, rng *prng.Rand) []RegRow {
	lookup := catalog.Lookup()
	rows := make([]RegRow, 0, count)
	for i := 0; i < count; i++ {
		u := users[rng.Int(len(users))]
		candidates := append([]string(nil), world.ExpectedSet(u, catalog)...)
		for len(candidates) < world.ComboMaxCount+1 {
			id := catalog[rng.Int(len(catalog))].ID
			if !slices.Contains(candidates, id) {
				candidates = append(candidates, id)
			}
		}
		combos := numeric.Combinations(candidates, world.ComboMaxCount)
		picked := combos[rng.Int(len(combos))]
		combo := world.Resolve(lookup, picked)
		if len(combo) != world.ComboMaxCount {
			continue
		}
		x := features.Combo(u, combo)
		rows = append(rows, RegRow{
			SampleID:      rowID("ite", i),
			UserID:        u.ID,
			IngredientIDs: picked,
			X:             x,
			Y:             world.TrueComboDelta(u, combo, rng),
		})
	}
	return rows
}

func classSamples(rows []ClassRow) []model.ClassSample {
	out := make([]model.ClassSample, len(rows))
	for i, r := range rows {
		out[i] = model.ClassSample{X: r.X, Y: r.Y}
	}
	return out
}

func regSamples(rows []RegRow) []model.RegSample {
	out := make([]model.RegSample, len(rows))
	for i, r := range rows {
		out[i] = model.RegSample{X: r.X, Y: r.Y}
	}
	return out
}

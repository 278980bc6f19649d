package world

import "rndharness/internal/prng"

const catalogSeedOffset = 0x9f4f3a1f

// IngredientIDs is the fixed catalog order. Draw order depends on it.
var IngredientIDs = []string{
	"omega3", "multivitamin", "vitamin_c", "vitamin_d", "probiotics",
	"magnesium", "lutein", "propolis", "aloe", "ginseng",
	"glucosamine", "chitosan", "chlorella", "vitamin_k", "caffeine",
	"folate", "calcium", "zinc", "coq10", "melatonin",
	"berberine", "curcumin", "resveratrol", "lactase", "vitamin_a",
}

// Ingredient is one immutable catalog entry.
type Ingredient struct {
	ID                string     `json:"id"`
	BaseUtility       float64    `json:"base_utility"`
	Cost              float64    `json:"cost"`
	Risk              float64    `json:"risk"`
	GoalAffinity      [3]float64 `json:"goal_affinity"`
	ConditionAffinity [4]float64 `json:"condition_affinity"`
	GeneticsAffinity  [6]float64 `json:"genetics_affinity"`
	Feature           []float64  `json:"feature"`
}

// Catalog is the ordered ingredient list shared by every user of a run.
type Catalog []Ingredient

// BuildCatalog draws the catalog from seed and applies the named tunings.
func BuildCatalog(seed int64) Catalog {
	rng := prng.Derive(seed, catalogSeedOffset)
	out := make(Catalog, 0, len(IngredientIDs))
	for _, id := range IngredientIDs {
		ing := Ingredient{ID: id}
		for i := range ing.GoalAffinity {
			ing.GoalAffinity[i] = rng.Range(-0.35, 0.8)
		}
		for i := range ing.ConditionAffinity {
			ing.ConditionAffinity[i] = rng.Range(-0.4, 0.7)
		}
		for i := range ing.GeneticsAffinity {
			ing.GeneticsAffinity[i] = rng.Range(-0.35, 0.75)
		}
		ing.Feature = make([]float64, 10)
		for i := range ing.Feature {
			ing.Feature[i] = rng.Range(-1, 1)
		}
		ing.BaseUtility = rng.Range(-0.2, 1.1)
		ing.Cost = rng.Range(0.15, 1.45)
		ing.Risk = rng.Range(0.05, 0.7)
		out = append(out, tune(ing))
	}
	return out
}

// tune pins known physiological relationships onto otherwise random entries.
func tune(ing Ingredient) Ingredient {
	switch ing.ID {
	case "melatonin":
		ing.GoalAffinity = [3]float64{0.05, 0.95, 0.05}
	case "coq10":
		ing.GoalAffinity = [3]float64{0.9, 0.05, 0.25}
	case "berberine":
		ing.GoalAffinity = [3]float64{0.1, 0.05, 0.95}
	case "omega3":
		ing.GoalAffinity = [3]float64{0.45, 0.2, 0.85}
	case "lactase":
		ing.GeneticsAffinity = [6]float64{0.05, 1.1, 0.05, 0.05, 0.05, 0.05}
	case "folate":
		ing.GeneticsAffinity = [6]float64{1.1, 0.05, 0.05, 0.05, 0.05, 0.05}
	case "caffeine":
		ing.Risk = 0.65
	case "vitamin_k":
		ing.Risk = 0.62
	case "vitamin_a":
		ing.Risk = 0.7
	}
	return ing
}

// Lookup indexes the catalog by ingredient id.
func (c Catalog) Lookup() map[string]Ingredient {
	m := make(map[string]Ingredient, len(c))
	for _, ing := range c {
		m[ing.ID] = ing
	}
	return m
}

// IDs returns the ingredient ids in catalog order.
func (c Catalog) IDs() []string {
	ids := make([]string, len(c))
	for i, ing := range c {
		ids[i] = ing.ID
	}
	return ids
}

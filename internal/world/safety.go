package world

// Decision is the personal-safety verdict for a (user, ingredient) pair.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionLimit Decision = "limit"
	DecisionBlock Decision = "block"
)

// Decisions lists the safety classes in class-index order.
var Decisions = []Decision{DecisionAllow, DecisionLimit, DecisionBlock}

// SourceKind tags where a piece of evidence came from.
type SourceKind string

const (
	SourceInternalCompute  SourceKind = "internal_compute_result"
	SourceInternalBehavior SourceKind = "internal_behavior"
	SourceInternalProfile  SourceKind = "internal_profile"
	SourceMedicalDatabase  SourceKind = "medical_database"
	SourceLiterature       SourceKind = "literature"
	SourcePublicSafety     SourceKind = "public_safety"
)

// SafetyEvaluation is the rule-table verdict. It is never stored; callers
// recompute it on demand.
type SafetyEvaluation struct {
	Decision     Decision     `json:"decision"`
	ReferenceIDs []string     `json:"reference_ids"`
	SourceKinds  []SourceKind `json:"source_kinds"`
	LogicID      string       `json:"logic_id"`
}

type safetyRule struct {
	ingredient string
	applies    func(User) bool
	decision   Decision
	reference  string
}

var safetyRules = []safetyRule{
	{"vitamin_k", func(u User) bool { return u.Warfarin }, DecisionBlock, "ref-warfarin-vitamin-k"},
	{"omega3", func(u User) bool { return u.Warfarin }, DecisionLimit, "ref-warfarin-omega3"},
	{"caffeine", func(u User) bool { return u.Genes.CYP1A2 > 0.72 }, DecisionLimit, "ref-cyp1a2-caffeine"},
	{"magnesium", func(u User) bool { return u.KidneyRisk }, DecisionLimit, "ref-kidney-magnesium"},
	{"ginseng", func(u User) bool { return u.Hypertension }, DecisionLimit, "ref-hypertension-ginseng"},
	{"vitamin_a", func(u User) bool { return u.Pregnancy }, DecisionBlock, "ref-pregnancy-vitamin-a"},
	{"omega3", func(u User) bool { return u.SeafoodAllergy }, DecisionBlock, "ref-seafood-allergy-omega3"},
	{"chitosan", func(u User) bool { return u.Diabetes }, DecisionLimit, "ref-diabetes-chitosan"},
}

// GeneralSafeReference is attached when no rule fires.
const GeneralSafeReference = "ref-general-safe"

// EvaluateSafety applies the rule table in order. A limit never downgrades an
// earlier block.
func EvaluateSafety(u User, ingredientID string) SafetyEvaluation {
	decision := DecisionAllow
	var refs []string
	seen := make(map[string]bool)
	for _, r := range safetyRules {
		if r.ingredient != ingredientID || !r.applies(u) {
			continue
		}
		if r.decision == DecisionBlock || decision != DecisionBlock {
			decision = r.decision
		}
		if !seen[r.reference] {
			seen[r.reference] = true
			refs = append(refs, r.reference)
		}
	}
	if len(refs) == 0 {
		refs = []string{GeneralSafeReference}
	}
	return SafetyEvaluation{
		Decision:     decision,
		ReferenceIDs: refs,
		SourceKinds:  SourceKindsFor(decision),
		LogicID:      ingredientID + ":" + string(decision),
	}
}

// SourceKindsFor maps a decision to its evidence source kinds.
func SourceKindsFor(d Decision) []SourceKind {
	switch d {
	case DecisionAllow:
		return []SourceKind{SourceInternalCompute}
	case DecisionLimit:
		return []SourceKind{SourceMedicalDatabase, SourceLiterature}
	default:
		return []SourceKind{SourceMedicalDatabase, SourcePublicSafety}
	}
}

// Penalty is the score deduction applied for a decision.
func (d Decision) Penalty() float64 {
	switch d {
	case DecisionBlock:
		return 1.5
	case DecisionLimit:
		return 0.4
	}
	return 0
}

// Flags one-hot encodes the decision as (allow, limit, block).
func (d Decision) Flags() [3]float64 {
	switch d {
	case DecisionAllow:
		return [3]float64{1, 0, 0}
	case DecisionLimit:
		return [3]float64{0, 1, 0}
	}
	return [3]float64{0, 0, 1}
}

// Class returns the classifier label for d.
func (d Decision) Class() int {
	switch d {
	case DecisionAllow:
		return 0
	case DecisionLimit:
		return 1
	}
	return 2
}

// DecisionFromClass inverts Class. Unknown indices map to block.
func DecisionFromClass(class int) Decision {
	switch class {
	case 0:
		return DecisionAllow
	case 1:
		return DecisionLimit
	}
	return DecisionBlock
}

package kpi

import (
	"fmt"
	"slices"

	"rndharness/internal/numeric"
)

// ReferenceTarget is the kpi05 accuracy floor for every module.
const ReferenceTarget = 95

// LineagePath is the data-lake processing chain every reference carries.
var LineagePath = []string{"ingest", "split", "tag", "index", "retrieve", "decision"}

// DataLakeReference is the decision logic and evidence a data-lake lookup
// returns.
type DataLakeReference struct {
	LogicID     string   `json:"logic_id"`
	EvidenceIDs []string `json:"evidence_ids"`
	SourceKinds []string `json:"source_kinds"`
	LineagePath []string `json:"lineage_path"`
}

// DataLakeReferenceSample pairs expected and observed references.
type DataLakeReferenceSample struct {
	RuleID   string            `json:"rule_id"`
	SampleID string            `json:"sample_id"`
	Expected DataLakeReference `json:"expected"`
	Observed DataLakeReference `json:"observed"`
}

// SafetyReference is one rule verdict and its evidence.
type SafetyReference struct {
	RuleID         string   `json:"rule_id"`
	IngredientCode string   `json:"ingredient_code"`
	Decision       string   `json:"decision"`
	Violation      bool     `json:"violation"`
	ReferenceIDs   []string `json:"reference_ids"`
}

// SafetyReferenceSample pairs expected and observed verdicts.
type SafetyReferenceSample struct {
	SampleID string          `json:"sample_id"`
	Expected SafetyReference `json:"expected"`
	Observed SafetyReference `json:"observed"`
}

// InterfaceWiring describes how an integration session was filed.
type InterfaceWiring struct {
	SessionID        string  `json:"session_id"`
	Source           string  `json:"source"`
	SourceKind       string  `json:"source_kind"`
	Sensitivity      string  `json:"sensitivity"`
	Linked           bool    `json:"linked"`
	DataLakeRecordID *string `json:"data_lake_record_id"`
}

// InterfaceSample pairs expected and observed wiring.
type InterfaceSample struct {
	SampleID string          `json:"sample_id"`
	Expected InterfaceWiring `json:"expected"`
	Observed InterfaceWiring `json:"observed"`
}

const referenceFormula = "Accuracy = 100 * (1/R) * sum(I(l_r == l_ref and f_r == f_ref))"

// EvaluateDataLakeReference passes a rule when the logic id matches and the
// evidence sets are equal.
func EvaluateDataLakeReference(samples []DataLakeReferenceSample, evaluatedAt string) (Report, error) {
	if err := requireSamples(len(samples), "data-lake reference"); err != nil {
		return Report{}, err
	}
	if _, err := parseTime(evaluatedAt, "evaluated_at"); err != nil {
		return Report{}, err
	}
	passed := 0
	for i, s := range samples {
		loc := fmt.Sprintf("samples[%d]", i)
		if err := firstErr(
			requireField(s.RuleID, loc+".rule_id"),
			requireField(s.SampleID, loc+".sample_id"),
			checkDataLakeReference(s.Expected, loc+".expected"),
			checkDataLakeReference(s.Observed, loc+".observed"),
		); err != nil {
			return Report{}, err
		}
		if s.Expected.LogicID == s.Observed.LogicID && sameSet(s.Expected.EvidenceIDs, s.Observed.EvidenceIDs) {
			passed++
		}
	}
	return rateReport("kpi-05", "02_data_lake", referenceFormula, evaluatedAt, passed, len(samples), ReferenceTarget), nil
}

func checkDataLakeReference(r DataLakeReference, loc string) error {
	return firstErr(
		requireField(r.LogicID, loc+".logic_id"),
		requireList(r.EvidenceIDs, loc+".evidence_ids"),
		requireList(r.SourceKinds, loc+".source_kinds"),
		requireList(r.LineagePath, loc+".lineage_path"),
	)
}

var (
	safetyDecisions   = []string{"allow", "limit", "block"}
	sensitivityLevels = []string{"public", "internal", "sensitive"}
)

// EvaluateSafetyReference passes a rule when rule, ingredient, decision and
// violation agree and the reference sets are equal.
func EvaluateSafetyReference(samples []SafetyReferenceSample, evaluatedAt string) (Report, error) {
	if err := requireSamples(len(samples), "safety reference"); err != nil {
		return Report{}, err
	}
	if _, err := parseTime(evaluatedAt, "evaluated_at"); err != nil {
		return Report{}, err
	}
	passed := 0
	for i, s := range samples {
		loc := fmt.Sprintf("samples[%d]", i)
		if err := firstErr(
			requireField(s.SampleID, loc+".sample_id"),
			checkSafetyReference(s.Expected, loc+".expected"),
			checkSafetyReference(s.Observed, loc+".observed"),
		); err != nil {
			return Report{}, err
		}
		e, o := s.Expected, s.Observed
		logic := e.RuleID == o.RuleID && e.IngredientCode == o.IngredientCode &&
			e.Decision == o.Decision && e.Violation == o.Violation
		if logic && sameSet(e.ReferenceIDs, o.ReferenceIDs) {
			passed++
		}
	}
	return rateReport("kpi-05", "03_personal_safety_validation_engine", referenceFormula,
		evaluatedAt, passed, len(samples), ReferenceTarget), nil
}

func checkSafetyReference(r SafetyReference, loc string) error {
	if err := firstErr(
		requireField(r.RuleID, loc+".rule_id"),
		requireField(r.IngredientCode, loc+".ingredient_code"),
		requireList(r.ReferenceIDs, loc+".reference_ids"),
	); err != nil {
		return err
	}
	if !slices.Contains(safetyDecisions, r.Decision) {
		return invalid("%s.decision %q is not a safety decision", loc, r.Decision)
	}
	return nil
}

// EvaluateInterfaceWiring passes a session when logic, interface and record
// link all agree.
func EvaluateInterfaceWiring(samples []InterfaceSample, evaluatedAt string) (Report, error) {
	if err := requireSamples(len(samples), "interface wiring"); err != nil {
		return Report{}, err
	}
	if _, err := parseTime(evaluatedAt, "evaluated_at"); err != nil {
		return Report{}, err
	}
	passed := 0
	for i, s := range samples {
		loc := fmt.Sprintf("samples[%d]", i)
		if err := firstErr(
			requireField(s.SampleID, loc+".sample_id"),
			checkWiring(s.Expected, loc+".expected"),
			checkWiring(s.Observed, loc+".observed"),
		); err != nil {
			return Report{}, err
		}
		e, o := s.Expected, s.Observed
		logic := e.SessionID == o.SessionID && e.Source == o.Source && e.Linked == o.Linked
		iface := e.SourceKind == o.SourceKind && e.Sensitivity == o.Sensitivity
		if logic && iface && equalRecordID(e.DataLakeRecordID, o.DataLakeRecordID) {
			passed++
		}
	}
	return rateReport("kpi-05", "07_biosensor_and_genetic_data_integration", referenceFormula,
		evaluatedAt, passed, len(samples), ReferenceTarget), nil
}

func checkWiring(w InterfaceWiring, loc string) error {
	if err := firstErr(
		requireField(w.SessionID, loc+".session_id"),
		requireField(w.Source, loc+".source"),
		requireField(w.SourceKind, loc+".source_kind"),
	); err != nil {
		return err
	}
	if !slices.Contains(sensitivityLevels, w.Sensitivity) {
		return invalid("%s.sensitivity %q is not a sensitivity level", loc, w.Sensitivity)
	}
	if w.DataLakeRecordID != nil {
		return requireField(*w.DataLakeRecordID, loc+".data_lake_record_id")
	}
	return nil
}

func equalRecordID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ReferenceAverage is the kpi05 headline: the mean of the three module
// accuracies.
func ReferenceAverage(dataLake, safety, wiring Report) float64 {
	return numeric.RoundTo(numeric.Average([]float64{dataLake.Value, safety.Value, wiring.Value}), 2)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

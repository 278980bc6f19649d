package scenario

import (
	"rndharness/internal/prng"
	"rndharness/internal/world"
)

// WorkflowStages are the chained order-fulfilment steps.
type WorkflowStages struct {
	HealthDataLinked  bool `json:"health_data_linked"`
	Analyzed          bool `json:"analyzed"`
	Dispensed         bool `json:"dispensed"`
	Delivered         bool `json:"delivered"`
	FollowupCompleted bool `json:"followup_completed"`
}

// WorkflowRecord is one simulated order from recommendation to follow-up.
type WorkflowRecord struct {
	SampleID              string         `json:"sample_id"`
	UserID                string         `json:"user_id"`
	OrderID               string         `json:"order_id"`
	RecommendedIDs        []string       `json:"recommended_ingredient_ids"`
	Stages                WorkflowStages `json:"stages"`
	CompletionRatePercent float64        `json:"completion_rate_percent"`
	Completed             bool           `json:"completed"`
}

// BuildWorkflowRecords simulates max(count, len(users)) orders for randomly
// drawn users.
func BuildWorkflowRecords(users []world.User, pick Picker, count int, rng *prng.Rand) []WorkflowRecord {
	n := max(count, len(users))
	rows := make([]WorkflowRecord, 0, n)
	for i := 0; i < n; i++ {
		u := users[rng.Int(len(users))]
		recommended := pick(u)
		var st WorkflowStages
		st.HealthDataLinked = rng.Next() < 0.991
		st.Analyzed = st.HealthDataLinked && rng.Next() < 0.986
		st.Dispensed = st.Analyzed && rng.Next() < 0.979
		st.Delivered = st.Dispensed && rng.Next() < 0.972
		st.FollowupCompleted = st.Delivered && rng.Next() < 0.958
		flags := []bool{st.HealthDataLinked, st.Analyzed, st.Dispensed, st.Delivered, st.FollowupCompleted}
		rows = append(rows, WorkflowRecord{
			SampleID:              seqID("workflow", i),
			UserID:                u.ID,
			OrderID:               seqID("order", i),
			RecommendedIDs:        recommended,
			Stages:                st,
			CompletionRatePercent: ratePercent(flags...),
			Completed:             allTrue(flags...),
		})
	}
	return rows
}

// ScheduleActions are the per-cycle automation steps.
type ScheduleActions struct {
	PeriodicAPICall  bool `json:"periodic_api_call"`
	ReminderPush     bool `json:"reminder_push"`
	ReorderDecision  bool `json:"reorder_decision"`
	ReorderExecution bool `json:"reorder_execution"`
}

func (a ScheduleActions) flags() []bool {
	return []bool{a.PeriodicAPICall, a.ReminderPush, a.ReorderDecision, a.ReorderExecution}
}

// ScheduleRecord is one closed-loop cycle.
type ScheduleRecord struct {
	SampleID             string          `json:"sample_id"`
	UserID               string          `json:"user_id"`
	CycleDay             int             `json:"cycle_day"`
	Expected             ScheduleActions `json:"expected_actions"`
	Observed             ScheduleActions `json:"observed_actions"`
	ExecutionRatePercent float64         `json:"execution_rate_percent"`
	Completed            bool            `json:"completed"`
}

var cycleDays = [4]int{7, 14, 21, 30}

// BuildScheduleRecords simulates max(count, len(users)) reorder cycles.
func BuildScheduleRecords(users []world.User, count int, rng *prng.Rand) []ScheduleRecord {
	n := max(count, len(users))
	rows := make([]ScheduleRecord, 0, n)
	expected := ScheduleActions{PeriodicAPICall: true, ReminderPush: true, ReorderDecision: true, ReorderExecution: true}
	for i := 0; i < n; i++ {
		u := users[rng.Int(len(users))]
		day := cycleDays[rng.Int(len(cycleDays))]
		var obs ScheduleActions
		obs.PeriodicAPICall = rng.Next() < 0.991
		obs.ReminderPush = obs.PeriodicAPICall && rng.Next() < 0.983
		obs.ReorderDecision = obs.ReminderPush && rng.Next() < 0.974
		obs.ReorderExecution = obs.ReorderDecision && rng.Next() < 0.948
		rows = append(rows, ScheduleRecord{
			SampleID:             seqID("clsched", i),
			UserID:               u.ID,
			CycleDay:             day,
			Expected:             expected,
			Observed:             obs,
			ExecutionRatePercent: ratePercent(obs.flags()...),
			Completed:            allTrue(obs.flags()...),
		})
	}
	return rows
}

// TraceNodes are the closed-loop graph nodes in execution order.
type TraceNodes struct {
	ConsultationAnswered bool `json:"consultation_answered"`
	EngineCalled         bool `json:"engine_called"`
	DiagnosticRequested  bool `json:"diagnostic_requested"`
	ExecutionCompleted   bool `json:"execution_completed"`
	ReminderSent         bool `json:"reminder_sent"`
	FollowupLogged       bool `json:"followup_logged"`
}

// NodeTraceRecord is one traversal of the closed-loop graph.
type NodeTraceRecord struct {
	SampleID           string     `json:"sample_id"`
	UserID             string     `json:"user_id"`
	CycleID            string     `json:"cycle_id"`
	Transitions        []string   `json:"transitions"`
	Nodes              TraceNodes `json:"nodes"`
	SuccessRatePercent float64    `json:"success_rate_percent"`
	Completed          bool       `json:"completed"`
}

var nodeTransitions = [6]string{
	"user->consultation_module",
	"consultation_module->engine_call",
	"engine_call->diagnostic_request",
	"diagnostic_request->execution",
	"execution->reminder",
	"reminder->followup",
}

// BuildNodeTraceRecords simulates max(count, len(users)) graph traversals.
func BuildNodeTraceRecords(users []world.User, count int, rng *prng.Rand) []NodeTraceRecord {
	n := max(count, len(users))
	rows := make([]NodeTraceRecord, 0, n)
	for i := 0; i < n; i++ {
		u := users[rng.Int(len(users))]
		var nd TraceNodes
		nd.ConsultationAnswered = rng.Next() < 0.994
		nd.EngineCalled = nd.ConsultationAnswered && rng.Next() < 0.988
		nd.DiagnosticRequested = nd.EngineCalled && rng.Next() < 0.967
		nd.ExecutionCompleted = nd.DiagnosticRequested && rng.Next() < 0.974
		nd.ReminderSent = nd.ExecutionCompleted && rng.Next() < 0.981
		nd.FollowupLogged = nd.ReminderSent && rng.Next() < 0.962
		flags := []bool{nd.ConsultationAnswered, nd.EngineCalled, nd.DiagnosticRequested,
			nd.ExecutionCompleted, nd.ReminderSent, nd.FollowupLogged}
		transitions := []string{}
		for k, ok := range flags {
			if ok {
				transitions = append(transitions, nodeTransitions[k])
			}
		}
		rows = append(rows, NodeTraceRecord{
			SampleID:           seqID("clnode", i),
			UserID:             u.ID,
			CycleID:            seqID("cycle", i),
			Transitions:        transitions,
			Nodes:              nd,
			SuccessRatePercent: ratePercent(flags...),
			Completed:          allTrue(flags...),
		})
	}
	return rows
}

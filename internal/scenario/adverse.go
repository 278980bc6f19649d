package scenario

import (
	"fmt"
	"math"
	"time"

	"rndharness/internal/kpi"
	"rndharness/internal/prng"
)

const (
	adverseEventCount   = 160
	adverseLinkedEvents = 4
	dayMillis           = 24 * 60 * 60 * 1000
)

// BuildAdverseEvents emits the fixed adverse-event log relative to
// generatedAt. The first four events are engine-linked; every ninth event
// (from the first) falls outside the twelve-month window unless it is linked.
func BuildAdverseEvents(generatedAt time.Time, rng *prng.Rand) []kpi.AdverseEventSample {
	end := generatedAt.UTC()
	windowStart := end.AddDate(-1, 0, 0).UnixMilli()
	outside := end.AddDate(-2, 0, 0).UnixMilli()
	rows := make([]kpi.AdverseEventSample, adverseEventCount)
	for i := range rows {
		linked := i < adverseLinkedEvents
		var at int64
		if linked || i%9 != 0 {
			at = windowStart + int64(math.Trunc(rng.Range(0, 360)*dayMillis))
		} else {
			at = outside + int64(math.Trunc(rng.Range(0, 120)*dayMillis))
		}
		rows[i] = kpi.AdverseEventSample{
			SampleID:       fmt.Sprintf("ae-%06d", i+1),
			EventID:        fmt.Sprintf("event-%06d", i+1),
			CaseID:         fmt.Sprintf("case-%06d", i+1),
			ReportedAt:     time.UnixMilli(at).UTC().Format(kpi.TimestampLayout),
			LinkedToEngine: linked,
		}
	}
	return rows
}

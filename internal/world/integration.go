package world

// DataSource is a biosensor or genetic feed that integration sessions pull
// from.
type DataSource string

const (
	SourceWearable          DataSource = "wearable"
	SourceContinuousGlucose DataSource = "continuous_glucose"
	SourceGeneticTest       DataSource = "genetic_test"
)

// DataSources lists the feeds in record-generation order.
var DataSources = []DataSource{SourceWearable, SourceContinuousGlucose, SourceGeneticTest}

// Kind is the data-lake source kind a feed is filed under.
func (s DataSource) Kind() SourceKind {
	switch s {
	case SourceWearable:
		return SourceInternalBehavior
	case SourceContinuousGlucose:
		return SourceInternalCompute
	}
	return SourceInternalProfile
}

// Sensitivity is "internal" for wearables and "sensitive" otherwise.
func (s DataSource) Sensitivity() string {
	if s == SourceWearable {
		return "internal"
	}
	return "sensitive"
}

// OneHot encodes the feed as (wearable, cgm, genetic).
func (s DataSource) OneHot() [3]float64 {
	switch s {
	case SourceWearable:
		return [3]float64{1, 0, 0}
	case SourceContinuousGlucose:
		return [3]float64{0, 1, 0}
	}
	return [3]float64{0, 0, 1}
}

// Valid reports whether s is a known feed.
func (s DataSource) Valid() bool {
	for _, d := range DataSources {
		if d == s {
			return true
		}
	}
	return false
}

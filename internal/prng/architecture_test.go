package prng

import (
	"testing"

	"rndharness/testutil"
)

// TestRandomnessStaysSeeded keeps every draw on the seeded generator so a
// seed reproduces a run.
func TestRandomnessStaysSeeded(t *testing.T) {
	testutil.AssertNoImportsOutside(t, "../..", func(rel string) bool {
		return rel == "internal/prng"
	}, testutil.RandomnessImport, "randomness must come from internal/prng")
}

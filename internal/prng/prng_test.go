package prng

import (
	"math"
	"testing"
)

func TestSameSeedSameSequence(t *testing.T) {
	for _, seed := range []int64{0x1, 20260227, 20260227 ^ 0x9f4f3a1f, 1 << 40, -17} {
		a, b := New(seed), New(seed)
		for i := 0; i < 10000; i++ {
			if x, y := a.Next(), b.Next(); x != y {
				t.Fatalf("seed %d diverged at draw %d: %v != %v", seed, i, x, y)
			}
		}
	}
}

func TestFirstDrawMatchesXorshift32(t *testing.T) {
	r := New(1)
	// 1 -> 1^(1<<13)=8193 -> 8193^(8193>>17)=8193 -> 8193^(8193<<5)=270369
	got := r.Next()
	if r.State() != 270369 {
		t.Fatalf("unexpected state %d", r.State())
	}
	if want := 270369.0 / 0xffffffff; got != want {
		t.Fatalf("next = %v want %v", got, want)
	}
}

func TestDeriveSeparatesStreams(t *testing.T) {
	a := Derive(20260227, 0x201)
	b := Derive(20260227, 0x202)
	same := 0
	for i := 0; i < 1000; i++ {
		if a.Next() == b.Next() {
			same++
		}
	}
	if same > 0 {
		t.Fatalf("derived streams overlap on %d draws", same)
	}
}

func TestRangeIntAndNormalBounds(t *testing.T) {
	r := New(99)
	var sum float64
	const n = 20000
	for i := 0; i < n; i++ {
		if v := r.Range(-0.35, 0.8); v < -0.35 || v > 0.8 {
			t.Fatalf("range out of bounds: %v", v)
		}
		if k := r.Int(7); k < 0 || k > 7 {
			t.Fatalf("int out of bounds: %d", k)
		}
		v := r.Normal(5, 2)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("normal produced %v", v)
		}
		sum += v
	}
	if mean := sum / n; math.Abs(mean-5) > 0.1 {
		t.Fatalf("normal mean drifted: %v", mean)
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	r := New(7)
	idx := make([]int, 50)
	for i := range idx {
		idx[i] = i
	}
	r.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	seen := make(map[int]bool, len(idx))
	for _, v := range idx {
		if seen[v] {
			t.Fatalf("duplicate %d after shuffle", v)
		}
		seen[v] = true
	}
	if len(seen) != 50 {
		t.Fatalf("lost elements: %d", len(seen))
	}
}

package numeric

import (
	"math"
	"testing"
)

func TestRoundToHalfUp(t *testing.T) {
	cases := []struct {
		in     float64
		digits int
		want   float64
	}{
		{1.005 * 1000, 0, 1005},
		{2.5, 0, 3},
		{-2.5, 0, -2},
		{0.12345, 4, 0.1235},
		{83.333333, 2, 83.33},
	}
	for _, c := range cases {
		if got := RoundTo(c.in, c.digits); math.Abs(got-c.want) > 1e-12 {
			t.Fatalf("RoundTo(%v,%d)=%v want %v", c.in, c.digits, got, c.want)
		}
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	p := Softmax([]float64{1000, 1001, 999})
	var s float64
	for _, v := range p {
		s += v
	}
	if math.Abs(s-1) > 1e-12 {
		t.Fatalf("sum %v", s)
	}
	if !(p[1] > p[0] && p[0] > p[2]) {
		t.Fatalf("ordering lost: %v", p)
	}
}

func TestSigmoidStable(t *testing.T) {
	if v := Sigmoid(-800); v != 0 && !(v > 0 && v < 1e-300) {
		t.Fatalf("sigmoid(-800)=%v", v)
	}
	if v := Sigmoid(800); v != 1 {
		t.Fatalf("sigmoid(800)=%v", v)
	}
	if v := Sigmoid(0); v != 0.5 {
		t.Fatalf("sigmoid(0)=%v", v)
	}
}

func TestCombinationsOrder(t *testing.T) {
	got := Combinations([]string{"a", "b", "c", "d"}, 3)
	want := [][]string{{"a", "b", "c"}, {"a", "b", "d"}, {"a", "c", "d"}, {"b", "c", "d"}}
	if len(got) != len(want) {
		t.Fatalf("got %d combos", len(got))
	}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("combo %d = %v want %v", i, got[i], want[i])
			}
		}
	}
	if Combinations([]int{1, 2}, 3) != nil {
		t.Fatalf("expected nil when k > n")
	}
	if n := len(Combinations(make([]int, 14), 3)); n != 364 {
		t.Fatalf("C(14,3)=%d", n)
	}
}

func TestNormalCDF(t *testing.T) {
	if v := NormalCDF(0); math.Abs(v-0.5) > 1e-9 {
		t.Fatalf("phi(0)=%v", v)
	}
	if v := NormalCDF(1.96); math.Abs(v-0.975) > 1e-3 {
		t.Fatalf("phi(1.96)=%v", v)
	}
	if v := NormalCDF(-1.96) + NormalCDF(1.96); math.Abs(v-1) > 1e-6 {
		t.Fatalf("symmetry broken: %v", v)
	}
}

func TestChunk(t *testing.T) {
	got := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(got) != 3 || len(got[2]) != 1 || got[2][0] != 5 {
		t.Fatalf("chunk = %v", got)
	}
}

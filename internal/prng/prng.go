// Package prng provides the seeded xorshift32 generator that every simulation
// and training component draws from. Streams are reproducible across platforms
// because only 32-bit unsigned integer ops and IEEE-754 division are used.
package prng

import "math"

// Rand is a xorshift32 generator. The zero value is a valid generator that
// always returns 0, so callers should construct it with New.
type Rand struct {
	state uint32
}

// New returns a generator seeded with the low 32 bits of seed.
func New(seed int64) *Rand {
	return &Rand{state: uint32(seed)}
}

// Derive returns a generator seeded with seed XOR offset. Each subsystem uses
// its own offset so streams never overlap.
func Derive(seed int64, offset uint32) *Rand {
	return &Rand{state: uint32(seed) ^ offset}
}

// State reports the current internal state.
func (r *Rand) State() uint32 { return r.state }

// Next advances the generator and returns a float in [0,1].
func (r *Rand) Next() float64 {
	x := r.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	r.state = x
	return float64(x) / 0xffffffff
}

// Int returns floor(Next()*n), capped at n-1 for the single state that
// yields exactly 1.
func (r *Rand) Int(n int) int {
	return min(int(math.Floor(r.Next()*float64(n))), n-1)
}

// Range returns lo + Next()*(hi-lo).
func (r *Rand) Range(lo, hi float64) float64 {
	return lo + r.Next()*(hi-lo)
}

// Normal draws from N(mean, std) with the Box-Muller cosine branch. Two
// uniforms are consumed per call.
func (r *Rand) Normal(mean, std float64) float64 {
	u1 := math.Max(r.Next(), 1e-12)
	u2 := r.Next()
	mag := math.Sqrt(-2 * math.Log(u1))
	return mean + mag*math.Cos(2*math.Pi*u2)*std
}

// Shuffle permutes n elements in place with Fisher-Yates, walking i from n-1
// down to 1 and drawing j = Int(i+1).
func (r *Rand) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.Int(i + 1)
		swap(i, j)
	}
}

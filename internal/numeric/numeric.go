// Package numeric holds the small float helpers shared by the simulation,
// training and KPI packages.
package numeric

import "math"

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// Sigmoid is the logistic function, split on sign to avoid overflow.
func Sigmoid(v float64) float64 {
	if v >= 0 {
		z := math.Exp(-v)
		return 1 / (1 + z)
	}
	z := math.Exp(v)
	return z / (1 + z)
}

// Dot multiplies left and right element-wise over len(left).
func Dot(left, right []float64) float64 {
	var sum float64
	for i := range left {
		sum += left[i] * right[i]
	}
	return sum
}

// Softmax returns normalized exponentials after subtracting the max logit.
func Softmax(logits []float64) []float64 {
	maxLogit := math.Inf(-1)
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	out := make([]float64, len(logits))
	var total float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// Average is the arithmetic mean. An empty slice yields NaN.
func Average(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// RoundTo rounds half up (toward +Inf) at the given number of decimals.
func RoundTo(v float64, digits int) float64 {
	unit := math.Pow(10, float64(digits))
	return math.Floor(v*unit+0.5) / unit
}

// Round rounds half up to the nearest integer.
func Round(v float64) float64 {
	return math.Floor(v + 0.5)
}

// Erf approximates the error function (Abramowitz & Stegun 7.1.26).
func Erf(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1
	}
	ax := math.Abs(x)
	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)
	t := 1 / (1 + p*ax)
	y := 1 - ((((a5*t+a4)*t+a3)*t+a2)*t+a1)*t*math.Exp(-ax*ax)
	return sign * y
}

// NormalCDF is Phi(z) built on Erf.
func NormalCDF(z float64) float64 {
	return 0.5 * (1 + Erf(z/math.Sqrt2))
}

// Combinations lists every size-k subset of items in lexicographic index order.
func Combinations[T any](items []T, k int) [][]T {
	if k <= 0 || k > len(items) {
		return nil
	}
	var out [][]T
	stack := make([]T, 0, k)
	var walk func(start int)
	walk = func(start int) {
		if len(stack) == k {
			out = append(out, append([]T(nil), stack...))
			return
		}
		for i := start; i < len(items); i++ {
			stack = append(stack, items[i])
			walk(i + 1)
			stack = stack[:len(stack)-1]
		}
	}
	walk(0)
	return out
}

// Chunk splits values into consecutive slices of at most size elements.
func Chunk[T any](values []T, size int) [][]T {
	if size <= 0 {
		return nil
	}
	var out [][]T
	for i := 0; i < len(values); i += size {
		end := min(i+size, len(values))
		out = append(out, values[i:end])
	}
	return out
}

// Package vec32 provides the float32 vector kernels shared by the template
// codec and the matcher: dot products and L2 normalization over fixed-length
// feature vectors.
package vec32

import "math"

// Dot returns the dot product of a and b.
//
// Callers MUST ensure len(a) == len(b); the function does not bounds-check
// beyond the natural range loop.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredNorm returns the squared L2 norm of v.
func SquaredNorm(v []float32) float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(SquaredNorm(v))))
}

// NormalizeL2InPlace scales v to unit length. It reports false for the
// degenerate zero-norm vector, leaving v untouched.
func NormalizeL2InPlace(v []float32) bool {
	n := Norm(v)
	if n == 0 {
		return false
	}
	inv := 1 / n
	for i := range v {
		v[i] *= inv
	}
	return true
}

// IsFinite reports whether x is neither NaN nor an infinity.
func IsFinite(x float32) bool {
	f := float64(x)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

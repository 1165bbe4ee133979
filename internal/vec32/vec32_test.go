package vec32

import (
	"math"
	"testing"
)

func TestDot(t *testing.T) {
	a := []float32{1, 0, 2}
	b := []float32{3, 5, -1}

	if got := Dot(a, b); got != 1 {
		t.Fatalf("Dot = %v, want 1", got)
	}
	if got := Dot([]float32{}, []float32{}); got != 0 {
		t.Fatalf("Dot of empty vectors = %v, want 0", got)
	}
}

func TestNormalizeL2InPlace(t *testing.T) {
	v := []float32{3, 4}
	if !NormalizeL2InPlace(v) {
		t.Fatal("NormalizeL2InPlace reported failure for a non-zero vector")
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Fatalf("normalized vector = %v, want [0.6 0.8]", v)
	}
	if math.Abs(float64(SquaredNorm(v))-1) > 1e-6 {
		t.Fatalf("squared norm after normalize = %v, want 1", SquaredNorm(v))
	}
}

func TestNormalizeL2InPlaceZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	if NormalizeL2InPlace(v) {
		t.Fatal("NormalizeL2InPlace accepted a zero vector")
	}
	for i, x := range v {
		if x != 0 {
			t.Fatalf("zero vector mutated at index %d: %v", i, x)
		}
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(1.5) || !IsFinite(0) || !IsFinite(-3) {
		t.Fatal("IsFinite rejected a finite value")
	}
	if IsFinite(float32(math.NaN())) {
		t.Fatal("IsFinite accepted NaN")
	}
	if IsFinite(float32(math.Inf(1))) || IsFinite(float32(math.Inf(-1))) {
		t.Fatal("IsFinite accepted an infinity")
	}
}

package template

import (
	"errors"
	"math"
	"testing"
)

func testSchema() Schema {
	return Schema{
		Version:    "v1",
		Length:     4,
		MinQuality: 0.3,
		MaxAbs:     16,
	}
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()

	c, err := NewCodec(testSchema())
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return c
}

func TestNewCodecValidation(t *testing.T) {
	bad := []Schema{
		{Version: "", Length: 4, MinQuality: 0.3, MaxAbs: 16},
		{Version: "v1", Length: 0, MinQuality: 0.3, MaxAbs: 16},
		{Version: "v1", Length: 4, MinQuality: -0.1, MaxAbs: 16},
		{Version: "v1", Length: 4, MinQuality: 1.1, MaxAbs: 16},
		{Version: "v1", Length: 4, MinQuality: 0.3, MaxAbs: 0},
	}
	for i, schema := range bad {
		if _, err := NewCodec(schema); err == nil {
			t.Fatalf("NewCodec accepted invalid schema %d: %+v", i, schema)
		}
	}
}

func TestNormalizeRejectsWrongLength(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.Normalize(Sample{Vector: []float32{1, 2, 3}, Quality: 0.9})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestNormalizeRejectsNonFiniteValues(t *testing.T) {
	c := newTestCodec(t)

	for _, x := range []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))} {
		_, err := c.Normalize(Sample{Vector: []float32{1, x, 0, 0}, Quality: 0.9})
		if !errors.Is(err, ErrSchemaMismatch) {
			t.Fatalf("expected ErrSchemaMismatch for value %v, got %v", x, err)
		}
	}
}

func TestNormalizeRejectsOutOfRangeValues(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.Normalize(Sample{Vector: []float32{17, 0, 0, 0}, Quality: 0.9})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	_, err = c.Normalize(Sample{Vector: []float32{0, -16.5, 0, 0}, Quality: 0.9})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestNormalizeRejectsLowQuality(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.Normalize(Sample{Vector: []float32{1, 0, 0, 0}, Quality: 0.1})
	if !errors.Is(err, ErrLowQuality) {
		t.Fatalf("expected ErrLowQuality, got %v", err)
	}
}

func TestNormalizeRejectsZeroVector(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.Normalize(Sample{Vector: []float32{0, 0, 0, 0}, Quality: 0.9})
	if !errors.Is(err, ErrLowQuality) {
		t.Fatalf("expected ErrLowQuality for zero vector, got %v", err)
	}
}

func TestNormalizeProducesUnitVector(t *testing.T) {
	c := newTestCodec(t)

	tpl, err := c.Normalize(Sample{Vector: []float32{3, 4, 0, 0}, Quality: 0.9})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	var sq float64
	for _, x := range tpl.Vector {
		sq += float64(x) * float64(x)
	}
	if math.Abs(sq-1) > 1e-6 {
		t.Fatalf("normalized squared norm = %v, want 1", sq)
	}
	if tpl.SchemaVersion != "v1" {
		t.Fatalf("SchemaVersion = %q, want v1", tpl.SchemaVersion)
	}
	if tpl.ID != "" || tpl.CreatedAt != 0 {
		t.Fatalf("codec must leave ID/CreatedAt zero, got %q/%d", tpl.ID, tpl.CreatedAt)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	c := newTestCodec(t)

	first, err := c.Normalize(Sample{Vector: []float32{2, -1, 0.5, 3}, Quality: 0.9})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	second, err := c.Normalize(Sample{Vector: first.Vector, Quality: 0.9})
	if err != nil {
		t.Fatalf("Normalize of normalized vector failed: %v", err)
	}

	for i := range first.Vector {
		if first.Vector[i] != second.Vector[i] {
			t.Fatalf("re-normalization changed component %d: %v != %v", i, first.Vector[i], second.Vector[i])
		}
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	c := newTestCodec(t)

	raw := []float32{3, 4, 0, 0}
	if _, err := c.Normalize(Sample{Vector: raw, Quality: 0.9}); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if raw[0] != 3 || raw[1] != 4 {
		t.Fatalf("input vector mutated: %v", raw)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tpl := &Template{
		ID:            "tpl-1",
		Vector:        []float32{0.6, 0.8, 0, 0},
		Quality:       0.9,
		SchemaVersion: "v1",
		CreatedAt:     1700000000,
	}

	blob, err := Encode(tpl)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.ID != tpl.ID || got.Quality != tpl.Quality ||
		got.SchemaVersion != tpl.SchemaVersion || got.CreatedAt != tpl.CreatedAt {
		t.Fatalf("decoded template mismatch: %+v", got)
	}
	if len(got.Vector) != len(tpl.Vector) {
		t.Fatalf("decoded vector length = %d, want %d", len(got.Vector), len(tpl.Vector))
	}
	for i := range tpl.Vector {
		if got.Vector[i] != tpl.Vector[i] {
			t.Fatalf("decoded vector component %d = %v, want %v", i, got.Vector[i], tpl.Vector[i])
		}
	}
}

func TestDecodeRejectsCorruptBlobs(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{templateFormatVersionCurrent},
		{99, 0x01, 0x02},
		{templateFormatVersionCurrent, 0xff, 0xff, 0xff},
	}
	for i, blob := range cases {
		if _, err := Decode(blob); !errors.Is(err, ErrCorruptTemplate) {
			t.Fatalf("case %d: expected ErrCorruptTemplate, got %v", i, err)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tpl := &Template{ID: "a", Vector: []float32{1, 2}, SchemaVersion: "v1"}

	clone := tpl.Clone()
	clone.Vector[0] = 9

	if tpl.Vector[0] != 1 {
		t.Fatalf("Clone shares vector storage with original")
	}
}

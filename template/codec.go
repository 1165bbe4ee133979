package template

import (
	"errors"
	"fmt"

	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/internal/vec32"
)

// ErrSchemaMismatch is an exported constant or variable used by the verification engine.
var ErrSchemaMismatch = errors.New("sample does not match template schema")

// ErrLowQuality is an exported constant or variable used by the verification engine.
var ErrLowQuality = errors.New("sample quality below enrollment floor")

// unitNormEpsilon bounds |norm²−1| under which a vector counts as already
// normalized and is copied through unchanged.
const unitNormEpsilon = 1e-6

// Codec validates and normalizes samples against a fixed [Schema].
//
// Codec instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Codec struct {
	schema Schema
}

// NewCodec creates a [Codec] for the given schema.
func NewCodec(schema Schema) (*Codec, error) {
	if schema.Version == "" {
		return nil, errors.New("Schema Version must not be empty")
	}
	if schema.Length <= 0 {
		return nil, errors.New("Schema Length must be > 0")
	}
	if schema.MinQuality < 0 || schema.MinQuality > 1 {
		return nil, errors.New("Schema MinQuality must be within [0, 1]")
	}
	if schema.MaxAbs <= 0 {
		return nil, errors.New("Schema MaxAbs must be > 0")
	}
	return &Codec{schema: schema}, nil
}

// Schema returns the schema the codec was built with.
func (c *Codec) Schema() Schema {
	return c.schema
}

// Normalize validates s against the codec schema and returns a storage-ready
// template: length and value range checked, quality floor enforced, vector
// L2-normalized. A vector that is already unit length is copied through
// unchanged, so Normalize is idempotent on its own output. The zero-norm
// vector is degenerate capture garbage and fails with [ErrLowQuality].
//
// Normalize is pure: it never mutates s.Vector and touches no shared state.
func (c *Codec) Normalize(s Sample) (*Template, error) {
	if len(s.Vector) != c.schema.Length {
		return nil, fmt.Errorf("%w: vector length %d, schema %s wants %d",
			ErrSchemaMismatch, len(s.Vector), c.schema.Version, c.schema.Length)
	}
	for i, x := range s.Vector {
		if !vec32.IsFinite(x) {
			return nil, fmt.Errorf("%w: non-finite value at index %d", ErrSchemaMismatch, i)
		}
		if x > c.schema.MaxAbs || x < -c.schema.MaxAbs {
			return nil, fmt.Errorf("%w: value at index %d outside ±%g", ErrSchemaMismatch, i, c.schema.MaxAbs)
		}
	}
	if s.Quality < c.schema.MinQuality {
		return nil, fmt.Errorf("%w: quality %.3f, floor %.3f", ErrLowQuality, s.Quality, c.schema.MinQuality)
	}

	vec := make([]float32, len(s.Vector))
	copy(vec, s.Vector)

	sq := vec32.SquaredNorm(vec)
	if sq == 0 {
		return nil, fmt.Errorf("%w: zero vector", ErrLowQuality)
	}
	if diff := float64(sq) - 1; diff > unitNormEpsilon || diff < -unitNormEpsilon {
		vec32.NormalizeL2InPlace(vec)
	}

	return &Template{
		Vector:        vec,
		Quality:       s.Quality,
		SchemaVersion: c.schema.Version,
	}, nil
}

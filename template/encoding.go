package template

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const templateFormatVersionCurrent = 1

// ErrCorruptTemplate is an exported constant or variable used by the verification engine.
var ErrCorruptTemplate = errors.New("corrupt stored template")

// storedTemplate is the CBOR wire form. Keys are append-only across format
// versions.
type storedTemplate struct {
	ID            string    `cbor:"1,keyasint"`
	Vector        []float32 `cbor:"2,keyasint"`
	Quality       float32   `cbor:"3,keyasint"`
	SchemaVersion string    `cbor:"4,keyasint"`
	CreatedAt     int64     `cbor:"5,keyasint"`
}

// Encode serializes t for storage: a format version byte followed by a CBOR
// body.
func Encode(t *Template) ([]byte, error) {
	body, err := cbor.Marshal(storedTemplate{
		ID:            t.ID,
		Vector:        t.Vector,
		Quality:       t.Quality,
		SchemaVersion: t.SchemaVersion,
		CreatedAt:     t.CreatedAt,
	})
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(body)+1)
	out = append(out, templateFormatVersionCurrent)
	out = append(out, body...)
	return out, nil
}

// Decode deserializes a stored template blob produced by [Encode].
func Decode(data []byte) (*Template, error) {
	if len(data) < 2 {
		return nil, ErrCorruptTemplate
	}
	if data[0] != templateFormatVersionCurrent {
		return nil, fmt.Errorf("%w: unknown format version %d", ErrCorruptTemplate, data[0])
	}

	var st storedTemplate
	if err := cbor.Unmarshal(data[1:], &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptTemplate, err)
	}

	return &Template{
		ID:            st.ID,
		Vector:        st.Vector,
		Quality:       st.Quality,
		SchemaVersion: st.SchemaVersion,
		CreatedAt:     st.CreatedAt,
	}, nil
}

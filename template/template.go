package template

// Schema describes the template layout for one feature-extractor generation.
//
//	Docs: docs/template.md
type Schema struct {
	Version    string
	Length     int
	MinQuality float32
	MaxAbs     float32
}

// Sample is a raw feature-extracted biometric sample submitted for enrollment
// or verification. The vector arrives from the upstream extractor untouched;
// Quality is the extractor's confidence in the capture.
type Sample struct {
	Vector  []float32
	Quality float32
}

// Template is a normalized, storage-ready biometric template. ID and CreatedAt
// are stamped by the feature store on Put; the codec leaves them zero.
type Template struct {
	ID            string
	Vector        []float32
	Quality       float32
	SchemaVersion string
	CreatedAt     int64
}

// Clone returns a deep copy of t.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	out := *t
	if t.Vector != nil {
		out.Vector = make([]float32, len(t.Vector))
		copy(out.Vector, t.Vector)
	}
	return &out
}

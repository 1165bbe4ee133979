// Package template implements the codec that turns raw biometric samples into
// storage-ready templates: fixed-length float32 feature vectors, L2-normalized
// so downstream cosine scoring is scale-invariant.
//
// # Schema
//
// A [Schema] pins the vector length, the enrollment quality floor, and the
// value range for one feature-extractor generation. Templates carry the schema
// version they were normalized under; mismatched samples are rejected, never
// silently coerced.
//
// # Stored encoding
//
// Templates persist as a format version byte followed by a CBOR body with
// integer keys. The encoding is append-only: new versions add keys, never
// reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns sample validation, normalization, and the stored template
// encoding. It does NOT score templates, persist them, or decide enrollment
// policy — those responsibilities belong to the matcher, the feature store,
// and the engine.
//
// # What this package must NOT do
//
//   - Import the engine, matcher, or featurestore packages (no upward imports).
//   - Perform I/O; [Codec.Normalize] is a pure function.
//   - Mutate caller-provided sample vectors.
package template

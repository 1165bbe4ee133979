// Package biometric provides a low-latency biometric verification engine
// with schema-versioned template enrollment, best-of-K cosine matching,
// Redis-backed identity lifecycle, and total per-verification audit
// accounting.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// biometric is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (VerifyResult, EnrollResult, VerificationRecord, etc.).
// Template normalization lives in template/, scoring in matcher/, identity
// persistence in featurestore/, attestation signing in attest/; this package
// orchestrates them and owns decision accounting.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or encoding details in its
//     public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Skip the verification record: every Verify call emits exactly one
//     [VerificationRecord], whatever the outcome.
//
// # Performance contract
//
// Verify is the hot path. It is allowed one Redis round-trip for the
// candidate snapshot; scoring is in-process arithmetic over float32 vectors.
// Enroll and Revoke take the per-identity write lease and are allowed a
// handful of round-trips.
package biometric

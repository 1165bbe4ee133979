// Package middleware exposes HTTP middleware for services that sit behind
// the verification engine and trust its attestation tokens instead of
// re-running a match: door controllers, payroll relays, kiosk backends.
//
// # Guards
//
//   - [Guard] — validates the Authorization bearer token and enforces a
//     minimum verification score.
//   - [RequireAttestation] — any valid attestation admits the request.
//   - [RequireScore] — valid attestation plus a score floor, for doors
//     that want a stronger match than the engine threshold.
//
// Each guard reads the Authorization header, calls Engine.ParseAttestation,
// and injects the verified claims into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into engine calls. It does NOT
// verify biometrics itself — the attestation was signed when the match
// happened, and the guard only checks that signature.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to the engine).
//   - Access Redis or template storage.
//   - Re-score anything: the score inside the claims is final.
package middleware

// Package featurestore persists enrolled biometric templates and identity
// lifecycle state in Redis.
//
// # Key layout
//
// Three keys per identity, all under a configurable prefix:
//
//	<prefix>:id:<identity>     hash: status, enrolled_at, updated_at, revoked_at
//	<prefix>:tpl:<identity>    list of encoded templates, oldest first
//	<prefix>:lease:<identity>  short-lived writer lease token
//
// The template list is capped: enrolling past the cap evicts the oldest
// template first. Revocation flips the status field and leaves the template
// list in place as a tombstone, so a revoked identity keeps answering
// Describe but never returns candidates.
//
// # Concurrency
//
// Reads (Get, Describe) are lock-free snapshots. Writes (Put, Revoke) are
// serialized per identity through the lease key: a writer takes the lease
// with SETNX and a TTL, retries until the configured wait budget runs out,
// and releases it with a compare-and-delete script. The TTL bounds how long
// a crashed writer can block an identity. Operations on distinct identities
// never contend.
//
// # Architecture boundaries
//
// The store treats templates as opaque encoded blobs plus the few fields it
// stamps on Put (ID, CreatedAt). It never inspects vectors and never makes
// match decisions.
//
// # What this package must NOT do
//
//   - No scoring or thresholding. That is the matcher's job.
//   - No normalization. Callers pass codec output only.
//   - No audit emission. The engine records outcomes.
//
// Docs: docs/featurestore.md
package featurestore

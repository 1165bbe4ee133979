package biometric

import (
	"time"

	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/attest"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/featurestore"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/matcher"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/template"
)

// Schema describes one template layout accepted by the engine: a version
// label plus the vector length and capture-quality floor enforced during
// normalization.
type Schema = template.Schema

// Sample is a raw feature vector as produced by a capture pipeline,
// before normalization.
type Sample = template.Sample

// Template is a normalized, schema-versioned biometric template.
type Template = template.Template

// Decision is the binary outcome of a verification.
type Decision = matcher.Decision

// RejectReason refines a REJECT decision.
type RejectReason = matcher.Reason

const (
	// DecisionReject is an exported constant or variable used by the verification engine.
	DecisionReject = matcher.Reject
	// DecisionAccept is an exported constant or variable used by the verification engine.
	DecisionAccept = matcher.Accept

	// ReasonNone is an exported constant or variable used by the verification engine.
	ReasonNone = matcher.ReasonNone
	// ReasonLowScore is an exported constant or variable used by the verification engine.
	ReasonLowScore = matcher.ReasonLowScore
	// ReasonNoEnrollment is an exported constant or variable used by the verification engine.
	ReasonNoEnrollment = matcher.ReasonNoEnrollment
	// ReasonInvalidSample is an exported constant or variable used by the verification engine.
	ReasonInvalidSample = matcher.ReasonInvalidSample
	// ReasonCancelled is an exported constant or variable used by the verification engine.
	ReasonCancelled = matcher.ReasonCancelled
	// ReasonInternal is an exported constant or variable used by the verification engine.
	ReasonInternal = matcher.ReasonInternal
)

// IdentityStatus is the lifecycle state of an enrolled identity.
type IdentityStatus = featurestore.Status

const (
	// StatusActive is an exported constant or variable used by the verification engine.
	StatusActive = featurestore.StatusActive
	// StatusRevoked is an exported constant or variable used by the verification engine.
	StatusRevoked = featurestore.StatusRevoked
)

// AttestationClaims is the decoded payload of an attestation token issued
// on ACCEPT.
type AttestationClaims = attest.Claims

// EnrollResult reports a successful enrollment.
type EnrollResult struct {
	// TemplateID is the server-assigned id of the stored template.
	TemplateID string

	// SchemaVersion the template was normalized under.
	SchemaVersion string

	// TemplateCount is the number of templates retained for the identity
	// after this enrollment, capped at Enrollment.MaxTemplatesPerIdentity.
	TemplateCount int
}

// VerifyResult reports the outcome of one verification attempt.
type VerifyResult struct {
	// VerificationID uniquely identifies this attempt and matches the
	// VerificationID of the emitted audit record.
	VerificationID string

	Identity string

	Decision Decision

	// Reason is set when Decision is REJECT, ReasonNone otherwise.
	Reason RejectReason

	// BestScore is the maximum cosine similarity over the candidate set,
	// zero when the identity had no usable enrollment.
	BestScore float32

	SchemaVersion string

	// Attestation is a signed token vouching for an ACCEPT. Empty unless
	// attestation is enabled and the decision was ACCEPT.
	Attestation string
}

// IdentityInfo describes the stored state of one identity.
type IdentityInfo struct {
	Identity string

	Status IdentityStatus

	// TemplateCount is the number of decodable templates on record.
	TemplateCount int

	// SchemaVersions lists the distinct schema versions present, sorted.
	SchemaVersions []string

	EnrolledAt time.Time
	UpdatedAt  time.Time
	RevokedAt  time.Time
}

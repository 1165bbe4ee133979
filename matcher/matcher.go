// Package matcher scores probe templates against enrolled candidates and owns
// the decision vocabulary for the verification pipeline.
//
// Scoring is cosine similarity, which over the codec's L2-normalized vectors
// reduces to a plain dot product. Best-of-K matching is a pure max-reduction
// across candidates: the matcher touches no shared state, and identical
// inputs always produce identical results.
package matcher

import (
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/internal/vec32"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/template"
)

// Decision is the binary outcome of a verification.
type Decision uint8

const (
	// Reject is an exported constant or variable used by the verification engine.
	Reject Decision = iota
	// Accept is an exported constant or variable used by the verification engine.
	Accept
)

func (d Decision) String() string {
	if d == Accept {
		return "ACCEPT"
	}
	return "REJECT"
}

// Reason refines a [Reject] decision. Scoring itself only produces
// [ReasonLowScore] and [ReasonNoEnrollment]; the coordinator attaches the
// remaining reasons for requests that never reach scoring.
type Reason uint8

const (
	// ReasonNone is an exported constant or variable used by the verification engine.
	ReasonNone Reason = iota
	// ReasonLowScore is an exported constant or variable used by the verification engine.
	ReasonLowScore
	// ReasonNoEnrollment is an exported constant or variable used by the verification engine.
	ReasonNoEnrollment
	// ReasonInvalidSample is an exported constant or variable used by the verification engine.
	ReasonInvalidSample
	// ReasonCancelled is an exported constant or variable used by the verification engine.
	ReasonCancelled
	// ReasonInternal is an exported constant or variable used by the verification engine.
	ReasonInternal
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonLowScore:
		return "low_score"
	case ReasonNoEnrollment:
		return "no_enrollment"
	case ReasonInvalidSample:
		return "invalid_sample"
	case ReasonCancelled:
		return "cancelled"
	case ReasonInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// MatchResult is returned by [Score].
type MatchResult struct {
	BestScore float32
	Decision  Decision
	Reason    Reason
}

// Score compares probe against every candidate of the probe's schema version
// and applies threshold to the best similarity: ACCEPT iff bestScore ≥
// threshold. An empty candidate set — unknown identity, revoked identity, or
// no candidate left after schema filtering — is a normal rejection with
// [ReasonNoEnrollment], never an error.
func Score(probe *template.Template, candidates []*template.Template, threshold float32) MatchResult {
	matchable := 0
	best := float32(-1)

	for _, c := range candidates {
		if c == nil || c.SchemaVersion != probe.SchemaVersion || len(c.Vector) != len(probe.Vector) {
			continue
		}
		matchable++
		if s := Similarity(probe, c); s > best {
			best = s
		}
	}

	if matchable == 0 {
		return MatchResult{Decision: Reject, Reason: ReasonNoEnrollment}
	}
	if best >= threshold {
		return MatchResult{BestScore: best, Decision: Accept}
	}
	return MatchResult{BestScore: best, Decision: Reject, Reason: ReasonLowScore}
}

// Similarity returns the cosine similarity of two templates. Both sides are
// unit vectors after the codec, so this is their dot product, clamped to
// [-1, 1] against float rounding.
//
// Callers MUST ensure both vectors have the same length.
func Similarity(a, b *template.Template) float32 {
	s := vec32.Dot(a.Vector, b.Vector)
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

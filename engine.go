package biometric

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/attest"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/featurestore"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/matcher"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/template"
)

// Engine is the verification engine. Construct it with [Builder.Build];
// the zero value is not usable. All methods are safe for concurrent use.
type Engine struct {
	config   Config
	codec    *template.Codec
	store    *featurestore.Store
	audit    *auditDispatcher
	metrics  *Metrics
	attestor *attest.Issuer
}

// verificationSession accumulates the facts of one Verify call for the
// record emitted on the way out.
type verificationSession struct {
	id            string
	identity      string
	schemaVersion string
	decision      Decision
	reason        RejectReason
	score         float32
	err           error
}

// Verify scores sample against the identity's enrolled templates and
// returns the decision.
//
// The returned error is non-nil only when no decision could be made:
// cancelled context or store failure. Rejections, including invalid
// samples and unknown identities, come back as a REJECT result with a
// nil error.
//
// Every call emits exactly one [VerificationRecord], whatever the
// outcome.
//
//	Performance: one Redis round-trip, then in-process scoring.
//	Docs: docs/verification.md
func (e *Engine) Verify(ctx context.Context, identity string, sample Sample) (*VerifyResult, error) {
	if e == nil || e.codec == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()

	sess := &verificationSession{
		id:       uuid.NewString(),
		identity: identity,
		decision: DecisionReject,
	}
	defer func() {
		e.emitVerification(ctx, sess)
		if e.metrics != nil {
			e.metrics.Observe(MetricVerifyLatency, time.Since(start))
		}
	}()

	if err := ctx.Err(); err != nil {
		sess.reason = ReasonCancelled
		sess.err = err
		e.metricInc(MetricVerifyCancelled)
		return nil, err
	}

	if identity == "" {
		sess.reason = ReasonInvalidSample
		sess.err = ErrInvalidSample
		e.metricInc(MetricVerifyInvalidSample)
		return rejectResult(sess), nil
	}

	probe, err := e.codec.Normalize(sample)
	if err != nil {
		sess.reason = ReasonInvalidSample
		sess.err = err
		e.metricInc(MetricVerifyInvalidSample)
		return rejectResult(sess), nil
	}
	sess.schemaVersion = probe.SchemaVersion

	candidates, err := e.store.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			sess.reason = ReasonCancelled
			e.metricInc(MetricVerifyCancelled)
		} else {
			sess.reason = ReasonInternal
			e.metricInc(MetricVerifyInternalError)
		}
		sess.err = err
		return nil, err
	}

	match := matcher.Score(probe, candidates, e.config.thresholdFor(probe.SchemaVersion))
	sess.decision = match.Decision
	sess.reason = match.Reason
	sess.score = match.BestScore

	result := &VerifyResult{
		VerificationID: sess.id,
		Identity:       identity,
		Decision:       match.Decision,
		Reason:         match.Reason,
		BestScore:      match.BestScore,
		SchemaVersion:  probe.SchemaVersion,
	}

	switch {
	case match.Decision == DecisionAccept:
		e.metricInc(MetricVerifyAccept)
		if e.attestor != nil {
			token, err := e.attestor.Issue(identity, sess.id, match.BestScore, probe.SchemaVersion)
			if err != nil {
				// The accept stands; the caller just gets no token.
				log.Printf("biometric: attestation signing failed: %v", err)
			} else {
				result.Attestation = token
			}
		}
	case match.Reason == ReasonNoEnrollment:
		e.metricInc(MetricVerifyNoEnrollment)
	default:
		e.metricInc(MetricVerifyReject)
	}

	return result, nil
}

// rejectResult builds the REJECT result for paths that never reached the
// matcher.
func rejectResult(sess *verificationSession) *VerifyResult {
	return &VerifyResult{
		VerificationID: sess.id,
		Identity:       sess.identity,
		Decision:       DecisionReject,
		Reason:         sess.reason,
		SchemaVersion:  sess.schemaVersion,
	}
}

// emitVerification hands the session's record to the dispatcher. The
// caller's ctx may already be cancelled; the record must still land, so
// delivery uses a background context.
func (e *Engine) emitVerification(ctx context.Context, sess *verificationSession) {
	if e.audit == nil {
		return
	}
	record := VerificationRecord{
		Timestamp:      time.Now().UTC(),
		VerificationID: sess.id,
		Identity:       sess.identity,
		SchemaVersion:  sess.schemaVersion,
		Decision:       sess.decision.String(),
		Reason:         sess.reason.String(),
		BestScore:      sess.score,
		DeviceSN:       deviceSNFromContext(ctx),
		IP:             clientIPFromContext(ctx),
	}
	if sess.err != nil {
		record.Error = sess.err.Error()
	}
	e.audit.Emit(context.Background(), record)
}

// ParseAttestation validates a token issued by this engine and returns
// its claims.
func (e *Engine) ParseAttestation(token string) (*AttestationClaims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.attestor == nil {
		return nil, errors.New("attestation is not enabled")
	}
	return e.attestor.Parse(token)
}

// Ping checks connectivity to the backing store.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	return e.store.Ping(ctx)
}

// Close drains the audit queue and releases engine resources. Safe to
// call on a nil engine and safe to call twice.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports how many verification records were lost to a full
// audit queue.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counters. Counters are all zero when
// metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the live registry so transports can count events that
// happen outside the engine. Nil when metrics are disabled.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

package biometric

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Enroll normalizes sample and appends the resulting template to the
// identity's enrollment set, evicting the oldest template past the
// configured cap.
//
// Enrollment takes the per-identity write lease; concurrent Enroll and
// Revoke calls for the same identity serialize. A revoked identity
// cannot re-enroll and gets ErrIdentityRevoked.
func (e *Engine) Enroll(ctx context.Context, identity string, sample Sample) (*EnrollResult, error) {
	if e == nil || e.codec == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if identity == "" {
		e.metricInc(MetricEnrollRejected)
		return nil, fmt.Errorf("%w: empty identity", ErrInvalidSample)
	}

	tpl, err := e.codec.Normalize(sample)
	if err != nil {
		e.metricInc(MetricEnrollRejected)
		return nil, err
	}

	id, count, err := e.store.Put(ctx, identity, tpl)
	if err != nil {
		switch {
		case errors.Is(err, ErrTimeout):
			e.metricInc(MetricEnrollTimeout)
		case errors.Is(err, ErrIdentityRevoked):
			e.metricInc(MetricEnrollRejected)
		default:
			e.metricInc(MetricEnrollFailure)
		}
		return nil, err
	}

	e.metricInc(MetricEnrollSuccess)
	return &EnrollResult{
		TemplateID:    id,
		SchemaVersion: tpl.SchemaVersion,
		TemplateCount: count,
	}, nil
}

// Revoke permanently retires an identity. Its templates stop matching
// immediately and the identity cannot re-enroll. Revoking an already
// revoked or never-enrolled identity succeeds and leaves a tombstone.
func (e *Engine) Revoke(ctx context.Context, identity string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if identity == "" {
		return fmt.Errorf("%w: empty identity", ErrInvalidSample)
	}

	if err := e.store.Revoke(ctx, identity); err != nil {
		e.metricInc(MetricRevokeFailure)
		return err
	}
	e.metricInc(MetricRevokeSuccess)
	return nil
}

// Identity reports the stored state of an identity: status, template
// count, schema versions, and lifecycle timestamps. Unknown identities
// get ErrIdentityUnknown.
func (e *Engine) Identity(ctx context.Context, identity string) (*IdentityInfo, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if identity == "" {
		return nil, fmt.Errorf("%w: empty identity", ErrInvalidSample)
	}

	info, err := e.store.Describe(ctx, identity)
	if err != nil {
		return nil, err
	}

	out := &IdentityInfo{
		Identity:       info.Identity,
		Status:         info.Status,
		TemplateCount:  info.TemplateCount,
		SchemaVersions: info.SchemaVersions,
	}
	if info.EnrolledAt > 0 {
		out.EnrolledAt = time.Unix(info.EnrolledAt, 0).UTC()
	}
	if info.UpdatedAt > 0 {
		out.UpdatedAt = time.Unix(info.UpdatedAt, 0).UTC()
	}
	if info.RevokedAt > 0 {
		out.RevokedAt = time.Unix(info.RevokedAt, 0).UTC()
	}
	return out, nil
}

package biometric

import (
	"errors"

	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/featurestore"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/template"
)

var (
	// ErrEngineNotReady is an exported constant or variable used by the verification engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrInvalidSample is an exported constant or variable used by the verification engine.
	ErrInvalidSample = errors.New("invalid sample")

	// ErrSchemaMismatch is an exported constant or variable used by the verification engine.
	ErrSchemaMismatch = template.ErrSchemaMismatch

	// ErrLowQuality is an exported constant or variable used by the verification engine.
	ErrLowQuality = template.ErrLowQuality

	// ErrIdentityRevoked is an exported constant or variable used by the verification engine.
	ErrIdentityRevoked = featurestore.ErrIdentityRevoked

	// ErrIdentityUnknown is an exported constant or variable used by the verification engine.
	ErrIdentityUnknown = featurestore.ErrIdentityUnknown

	// ErrTimeout is an exported constant or variable used by the verification engine.
	ErrTimeout = featurestore.ErrLeaseTimeout

	// ErrStoreUnavailable is an exported constant or variable used by the verification engine.
	ErrStoreUnavailable = featurestore.ErrRedisUnavailable
)

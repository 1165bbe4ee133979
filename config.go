package biometric

import (
	"errors"
	"strings"
	"time"
)

// Config controls every tunable of the verification engine. The zero value
// is not usable; start from [DefaultConfig] or [New] and override fields.
type Config struct {
	Schema      SchemaConfig
	Matcher     MatcherConfig
	Enrollment  EnrollmentConfig
	Store       StoreConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
	Attestation AttestationConfig
	Attendance  AttendanceConfig
	Device      DeviceConfig
}

/*
====================================
SCHEMA CONFIG
====================================
*/

// SchemaConfig fixes the template layout the engine accepts.
type SchemaConfig struct {
	// Version labels the layout, e.g. "v1". Samples carry a version and
	// must match.
	Version string

	// Length is the required vector length.
	Length int

	// MinQuality is the minimum capture quality in [0, 1]. Samples below
	// it are rejected before normalization.
	MinQuality float32

	// MaxAbs bounds the absolute value of any raw component. Values
	// beyond it indicate a broken capture pipeline.
	MaxAbs float32
}

/*
====================================
MATCHER CONFIG
====================================
*/

// MatcherConfig sets the accept threshold for cosine scores.
type MatcherConfig struct {
	// Threshold is the default accept threshold in [-1, 1]. A best score
	// greater than or equal to it yields ACCEPT.
	Threshold float32

	// Thresholds overrides Threshold per schema version. Missing versions
	// fall back to Threshold.
	Thresholds map[string]float32
}

/*
====================================
ENROLLMENT CONFIG
====================================
*/

// EnrollmentConfig bounds per-identity template storage and write
// serialization.
type EnrollmentConfig struct {
	// MaxTemplatesPerIdentity caps stored templates per identity. The
	// oldest template is evicted first.
	MaxTemplatesPerIdentity int

	// LeaseTTL is how long a write lease is held before Redis expires it.
	LeaseTTL time.Duration

	// LeaseWait bounds how long Enroll and Revoke wait for a contended
	// lease before failing with ErrTimeout.
	LeaseWait time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig namespaces the engine's Redis keys.
type StoreConfig struct {
	// RedisPrefix prefixes every key written by the engine.
	RedisPrefix string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls verification-record delivery.
type AuditConfig struct {
	// Enabled turns on record delivery to the configured sink.
	Enabled bool

	// BufferSize is the dispatch queue capacity.
	BufferSize int

	// DropIfFull drops records when the queue is full instead of blocking
	// the verification path. Dropped records are counted.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled bool

	// EnableLatencyHistograms additionally records verification latency
	// buckets.
	EnableLatencyHistograms bool
}

/*
====================================
ATTESTATION CONFIG
====================================
*/

// AttestationConfig controls signed accept tokens.
type AttestationConfig struct {
	Enabled bool

	// TTL is the token lifetime.
	TTL time.Duration

	// SigningMethod selects "ed25519" or "hs256".
	SigningMethod string

	// PrivateKey is the signing key: an Ed25519 seed/private key (raw or
	// PEM) or the HMAC secret, depending on SigningMethod.
	PrivateKey []byte

	// PublicKey optionally pins the Ed25519 verify key. Derived from
	// PrivateKey when empty.
	PublicKey []byte

	// Issuer is stamped into the token's iss claim when non-empty.
	Issuer string

	// Leeway tolerates clock skew during verification.
	Leeway time.Duration
}

/*
====================================
ATTENDANCE CONFIG
====================================
*/

// AttendanceConfig controls the attendance record store and the
// verify-to-attendance bridge. Consumed by the HTTP service rather than
// the engine itself.
type AttendanceConfig struct {
	// BridgeEnabled lets an accepted verification append an attendance
	// record when the caller asks for one.
	BridgeEnabled bool

	// BridgeStatus is the status code stamped on bridged records,
	// "0" (check-in) unless a punch says otherwise.
	BridgeStatus string

	// MaxRecords caps the stored attendance list. The oldest record is
	// evicted first.
	MaxRecords int
}

/*
====================================
DEVICE CONFIG
====================================
*/

// DeviceConfig controls the terminal registry and command delivery.
// Consumed by the HTTP service rather than the engine itself.
type DeviceConfig struct {
	// DisconnectWindow is how long after its last push a terminal still
	// counts as connected.
	DisconnectWindow time.Duration

	// CommandQueueLimit bounds pending commands per terminal.
	CommandQueueLimit int

	// PushPerMinute throttles ATTLOG pushes per terminal. Zero disables
	// throttling.
	PushPerMinute int
}

// DefaultConfig returns the engine defaults: a single "v1" schema of
// length 128, accept threshold 0.8, five templates per identity, audit
// and metrics off.
func DefaultConfig() Config {
	return Config{
		Schema: SchemaConfig{
			Version:    "v1",
			Length:     128,
			MinQuality: 0.35,
			MaxAbs:     16,
		},
		Matcher: MatcherConfig{
			Threshold: 0.8,
		},
		Enrollment: EnrollmentConfig{
			MaxTemplatesPerIdentity: 5,
			LeaseTTL:                3 * time.Second,
			LeaseWait:               2 * time.Second,
		},
		Store: StoreConfig{
			RedisPrefix: "bio",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Attestation: AttestationConfig{
			Enabled:       false,
			TTL:           2 * time.Minute,
			SigningMethod: "hs256",
		},
		Attendance: AttendanceConfig{
			BridgeEnabled: true,
			BridgeStatus:  "0",
			MaxRecords:    5000,
		},
		Device: DeviceConfig{
			DisconnectWindow:  2 * time.Minute,
			CommandQueueLimit: 64,
			PushPerMinute:     120,
		},
	}
}

// cloneConfig deep-copies cfg so later caller mutation cannot reach a
// built engine.
func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Matcher.Thresholds != nil {
		out.Matcher.Thresholds = make(map[string]float32, len(cfg.Matcher.Thresholds))
		for version, threshold := range cfg.Matcher.Thresholds {
			out.Matcher.Thresholds[version] = threshold
		}
	}
	out.Attestation.PrivateKey = cloneBytes(cfg.Attestation.PrivateKey)
	out.Attestation.PublicKey = cloneBytes(cfg.Attestation.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Schema.Version) == "" {
		return errors.New("Schema Version must not be empty")
	}
	if c.Schema.Length <= 0 {
		return errors.New("Schema Length must be > 0")
	}
	if c.Schema.MinQuality < 0 || c.Schema.MinQuality > 1 {
		return errors.New("Schema MinQuality must be within [0, 1]")
	}
	if c.Schema.MaxAbs <= 0 {
		return errors.New("Schema MaxAbs must be > 0")
	}

	if c.Matcher.Threshold < -1 || c.Matcher.Threshold > 1 {
		return errors.New("Matcher Threshold must be within [-1, 1]")
	}
	for version, threshold := range c.Matcher.Thresholds {
		if strings.TrimSpace(version) == "" {
			return errors.New("Matcher Thresholds must not contain an empty schema version")
		}
		if threshold < -1 || threshold > 1 {
			return errors.New("Matcher Thresholds values must be within [-1, 1]")
		}
	}

	if c.Enrollment.MaxTemplatesPerIdentity <= 0 {
		return errors.New("Enrollment MaxTemplatesPerIdentity must be > 0")
	}
	if c.Enrollment.LeaseTTL <= 0 {
		return errors.New("Enrollment LeaseTTL must be > 0")
	}
	if c.Enrollment.LeaseWait < 0 {
		return errors.New("Enrollment LeaseWait must be >= 0")
	}

	if strings.TrimSpace(c.Store.RedisPrefix) == "" {
		return errors.New("Store RedisPrefix must not be empty")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	if c.Attestation.Enabled {
		if c.Attestation.TTL <= 0 {
			return errors.New("Attestation TTL must be > 0 when Attestation is enabled")
		}
		switch c.Attestation.SigningMethod {
		case "ed25519", "hs256":
		default:
			return errors.New("Attestation SigningMethod must be ed25519 or hs256")
		}
		if len(c.Attestation.PrivateKey) == 0 {
			return errors.New("Attestation PrivateKey must not be empty when Attestation is enabled")
		}
	}

	if c.Attendance.BridgeEnabled && strings.TrimSpace(c.Attendance.BridgeStatus) == "" {
		return errors.New("Attendance BridgeStatus must not be empty when the bridge is enabled")
	}
	if c.Attendance.MaxRecords <= 0 {
		return errors.New("Attendance MaxRecords must be > 0")
	}

	if c.Device.DisconnectWindow <= 0 {
		return errors.New("Device DisconnectWindow must be > 0")
	}
	if c.Device.CommandQueueLimit <= 0 {
		return errors.New("Device CommandQueueLimit must be > 0")
	}
	if c.Device.PushPerMinute < 0 {
		return errors.New("Device PushPerMinute must be >= 0")
	}

	return nil
}

// thresholdFor resolves the accept threshold for a schema version.
func (c *Config) thresholdFor(version string) float32 {
	if threshold, ok := c.Matcher.Thresholds[version]; ok {
		return threshold
	}
	return c.Matcher.Threshold
}

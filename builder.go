package biometric

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/attest"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/featurestore"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/template"
)

// Builder assembles an [Engine]. Obtain one with [New], chain the WithX
// methods, then call [Builder.Build] once.
//
//	engine, err := biometric.New().
//		WithRedis(client).
//		WithAuditSink(sink).
//		Build()
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	auditSink AuditSink
	built     bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the entire configuration. The config is copied;
// later caller mutation has no effect.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the feature store. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the destination for verification records and enables
// auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithThreshold overrides the default accept threshold.
func (b *Builder) WithThreshold(threshold float32) *Builder {
	b.config.Matcher.Threshold = threshold
	return b
}

// WithMetrics enables the in-process counter registry.
func (b *Builder) WithMetrics(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms additionally enables verification latency buckets.
// Implies metrics.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	if enabled {
		b.config.Metrics.Enabled = true
	}
	return b
}

// Build validates the configuration and returns a ready Engine. A Builder
// can build at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder has already been used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	codec, err := template.NewCodec(template.Schema{
		Version:    b.config.Schema.Version,
		Length:     b.config.Schema.Length,
		MinQuality: b.config.Schema.MinQuality,
		MaxAbs:     b.config.Schema.MaxAbs,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config: cloneConfig(b.config),
		codec:  codec,
		store: featurestore.NewStore(
			b.redis,
			b.config.Store.RedisPrefix,
			b.config.Enrollment.MaxTemplatesPerIdentity,
			b.config.Enrollment.LeaseTTL,
			b.config.Enrollment.LeaseWait,
		),
		audit:   newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics: NewMetrics(b.config.Metrics),
	}

	if b.config.Attestation.Enabled {
		issuer, err := attest.NewIssuer(attest.Config{
			TTL:           b.config.Attestation.TTL,
			SigningMethod: attest.SigningMethod(b.config.Attestation.SigningMethod),
			PrivateKey:    cloneBytes(b.config.Attestation.PrivateKey),
			PublicKey:     cloneBytes(b.config.Attestation.PublicKey),
			Issuer:        b.config.Attestation.Issuer,
			Leeway:        b.config.Attestation.Leeway,
		})
		if err != nil {
			return nil, err
		}
		engine.attestor = issuer
	}

	b.built = true
	return engine, nil
}

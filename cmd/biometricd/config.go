package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/mcuadros/go-defaults"

	biometric "github.com/Guidona-Softpedia-Private-Limited/geo-attendance"
)

// daemonConfig is the on-disk daemon configuration. Values resolve in three
// layers: struct-tag defaults, then the TOML file, then environment
// overrides. Durations are integer seconds so the file stays editable
// without knowing Go duration syntax.
type daemonConfig struct {
	Listen string `toml:"listen" default:":9001" env:"BIOMETRICD_LISTEN"`

	Redis       redisSection       `toml:"redis"`
	Schema      schemaSection      `toml:"schema"`
	Matcher     matcherSection     `toml:"matcher"`
	Enrollment  enrollmentSection  `toml:"enrollment"`
	Audit       auditSection       `toml:"audit"`
	Metrics     metricsSection     `toml:"metrics"`
	Attestation attestationSection `toml:"attestation"`
	Attendance  attendanceSection  `toml:"attendance"`
	Device      deviceSection      `toml:"device"`
	Jobs        jobsSection        `toml:"jobs"`
}

type redisSection struct {
	Addr     string `toml:"addr" default:"127.0.0.1:6379" env:"BIOMETRICD_REDIS_ADDR"`
	Password string `toml:"password" env:"BIOMETRICD_REDIS_PASSWORD"`
	DB       int    `toml:"db" env:"BIOMETRICD_REDIS_DB"`
	Prefix   string `toml:"prefix" default:"bio" env:"BIOMETRICD_REDIS_PREFIX"`
}

type schemaSection struct {
	Version    string  `toml:"version" default:"v1"`
	Length     int     `toml:"length" default:"128"`
	MinQuality float64 `toml:"min_quality" default:"0.35"`
	MaxAbs     float64 `toml:"max_abs" default:"16"`
}

type matcherSection struct {
	Threshold float64 `toml:"threshold" default:"0.8"`

	// Thresholds overrides the accept threshold per schema version.
	Thresholds map[string]float64 `toml:"thresholds"`
}

type enrollmentSection struct {
	MaxTemplates     int `toml:"max_templates" default:"5"`
	LeaseTTLSeconds  int `toml:"lease_ttl_seconds" default:"3"`
	LeaseWaitSeconds int `toml:"lease_wait_seconds" default:"2"`
}

type auditSection struct {
	Enabled bool `toml:"enabled" default:"true" env:"BIOMETRICD_AUDIT_ENABLED"`

	// Dir receives verifications.%Y%m%d.jsonl plus a stable symlink.
	Dir         string `toml:"dir" default:"./audit" env:"BIOMETRICD_AUDIT_DIR"`
	RotateHours int    `toml:"rotate_hours" default:"24"`
	MaxAgeDays  int    `toml:"max_age_days" default:"14"`
	Buffer      int    `toml:"buffer" default:"1024"`
	DropIfFull  bool   `toml:"drop_if_full" default:"true"`
}

type metricsSection struct {
	Enabled           bool `toml:"enabled" default:"true"`
	LatencyHistograms bool `toml:"latency_histograms" default:"true"`
}

type attestationSection struct {
	Enabled       bool   `toml:"enabled"`
	TTLSeconds    int    `toml:"ttl_seconds" default:"120"`
	SigningMethod string `toml:"signing_method" default:"hs256"`
	Issuer        string `toml:"issuer" default:"biometricd"`
	LeewaySeconds int    `toml:"leeway_seconds"`

	// Key is the inline secret (hs256). KeyFile points at the signing key
	// on disk and wins for ed25519 PEM material.
	Key           string `toml:"key" env:"BIOMETRICD_ATTESTATION_KEY"`
	KeyFile       string `toml:"key_file" env:"BIOMETRICD_ATTESTATION_KEY_FILE"`
	PublicKeyFile string `toml:"public_key_file"`
}

type attendanceSection struct {
	BridgeEnabled bool   `toml:"bridge_enabled" default:"true"`
	BridgeStatus  string `toml:"bridge_status" default:"0"`
	MaxRecords    int    `toml:"max_records" default:"5000"`
}

type deviceSection struct {
	DisconnectSeconds int `toml:"disconnect_seconds" default:"120"`
	CommandQueueLimit int `toml:"command_queue_limit" default:"64"`
	PushPerMinute     int `toml:"push_per_minute" default:"120"`
}

type jobsSection struct {
	// AutoQueueSeconds is the ticker interval for seeding upload commands;
	// zero disables the job. AutoQueueWindowSeconds bounds how recently a
	// device must have pushed to get one.
	AutoQueueSeconds       int `toml:"auto_queue_seconds" default:"30"`
	AutoQueueWindowSeconds int `toml:"auto_queue_window_seconds" default:"300"`

	// MonitorSeconds is the liveness sweep interval; zero disables it.
	MonitorSeconds int `toml:"monitor_seconds" default:"30"`
}

// loadConfig resolves the daemon configuration from defaults, an optional
// TOML file, and the environment, in that order.
func loadConfig(path string) (*daemonConfig, error) {
	cfg := new(daemonConfig)
	defaults.SetDefaults(cfg)

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

// engineConfig maps the daemon file config onto the engine's config. Key
// material is loaded here so a bad path fails at startup, not at first
// verify.
func (c *daemonConfig) engineConfig() (biometric.Config, error) {
	cfg := biometric.DefaultConfig()

	cfg.Schema.Version = c.Schema.Version
	cfg.Schema.Length = c.Schema.Length
	cfg.Schema.MinQuality = float32(c.Schema.MinQuality)
	cfg.Schema.MaxAbs = float32(c.Schema.MaxAbs)

	cfg.Matcher.Threshold = float32(c.Matcher.Threshold)
	if len(c.Matcher.Thresholds) > 0 {
		cfg.Matcher.Thresholds = make(map[string]float32, len(c.Matcher.Thresholds))
		for version, threshold := range c.Matcher.Thresholds {
			cfg.Matcher.Thresholds[version] = float32(threshold)
		}
	}

	cfg.Enrollment.MaxTemplatesPerIdentity = c.Enrollment.MaxTemplates
	cfg.Enrollment.LeaseTTL = seconds(c.Enrollment.LeaseTTLSeconds)
	cfg.Enrollment.LeaseWait = seconds(c.Enrollment.LeaseWaitSeconds)

	cfg.Store.RedisPrefix = c.Redis.Prefix

	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.Buffer
	cfg.Audit.DropIfFull = c.Audit.DropIfFull

	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.LatencyHistograms

	cfg.Attestation.Enabled = c.Attestation.Enabled
	if c.Attestation.Enabled {
		cfg.Attestation.TTL = seconds(c.Attestation.TTLSeconds)
		cfg.Attestation.SigningMethod = c.Attestation.SigningMethod
		cfg.Attestation.Issuer = c.Attestation.Issuer
		cfg.Attestation.Leeway = seconds(c.Attestation.LeewaySeconds)

		key, err := c.Attestation.privateKey()
		if err != nil {
			return biometric.Config{}, err
		}
		cfg.Attestation.PrivateKey = key

		if c.Attestation.PublicKeyFile != "" {
			pub, err := os.ReadFile(c.Attestation.PublicKeyFile)
			if err != nil {
				return biometric.Config{}, fmt.Errorf("read attestation public key: %w", err)
			}
			cfg.Attestation.PublicKey = pub
		}
	}

	cfg.Attendance.BridgeEnabled = c.Attendance.BridgeEnabled
	cfg.Attendance.BridgeStatus = c.Attendance.BridgeStatus
	cfg.Attendance.MaxRecords = c.Attendance.MaxRecords

	cfg.Device.DisconnectWindow = seconds(c.Device.DisconnectSeconds)
	cfg.Device.CommandQueueLimit = c.Device.CommandQueueLimit
	cfg.Device.PushPerMinute = c.Device.PushPerMinute

	return cfg, nil
}

func (a *attestationSection) privateKey() ([]byte, error) {
	if a.KeyFile != "" {
		key, err := os.ReadFile(a.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read attestation key: %w", err)
		}
		return key, nil
	}
	if a.Key != "" {
		return []byte(a.Key), nil
	}
	return nil, errors.New("attestation enabled without key or key_file")
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

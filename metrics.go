package biometric

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricEnrollSuccess is an exported constant or variable used by the verification engine.
	MetricEnrollSuccess MetricID = iota
	// MetricEnrollRejected is an exported constant or variable used by the verification engine.
	MetricEnrollRejected
	// MetricEnrollTimeout is an exported constant or variable used by the verification engine.
	MetricEnrollTimeout
	// MetricEnrollFailure is an exported constant or variable used by the verification engine.
	MetricEnrollFailure
	// MetricVerifyAccept is an exported constant or variable used by the verification engine.
	MetricVerifyAccept
	// MetricVerifyReject is an exported constant or variable used by the verification engine.
	MetricVerifyReject
	// MetricVerifyNoEnrollment is an exported constant or variable used by the verification engine.
	MetricVerifyNoEnrollment
	// MetricVerifyInvalidSample is an exported constant or variable used by the verification engine.
	MetricVerifyInvalidSample
	// MetricVerifyCancelled is an exported constant or variable used by the verification engine.
	MetricVerifyCancelled
	// MetricVerifyInternalError is an exported constant or variable used by the verification engine.
	MetricVerifyInternalError
	// MetricRevokeSuccess is an exported constant or variable used by the verification engine.
	MetricRevokeSuccess
	// MetricRevokeFailure is an exported constant or variable used by the verification engine.
	MetricRevokeFailure
	// MetricAttendanceAccepted is an exported constant or variable used by the verification engine.
	MetricAttendanceAccepted
	// MetricAttendanceDuplicate is an exported constant or variable used by the verification engine.
	MetricAttendanceDuplicate
	// MetricAttendanceMalformed is an exported constant or variable used by the verification engine.
	MetricAttendanceMalformed
	// MetricDeviceCommandServed is an exported constant or variable used by the verification engine.
	MetricDeviceCommandServed
	// MetricDeviceThrottled is an exported constant or variable used by the verification engine.
	MetricDeviceThrottled
	// MetricDeviceFlap is an exported constant or variable used by the verification engine.
	MetricDeviceFlap
	// MetricVerifyLatency is an exported constant or variable used by the verification engine.
	MetricVerifyLatency

	metricIDCount
)

// String returns the stable snake_case name used by metrics exports.
func (id MetricID) String() string {
	switch id {
	case MetricEnrollSuccess:
		return "enroll_success"
	case MetricEnrollRejected:
		return "enroll_rejected"
	case MetricEnrollTimeout:
		return "enroll_timeout"
	case MetricEnrollFailure:
		return "enroll_failure"
	case MetricVerifyAccept:
		return "verify_accept"
	case MetricVerifyReject:
		return "verify_reject"
	case MetricVerifyNoEnrollment:
		return "verify_no_enrollment"
	case MetricVerifyInvalidSample:
		return "verify_invalid_sample"
	case MetricVerifyCancelled:
		return "verify_cancelled"
	case MetricVerifyInternalError:
		return "verify_internal_error"
	case MetricRevokeSuccess:
		return "revoke_success"
	case MetricRevokeFailure:
		return "revoke_failure"
	case MetricAttendanceAccepted:
		return "attendance_accepted"
	case MetricAttendanceDuplicate:
		return "attendance_duplicate"
	case MetricAttendanceMalformed:
		return "attendance_malformed"
	case MetricDeviceCommandServed:
		return "device_command_served"
	case MetricDeviceThrottled:
		return "device_throttled"
	case MetricDeviceFlap:
		return "device_flap"
	case MetricVerifyLatency:
		return "verify_latency"
	default:
		return "unknown"
	}
}

const cacheLineSize = 64

// paddedCounter occupies a full cache line so adjacent counters do not
// false-share under concurrent increments.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

const latencyBucketCount = 8

var latencyBucketLabels = [latencyBucketCount]string{
	"le_5ms", "le_10ms", "le_25ms", "le_50ms",
	"le_100ms", "le_250ms", "le_500ms", "gt_500ms",
}

// LatencyBucketLabel names histogram bucket i for exports.
func LatencyBucketLabel(i int) string {
	if i < 0 || i >= latencyBucketCount {
		return "unknown"
	}
	return latencyBucketLabels[i]
}

// Metrics is a fixed-size, allocation-free counter registry. A nil
// *Metrics is valid and counts nothing.
type Metrics struct {
	histogramsEnabled bool
	counters          [metricIDCount]paddedCounter
	verifyLatency     [latencyBucketCount]paddedCounter
}

// NewMetrics returns a registry per cfg, or nil when metrics are disabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{histogramsEnabled: cfg.EnableLatencyHistograms}
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample. Only MetricVerifyLatency is
// histogrammed; other ids and disabled histograms are no-ops.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.histogramsEnabled || id != MetricVerifyLatency {
		return
	}
	atomic.AddUint64(&m.verifyLatency[bucketIndex(d)].value, 1)
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()
	switch {
	case ms < 5:
		return 0
	case ms < 10:
		return 1
	case ms < 25:
		return 2
	case ms < 50:
		return 3
	case ms < 100:
		return 4
	case ms < 250:
		return 5
	case ms < 500:
		return 6
	default:
		return 7
	}
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64

	// VerifyLatencyBuckets holds histogram counts indexed per
	// [LatencyBucketLabel]. Nil when histograms are disabled.
	VerifyLatencyBuckets []uint64
}

// Snapshot copies the registry. Safe to call concurrently with updates;
// the copy is per-counter atomic, not globally consistent.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.histogramsEnabled {
		snap.VerifyLatencyBuckets = make([]uint64, latencyBucketCount)
		for i := range m.verifyLatency {
			snap.VerifyLatencyBuckets[i] = atomic.LoadUint64(&m.verifyLatency[i].value)
		}
	}
	return snap
}

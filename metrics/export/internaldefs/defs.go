package internaldefs

import (
	biometric "github.com/Guidona-Softpedia-Private-Limited/geo-attendance"
)

// CounterDef binds an engine counter to its exported name and help text.
type CounterDef struct {
	ID   biometric.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the verification engine.
var CounterDefs = []CounterDef{
	{ID: biometric.MetricEnrollSuccess, Name: "biometric_enroll_success_total", Help: "Successful enrollments."},
	{ID: biometric.MetricEnrollRejected, Name: "biometric_enroll_rejected_total", Help: "Enrollments rejected for sample quality or identity state."},
	{ID: biometric.MetricEnrollTimeout, Name: "biometric_enroll_timeout_total", Help: "Enrollments that timed out waiting for the identity lease."},
	{ID: biometric.MetricEnrollFailure, Name: "biometric_enroll_failure_total", Help: "Enrollments failed on storage errors."},
	{ID: biometric.MetricVerifyAccept, Name: "biometric_verify_accept_total", Help: "Accepted verifications."},
	{ID: biometric.MetricVerifyReject, Name: "biometric_verify_reject_total", Help: "Verifications rejected on low score."},
	{ID: biometric.MetricVerifyNoEnrollment, Name: "biometric_verify_no_enrollment_total", Help: "Verifications against unknown or revoked identities."},
	{ID: biometric.MetricVerifyInvalidSample, Name: "biometric_verify_invalid_sample_total", Help: "Verifications rejected before scoring."},
	{ID: biometric.MetricVerifyCancelled, Name: "biometric_verify_cancelled_total", Help: "Verifications abandoned by the caller."},
	{ID: biometric.MetricVerifyInternalError, Name: "biometric_verify_internal_error_total", Help: "Verifications failed on storage errors."},
	{ID: biometric.MetricRevokeSuccess, Name: "biometric_revoke_success_total", Help: "Successful revocations."},
	{ID: biometric.MetricRevokeFailure, Name: "biometric_revoke_failure_total", Help: "Failed revocations."},
	{ID: biometric.MetricAttendanceAccepted, Name: "biometric_attendance_accepted_total", Help: "Accepted attendance events."},
	{ID: biometric.MetricAttendanceDuplicate, Name: "biometric_attendance_duplicate_total", Help: "Attendance events dropped as device re-sends."},
	{ID: biometric.MetricAttendanceMalformed, Name: "biometric_attendance_malformed_total", Help: "Attendance lines that did not parse."},
	{ID: biometric.MetricDeviceCommandServed, Name: "biometric_device_command_served_total", Help: "Commands served to polling terminals."},
	{ID: biometric.MetricDeviceThrottled, Name: "biometric_device_throttled_total", Help: "Device pushes rejected by the rate limiter."},
	{ID: biometric.MetricDeviceFlap, Name: "biometric_device_flap_total", Help: "Device liveness transitions observed by the monitor."},
}

// VerifyLatencyName is an exported constant or variable used by the verification engine.
const VerifyLatencyName = "biometric_verify_latency_seconds"

// VerifyLatencyHelp is an exported constant or variable used by the verification engine.
const VerifyLatencyHelp = "Verify latency histogram."

// AuditDroppedName is an exported constant or variable used by the verification engine.
const AuditDroppedName = "biometric_audit_dropped_total"

// AuditDroppedHelp is an exported constant or variable used by the verification engine.
const AuditDroppedHelp = "Dropped verification records due to dispatcher backpressure."

// HistogramBounds is an exported constant or variable used by the verification engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the verification engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed bucket
// count. A nil slice (histograms disabled) reads as all zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus histograms use; the last entry is the total sample count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

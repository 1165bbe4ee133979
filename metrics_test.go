package biometric

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsIncAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricVerifyAccept)
	m.Inc(MetricVerifyAccept)
	m.Inc(MetricEnrollSuccess)

	snap := m.Snapshot()
	if snap.Counters[MetricVerifyAccept] != 2 {
		t.Errorf("verify_accept = %d, want 2", snap.Counters[MetricVerifyAccept])
	}
	if snap.Counters[MetricEnrollSuccess] != 1 {
		t.Errorf("enroll_success = %d, want 1", snap.Counters[MetricEnrollSuccess])
	}
	if snap.Counters[MetricRevokeSuccess] != 0 {
		t.Errorf("revoke_success = %d, want 0", snap.Counters[MetricRevokeSuccess])
	}
	if snap.VerifyLatencyBuckets != nil {
		t.Error("latency buckets present without histograms enabled")
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	if m != nil {
		t.Fatalf("NewMetrics = %v, want nil when disabled", m)
	}

	// Every method is a safe no-op on the nil registry.
	m.Inc(MetricVerifyAccept)
	m.Observe(MetricVerifyLatency, time.Millisecond)
	snap := m.Snapshot()
	if snap.Counters == nil {
		t.Fatal("Snapshot on nil registry returned nil Counters")
	}
}

func TestMetricsIgnoresUnknownID(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(metricIDCount)     // out of range
	m.Inc(MetricID(60000))   // far out of range
	snap := m.Snapshot()
	for id, n := range snap.Counters {
		if n != 0 {
			t.Errorf("%v = %d after only out-of-range increments", id, n)
		}
	}
}

func TestObserveBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := map[time.Duration]int{
		time.Millisecond:        0,
		7 * time.Millisecond:    1,
		12 * time.Millisecond:   2,
		30 * time.Millisecond:   3,
		70 * time.Millisecond:   4,
		120 * time.Millisecond:  5,
		300 * time.Millisecond:  6,
		time.Second:             7,
	}
	for d := range samples {
		m.Observe(MetricVerifyLatency, d)
	}

	snap := m.Snapshot()
	if snap.VerifyLatencyBuckets == nil {
		t.Fatal("latency buckets missing")
	}
	for d, bucket := range samples {
		if snap.VerifyLatencyBuckets[bucket] != 1 {
			t.Errorf("bucket %d (%v) = %d, want 1", bucket, d, snap.VerifyLatencyBuckets[bucket])
		}
	}

	// Only verify latency is histogrammed.
	m.Observe(MetricEnrollSuccess, time.Hour)
	snap = m.Snapshot()
	var total uint64
	for _, n := range snap.VerifyLatencyBuckets {
		total += n
	}
	if total != uint64(len(samples)) {
		t.Errorf("total samples = %d, want %d", total, len(samples))
	}
}

func TestMetricsConcurrent(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 8
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				m.Inc(MetricVerifyAccept)
			}
		}()
	}
	wg.Wait()

	if got := m.Snapshot().Counters[MetricVerifyAccept]; got != goroutines*perGoroutine {
		t.Fatalf("verify_accept = %d, want %d", got, goroutines*perGoroutine)
	}
}

func TestMetricIDStrings(t *testing.T) {
	seen := make(map[string]MetricID, metricIDCount)
	for id := MetricID(0); id < metricIDCount; id++ {
		name := id.String()
		if name == "unknown" || name == "" {
			t.Errorf("MetricID %d has no name", id)
			continue
		}
		if prev, dup := seen[name]; dup {
			t.Errorf("MetricID %d and %d share the name %q", prev, id, name)
		}
		seen[name] = id
	}
	if metricIDCount.String() != "unknown" {
		t.Errorf("out-of-range id stringifies to %q", metricIDCount.String())
	}
}

func TestLatencyBucketLabel(t *testing.T) {
	if got := LatencyBucketLabel(0); got != "le_5ms" {
		t.Errorf("label 0 = %q, want le_5ms", got)
	}
	if got := LatencyBucketLabel(7); got != "gt_500ms" {
		t.Errorf("label 7 = %q, want gt_500ms", got)
	}
	if got := LatencyBucketLabel(-1); got != "unknown" {
		t.Errorf("label -1 = %q, want unknown", got)
	}
	if got := LatencyBucketLabel(8); got != "unknown" {
		t.Errorf("label 8 = %q, want unknown", got)
	}
}

package biometric

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(tb testing.TB) (*miniredis.Miniredis, *redis.Client) {
	tb.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		tb.Fatalf("failed to start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb
}

func verifyTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Schema.Length = 128
	cfg.Enrollment.MaxTemplatesPerIdentity = 3
	cfg.Enrollment.LeaseWait = 400 * time.Millisecond
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newVerifyEngine(t *testing.T, cfg Config) (*Engine, *ChannelSink, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	sink := NewChannelSink(64)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAuditSink(sink).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, sink, mr, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

// onesSample is a uniform vector; the codec normalizes it to unit length.
func onesSample(length int) Sample {
	vec := make([]float32, length)
	for i := range vec {
		vec[i] = 1
	}
	return Sample{Vector: vec, Quality: 0.9}
}

// nearSample perturbs one component of the uniform vector, yielding a
// cosine similarity close to but below 1 against onesSample.
func nearSample(length, index int) Sample {
	s := onesSample(length)
	s.Vector[index] += 0.2
	return s
}

// oneHotSample is orthogonal to every other one-hot index.
func oneHotSample(length, index int) Sample {
	vec := make([]float32, length)
	vec[index] = 1
	return Sample{Vector: vec, Quality: 0.9}
}

func nextRecord(t *testing.T, sink *ChannelSink) VerificationRecord {
	t.Helper()
	select {
	case rec := <-sink.C:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for verification record")
		return VerificationRecord{}
	}
}

func expectNoRecord(t *testing.T, sink *ChannelSink) {
	t.Helper()
	select {
	case rec := <-sink.C:
		t.Fatalf("unexpected record emitted: %+v", rec)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestVerifySelfMatchAccepts(t *testing.T) {
	engine, sink, _, cleanup := newVerifyEngine(t, verifyTestConfig())
	defer cleanup()

	ctx := context.Background()

	for k := 0; k < 3; k++ {
		if _, err := engine.Enroll(ctx, "user-1", nearSample(128, k)); err != nil {
			t.Fatalf("Enroll %d failed: %v", k, err)
		}
	}
	// Enrollment is not a verification; nothing lands in the audit stream.
	expectNoRecord(t, sink)

	res, err := engine.Verify(ctx, "user-1", onesSample(128))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Decision != DecisionAccept {
		t.Fatalf("Decision = %v, want ACCEPT (score %v)", res.Decision, res.BestScore)
	}
	if res.Reason != ReasonNone {
		t.Errorf("Reason = %q, want none", res.Reason)
	}
	if res.BestScore < 0.8 || res.BestScore > 1 {
		t.Errorf("BestScore = %v, want within [0.8, 1]", res.BestScore)
	}
	if res.SchemaVersion != "v1" {
		t.Errorf("SchemaVersion = %q, want v1", res.SchemaVersion)
	}
	if res.VerificationID == "" {
		t.Error("VerificationID is empty")
	}
	if res.Attestation != "" {
		t.Error("Attestation token present with attestation disabled")
	}

	rec := nextRecord(t, sink)
	if rec.VerificationID != res.VerificationID {
		t.Errorf("record VerificationID = %q, want %q", rec.VerificationID, res.VerificationID)
	}
	if rec.Decision != "ACCEPT" || rec.Reason != "" {
		t.Errorf("record decision/reason = %q/%q, want ACCEPT/empty", rec.Decision, rec.Reason)
	}
	if rec.BestScore != res.BestScore {
		t.Errorf("record BestScore = %v, want %v", rec.BestScore, res.BestScore)
	}
	expectNoRecord(t, sink)
}

func TestVerifyLowScoreRejects(t *testing.T) {
	engine, sink, _, cleanup := newVerifyEngine(t, verifyTestConfig())
	defer cleanup()

	ctx := context.Background()
	if _, err := engine.Enroll(ctx, "user-1", oneHotSample(128, 0)); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	res, err := engine.Verify(ctx, "user-1", oneHotSample(128, 1))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Decision != DecisionReject || res.Reason != ReasonLowScore {
		t.Fatalf("got %v/%q, want REJECT/low_score", res.Decision, res.Reason)
	}
	if res.BestScore != 0 {
		t.Errorf("BestScore = %v, want 0 for orthogonal vectors", res.BestScore)
	}

	rec := nextRecord(t, sink)
	if rec.Decision != "REJECT" || rec.Reason != "low_score" {
		t.Errorf("record = %q/%q, want REJECT/low_score", rec.Decision, rec.Reason)
	}
}

func TestVerifyUnknownIdentity(t *testing.T) {
	engine, sink, _, cleanup := newVerifyEngine(t, verifyTestConfig())
	defer cleanup()

	res, err := engine.Verify(context.Background(), "nobody", onesSample(128))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Decision != DecisionReject || res.Reason != ReasonNoEnrollment {
		t.Fatalf("got %v/%q, want REJECT/no_enrollment", res.Decision, res.Reason)
	}
	if res.BestScore != 0 {
		t.Errorf("BestScore = %v, want 0", res.BestScore)
	}

	rec := nextRecord(t, sink)
	if rec.Reason != "no_enrollment" {
		t.Errorf("record reason = %q, want no_enrollment", rec.Reason)
	}
}

func TestVerifyInvalidSample(t *testing.T) {
	engine, sink, _, cleanup := newVerifyEngine(t, verifyTestConfig())
	defer cleanup()

	ctx := context.Background()
	if _, err := engine.Enroll(ctx, "user-1", onesSample(128)); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	short := Sample{Vector: make([]float32, 16), Quality: 0.9}
	res, err := engine.Verify(ctx, "user-1", short)
	if err != nil {
		t.Fatalf("Verify returned error for invalid sample: %v", err)
	}
	if res.Decision != DecisionReject || res.Reason != ReasonInvalidSample {
		t.Fatalf("got %v/%q, want REJECT/invalid_sample", res.Decision, res.Reason)
	}

	rec := nextRecord(t, sink)
	if rec.Reason != "invalid_sample" {
		t.Errorf("record reason = %q, want invalid_sample", rec.Reason)
	}
	if rec.Error == "" {
		t.Error("record Error is empty, want the normalization failure")
	}
}

func TestVerifyEmptyIdentity(t *testing.T) {
	engine, sink, _, cleanup := newVerifyEngine(t, verifyTestConfig())
	defer cleanup()

	res, err := engine.Verify(context.Background(), "", onesSample(128))
	if err != nil {
		t.Fatalf("Verify returned error for empty identity: %v", err)
	}
	if res.Decision != DecisionReject || res.Reason != ReasonInvalidSample {
		t.Fatalf("got %v/%q, want REJECT/invalid_sample", res.Decision, res.Reason)
	}
	nextRecord(t, sink)
}

func TestVerifyRevokedIdentity(t *testing.T) {
	engine, sink, _, cleanup := newVerifyEngine(t, verifyTestConfig())
	defer cleanup()

	ctx := context.Background()
	if _, err := engine.Enroll(ctx, "user-1", onesSample(128)); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if err := engine.Revoke(ctx, "user-1"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	res, err := engine.Verify(ctx, "user-1", onesSample(128))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Decision != DecisionReject || res.Reason != ReasonNoEnrollment {
		t.Fatalf("got %v/%q, want REJECT/no_enrollment after revocation", res.Decision, res.Reason)
	}
	nextRecord(t, sink)
}

func TestVerifyCancelledContext(t *testing.T) {
	engine, sink, _, cleanup := newVerifyEngine(t, verifyTestConfig())
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := engine.Verify(ctx, "user-1", onesSample(128))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res != nil {
		t.Fatalf("result = %+v, want nil on cancellation", res)
	}

	rec := nextRecord(t, sink)
	if rec.Decision != "REJECT" || rec.Reason != "cancelled" {
		t.Errorf("record = %q/%q, want REJECT/cancelled", rec.Decision, rec.Reason)
	}
	expectNoRecord(t, sink)
}

func TestVerifyStoreUnavailable(t *testing.T) {
	engine, sink, mr, cleanup := newVerifyEngine(t, verifyTestConfig())
	defer cleanup()

	ctx := context.Background()
	if _, err := engine.Enroll(ctx, "user-1", onesSample(128)); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	mr.Close()

	res, err := engine.Verify(ctx, "user-1", onesSample(128))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if res != nil {
		t.Fatalf("result = %+v, want nil on store failure", res)
	}

	rec := nextRecord(t, sink)
	if rec.Reason != "internal" {
		t.Errorf("record reason = %q, want internal", rec.Reason)
	}
}

func TestVerifyEmitsExactlyOneRecordPerCall(t *testing.T) {
	engine, sink, _, cleanup := newVerifyEngine(t, verifyTestConfig())
	defer cleanup()

	ctx := context.Background()
	if _, err := engine.Enroll(ctx, "user-1", onesSample(128)); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	calls := 0
	run := func(f func()) { f(); calls++ }

	run(func() { _, _ = engine.Verify(ctx, "user-1", onesSample(128)) })
	run(func() { _, _ = engine.Verify(ctx, "user-1", oneHotSample(128, 5)) })
	run(func() { _, _ = engine.Verify(ctx, "ghost", onesSample(128)) })
	run(func() { _, _ = engine.Verify(ctx, "user-1", Sample{Vector: []float32{1}, Quality: 0.9}) })
	run(func() { _, _ = engine.Verify(cancelled, "user-1", onesSample(128)) })

	seen := make(map[string]bool, calls)
	for i := 0; i < calls; i++ {
		rec := nextRecord(t, sink)
		if rec.VerificationID == "" {
			t.Fatalf("record %d has empty VerificationID", i)
		}
		if seen[rec.VerificationID] {
			t.Fatalf("duplicate VerificationID %q", rec.VerificationID)
		}
		seen[rec.VerificationID] = true
	}
	expectNoRecord(t, sink)
}

func TestVerifyAttestation(t *testing.T) {
	cfg := verifyTestConfig()
	cfg.Attestation.Enabled = true
	cfg.Attestation.SigningMethod = "hs256"
	cfg.Attestation.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Attestation.Issuer = "biometricd-test"

	engine, sink, _, cleanup := newVerifyEngine(t, cfg)
	defer cleanup()

	ctx := context.Background()
	if _, err := engine.Enroll(ctx, "user-1", onesSample(128)); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	res, err := engine.Verify(ctx, "user-1", onesSample(128))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Decision != DecisionAccept {
		t.Fatalf("Decision = %v, want ACCEPT", res.Decision)
	}
	if res.Attestation == "" {
		t.Fatal("Attestation token is empty on ACCEPT")
	}

	claims, err := engine.ParseAttestation(res.Attestation)
	if err != nil {
		t.Fatalf("ParseAttestation failed: %v", err)
	}
	if claims.Identity != "user-1" {
		t.Errorf("claims.Identity = %q, want user-1", claims.Identity)
	}
	if claims.SessionID != res.VerificationID {
		t.Errorf("claims.SessionID = %q, want %q", claims.SessionID, res.VerificationID)
	}
	if claims.Score != res.BestScore {
		t.Errorf("claims.Score = %v, want %v", claims.Score, res.BestScore)
	}
	if claims.SchemaVersion != "v1" {
		t.Errorf("claims.SchemaVersion = %q, want v1", claims.SchemaVersion)
	}
	nextRecord(t, sink)

	// A rejection never carries a token.
	res, err = engine.Verify(ctx, "user-1", oneHotSample(128, 3))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Attestation != "" {
		t.Errorf("Attestation token present on REJECT")
	}
	nextRecord(t, sink)
}

func TestVerifyPerSchemaThreshold(t *testing.T) {
	// A probe sharing 100 of 128 components scores about 0.88 against the
	// uniform enrollment: accepted at the default 0.8, rejected at 0.99.
	partial := onesSample(128)
	for i := 100; i < 128; i++ {
		partial.Vector[i] = 0
	}

	cfg := verifyTestConfig()
	engine, _, _, cleanup := newVerifyEngine(t, cfg)
	defer cleanup()

	ctx := context.Background()
	if _, err := engine.Enroll(ctx, "user-1", onesSample(128)); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	res, err := engine.Verify(ctx, "user-1", partial)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Decision != DecisionAccept {
		t.Fatalf("default threshold: got %v (score %v), want ACCEPT", res.Decision, res.BestScore)
	}

	strict := verifyTestConfig()
	strict.Matcher.Thresholds = map[string]float32{"v1": 0.99}
	engine2, _, _, cleanup2 := newVerifyEngine(t, strict)
	defer cleanup2()

	if _, err := engine2.Enroll(ctx, "user-1", onesSample(128)); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	res, err = engine2.Verify(ctx, "user-1", partial)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Decision != DecisionReject || res.Reason != ReasonLowScore {
		t.Fatalf("strict threshold: got %v/%q (score %v), want REJECT/low_score",
			res.Decision, res.Reason, res.BestScore)
	}
}

func TestVerifyContextMetadataInRecord(t *testing.T) {
	engine, sink, _, cleanup := newVerifyEngine(t, verifyTestConfig())
	defer cleanup()

	ctx := WithDeviceSN(WithClientIP(context.Background(), "10.0.0.7"), "ZK-123")
	if _, err := engine.Verify(ctx, "ghost", onesSample(128)); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	rec := nextRecord(t, sink)
	if rec.IP != "10.0.0.7" {
		t.Errorf("record IP = %q, want 10.0.0.7", rec.IP)
	}
	if rec.DeviceSN != "ZK-123" {
		t.Errorf("record DeviceSN = %q, want ZK-123", rec.DeviceSN)
	}
}

func TestVerifyMetrics(t *testing.T) {
	engine, _, _, cleanup := newVerifyEngine(t, verifyTestConfig())
	defer cleanup()

	ctx := context.Background()
	if _, err := engine.Enroll(ctx, "user-1", onesSample(128)); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	_, _ = engine.Verify(ctx, "user-1", onesSample(128))               // accept
	_, _ = engine.Verify(ctx, "user-1", oneHotSample(128, 9))          // low score
	_, _ = engine.Verify(ctx, "ghost", onesSample(128))                // no enrollment
	_, _ = engine.Verify(ctx, "user-1", Sample{Vector: []float32{0}})  // invalid
	_, _ = engine.Verify(cancelled, "user-1", onesSample(128))         // cancelled

	snap := engine.MetricsSnapshot()
	want := map[MetricID]uint64{
		MetricEnrollSuccess:       1,
		MetricVerifyAccept:        1,
		MetricVerifyReject:        1,
		MetricVerifyNoEnrollment:  1,
		MetricVerifyInvalidSample: 1,
		MetricVerifyCancelled:     1,
	}
	for id, count := range want {
		if snap.Counters[id] != count {
			t.Errorf("%v = %d, want %d", id, snap.Counters[id], count)
		}
	}

	if snap.VerifyLatencyBuckets == nil {
		t.Fatal("VerifyLatencyBuckets is nil with histograms enabled")
	}
	var total uint64
	for _, n := range snap.VerifyLatencyBuckets {
		total += n
	}
	if total != 5 {
		t.Errorf("latency samples = %d, want 5", total)
	}
}

func TestEngineNilSafety(t *testing.T) {
	var engine *Engine

	if _, err := engine.Verify(context.Background(), "x", Sample{}); !errors.Is(err, ErrEngineNotReady) {
		t.Errorf("Verify err = %v, want ErrEngineNotReady", err)
	}
	if _, err := engine.Enroll(context.Background(), "x", Sample{}); !errors.Is(err, ErrEngineNotReady) {
		t.Errorf("Enroll err = %v, want ErrEngineNotReady", err)
	}
	if err := engine.Revoke(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Errorf("Revoke err = %v, want ErrEngineNotReady", err)
	}
	if err := engine.Ping(context.Background()); !errors.Is(err, ErrEngineNotReady) {
		t.Errorf("Ping err = %v, want ErrEngineNotReady", err)
	}

	engine.Close()
	if n := engine.AuditDropped(); n != 0 {
		t.Errorf("AuditDropped = %d, want 0", n)
	}
	if m := engine.Metrics(); m != nil {
		t.Errorf("Metrics = %v, want nil", m)
	}
	if snap := engine.MetricsSnapshot(); snap.Counters == nil {
		t.Error("MetricsSnapshot.Counters is nil")
	}
}

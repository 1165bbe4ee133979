package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	biometric "github.com/Guidona-Softpedia-Private-Limited/geo-attendance"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/attend"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/device"
)

func newTestServer(t *testing.T, mutate func(*biometric.Config)) (*Server, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := biometric.DefaultConfig()
	cfg.Schema.Length = 8
	cfg.Enrollment.LeaseWait = 400 * time.Millisecond
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := biometric.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	srv := NewServer(Deps{
		Engine:   engine,
		Records:  attend.NewStore(rdb, cfg.Store.RedisPrefix, cfg.Attendance.MaxRecords),
		Devices:  device.NewRegistry(rdb, cfg.Store.RedisPrefix, cfg.Device.DisconnectWindow),
		Commands: device.NewCommandQueue(cfg.Device.CommandQueueLimit),
	}, cfg)

	return srv, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp, data
}

func decodeJSON(t *testing.T, data []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, data)
	}
}

// oneHot returns a unit vector; any two distinct indices are orthogonal.
func oneHot(index int) []float32 {
	vec := make([]float32, 8)
	vec[index] = 1
	return vec
}

func TestHealthEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	resp, data := doJSON(t, srv, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, data)
	}

	var body struct {
		Status string `json:"status"`
	}
	decodeJSON(t, data, &body)
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestEnrollVerifyRevokeFlow(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	resp, data := doJSON(t, srv, http.MethodPost, "/enroll", enrollRequest{
		Identity: "emp-42",
		Vector:   oneHot(0),
		Quality:  0.9,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enroll status = %d: %s", resp.StatusCode, data)
	}
	var enrolled enrollResponse
	decodeJSON(t, data, &enrolled)
	if enrolled.TemplateID == "" || enrolled.TemplateCount != 1 || enrolled.SchemaVersion != "v1" {
		t.Fatalf("unexpected enroll response: %+v", enrolled)
	}

	resp, data = doJSON(t, srv, http.MethodPost, "/verify", verifyRequest{
		Identity:         "emp-42",
		Vector:           oneHot(0),
		Quality:          0.9,
		RecordAttendance: true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d: %s", resp.StatusCode, data)
	}
	var verified verifyResponse
	decodeJSON(t, data, &verified)
	if verified.Decision != "ACCEPT" {
		t.Fatalf("decision = %q (score %v), want ACCEPT", verified.Decision, verified.BestScore)
	}
	if !verified.AttendanceRecorded {
		t.Error("attendance_recorded = false, want a bridged punch")
	}

	resp, data = doJSON(t, srv, http.MethodGet, "/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status status = %d: %s", resp.StatusCode, data)
	}
	var stats statusResponse
	decodeJSON(t, data, &stats)
	if stats.TotalRecords != 1 || stats.Today != 1 || stats.UniqueUsers != 1 {
		t.Errorf("stats = %+v, want one record for today from one user", stats)
	}

	resp, data = doJSON(t, srv, http.MethodGet, "/identities/emp-42", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("identity status = %d: %s", resp.StatusCode, data)
	}
	var info identityResponse
	decodeJSON(t, data, &info)
	if info.Status != "active" || info.TemplateCount != 1 {
		t.Errorf("identity = %+v, want active with one template", info)
	}

	resp, data = doJSON(t, srv, http.MethodPost, "/revoke", revokeRequest{Identity: "emp-42"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke status = %d: %s", resp.StatusCode, data)
	}

	resp, data = doJSON(t, srv, http.MethodPost, "/verify", verifyRequest{
		Identity: "emp-42",
		Vector:   oneHot(0),
		Quality:  0.9,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d: %s", resp.StatusCode, data)
	}
	decodeJSON(t, data, &verified)
	if verified.Decision != "REJECT" || verified.Reason != "no_enrollment" {
		t.Errorf("post-revoke verify = %q/%q, want REJECT/no_enrollment", verified.Decision, verified.Reason)
	}

	resp, data = doJSON(t, srv, http.MethodPost, "/enroll", enrollRequest{
		Identity: "emp-42",
		Vector:   oneHot(1),
		Quality:  0.9,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("re-enroll after revoke status = %d, want 409: %s", resp.StatusCode, data)
	}
}

func TestVerifyRejectIsStillOK(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	doJSON(t, srv, http.MethodPost, "/enroll", enrollRequest{Identity: "emp-1", Vector: oneHot(0), Quality: 0.9})

	resp, data := doJSON(t, srv, http.MethodPost, "/verify", verifyRequest{
		Identity: "emp-1",
		Vector:   oneHot(3),
		Quality:  0.9,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a business rejection: %s", resp.StatusCode, data)
	}
	var verified verifyResponse
	decodeJSON(t, data, &verified)
	if verified.Decision != "REJECT" || verified.Reason != "low_score" {
		t.Errorf("got %q/%q, want REJECT/low_score", verified.Decision, verified.Reason)
	}
	if verified.AttendanceRecorded {
		t.Error("attendance recorded on a rejection")
	}
}

func TestEnrollBadRequests(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/enroll", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed JSON status = %d, want 400", resp.StatusCode)
	}

	cases := []enrollRequest{
		{Identity: "", Vector: oneHot(0), Quality: 0.9},                 // empty identity
		{Identity: "emp-1", Vector: []float32{1, 0}, Quality: 0.9},     // wrong length
		{Identity: "emp-1", Vector: oneHot(0), Quality: 0.01},          // below quality floor
		{Identity: "emp-1", Vector: make([]float32, 8), Quality: 0.9},  // zero vector
	}
	for i, body := range cases {
		resp, data := doJSON(t, srv, http.MethodPost, "/enroll", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("case %d: status = %d, want 400: %s", i, resp.StatusCode, data)
		}
	}
}

func TestIdentityNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	resp, data := doJSON(t, srv, http.MethodGet, "/identities/ghost", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", resp.StatusCode, data)
	}
}

func TestAttendanceFeed(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	ctx := context.Background()
	for i, ts := range []string{"2026-01-15 09:00:00", "2026-01-15 09:05:00", "2026-01-15 09:10:00"} {
		rec := &attend.Record{
			UserID: "u1", Timestamp: ts, Status: "0",
			StatusText: attend.StatusText("0"), ReceivedAt: time.Now().UTC(),
		}
		if _, err := srv.deps.Records.Append(ctx, rec); err != nil {
			t.Fatalf("seed %d failed: %v", i, err)
		}
	}

	resp, data := doJSON(t, srv, http.MethodGet, "/attendance?limit=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var feed struct {
		Records []attend.Record `json:"records"`
		Count   int             `json:"count"`
	}
	decodeJSON(t, data, &feed)
	if feed.Count != 2 {
		t.Fatalf("count = %d, want 2", feed.Count)
	}
	if feed.Records[0].Timestamp != "2026-01-15 09:10:00" {
		t.Errorf("feed is not newest-first: %+v", feed.Records[0])
	}
}

func TestExportCSV(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	ctx := context.Background()
	rec := &attend.Record{
		UserID: "u1", Timestamp: "2026-01-15 09:00:00", Status: "0",
		StatusText: attend.StatusText("0"), Verification: "1",
		ReceivedAt: time.Date(2026, 1, 15, 9, 0, 1, 0, time.UTC),
	}
	if _, err := srv.deps.Records.Append(ctx, rec); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	resp, data := doJSON(t, srv, http.MethodGet, "/export/attendance.csv", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "all_attendance_") {
		t.Errorf("Content-Disposition = %q, want an all_attendance_ filename", cd)
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("export is not valid CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header plus one record", len(rows))
	}
	if rows[1][0] != "u1" || rows[1][3] != "Check-in" {
		t.Errorf("unexpected row: %v", rows[1])
	}

	// Same payload compressed.
	resp, gzData := doJSON(t, srv, http.MethodGet, "/export/attendance.csv?gzip=1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("gzip status = %d", resp.StatusCode)
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", enc)
	}
	zr, err := gzip.NewReader(bytes.NewReader(gzData))
	if err != nil {
		t.Fatalf("gzip open failed: %v", err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("gzip read failed: %v", err)
	}
	if !bytes.Equal(plain, data) {
		t.Error("gzip export does not match the plain export")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	doJSON(t, srv, http.MethodPost, "/enroll", enrollRequest{Identity: "emp-1", Vector: oneHot(0), Quality: 0.9})
	doJSON(t, srv, http.MethodPost, "/verify", verifyRequest{Identity: "emp-1", Vector: oneHot(0), Quality: 0.9})

	resp, data := doJSON(t, srv, http.MethodGet, "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var body struct {
		Counters map[string]uint64 `json:"counters"`
	}
	decodeJSON(t, data, &body)
	if body.Counters["enroll_success"] != 1 {
		t.Errorf("enroll_success = %d, want 1", body.Counters["enroll_success"])
	}
	if body.Counters["verify_accept"] != 1 {
		t.Errorf("verify_accept = %d, want 1", body.Counters["verify_accept"])
	}
}

package httpapi

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	biometric "github.com/Guidona-Softpedia-Private-Limited/geo-attendance"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/attend"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/device"
)

type errorResponse struct {
	Error string `json:"error"`
}

type enrollRequest struct {
	Identity string    `json:"identity"`
	Vector   []float32 `json:"vector"`
	Quality  float32   `json:"quality"`
}

type enrollResponse struct {
	TemplateID    string `json:"template_id"`
	SchemaVersion string `json:"schema_version"`
	TemplateCount int    `json:"template_count"`
}

type verifyRequest struct {
	Identity string    `json:"identity"`
	Vector   []float32 `json:"vector"`
	Quality  float32   `json:"quality"`

	// DeviceSN tags the verification record with the capturing terminal.
	DeviceSN string `json:"device_sn"`

	// RecordAttendance asks for an attendance punch on ACCEPT, subject to
	// the Attendance bridge being enabled.
	RecordAttendance bool   `json:"record_attendance"`
	AttendanceStatus string `json:"attendance_status"`
}

type verifyResponse struct {
	VerificationID     string  `json:"verification_id"`
	Identity           string  `json:"identity"`
	Decision           string  `json:"decision"`
	Reason             string  `json:"reason,omitempty"`
	BestScore          float32 `json:"best_score"`
	SchemaVersion      string  `json:"schema_version"`
	Attestation        string  `json:"attestation,omitempty"`
	AttendanceRecorded bool    `json:"attendance_recorded,omitempty"`
}

type revokeRequest struct {
	Identity string `json:"identity"`
}

type identityResponse struct {
	Identity       string   `json:"identity"`
	Status         string   `json:"status"`
	TemplateCount  int      `json:"template_count"`
	SchemaVersions []string `json:"schema_versions"`
	EnrolledAt     string   `json:"enrolled_at,omitempty"`
	UpdatedAt      string   `json:"updated_at,omitempty"`
	RevokedAt      string   `json:"revoked_at,omitempty"`
}

type statusResponse struct {
	TotalRecords int64          `json:"total_records"`
	Today        int64          `json:"today"`
	UniqueUsers  int64          `json:"unique_users"`
	Duplicates   int64          `json:"duplicates"`
	Devices      []*device.Info `json:"devices"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if err := s.deps.Engine.Ping(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleEnroll(c *fiber.Ctx) error {
	var req enrollRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body: " + err.Error()})
	}

	res, err := s.deps.Engine.Enroll(c.UserContext(), req.Identity,
		biometric.Sample{Vector: req.Vector, Quality: req.Quality})
	if err != nil {
		return engineError(c, err)
	}

	return c.JSON(enrollResponse{
		TemplateID:    res.TemplateID,
		SchemaVersion: res.SchemaVersion,
		TemplateCount: res.TemplateCount,
	})
}

func (s *Server) handleVerify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body: " + err.Error()})
	}

	ctx := biometric.WithClientIP(c.UserContext(), c.IP())
	if req.DeviceSN != "" {
		ctx = biometric.WithDeviceSN(ctx, req.DeviceSN)
	}

	res, err := s.deps.Engine.Verify(ctx, req.Identity,
		biometric.Sample{Vector: req.Vector, Quality: req.Quality})
	if err != nil {
		return engineError(c, err)
	}

	out := verifyResponse{
		VerificationID: res.VerificationID,
		Identity:       res.Identity,
		Decision:       res.Decision.String(),
		Reason:         res.Reason.String(),
		BestScore:      res.BestScore,
		SchemaVersion:  res.SchemaVersion,
		Attestation:    res.Attestation,
	}
	if res.Decision == biometric.DecisionAccept && req.RecordAttendance {
		out.AttendanceRecorded = s.bridgeAttendance(c.UserContext(), &req)
	}
	return c.JSON(out)
}

// bridgeAttendance turns an accepted verification into an attendance
// punch. Failures are logged, never surfaced: the verification outcome
// already happened and stands on its own.
func (s *Server) bridgeAttendance(ctx context.Context, req *verifyRequest) bool {
	if !s.cfg.Attendance.BridgeEnabled || s.deps.Records == nil {
		return false
	}

	status := req.AttendanceStatus
	if status == "" {
		status = s.cfg.Attendance.BridgeStatus
	}
	now := time.Now()
	rec := &attend.Record{
		UserID:       req.Identity,
		Timestamp:    now.Format("2006-01-02 15:04:05"),
		Status:       status,
		StatusText:   attend.StatusText(status),
		Verification: "1",
		ReceivedAt:   now.UTC(),
	}

	added, err := s.deps.Records.Append(ctx, rec)
	if err != nil {
		log.Printf("httpapi: attendance bridge append failed: %v", err)
		return false
	}
	if added {
		s.metricInc(biometric.MetricAttendanceAccepted)
	} else {
		s.metricInc(biometric.MetricAttendanceDuplicate)
	}
	return added
}

func (s *Server) handleRevoke(c *fiber.Ctx) error {
	var req revokeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body: " + err.Error()})
	}

	if err := s.deps.Engine.Revoke(c.UserContext(), req.Identity); err != nil {
		return engineError(c, err)
	}
	return c.JSON(fiber.Map{
		"identity": req.Identity,
		"status":   "revoked",
	})
}

func (s *Server) handleIdentity(c *fiber.Ctx) error {
	info, err := s.deps.Engine.Identity(c.UserContext(), c.Params("id"))
	if err != nil {
		return engineError(c, err)
	}

	out := identityResponse{
		Identity:       info.Identity,
		Status:         info.Status.String(),
		TemplateCount:  info.TemplateCount,
		SchemaVersions: info.SchemaVersions,
	}
	if !info.EnrolledAt.IsZero() {
		out.EnrolledAt = info.EnrolledAt.Format(time.RFC3339)
	}
	if !info.UpdatedAt.IsZero() {
		out.UpdatedAt = info.UpdatedAt.Format(time.RFC3339)
	}
	if !info.RevokedAt.IsZero() {
		out.RevokedAt = info.RevokedAt.Format(time.RFC3339)
	}
	return c.JSON(out)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	ctx := c.UserContext()

	total, err := s.deps.Records.Count(ctx)
	if err != nil {
		return storeError(c, err)
	}
	today, err := s.deps.Records.CountForDay(ctx, time.Now().Format("2006-01-02"))
	if err != nil {
		return storeError(c, err)
	}
	users, err := s.deps.Records.UniqueUsers(ctx)
	if err != nil {
		return storeError(c, err)
	}
	dups, err := s.deps.Records.Duplicates(ctx)
	if err != nil {
		return storeError(c, err)
	}
	devices, err := s.deps.Devices.All(ctx)
	if err != nil {
		return storeError(c, err)
	}

	return c.JSON(statusResponse{
		TotalRecords: total,
		Today:        today,
		UniqueUsers:  users,
		Duplicates:   dups,
		Devices:      devices,
	})
}

func (s *Server) handleAttendance(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	records, err := s.deps.Records.Recent(c.UserContext(), limit)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{
		"records": records,
		"count":   len(records),
	})
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	records, err := s.deps.Records.All(c.UserContext())
	if err != nil {
		return storeError(c, err)
	}

	filename := attend.ExportFilename(time.Now())
	useGzip := c.QueryBool("gzip") ||
		strings.Contains(c.Get(fiber.HeaderAcceptEncoding), "gzip")

	var buf bytes.Buffer
	if useGzip {
		if err := attend.WriteCSVGzip(&buf, records); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
		}
		c.Set(fiber.HeaderContentEncoding, "gzip")
		filename += ".gz"
	} else {
		if err := attend.WriteCSV(&buf, records); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
		}
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(buf.Bytes())
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	snap := s.deps.Engine.MetricsSnapshot()

	counters := make(map[string]uint64, len(snap.Counters))
	for id, n := range snap.Counters {
		counters[id.String()] = n
	}
	out := fiber.Map{
		"counters":      counters,
		"audit_dropped": s.deps.Engine.AuditDropped(),
	}
	if snap.VerifyLatencyBuckets != nil {
		hist := make(map[string]uint64, len(snap.VerifyLatencyBuckets))
		for i, n := range snap.VerifyLatencyBuckets {
			hist[biometric.LatencyBucketLabel(i)] = n
		}
		out["verify_latency"] = hist
	}
	return c.JSON(out)
}

func (s *Server) handleDevices(c *fiber.Ctx) error {
	devices, err := s.deps.Devices.All(c.UserContext())
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{
		"devices": devices,
		"count":   len(devices),
	})
}

type commandRequest struct {
	Command string `json:"command"`
	Replace bool   `json:"replace"`
}

func (s *Server) handleQueueCommand(c *fiber.Ctx) error {
	sn := c.Params("sn")

	var req commandRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body: " + err.Error()})
	}
	if strings.TrimSpace(req.Command) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "command is required"})
	}

	if req.Replace {
		s.deps.Commands.Replace(sn, req.Command)
	} else if !s.deps.Commands.Push(sn, req.Command) {
		return c.Status(fiber.StatusConflict).JSON(errorResponse{Error: "command queue full"})
	}

	return c.JSON(fiber.Map{
		"serial_number": sn,
		"pending":       s.deps.Commands.Pending(sn),
	})
}

func (s *Server) handleForceFetch(c *fiber.Ctx) error {
	sn := c.Params("sn")
	s.deps.Commands.Replace(sn, device.DefaultCommand)
	return c.JSON(fiber.Map{
		"serial_number": sn,
		"command":       device.DefaultCommand,
		"pending":       s.deps.Commands.Pending(sn),
	})
}

// engineError maps engine sentinels onto HTTP statuses. Decisions are not
// errors; by the time this runs the engine refused to decide at all.
func engineError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, biometric.ErrInvalidSample),
		errors.Is(err, biometric.ErrSchemaMismatch),
		errors.Is(err, biometric.ErrLowQuality):
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	case errors.Is(err, biometric.ErrIdentityRevoked):
		return c.Status(fiber.StatusConflict).JSON(errorResponse{Error: err.Error()})
	case errors.Is(err, biometric.ErrIdentityUnknown):
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: err.Error()})
	case errors.Is(err, biometric.ErrTimeout),
		errors.Is(err, biometric.ErrStoreUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorResponse{Error: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	}
}

func storeError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(errorResponse{Error: err.Error()})
}

package httpapi

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	biometric "github.com/Guidona-Softpedia-Private-Limited/geo-attendance"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/attend"
)

// The iclock endpoints answer in plain text. The terminal firmware
// expects a bare "OK" and retries forever on anything it cannot parse.

func (s *Server) handleICHandshake(c *fiber.Ctx) error {
	sn := c.Query("SN")
	if sn == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Error: SN required")
	}
	if err := s.deps.Devices.MarkSeen(c.UserContext(), sn); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("Error")
	}
	return c.SendString("OK")
}

func (s *Server) handleICPush(c *fiber.Ctx) error {
	sn := c.Query("SN")
	if sn == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Error: SN required")
	}
	ctx := c.UserContext()

	// Liveness first: a throttled terminal is still a connected terminal.
	if err := s.deps.Devices.MarkSeen(ctx, sn); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("Error")
	}
	if !s.push.allow(sn) {
		s.metricInc(biometric.MetricDeviceThrottled)
		return c.Status(fiber.StatusTooManyRequests).SendString("Error: throttled")
	}

	// Bodies mix key=value option lines with tab-separated ATTLOG lines.
	var attlog []string
	params := make(map[string]string)
	for _, line := range strings.Split(string(c.Body()), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if !strings.Contains(line, "\t") && strings.Contains(line, "=") {
			if k, v, ok := strings.Cut(line, "="); ok && strings.TrimSpace(k) != "" {
				params[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
			continue
		}
		attlog = append(attlog, line)
	}

	if len(params) > 0 {
		if err := s.deps.Devices.SetParams(ctx, sn, params); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("Error")
		}
	}

	records, malformed := attend.ParseBody(strings.Join(attlog, "\n"), time.Now().UTC())
	for i := 0; i < malformed; i++ {
		s.metricInc(biometric.MetricAttendanceMalformed)
	}
	for _, rec := range records {
		added, err := s.deps.Records.Append(ctx, rec)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("Error")
		}
		if added {
			s.metricInc(biometric.MetricAttendanceAccepted)
		} else {
			s.metricInc(biometric.MetricAttendanceDuplicate)
		}
	}
	return c.SendString("OK")
}

func (s *Server) handleICGetRequest(c *fiber.Ctx) error {
	sn := c.Query("SN")
	if sn == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Error: SN required")
	}
	if err := s.deps.Devices.MarkSeen(c.UserContext(), sn); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("Error")
	}

	cmd := s.deps.Commands.PopOrDefault(sn)
	s.metricInc(biometric.MetricDeviceCommandServed)
	return c.SendString(cmd)
}

func (s *Server) handleICRegistry(c *fiber.Ctx) error {
	sn := c.Query("SN")
	if sn == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Error: SN required")
	}
	ctx := c.UserContext()

	params := make(map[string]string)
	for k, v := range c.Queries() {
		if k == "SN" {
			continue
		}
		params[k] = v
	}

	if err := s.deps.Devices.MarkSeen(ctx, sn); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("Error")
	}
	if len(params) > 0 {
		if err := s.deps.Devices.SetParams(ctx, sn, params); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("Error")
		}
	}
	return c.SendString("OK")
}

func (s *Server) handleICDeviceCmd(c *fiber.Ctx) error {
	sn := c.Query("SN")
	if sn == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Error: SN required")
	}
	ctx := c.UserContext()

	if err := s.deps.Devices.MarkSeen(ctx, sn); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("Error")
	}
	if params := parseKVBody(string(c.Body())); len(params) > 0 {
		if err := s.deps.Devices.SetParams(ctx, sn, params); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("Error")
		}
	}
	return c.SendString("OK")
}

// parseKVBody reads devicecmd result bodies: key=value pairs separated by
// newlines or ampersands ("ID=1&Return=0&CMD=DATA").
func parseKVBody(body string) map[string]string {
	params := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		for _, pair := range strings.Split(line, "&") {
			k, v, ok := strings.Cut(pair, "=")
			if !ok || strings.TrimSpace(k) == "" {
				continue
			}
			params[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return params
}

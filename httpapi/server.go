package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	biometric "github.com/Guidona-Softpedia-Private-Limited/geo-attendance"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/attend"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/device"
)

// Deps carries the wired components the server exposes.
type Deps struct {
	Engine   *biometric.Engine
	Records  *attend.Store
	Devices  *device.Registry
	Commands *device.CommandQueue
}

// Server serves the verification API and the device push protocol.
type Server struct {
	deps Deps
	cfg  biometric.Config
	push *pushLimiters
	app  *fiber.App
}

// NewServer builds the fiber app with all routes mounted. cfg supplies the
// Attendance and Device sections; the engine sections were already
// consumed by Builder.Build.
func NewServer(deps Deps, cfg biometric.Config) *Server {
	s := &Server{
		deps: deps,
		cfg:  cfg,
		push: newPushLimiters(cfg.Device.PushPerMinute),
	}

	app := fiber.New(fiber.Config{
		AppName:               "geo-attendance",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(logger.New())
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)
	app.Get("/status", s.handleStatus)
	app.Get("/metrics", s.handleMetrics)

	app.Post("/enroll", s.handleEnroll)
	app.Post("/verify", s.handleVerify)
	app.Post("/revoke", s.handleRevoke)
	app.Get("/identities/:id", s.handleIdentity)

	app.Get("/attendance", s.handleAttendance)
	app.Get("/export/attendance.csv", s.handleExport)

	app.Get("/devices", s.handleDevices)
	app.Post("/devices/:sn/commands", s.handleQueueCommand)
	app.Post("/devices/:sn/fetch", s.handleForceFetch)

	// The .aspx suffix is what the terminal firmware requests.
	app.Get("/iclock/cdata.aspx", s.handleICHandshake)
	app.Post("/iclock/cdata.aspx", s.handleICPush)
	app.Get("/iclock/getrequest.aspx", s.handleICGetRequest)
	app.Get("/iclock/registry.aspx", s.handleICRegistry)
	app.Post("/iclock/devicecmd.aspx", s.handleICDeviceCmd)

	s.app = app
	return s
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks serving on addr until the app is shut down.
func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

// Shutdown gracefully stops the listener and drains in-flight requests.
func (s *Server) Shutdown() error { return s.app.Shutdown() }

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(errorResponse{Error: err.Error()})
}

func (s *Server) metricInc(id biometric.MetricID) {
	if m := s.deps.Engine.Metrics(); m != nil {
		m.Inc(id)
	}
}

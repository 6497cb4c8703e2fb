// Package web serves the control API: start and stop capture, tune the
// parameters, drive the torch, save snapshots and stream status. No video is
// sent over the network.
package web

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/irdrowsy/internal/log"
	"github.com/teslashibe/irdrowsy/pkg/control"
	"github.com/teslashibe/irdrowsy/pkg/hub"
	"github.com/teslashibe/irdrowsy/pkg/monitor"
	"github.com/teslashibe/irdrowsy/pkg/torch"
)

// Controller is what the API drives. *monitor.Monitor implements it.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() monitor.Status
	Settings() control.Settings
	UpdateSettings(params map[string]interface{}) error
	ReplaceSettings(s control.Settings) error
	ApplyPreset(name string) error
	SetTorch(enable bool, power int) (torch.Result, error)
	Snapshot() (string, error)
}

// Server is the control API server
type Server struct {
	app    *fiber.App
	addr   string
	ctrl   Controller
	logger *slog.Logger

	// Hub for websocket status broadcast
	statusHub *hub.Hub
}

// NewServer creates a new control API server listening on addr.
func NewServer(addr string, ctrl Controller, logger *slog.Logger) *Server {
	logger = log.Or(logger)
	s := &Server{
		addr:      addr,
		ctrl:      ctrl,
		logger:    logger,
		statusHub: hub.New("status", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "irdrowsy",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	// CORS for local development
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)
	api.Get("/settings", s.handleGetSettings)
	api.Put("/settings", s.handlePutSettings)
	api.Patch("/settings", s.handlePatchSettings)
	api.Get("/settings/presets", s.handleListPresets)
	api.Post("/settings/preset/:name", s.handleApplyPreset)
	api.Post("/torch", s.handleTorch)
	api.Post("/snapshot", s.handleSnapshot)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App exposes the fiber app, e.g. for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the status hub and serves until the listener fails or Shutdown
// is called. The hub stops when ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("control API listening", "addr", s.addr)
	go s.statusHub.Run(ctx)
	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}

// PublishStatus implements monitor.Sink.
func (s *Server) PublishStatus(st monitor.Status) {
	if err := s.statusHub.BroadcastJSON(st); err != nil {
		s.logger.Warn("encode status", "error", err)
	}
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/irdrowsy/pkg/control"
	"github.com/teslashibe/irdrowsy/pkg/hub"
	"github.com/teslashibe/irdrowsy/pkg/present"
	"github.com/teslashibe/irdrowsy/pkg/source"
	"github.com/teslashibe/irdrowsy/pkg/torch"
)

// TorchRequest is the body of POST /api/torch.
type TorchRequest struct {
	Enabled bool `json:"enabled"`
	Power   *int `json:"power"`
}

// statusCode maps domain errors onto HTTP statuses.
func statusCode(err error) int {
	var (
		openErr *source.OpenError
		opErr   *torch.OperationError
		fe      *fiber.Error
	)
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, source.ErrNoSourceFound):
		return fiber.StatusNotFound
	case errors.As(err, &openErr):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, torch.ErrUnsupported):
		return fiber.StatusConflict
	case errors.As(err, &opErr):
		return fiber.StatusBadGateway
	case errors.Is(err, present.ErrNothingToSave):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusCode(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleStatus returns the monitor state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Status())
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	if err := s.ctrl.Start(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(s.ctrl.Status())
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	if err := s.ctrl.Stop(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(s.ctrl.Status())
}

func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Settings())
}

// handlePutSettings replaces every parameter
func (s *Server) handlePutSettings(c *fiber.Ctx) error {
	var req control.Settings
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation failed", "details": errs})
	}
	if err := s.ctrl.ReplaceSettings(req); err != nil {
		s.logger.Info("settings stored but not fully applied", "error", err)
	}
	return c.JSON(s.ctrl.Settings())
}

// handlePatchSettings changes the named parameters only
func (s *Server) handlePatchSettings(c *fiber.Ctx) error {
	params := map[string]interface{}{}
	if err := c.BodyParser(&params); err != nil {
		return badRequest(c, err)
	}
	if err := s.ctrl.UpdateSettings(params); err != nil {
		return badRequest(c, err)
	}
	return c.JSON(s.ctrl.Settings())
}

func (s *Server) handleListPresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"presets": control.PresetNames(),
		"values":  control.Presets(),
	})
}

func (s *Server) handleApplyPreset(c *fiber.Ctx) error {
	name := c.Params("name")
	if control.GetPreset(name) == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown preset: " + name})
	}
	if err := s.ctrl.ApplyPreset(name); err != nil {
		s.logger.Info("preset stored but not fully applied", "preset", name, "error", err)
	}
	return c.JSON(s.ctrl.Settings())
}

func (s *Server) handleTorch(c *fiber.Ctx) error {
	var req TorchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	power := s.ctrl.Settings().TorchPower
	if req.Power != nil {
		power = *req.Power
	}

	res, err := s.ctrl.SetTorch(req.Enabled, power)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	path, err := s.ctrl.Snapshot()
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"path": path})
}

// handleStatusWS streams status updates until the client goes away
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if err := c.WriteJSON(s.ctrl.Status()); err != nil {
		return
	}
	hub.NewClient(s.statusHub, c).Run()
}

package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-marionette/pkg/animation"
	"github.com/teslashibe/go-marionette/pkg/schedule"
)

// PlayRequest is the body of POST /marionette/play.
type PlayRequest struct {
	Animation animation.File `json:"animation"`
}

// EnabledBody is the body of GET and POST /marionette/enabled.
type EnabledBody struct {
	Enabled bool `json:"enabled"`
}

// SlidersBody is the body of GET and POST /marionette/sliders.
type SlidersBody struct {
	Values map[string]float64 `json:"values"`
}

// InputBody is the body of POST /api/inputs/:name.
type InputBody struct {
	On bool `json:"on"`
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

// handlePlay starts an ad-hoc animation, replacing any playing one
func (s *Server) handlePlay(c *fiber.Ctx) error {
	var req PlayRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if err := s.deps.Remote.StartAnimation(req.Animation); err != nil {
		return badRequest(c, err)
	}
	s.logger.Info("remote animation started",
		"frames", req.Animation.Config.TotalFrames,
		"fps", req.Animation.Config.FPS,
		"from", req.Animation.Config.CurrentFrameIndex)
	return c.JSON(fiber.Map{"playing": true})
}

func (s *Server) handlePause(c *fiber.Ctx) error {
	s.deps.Remote.StopAnimation()
	return c.JSON(fiber.Map{"playing": false})
}

func (s *Server) handleCurrentIndex(c *fiber.Ctx) error {
	idx, err := s.deps.Remote.CurrentFrame()
	if errors.Is(err, animation.ErrNotPlaying) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"current_index": idx})
}

func (s *Server) handleGetEnabled(c *fiber.Ctx) error {
	return c.JSON(EnabledBody{Enabled: s.deps.Remote.Enabled()})
}

func (s *Server) handleSetEnabled(c *fiber.Ctx) error {
	var body EnabledBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, err)
	}
	s.deps.Remote.SetEnabled(body.Enabled)
	return c.JSON(body)
}

func (s *Server) handleGetSliders(c *fiber.Ctx) error {
	return c.JSON(SlidersBody{Values: s.deps.Remote.Sliders()})
}

func (s *Server) handleSetSliders(c *fiber.Ctx) error {
	var body SlidersBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, err)
	}
	if body.Values == nil {
		body.Values = map[string]float64{}
	}
	s.deps.Remote.SetSliders(body.Values)
	return c.JSON(body)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleStatus returns the latest status published by the control loop
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.deps.Status())
}

func (s *Server) handleEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	return c.JSON(fiber.Map{
		"total":  s.deps.Events.Count(),
		"events": s.deps.Events.List(limit),
	})
}

// handleCamera serves the last camera frame as JPEG
func (s *Server) handleCamera(c *fiber.Ctx) error {
	jpg, err := s.deps.Camera.LatestJPEG()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Type("jpg")
	return c.Send(jpg)
}

func (s *Server) handleGetInputs(c *fiber.Ctx) error {
	return c.JSON(s.deps.Inputs.Read())
}

func (s *Server) handleSetInput(c *fiber.Ctx) error {
	var body InputBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, err)
	}
	s.deps.Inputs.Set(c.Params("name"), body.On)
	return c.JSON(s.deps.Inputs.Read())
}

func (s *Server) handleGetSchedule(c *fiber.Ctx) error {
	return c.JSON(s.deps.Schedule.Get())
}

// handleSetSchedule validates and persists a new schedule
func (s *Server) handleSetSchedule(c *fiber.Ctx) error {
	var sched schedule.Schedule
	if err := c.BodyParser(&sched); err != nil {
		return badRequest(c, err)
	}
	err := s.deps.Schedule.Set(sched)
	switch {
	case errors.Is(err, schedule.ErrInvalidDay), errors.Is(err, schedule.ErrInvalidRange):
		return badRequest(c, err)
	case err != nil:
		s.logger.Error("failed to save schedule", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	s.logger.Info("schedule updated")
	return c.JSON(s.deps.Schedule.Get())
}

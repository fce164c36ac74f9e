// Package web serves the remote-control and monitoring API.
package web

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-marionette/internal/log"
	"github.com/teslashibe/go-marionette/pkg/animation"
	"github.com/teslashibe/go-marionette/pkg/eventlog"
	"github.com/teslashibe/go-marionette/pkg/hub"
	"github.com/teslashibe/go-marionette/pkg/protocol"
	"github.com/teslashibe/go-marionette/pkg/schedule"
)

// Remote is the remotely controlled animation.
type Remote interface {
	StartAnimation(f animation.File) error
	StopAnimation()
	CurrentFrame() (int, error)
	SetEnabled(enabled bool)
	Enabled() bool
	SetSliders(values map[string]float64)
	Sliders() map[string]float64
}

// Events lists recorded library starts.
type Events interface {
	List(limit int) []eventlog.Event
	Count() int
}

// Schedules reads and replaces the opening hours.
type Schedules interface {
	Get() schedule.Schedule
	Set(s schedule.Schedule) error
}

// InputSetter overrides digital inputs, for dry runs.
type InputSetter interface {
	Set(name string, on bool)
	Read() map[string]bool
}

// Camera provides snapshots of the sensing camera.
type Camera interface {
	LatestJPEG() ([]byte, error)
}

// Deps are the components the API exposes. Nil members disable their routes.
type Deps struct {
	Remote    Remote
	Status    func() protocol.StatusData
	Events    Events
	Schedule  Schedules
	Inputs    InputSetter
	StatusHub *hub.Hub
	Ingest    fiber.Handler // push endpoint for an external pose process
	Camera    Camera
	StaticDir string // browser UI files served at /
}

// Server is the HTTP API server.
type Server struct {
	app    *fiber.App
	addr   string
	deps   Deps
	logger *slog.Logger
}

// NewServer creates the server and registers its routes.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		addr:   addr,
		deps:   deps,
		logger: log.Component("web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Marionette",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
	})

	// CORS for the browser UI served from elsewhere
	app.Use(cors.New())

	if deps.StaticDir != "" {
		app.Static("/", deps.StaticDir)
	}

	if deps.Remote != nil {
		m := app.Group("/marionette")
		m.Post("/play", s.handlePlay)
		m.Post("/pause", s.handlePause)
		m.Get("/current_index", s.handleCurrentIndex)
		m.Get("/enabled", s.handleGetEnabled)
		m.Post("/enabled", s.handleSetEnabled)
		m.Get("/sliders", s.handleGetSliders)
		m.Post("/sliders", s.handleSetSliders)
	}

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	if deps.Status != nil {
		api.Get("/status", s.handleStatus)
	}
	if deps.Events != nil {
		api.Get("/events", s.handleEvents)
	}
	if deps.Camera != nil {
		api.Get("/camera.jpg", s.handleCamera)
	}
	if deps.Inputs != nil {
		api.Get("/inputs", s.handleGetInputs)
		api.Post("/inputs/:name", s.handleSetInput)
	}

	if deps.Schedule != nil {
		app.Get("/config/schedule", s.handleGetSchedule)
		app.Post("/config/schedule", s.handleSetSchedule)
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	if deps.StatusHub != nil {
		app.Get("/ws/status", deps.StatusHub.Handler())
	}
	if deps.Ingest != nil {
		app.Get("/ws/sensing", deps.Ingest)
	}

	s.app = app
	return s
}

// App returns the fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("web api listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

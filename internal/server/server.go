// Package server exposes panels and aggregation over a JSON HTTP API.
package server

import (
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/johnayoung/dili-agents/internal/agent"
	"github.com/johnayoung/dili-agents/internal/config"
	"github.com/johnayoung/dili-agents/internal/consensus"
	"github.com/johnayoung/dili-agents/internal/label"
	"github.com/johnayoung/dili-agents/internal/metrics"
)

// Deps are the components the handlers serve.
type Deps struct {
	Panels   *agent.Set
	Engine   *consensus.Engine
	Reviewer *label.Reviewer // nil disables drug label review
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
	// AccessLog enables the request logging middleware.
	AccessLog bool
}

// Server wraps the Fiber app and configuration.
type Server struct {
	App *fiber.App
	Cfg *config.Config

	deps Deps
	log  *slog.Logger
}

// New creates a server with middleware and routes registered.
func New(cfg *config.Config, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(false)
	}

	app := fiber.New(fiber.Config{
		AppName: "dili-agents",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return jsonError(c, code, message)
		},
	})

	// Global middleware
	app.Use(recover.New())
	if deps.AccessLog {
		app.Use(logger.New())
	}

	s := &Server{App: app, Cfg: cfg, deps: deps, log: log}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.App.Get("/health", s.health)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.deps.Metrics.Registry(), promhttp.HandlerOpts{})))

	api := s.App.Group("/api/v1")
	api.Get("/panels", s.listPanels)
	api.Post("/aggregate", s.aggregate)
	api.Post("/classify", s.classify)
}

// Start listens on the configured address.
func (s *Server) Start() error {
	s.log.Info("starting server", slog.String("addr", s.Cfg.ServerAddr))
	return s.App.Listen(s.Cfg.ServerAddr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.App.Shutdown()
}

// jsonSuccess returns a 200 response with data wrapped in the standard envelope.
func jsonSuccess(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"data":   data,
	})
}

// jsonError returns an error response with the given HTTP status code.
func jsonError(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "error",
		"error":  message,
	})
}

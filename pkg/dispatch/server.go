package dispatch

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Server is the dispatch HTTP/WebSocket server.
type Server struct {
	app    *fiber.App
	hub    *Hub
	logger *slog.Logger
}

// NewServer creates a dispatch server with its routes registered.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
	})

	hub := NewHub(logger)
	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "workers": hub.WorkerCount()})
	})

	return &Server{
		app:    app,
		hub:    hub,
		logger: logger.With("component", "dispatch.server"),
	}
}

// Hub returns the worker hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("dispatch server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

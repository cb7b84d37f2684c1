// Package status exposes a small HTTP surface for observing a running pull:
// liveness, run progress, and Prometheus metrics.
package status

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/excelcw/dtools-pull/internal/metrics"
)

// Snapshot is the run state reported to the interactive surface.
type Snapshot struct {
	Phase     string  `json:"phase"`
	Fraction  float64 `json:"fraction"`
	CallsUsed int     `json:"callsUsed"`
	Rows      int     `json:"rows"`
	Completed bool    `json:"completed"`
	Error     string  `json:"error,omitempty"`
}

// Server is the status Fiber application.
type Server struct {
	app    *fiber.App
	addr   string
	logger zerolog.Logger

	mu   sync.RWMutex
	snap Snapshot
}

// NewServer creates the status server on addr.
func NewServer(addr string, m *metrics.Metrics, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:    app,
		addr:   addr,
		logger: logger.With().Str("component", "status_server").Logger(),
	}

	app.Use(recover.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/status", func(c *fiber.Ctx) error {
		s.mu.RLock()
		snap := s.snap
		s.mu.RUnlock()
		return c.JSON(snap)
	})

	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(m.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	return s
}

// Update replaces the published snapshot.
func (s *Server) Update(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("status server starting")
	return s.app.Listen(s.addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

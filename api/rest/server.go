// Package rest provides the REST API server for the test plan engine.
package rest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"testops/testplan-engine/internal/lifecycle"
	"testops/testplan-engine/internal/scheduler"
)

// Server represents the REST API server. It keeps an in-memory registry of
// test plan controllers keyed by instance id.
type Server struct {
	app    *fiber.App
	sched  *scheduler.Scheduler
	config *Config

	mu    sync.RWMutex
	plans map[string]*lifecycle.Controller
}

// Config holds the configuration for the REST API server.
type Config struct {
	// Address is the address to listen on (e.g., ":8080").
	Address string `yaml:"address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// EnableCORS enables Cross-Origin Resource Sharing.
	EnableCORS bool `yaml:"enable_cors"`

	// EnableMetrics enables the /api/v1/metrics endpoint.
	EnableMetrics bool `yaml:"enable_metrics"`
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:       ":8080",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		EnableCORS:    true,
		EnableMetrics: true,
	}
}

// NewServer creates a new REST API server dispatching through the given
// scheduler.
func NewServer(sched *scheduler.Scheduler, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		ErrorHandler: customErrorHandler,
		AppName:      "Test Plan Engine API",
	})

	server := &Server{
		app:    app,
		sched:  sched,
		config: config,
		plans:  make(map[string]*lifecycle.Controller),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	// Recovery middleware - recovers from panics
	s.app.Use(fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
	}))

	// Logger middleware - logs HTTP requests
	s.app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	// CORS middleware
	if s.config.EnableCORS {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins:     "*",
			AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
			AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-API-Key",
			AllowCredentials: false,
			MaxAge:           86400,
		}))
	}
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.app.Get("/health", s.healthCheck)

	api := s.app.Group("/api/v1")
	api.Get("/health", s.healthCheck)

	// Test plan routes
	api.Post("/testplans", s.createTestPlan)
	api.Get("/testplans", s.listTestPlans)
	api.Get("/testplans/:id", s.getTestPlan)
	api.Post("/testplans/:id/transitions/:name", s.fireTransition)

	// Metrics routes
	if s.config.EnableMetrics {
		api.Get("/metrics", s.getMetrics)
	}
}

// Start starts the REST API server.
func (s *Server) Start() error {
	return s.app.Listen(s.config.Address)
}

// StartWithContext starts the REST API server with context support.
func (s *Server) StartWithContext(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- s.app.Listen(s.config.Address)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// register adds a controller to the registry unless the id is already
// taken. Check and insert share one critical section so concurrent creates
// with the same id cannot both succeed.
func (s *Server) register(c *lifecycle.Controller) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Plan().ID
	if _, exists := s.plans[id]; exists {
		return false
	}
	s.plans[id] = c
	return true
}

// lookup finds a controller by instance id.
func (s *Server) lookup(id string) (*lifecycle.Controller, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.plans[id]
	return c, ok
}

// customErrorHandler handles errors returned by handlers.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   fmt.Sprintf("error_%d", code),
		Message: message,
	})
}

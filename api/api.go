package api

import (
	"log/slog"
	"net/http"
	"net/http/pprof"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/aix/pkg/aix/executor"
	"github.com/papercomputeco/aix/pkg/llm"
)

// RequestIDHeader carries the per-request id on every response.
const RequestIDHeader = "X-Request-ID"

// Server is the API server for running generations through aix.
type Server struct {
	config   Config
	executor *executor.Executor
	resolve  AccessResolver
	events   EventSink
	logger   *slog.Logger
	app      *fiber.App
}

// Option configures optional collaborators of the Server.
type Option func(*Server)

// WithAccessResolver lets requests omit the access object.
func WithAccessResolver(r AccessResolver) Option {
	return func(s *Server) {
		s.resolve = r
	}
}

// WithEventSink publishes a generation event after every chat generation.
func WithEventSink(sink EventSink) Option {
	return func(s *Server) {
		s.events = sink
	}
}

// NewServer creates a new API server.
// The executor is injected to allow sharing with other components
// (e.g., the chat command when run in the same process).
func NewServer(config Config, exec *executor.Executor, logger *slog.Logger, opts ...Option) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		config:   config,
		executor: exec,
		logger:   logger,
		app:      app,
	}
	for _, opt := range opts {
		opt(s)
	}

	app.Use(requestID)

	app.Get("/ping", s.handlePing)
	app.Get("/vendors", s.handleVendors)
	app.Post("/aix/chat-generate", s.handleChatGenerate)
	app.Post("/llms/:vendor/models", s.handleListModels)
	app.Post("/llms/:vendor/admin/pullable", s.handleAdminPullable)
	app.Post("/llms/:vendor/admin/pull", s.handleAdminPull)
	app.Post("/llms/:vendor/admin/delete", s.handleAdminDelete)

	if config.Debug {
		app.All("/debug/pprof/*", adaptor.HTTPHandler(pprofMux()))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"debug", s.config.Debug,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

func requestID(c *fiber.Ctx) error {
	id := c.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Locals(RequestIDHeader, id)
	c.Set(RequestIDHeader, id)
	return c.Next()
}

func requestIDFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(RequestIDHeader).(string)
	return id
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	return c.Status(code).JSON(llm.ErrorResponse{Error: err.Error()})
}

func pprofMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

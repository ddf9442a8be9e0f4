// Package api provides the HTTP server and routing.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apispec "github.com/axonops/openapi-diagram/api"
	"github.com/axonops/openapi-diagram/internal/api/handlers"
	"github.com/axonops/openapi-diagram/internal/api/types"
	"github.com/axonops/openapi-diagram/internal/config"
	"github.com/axonops/openapi-diagram/internal/metrics"
	"github.com/axonops/openapi-diagram/internal/registry"
)

// Server represents the HTTP server.
type Server struct {
	config   *config.Config
	registry *registry.Registry
	router   chi.Router
	server   *http.Server
	logger   *slog.Logger
	metrics  *metrics.Metrics
	build    handlers.Config
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMetrics shares a metrics instance, typically the one the registry records into.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithBuildInfo sets the version reported by /v1/metadata/version.
func WithBuildInfo(version, commit, buildTime string) ServerOption {
	return func(s *Server) {
		s.build.Version = version
		s.build.Commit = commit
		s.build.BuildTime = buildTime
	}
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Config, reg *registry.Registry, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		config:   cfg,
		registry: reg,
		logger:   logger,
		build:    handlers.Config{Version: "dev"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	s.build.MaxUploadBytes = cfg.Server.MaxUploadBytes

	s.setupRouter()
	return s
}

// Metrics returns the metrics instance for recording custom metrics.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// setupRouter configures the HTTP router.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout()))

	r.NotFound(jsonError(http.StatusNotFound, "HTTP 404 Not Found"))
	r.MethodNotAllowed(jsonError(http.StatusMethodNotAllowed, "HTTP 405 Method Not Allowed"))

	h := handlers.NewWithConfig(s.registry, s.build)

	// Health checks
	r.Get("/", h.HealthCheck)
	r.Get("/health/live", h.LivenessCheck)
	r.Get("/health/ready", h.ReadinessCheck)

	// Metrics endpoint
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})

	// API description of this service
	r.Get("/openapi.yaml", serveSpec)

	// Packages
	r.Get("/packages", h.ListPackages)
	r.Get("/packages/{package}/versions", h.ListVersions)
	r.Put("/packages/{package}/versions/{version}", h.PublishDocument)
	r.Get("/packages/{package}/versions/{version}", h.GetDocument)
	r.Delete("/packages/{package}/versions/{version}", h.DeleteDocument)
	r.Get("/packages/{package}/versions/{version}/document", h.GetRawDocument)
	r.Get("/packages/{package}/versions/{version}/diagram", h.GetDiagram)

	// Ad-hoc builds
	r.Post("/diagrams", h.BuildDiagram)

	// Metadata (v1 API)
	r.Get("/v1/metadata/version", h.GetServerVersion)

	s.router = r
}

func (s *Server) requestTimeout() time.Duration {
	if s.config.Server.WriteTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.config.Server.WriteTimeout) * time.Second
}

// jsonError returns a handler answering with an error body whose code is the HTTP status.
func jsonError(status int, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(types.ErrorResponse{ErrorCode: status, Message: message})
	}
}

func serveSpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(apispec.OpenAPISpec)
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote", r.RemoteAddr),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       time.Duration(s.config.Server.ReadTimeout) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	s.logger.Info("starting server", slog.String("address", addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the HTTP router for testing.
func (s *Server) Router() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Address returns the server address.
func (s *Server) Address() string {
	return fmt.Sprintf("http://%s", s.config.Address())
}

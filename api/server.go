// Package api provides the HTTP REST API for the knowledge base.
//
// Endpoints:
//
//	GET    /health              liveness probe
//	GET    /ready               readiness probe (database ping)
//	POST   /api/resources       ingest one piece of content
//	POST   /api/resources/files ingest uploaded text files (multipart)
//	DELETE /api/resources/{id}  delete a resource and its embeddings
//	POST   /api/search          similarity search
//
// Tenant identity comes from the X-User-ID header; callers may scope a
// request to an agent with an agent_id field. Authentication itself lives
// upstream, this service trusts the gateway that sets the header.
//
// File structure:
//   - server.go: server setup and lifecycle
//   - middleware.go: recovery and logging middleware
//   - ratelimit.go: per-client token-bucket rate limiting
//   - health.go: health endpoints
//   - resources.go: ingestion and deletion endpoints
//   - search.go: similarity search endpoint
//   - response.go: JSON helpers
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentkb/agentkb/internal/retrieval"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"

	// ShutdownTimeout caps graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads against slowloris clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout = 60 * time.Second

	// IdleTimeout bounds keep-alive connections waiting for the next request.
	IdleTimeout = 120 * time.Second
)

// Config holds server tuning knobs.
type Config struct {
	// RateLimitRPS is the sustained per-client request rate. Zero disables
	// rate limiting.
	RateLimitRPS float64

	// RateLimitBurst is the per-client burst allowance.
	RateLimitBurst int
}

// Server is the HTTP server for the knowledge base REST API.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger

	limiter     *rateLimiter
	stopLimiter func()

	health    *HealthHandler
	resources *ResourceHandler
	search    *SearchHandler
}

// NewServer creates a server with all routes registered. pool is used for
// readiness checks; service handles all knowledge operations.
func NewServer(pool *pgxpool.Pool, service *retrieval.Service, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:       mux,
		logger:    logger,
		health:    NewHealthHandler(pool, logger),
		resources: NewResourceHandler(service, logger),
		search:    NewSearchHandler(service, logger),
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter, s.stopLimiter = newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	}

	s.health.RegisterRoutes(mux)
	s.resources.RegisterRoutes(mux)
	s.search.RegisterRoutes(mux)
	return s
}

// Handler returns the mux wrapped in the middleware chain:
// recovery → logging → rate limit → routes.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	}
	if s.limiter != nil {
		middlewares = append(middlewares, s.limiter.middleware)
	}
	return chain(s.mux, middlewares...)
}

// Close releases background resources. Safe to call more than once.
func (s *Server) Close() {
	if s.stopLimiter != nil {
		s.stopLimiter()
		s.stopLimiter = nil
	}
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	defer s.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

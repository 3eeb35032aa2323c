// Package webserver runs the LeafLens HTTP API.
package webserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/leaflens/leaflens/internal/webapi"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	API            webapi.Deps
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server wraps the HTTP server with configuration.
type Server struct {
	cfg    Config
	srv    *http.Server
	logger *slog.Logger
}

// New creates a new HTTP server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.API.Logger == nil {
		cfg.API.Logger = cfg.Logger
	}

	mux := http.NewServeMux()
	if err := registerRoutes(mux, cfg); err != nil {
		return nil, err
	}

	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		srv: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
			Handler:           webapi.CORSMiddleware(logRequests(mux, cfg.Logger), cfg.AllowedOrigins...),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe starts the HTTP server and shuts it down gracefully when ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.logger.Info("HTTP server starting", "address", s.srv.Addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", "error", err)
		}
	}()

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Handler returns the underlying http.Handler (useful for testing).
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

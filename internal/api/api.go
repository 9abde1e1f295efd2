// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/logalert/internal/alerting"
	"github.com/good-yellow-bee/logalert/internal/api/health"
	"github.com/good-yellow-bee/logalert/internal/logger"
	"github.com/good-yellow-bee/logalert/internal/notifier"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address            string
	MaxBodyBytes       int64         // Limit for request bodies (default: 10 MiB)
	EvaluateRatePerMin int           // Per-IP limit on POST /evaluate (default: 60)
	RequestTimeout     time.Duration // Deadline for API handlers (default: 30s)
	Verbose            bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 10 << 20
	}
	if c.EvaluateRatePerMin == 0 {
		c.EvaluateRatePerMin = 60
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// Server is the HTTP API server.
type Server struct {
	config        *Config
	engine        *alerting.Engine
	dispatcher    *notifier.Dispatcher
	server        *http.Server
	healthHandler *health.Handler
	log           zerolog.Logger
}

// New creates a new API server. dispatcher may be nil; it is only used for
// status reporting.
func New(cfg *Config, engine *alerting.Engine, dispatcher *notifier.Dispatcher) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	cfg.SetDefaults()

	s := &Server{
		config:        cfg,
		engine:        engine,
		dispatcher:    dispatcher,
		healthHandler: health.NewHandler(),
		log:           logger.WithComponent("api"),
	}

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.setupRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.log.Info().Str("address", s.config.Address).Msg("HTTP API listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutting down HTTP API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	s.healthHandler.RegisterChecker(c)
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/logalert/internal/api/alerts"
	"github.com/good-yellow-bee/logalert/internal/api/middleware"
	"github.com/good-yellow-bee/logalert/pkg/buildinfo"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	evaluateLimiter := middleware.NewRateLimiter(s.config.EvaluateRatePerMin)
	alertHandler := alerts.NewHandler(s.engine, s.config.MaxBodyBytes)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, ErrMethodNotAllowed)
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.config.RequestTimeout))

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", alertHandler.List)
			r.Post("/", alertHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", alertHandler.GetByID)
				r.Delete("/", alertHandler.Delete)
				r.Put("/enabled", alertHandler.SetEnabled)
			})
		})

		r.With(middleware.RateLimitByIP(evaluateLimiter)).Post("/evaluate", alertHandler.Evaluate)
		r.Get("/events", alertHandler.Events)
		r.Get("/status", s.status)
	})

	// Health checks (public, no rate limit)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/ready", s.healthHandler.Ready)

	return r
}

// StatusResponse summarizes engine state.
type StatusResponse struct {
	Version         string   `json:"version"`
	CooldownSeconds float64  `json:"cooldown_seconds"`
	Engine          any      `json:"engine"`
	Channels        []string `json:"channels"`
	RateLimit       any      `json:"rate_limit,omitempty"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:         buildinfo.Version,
		CooldownSeconds: s.engine.Cooldown().Seconds(),
		Engine:          s.engine.Stats(),
		Channels:        []string{},
	}
	if s.dispatcher != nil {
		resp.Channels = s.dispatcher.Names()
		resp.RateLimit = s.dispatcher.RateLimitStats()
	}
	JSON(w, http.StatusOK, resp)
}

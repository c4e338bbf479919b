// Package core provides the API chassis for the top-up engine: a chi router
// with the cross-cutting middleware chain (panic recovery, request IDs,
// structured logging, CORS, auth propagation, per-user rate limiting) plus
// the shared request/response utilities handlers build on.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"airvault/internal/config"
)

// Server bundles the router with its cross-cutting dependencies so tests can
// inject substitutes.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// HealthProbes are checked by GET /health.
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1. Populated by the
	// entry point to avoid import cycles between core and handler packages.
	V1RouteRegistrars []func(chi.Router)

	router   *chi.Mux
	limiters *userLimiters
}

// NewServer wires the router and middleware dependencies. Routes are mounted
// separately via MountRoutes so tests can customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(),
		router:    chi.NewRouter(),
		limiters:  newUserLimiters(cfg.Security.RateLimitPerSecond, cfg.Security.RateLimitBurst),
	}, nil
}

// MountRoutes registers the global middleware chain and all routes.
//
// Middleware order matters:
//  1. Recoverer     - outermost, catches everything downstream
//  2. RequestID     - correlation ID for logs and responses
//  3. RequestLogger - structured request logging
//  4. CORS          - browser preflight and response headers
//
// Auth and rate limiting apply only inside /v1; /health stays public.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.Config.Security.CorsAllowedOrigins))

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.AuthMiddleware)
		r.Use(s.RateLimit)
		for _, registrar := range s.V1RouteRegistrars {
			registrar(r)
		}
	})

	s.router.Get("/health", s.HandleHealth)
}

// Handler returns the router as an http.Handler for http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown logs termination; connection pools are owned and closed by the
// entry point.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown complete")
	return nil
}

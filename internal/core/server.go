// Package core provides the HTTP chassis for the admission API: a chi router
// with the cross-cutting middleware (panic recovery, request IDs, logging,
// latency metrics, timeouts), the health endpoint and the JSON response
// helpers shared by handlers.
package core

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"licensegate/internal/config"
)

// MetricsCollector records API latency. route is the chi route pattern, not
// the raw path, so tenant IDs never become label values.
type MetricsCollector interface {
	ObserveRequest(route string, status int, duration time.Duration)
}

// RouteRegistrar mounts a handler group under /v1.
type RouteRegistrar func(r chi.Router)

// Server holds the router and the dependencies middleware needs. Pools and
// clients are owned by the caller; Server never closes them.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	HealthProbes      []HealthProbe
	V1RouteRegistrars []RouteRegistrar
	// MetricsHandler is served at /metrics when set.
	MetricsHandler http.Handler

	router *chi.Mux
}

// NewServer prepares a server for route mounting. The caller registers
// probes and route groups, then calls MountRoutes.
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
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// HTTPServer wraps the router in an http.Server with the configured port and
// conservative header/idle timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.Config.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

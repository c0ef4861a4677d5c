// Package core provides the HTTP chassis for the impact alert bridge. It
// builds a chi router and enforces the cross-cutting concerns (panic
// recovery, request correlation, logging, CORS, compression and metrics)
// before requests reach the domain handlers.
package core

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"impactalert/internal/config"
)

// MetricsCollector records API request telemetry.
type MetricsCollector interface {
	// RecordRequest records one completed request. endpoint is the matched
	// route pattern, not the raw path.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts a group of routes on a router. Handler packages expose
// registrars so that core never imports them.
type RouteRegistrar func(r chi.Router)

// Server holds the chassis dependencies.
type Server struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics MetricsCollector

	// APIRoutes are mounted under /api behind gzip compression.
	APIRoutes []RouteRegistrar
	// RootRoutes are mounted at the root without compression. Upgraded
	// connections (/ws) and the metrics exposition live here.
	RootRoutes []RouteRegistrar

	router *chi.Mux
}

// NewServer validates the critical dependencies and prepares an empty router.
// The caller sets the registrars and then calls MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
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

// HTTPServer builds the listener for the configured port. Write timeouts are
// left unset because WebSocket connections outlive any fixed deadline; the
// request context timeout bounds ordinary handlers instead.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.Config.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.Logger.Handler(), slog.LevelWarn),
	}
}

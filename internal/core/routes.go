package core

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"

	"impactalert/internal/types"
)

// defaultRequestTimeout applies when the config carries no request timeout.
const defaultRequestTimeout = 30 * time.Second

// defaultRedactedHeaders are masked in request logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"Sec-WebSocket-Key",
}

// MountRoutes registers the global middleware chain, the health checks and
// the route groups.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError(types.ErrCodeNotFound, "route not found", nil))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError(types.ErrCodeMethodNotAllowed, "method not allowed", nil))
	})

	s.router.Get("/health", s.HandleHealth)
	s.router.Route("/api", s.mountAPI)

	for _, registrar := range s.RootRoutes {
		registrar(s.router)
	}
}

// registerGlobalMiddleware applies middleware in strict order:
//  1. Recoverer      - outermost, catches every panic.
//  2. ContextTimeout - deadline for ordinary handlers.
//  3. RequestID      - correlation ID for logs and upstream calls.
//  4. RequestLogger  - structured request log with redacted headers.
//  5. CORS           - browser access control and preflight.
//  6. Metrics        - request latency and count per route pattern.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(s.MetricsMiddleware)
}

func (s *Server) mountAPI(r chi.Router) {
	r.Use(func(next http.Handler) http.Handler {
		return gzhttp.GzipHandler(next)
	})
	r.Get("/health", s.HandleHealth)
	for _, registrar := range s.APIRoutes {
		registrar(r)
	}
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Security.CorsAllowedOrigins) > 0 {
		return s.Config.Security.CorsAllowedOrigins
	}
	return []string{"*"}
}

// ContextTimeoutMiddleware sets a deadline on the request context. Handlers
// that hijack the connection return before the deadline matters.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses an incoming X-Request-Id or generates a UUID,
// stores it in the context and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

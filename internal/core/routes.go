package core

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultRequestTimeout = 29 * time.Second

// Header values masked in request logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
}

// MountRoutes registers the global middleware, the service routes and every
// API registrar under /api.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.Get("/", s.HandleRoot)
	s.router.Get("/health", s.HandleHealth)
	s.router.Route("/api", s.mountAPI)
}

// registerGlobalMiddleware applies middleware in order:
//
//  1. RequestID       - correlation ID in context and response header, set
//     first so a recovered panic can report it.
//  2. Recoverer       - catches panics from everything below.
//  3. ContextTimeout  - soft deadline for downstream stores.
//  4. RequestLogger   - structured access log with redacted headers.
//  5. CORS            - answers preflight before user resolution.
//  6. UserID          - caller identity from the user-id header.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(UserIDMiddleware)
}

func (s *Server) mountAPI(r chi.Router) {
	for _, registrar := range s.APIRouteRegistrars {
		registrar(r)
	}
}

func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Server.CorsAllowedOrigins) > 0 {
		return s.Config.Server.CorsAllowedOrigins
	}
	return []string{"*"}
}

type rootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleRoot is the liveness endpoint. It touches no dependency.
func (s *Server) HandleRoot(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, rootResponse{Status: "ok", Message: "Recipe Scheduler API"})
}

// ContextTimeoutMiddleware sets a deadline on the request context.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package api

import (
	"fmt"
	"net/http"
	"strings"
)

// RouteRegistry manages HTTP route registration using Go 1.22+ ServeMux
// patterns.
type RouteRegistry struct {
	routes   map[string]http.Handler
	patterns []string
	mux      *http.ServeMux
}

// NewRouteRegistry creates a new RouteRegistry.
func NewRouteRegistry() *RouteRegistry {
	return &RouteRegistry{
		routes:   make(map[string]http.Handler),
		patterns: make([]string, 0),
		mux:      http.NewServeMux(),
	}
}

// RegisterAPIRoutes registers all API routes with their handlers.
func (r *RouteRegistry) RegisterAPIRoutes(
	healthHandler *HealthHandler,
	documentHandler *DocumentHandler,
	progressHandler *ProgressHandler,
) {
	register := func(pattern string, handler http.HandlerFunc) {
		if err := r.RegisterRoute(pattern, handler); err != nil {
			panic(fmt.Errorf("failed to register route %q: %w", pattern, err))
		}
	}

	register("GET /health", healthHandler.GetHealth)

	register("POST /documents", documentHandler.RegisterDocument)
	register("GET /documents/{id}", documentHandler.GetDocument)
	register("GET /documents/{id}/job", documentHandler.GetJob)
	register("POST /documents/{id}/retry", documentHandler.RetryDocument)
	register("GET /documents/{id}/progress", progressHandler.StreamProgress)

	register("GET /queue/summary", documentHandler.GetQueueSummary)
}

// RegisterRoute registers a single route with the given pattern and handler.
func (r *RouteRegistry) RegisterRoute(pattern string, handler http.Handler) error {
	if err := validatePattern(pattern); err != nil {
		return err
	}
	if _, exists := r.routes[pattern]; exists {
		return fmt.Errorf("route pattern %q is already registered", pattern)
	}

	r.mux.Handle(pattern, handler)
	r.routes[pattern] = handler
	r.patterns = append(r.patterns, pattern)
	return nil
}

// BuildServeMux returns the configured ServeMux.
func (r *RouteRegistry) BuildServeMux() *http.ServeMux {
	return r.mux
}

// HasRoute checks if a route pattern is registered.
func (r *RouteRegistry) HasRoute(pattern string) bool {
	_, exists := r.routes[pattern]
	return exists
}

// RouteCount returns the number of registered routes.
func (r *RouteRegistry) RouteCount() int {
	return len(r.routes)
}

func validatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("route pattern cannot be empty")
	}

	parts := strings.SplitN(pattern, " ", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid route pattern %q: must have format 'METHOD /path'", pattern)
	}

	method, path := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return fmt.Errorf("invalid route pattern %q: unsupported method %q", pattern, method)
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("invalid route pattern %q: path must start with '/'", pattern)
	}
	return nil
}

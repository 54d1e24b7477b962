package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"documine/internal/application/common/slogger"
	"documine/internal/config"
	"documine/internal/port/inbound"
)

// Server is the HTTP API server.
type Server struct {
	config        *config.Config
	httpServer    *http.Server
	routeRegistry *RouteRegistry

	mu        sync.Mutex
	isRunning bool
}

// ServerDeps bundles the server's services.
type ServerDeps struct {
	Health   inbound.HealthService
	Document inbound.DocumentService
	Progress inbound.ProgressStreamService
}

// NewServer builds a server with all routes registered.
func NewServer(cfg *config.Config, deps ServerDeps) *Server {
	errorHandler := NewDefaultErrorHandler()

	registry := NewRouteRegistry()
	registry.RegisterAPIRoutes(
		NewHealthHandler(deps.Health),
		NewDocumentHandler(deps.Document, errorHandler),
		NewProgressHandler(deps.Progress, errorHandler),
	)

	readTimeout := cfg.API.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	// The SSE endpoint holds its response open for the life of a job, so
	// the server write timeout stays unset; per-request deadlines come
	// from the client context.
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.API.Host, cfg.API.Port),
		Handler:           withCorrelationID(registry.BuildServeMux()),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		config:        cfg,
		httpServer:    httpServer,
		routeRegistry: registry,
	}
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	s.mu.Lock()
	s.isRunning = true
	s.mu.Unlock()

	slogger.InfoNoCtx("API server listening", slogger.Fields{
		"addr": s.httpServer.Addr,
	})

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return nil
	}
	s.isRunning = false
	return s.httpServer.Shutdown(ctx)
}

// withCorrelationID attaches a correlation ID to every request context so
// log lines across the request share one ID.
func withCorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = slogger.NewCorrelationID()
		}
		ctx := slogger.WithCorrelationID(r.Context(), correlationID)
		w.Header().Set("X-Correlation-ID", correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

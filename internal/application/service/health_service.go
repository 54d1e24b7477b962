package service

import (
	"context"
	"time"

	"documine/internal/port/inbound"
)

// Pinger reports reachability of an external dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService aggregates dependency pings into a single health status.
type HealthService struct {
	version      string
	dependencies map[string]Pinger
	timeout      time.Duration
}

// NewHealthService creates a health service. Dependencies map names to
// pingers; a nil pinger is reported as "unknown".
func NewHealthService(version string, dependencies map[string]Pinger) *HealthService {
	return &HealthService{
		version:      version,
		dependencies: dependencies,
		timeout:      2 * time.Second,
	}
}

// Check pings every dependency with a short budget. The service is
// "degraded" when any dependency is unreachable; it still serves reads.
func (s *HealthService) Check(ctx context.Context) inbound.HealthStatus {
	status := inbound.HealthStatus{
		Status:       "healthy",
		Version:      s.version,
		Dependencies: make(map[string]string, len(s.dependencies)),
	}

	for name, pinger := range s.dependencies {
		if pinger == nil {
			status.Dependencies[name] = "unknown"
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			status.Dependencies[name] = "unreachable"
			status.Status = "degraded"
		} else {
			status.Dependencies[name] = "ok"
		}
	}

	return status
}

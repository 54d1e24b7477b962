package api

import (
	"net/http"

	"documine/internal/port/inbound"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	service inbound.HealthService
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(service inbound.HealthService) *HealthHandler {
	return &HealthHandler{service: service}
}

// GetHealth handles GET /health. A degraded service still answers 200; the
// body carries per-dependency state for the load balancer and operators.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := h.service.Check(r.Context())

	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	_ = WriteJSON(w, code, status)
}

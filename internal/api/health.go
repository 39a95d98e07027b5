package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles readiness checks.
type HealthHandler struct {
	store Pinger
}

// NewHealthHandler creates a readiness handler for the conversation store.
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Ready returns the health status of the API and its dependencies.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status = "degraded"
		checks["conversation_store"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["conversation_store"] = "ok"
	}

	JSON(w, statusCode, map[string]interface{}{"status": status, "checks": checks})
}

// RegisterHealth registers the readiness route. Liveness is served by chi's
// Heartbeat at /health.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health/ready", h.Ready)
}

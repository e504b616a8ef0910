package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler responds with service health information.
type HealthHandler struct {
	DB Pinger
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	ctx := r.Context()
	status := map[string]string{"status": "ok"}

	if h.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
		if err := h.DB.Ping(pingCtx); err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			respondData(ctx, w, http.StatusServiceUnavailable, status, "database unreachable")
			return
		}
		status["database"] = "ok"
	}

	respondData(ctx, w, http.StatusOK, status, "healthy")
}

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthCheckTimeout = 5 * time.Second

// Healthz reports the store's reachability.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok", "store": "ok"}
	status := map[string]any{"status": "healthy", "checks": checks}
	code := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["store"] = "unreachable"
		code = http.StatusServiceUnavailable
	} else if n, err := h.store.Count(ctx); err == nil {
		status["sessions"] = n
	}

	JSON(w, code, status)
}

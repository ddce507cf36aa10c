package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/popeskul/waba-messenger/internal/middleware"
	"github.com/popeskul/waba-messenger/internal/scheduler"
)

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := h.service.Health.GetHealth()

	if health.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	render.JSON(w, r, health)
}

// StartScheduler handles POST /api/scheduler/start.
func (h *Handler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Scheduler.Start(); err != nil {
		if errors.Is(err, scheduler.ErrSchedulerAlreadyRunning) {
			h.sendError(w, r, http.StatusConflict, errorCodeSchedulerAlreadyRunning, "Scheduler is already running")
			return
		}

		h.logError(r, "Failed to start scheduler", err)
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Failed to start scheduler")
		return
	}

	render.JSON(w, r, map[string]string{"status": "started"})
}

// StopScheduler handles POST /api/scheduler/stop.
func (h *Handler) StopScheduler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Scheduler.Stop(); err != nil {
		if errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			h.sendError(w, r, http.StatusConflict, errorCodeSchedulerNotRunning, "Scheduler is not running")
			return
		}

		h.logError(r, "Failed to stop scheduler", err)
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Failed to stop scheduler")
		return
	}

	render.JSON(w, r, map[string]string{"status": "stopped"})
}

// Notifications handles GET /ws, upgrading to a WebSocket subscription.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	h.hub.HandleConnection(w, r)
}

// ConnectionCount handles GET /api/connections.
func (h *Handler) ConnectionCount(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]int{
		"active_connections": h.hub.ConnectionCount(),
	})
}

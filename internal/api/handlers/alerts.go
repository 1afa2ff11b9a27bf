package handlers

import (
	"net/http"

	"lrx-radar/internal/infrastructure/database/repository"
	"lrx-radar/pkg/logger"
)

// AlertsHandler handles alert endpoints
type AlertsHandler struct {
	repos  *repository.Repositories
	logger *logger.Logger
}

// NewAlertsHandler creates a new AlertsHandler
func NewAlertsHandler(repos *repository.Repositories, log *logger.Logger) *AlertsHandler {
	return &AlertsHandler{
		repos:  repos,
		logger: log.WithComponent("alerts"),
	}
}

// List handles GET /api/alerts
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	alerts, err := h.repos.ListAlerts(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list alerts")
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  alerts,
		"total": len(alerts),
	})
}

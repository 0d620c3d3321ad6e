package handlers

import (
	"net/http"

	"commute-planner/internal/metrics"
)

// AlertHandler serves alert queries for the rider's commute.
type AlertHandler struct {
	alerts  AlertSource
	metrics *metrics.Collector
}

// NewAlertHandler creates an alert handler. metrics may be nil.
func NewAlertHandler(alerts AlertSource, m *metrics.Collector) *AlertHandler {
	return &AlertHandler{alerts: alerts, metrics: m}
}

// Active handles GET /alerts/active: all currently active alerts.
func (h *AlertHandler) Active(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.ActiveAlerts(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to fetch alerts: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"alerts":  alerts,
		"count":   len(alerts),
	})
}

// Commute handles GET /alerts?lines=F,C&direction=0&stations=F20,F18:
// alerts filtered to the rider's lines, direction, and stations.
func (h *AlertHandler) Commute(w http.ResponseWriter, r *http.Request) {
	lines := parseList(r, "lines")
	if len(lines) == 0 {
		writeError(w, http.StatusBadRequest, "lines is required")
		return
	}
	direction, ok := parseDirection(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "direction must be 0 or 1")
		return
	}
	stationIDs := parseList(r, "stations")

	alerts, err := h.alerts.AlertsForCommute(r.Context(), lines, direction, stationIDs)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to fetch alerts: "+err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.CountAlertRequest()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"lines":     lines,
		"direction": direction,
		"alerts":    alerts,
		"count":     len(alerts),
	})
}

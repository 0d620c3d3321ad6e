package handlers

import "net/http"

// RootHandler describes the API surface.
type RootHandler struct{}

// NewRootHandler creates a root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{}
}

// Index handles GET /api.
func (h *RootHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "commute-planner",
		"description": "Real-time multi-modal commute routing with alert correlation",
		"endpoints": map[string]string{
			"GET /health":              "Health check",
			"GET /routes":              "Ranked itineraries (origin, destination, arrive_by)",
			"POST /routes/alerts":      "Correlate alerts against a computed route",
			"GET /alerts":              "Alerts for a commute (lines, direction, stations)",
			"GET /alerts/active":       "All currently active alerts",
			"GET /stats/cache":         "Cache statistics",
			"GET /stats/performance":   "Fetch latency and hit-rate statistics",
			"POST /stats/cache/cleanup": "Evict stale cache entries",
			"GET /metrics":             "Prometheus metrics",
		},
	})
}

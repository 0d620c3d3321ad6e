package handlers

import (
	"net/http"
	"time"

	"commute-planner/internal/cache"
)

// StatsHandler exposes cache and performance statistics.
type StatsHandler struct {
	cache     *cache.Manager
	startedAt time.Time
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(c *cache.Manager) *StatsHandler {
	return &StatsHandler{cache: c, startedAt: time.Now()}
}

// Cache handles GET /stats/cache.
func (h *StatsHandler) Cache(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   h.cache.Stats(),
	})
}

// Performance handles GET /stats/performance: per-category fetch
// latencies plus process uptime.
func (h *StatsHandler) Performance(w http.ResponseWriter, r *http.Request) {
	stats := h.cache.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"uptime":         time.Since(h.startedAt).String(),
		"response_times": stats.PerCategory,
		"hit_rate":       stats.HitRate,
		"failures":       stats.RecentFailures,
	})
}

// Cleanup handles POST /stats/cache/cleanup: bulk-evicts stale
// entries and reports how many were removed.
func (h *StatsHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	evicted := h.cache.Cleanup()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"evicted": evicted,
	})
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"commute-planner/internal/feeds"
)

// FeedProber reports upstream feed reachability; the feed gateway
// implements it.
type FeedProber interface {
	Health(ctx context.Context) (feeds.FeedHealth, error)
}

// HealthHandler reports service liveness and upstream reachability.
type HealthHandler struct {
	prober    FeedProber
	startedAt time.Time
}

// NewHealthHandler creates a health handler. prober may be nil to
// report liveness only.
func NewHealthHandler(prober FeedProber) *HealthHandler {
	return &HealthHandler{prober: prober, startedAt: time.Now()}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startedAt).String(),
	}
	if h.prober != nil {
		if fh, err := h.prober.Health(r.Context()); err == nil {
			body["feeds"] = fh
			if !fh.Reachable {
				body["status"] = "DEGRADED"
			}
		}
	}
	writeJSON(w, http.StatusOK, body)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"commute-planner/internal/metrics"
	"commute-planner/internal/models"
	"commute-planner/internal/routes"
)

// RouteHandler serves itinerary calculation and per-route alert
// checks.
type RouteHandler struct {
	planner RoutePlanner
	alerts  AlertSource
	metrics *metrics.Collector
}

// NewRouteHandler creates a route handler. metrics may be nil.
func NewRouteHandler(planner RoutePlanner, alerts AlertSource, m *metrics.Collector) *RouteHandler {
	return &RouteHandler{planner: planner, alerts: alerts, metrics: m}
}

// Calculate handles GET /routes?origin=&destination=&arrive_by=.
// An empty route list is a valid answer; only missing parameters are
// client errors.
func (h *RouteHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	origin := q.Get("origin")
	destination := q.Get("destination")
	if origin == "" || destination == "" {
		writeError(w, http.StatusBadRequest, "origin and destination are required")
		return
	}

	req := routes.Request{
		Origin:      origin,
		Destination: destination,
	}
	if arriveBy := q.Get("arrive_by"); arriveBy != "" {
		t, err := time.Parse(time.RFC3339, arriveBy)
		if err != nil {
			writeError(w, http.StatusBadRequest, "arrive_by must be RFC3339")
			return
		}
		req.TargetArrival = t
	}
	if loc, ok := parseLocation(q.Get("from_lat"), q.Get("from_lng")); ok {
		req.OriginLocation = loc
	}
	if loc, ok := parseLocation(q.Get("to_lat"), q.Get("to_lng")); ok {
		req.DestinationLocation = loc
	}

	start := time.Now()
	result, err := h.planner.CalculateRoutes(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "route calculation failed: "+err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveRouteComputation(time.Since(start))
	}

	fallback := len(result) > 0
	for _, route := range result {
		if route.DataSource == models.SourceRealtime {
			fallback = false
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"origin":        origin,
		"destination":   destination,
		"routes":        result,
		"count":         len(result),
		"fallback_only": fallback,
	})
}

// CheckAlerts handles POST /routes/alerts?direction=: the body is a
// computed route, the response its correlated alert info.
func (h *RouteHandler) CheckAlerts(w http.ResponseWriter, r *http.Request) {
	direction, ok := parseDirection(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "direction must be 0 or 1")
		return
	}

	var route models.Route
	if err := json.NewDecoder(r.Body).Decode(&route); err != nil {
		writeError(w, http.StatusBadRequest, "invalid route body: "+err.Error())
		return
	}

	info, err := h.alerts.CheckRoute(r.Context(), route, direction)
	if err != nil {
		writeError(w, http.StatusBadGateway, "alert correlation failed: "+err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.CountAlertRequest()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"info":    info,
	})
}

func parseLocation(latRaw, lngRaw string) (*models.Location, bool) {
	if latRaw == "" || lngRaw == "" {
		return nil, false
	}
	lat, err1 := strconv.ParseFloat(latRaw, 64)
	lng, err2 := strconv.ParseFloat(lngRaw, 64)
	if err1 != nil || err2 != nil {
		return nil, false
	}
	return &models.Location{Lat: lat, Lng: lng}, true
}

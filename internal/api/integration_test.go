package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"commute-planner/internal/api"
	"commute-planner/internal/cache"
	"commute-planner/internal/config"
	"commute-planner/internal/models"
	"commute-planner/internal/routes"
)

// ---------------------------------------------------------------------------
// Mock providers
// ---------------------------------------------------------------------------

type mockPlanner struct {
	routes []models.Route
	err    error
}

func (m *mockPlanner) CalculateRoutes(_ context.Context, _ routes.Request) ([]models.Route, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.routes, nil
}

type mockAlerts struct {
	alerts []models.ServiceAlert
	info   models.AlertInfo
	err    error
}

func (m *mockAlerts) ActiveAlerts(_ context.Context) ([]models.ServiceAlert, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.alerts, nil
}

func (m *mockAlerts) AlertsForCommute(_ context.Context, _ []string, _ int, _ []string) ([]models.ServiceAlert, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.alerts, nil
}

func (m *mockAlerts) CheckRoute(_ context.Context, _ models.Route, _ int) (models.AlertInfo, error) {
	if m.err != nil {
		return models.AlertInfo{}, m.err
	}
	return m.info, nil
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T, planner *mockPlanner, alerts *mockAlerts) *httptest.Server {
	t.Helper()

	cfg := &config.Config{HTTPTimeout: 5 * time.Second}
	mgr := cache.NewManager(slog.Default())
	router := api.NewRouter(cfg, planner, alerts, nil, mgr, nil, slog.Default())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func defaultPlanner() *mockPlanner {
	return &mockPlanner{
		routes: []models.Route{
			{
				ID:            "direct-F",
				TotalMinutes:  25,
				TransferCount: 0,
				IsDirect:      true,
				Confidence:    100,
				DataSource:    models.SourceRealtime,
				Steps: []models.RouteStep{
					{Type: models.StepWalk, Minutes: 5, Source: models.SourceEstimated, ToStation: "Carroll St"},
					{Type: models.StepWait, Minutes: 4, Source: models.SourceRealtime, Line: "F", FromStation: "Carroll St"},
					{Type: models.StepTransit, Minutes: 15, Source: models.SourceFixed, Line: "F", FromStation: "Carroll St", ToStation: "Jay St-MetroTech"},
					{Type: models.StepArrive, Minutes: 1, Source: models.SourceEstimated, FromStation: "Jay St-MetroTech"},
				},
			},
		},
	}
}

func defaultAlerts() *mockAlerts {
	return &mockAlerts{
		alerts: []models.ServiceAlert{
			{ID: "a1", Header: "F trains are delayed", Lines: []string{"F"}, Severity: models.SeverityWarning},
		},
		info: models.AlertInfo{
			HasAlerts: true,
			Severity:  models.SeverityWarning,
			Alerts: []models.ServiceAlert{
				{ID: "a1", Header: "F trains are delayed", Lines: []string{"F"}, Severity: models.SeverityWarning},
			},
		},
	}
}

func get(t *testing.T, server *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func post(t *testing.T, server *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(server.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return m
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Errorf("status = %d, want %d", resp.StatusCode, want)
	}
}

func assertSuccess(t *testing.T, body map[string]any) {
	t.Helper()
	if body["success"] != true {
		t.Errorf("expected success=true, body: %v", body)
	}
}

func assertField(t *testing.T, body map[string]any, field string) {
	t.Helper()
	if _, ok := body[field]; !ok {
		t.Errorf("missing field %q in response: %v", field, body)
	}
}

// ---------------------------------------------------------------------------
// Health & root
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	srv := newTestServer(t, defaultPlanner(), defaultAlerts())

	resp := get(t, srv, "/health")
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	assertField(t, body, "status")
	assertField(t, body, "uptime")

	if body["status"] != "OK" {
		t.Errorf("status = %v, want OK", body["status"])
	}
}

func TestAPIRoot(t *testing.T) {
	srv := newTestServer(t, defaultPlanner(), defaultAlerts())

	resp := get(t, srv, "/api")
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	assertField(t, body, "endpoints")
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func TestRoutesCalculate(t *testing.T) {
	srv := newTestServer(t, defaultPlanner(), defaultAlerts())

	resp := get(t, srv, "/routes?origin=Carroll+St&destination=Jay+St-MetroTech")
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	assertSuccess(t, body)
	assertField(t, body, "routes")

	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
	if body["fallback_only"] != false {
		t.Errorf("fallback_only = %v for a realtime route", body["fallback_only"])
	}
}

func TestRoutesMissingParams(t *testing.T) {
	srv := newTestServer(t, defaultPlanner(), defaultAlerts())

	resp := get(t, srv, "/routes?origin=Carroll+St")
	assertStatus(t, resp, http.StatusBadRequest)

	body := decodeBody(t, resp)
	assertField(t, body, "error")
}

func TestRoutesBadArriveBy(t *testing.T) {
	srv := newTestServer(t, defaultPlanner(), defaultAlerts())

	resp := get(t, srv, "/routes?origin=A&destination=B&arrive_by=tomorrow")
	assertStatus(t, resp, http.StatusBadRequest)
	decodeBody(t, resp)
}

func TestRoutesEmptyResultIsSuccess(t *testing.T) {
	srv := newTestServer(t, &mockPlanner{}, defaultAlerts())

	resp := get(t, srv, "/routes?origin=A&destination=B")
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	assertSuccess(t, body)
	if body["count"] != float64(0) {
		t.Errorf("count = %v, want 0", body["count"])
	}
}

func TestRoutesFallbackFlag(t *testing.T) {
	planner := defaultPlanner()
	planner.routes[0].DataSource = models.SourceEstimated
	srv := newTestServer(t, planner, defaultAlerts())

	resp := get(t, srv, "/routes?origin=A&destination=B")
	body := decodeBody(t, resp)

	if body["fallback_only"] != true {
		t.Errorf("fallback_only = %v when no realtime route exists", body["fallback_only"])
	}
}

func TestRoutesWithRiderLocation(t *testing.T) {
	srv := newTestServer(t, defaultPlanner(), defaultAlerts())

	q := url.Values{}
	q.Set("origin", "Carroll St")
	q.Set("destination", "Jay St-MetroTech")
	q.Set("from_lat", "40.676998")
	q.Set("from_lng", "-73.998426")

	resp := get(t, srv, "/routes?"+q.Encode())
	assertStatus(t, resp, http.StatusOK)
	assertSuccess(t, decodeBody(t, resp))
}

func TestRouteAlertCheck(t *testing.T) {
	srv := newTestServer(t, defaultPlanner(), defaultAlerts())

	route := defaultPlanner().routes[0]
	resp := post(t, srv, "/routes/alerts?direction=1", route)
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	assertSuccess(t, body)
	assertField(t, body, "info")
}

func TestRouteAlertCheckBadDirection(t *testing.T) {
	srv := newTestServer(t, defaultPlanner(), defaultAlerts())

	resp := post(t, srv, "/routes/alerts?direction=5", models.Route{})
	assertStatus(t, resp, http.StatusBadRequest)
	decodeBody(t, resp)
}

// ---------------------------------------------------------------------------
// Alerts
// ---------------------------------------------------------------------------

func TestAlertsActive(t *testing.T) {
	srv := newTestServer(t, defaultPlanner(), defaultAlerts())

	resp := get(t, srv, "/alerts/active")
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	assertSuccess(t, body)
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
}

func TestAlertsForCommute(t *testing.T) {
	srv := newTestServer(t, defaultPlanner(), defaultAlerts())

	resp := get(t, srv, "/alerts?lines=F,C&direction=0&stations=F20,F21")
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	assertSuccess(t, body)
	assertField(t, body, "alerts")
	if body["direction"] != float64(0) {
		t.Errorf("direction = %v, want 0", body["direction"])
	}
}

func TestAlertsRequireLines(t *testing.T) {
	srv := newTestServer(t, defaultPlanner(), defaultAlerts())

	resp := get(t, srv, "/alerts?direction=0")
	assertStatus(t, resp, http.StatusBadRequest)
	decodeBody(t, resp)
}

func TestAlertsUpstreamFailure(t *testing.T) {
	srv := newTestServer(t, defaultPlanner(), &mockAlerts{err: models.ErrFeedUnavailable})

	resp := get(t, srv, "/alerts/active")
	assertStatus(t, resp, http.StatusBadGateway)

	body := decodeBody(t, resp)
	assertField(t, body, "error")
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

func TestStatsCache(t *testing.T) {
	srv := newTestServer(t, defaultPlanner(), defaultAlerts())

	resp := get(t, srv, "/stats/cache")
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	assertSuccess(t, body)
	assertField(t, body, "stats")
}

func TestStatsPerformance(t *testing.T) {
	srv := newTestServer(t, defaultPlanner(), defaultAlerts())

	resp := get(t, srv, "/stats/performance")
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	assertSuccess(t, body)
	assertField(t, body, "uptime")
	assertField(t, body, "hit_rate")
}

func TestStatsCacheCleanup(t *testing.T) {
	srv := newTestServer(t, defaultPlanner(), defaultAlerts())

	resp := post(t, srv, "/stats/cache/cleanup", nil)
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	assertSuccess(t, body)
	assertField(t, body, "evicted")
}

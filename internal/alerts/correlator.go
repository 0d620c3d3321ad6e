package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"commute-planner/internal/cache"
	"commute-planner/internal/models"
	"commute-planner/internal/stations"
)

const alertsCacheKey = "all"

// Correlator ingests the raw alert feed and filters, escalates, and
// attaches alerts for a rider's specific lines, direction, and route.
type Correlator struct {
	client     *http.Client
	cache      *cache.Manager
	feedURL    string
	classifier Classifier
	stations   *stations.Index
	log        *slog.Logger
	now        func() time.Time

	// fetch is swappable for tests; defaults to the HTTP feed.
	fetch func(context.Context) ([]models.ServiceAlert, error)
}

// NewCorrelator creates an alert correlator. feedURL may be empty to
// use the default consolidated feed.
func NewCorrelator(c *cache.Manager, idx *stations.Index, classifier Classifier, feedURL string, timeout time.Duration, log *slog.Logger) *Correlator {
	if feedURL == "" {
		feedURL = DefaultAlertsFeedURL
	}
	if log == nil {
		log = slog.Default()
	}
	cor := &Correlator{
		client:     &http.Client{Timeout: timeout},
		cache:      c,
		feedURL:    feedURL,
		classifier: classifier,
		stations:   idx,
		log:        log,
		now:        time.Now,
	}
	cor.fetch = cor.fetchFeed
	return cor
}

// SetFetcher replaces the feed fetch, used by tests and by callers
// with a non-HTTP alert source.
func (c *Correlator) SetFetcher(fetch func(context.Context) ([]models.ServiceAlert, error)) {
	c.fetch = fetch
}

// SetClock replaces the time source, for tests.
func (c *Correlator) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Correlator) allAlerts(ctx context.Context) ([]models.ServiceAlert, error) {
	return cache.Get(ctx, c.cache, alertsCacheKey, cache.CategoryAlerts, c.fetch)
}

// ActiveAlerts returns alerts whose active period covers now. Alerts
// without a period are always included.
func (c *Correlator) ActiveAlerts(ctx context.Context) ([]models.ServiceAlert, error) {
	all, err := c.allAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading alerts: %w", err)
	}
	now := c.now()
	var out []models.ServiceAlert
	for _, a := range all {
		if a.ActiveAt(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

// AlertsForCommute returns active alerts relevant to the rider's
// lines and direction. stationIDs narrows stop-scoped alerts to the
// rider's stations; pass nil to accept any stop on the lines.
//
// Station-skipping alerts bypass the direction filter: a skip in the
// other direction can still mean the station has no service at all.
func (c *Correlator) AlertsForCommute(ctx context.Context, lines []string, direction int, stationIDs []string) ([]models.ServiceAlert, error) {
	active, err := c.ActiveAlerts(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.ServiceAlert
	for _, a := range active {
		if !affectsAnyLine(a, lines) {
			continue
		}
		if a.StationSkipping {
			out = append(out, a)
			continue
		}
		if !matchesDirection(a, direction) {
			continue
		}
		if !matchesStations(a, stationIDs) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// CheckRoute correlates alerts against a computed route, escalating
// station-skipping alerts that hit the route's own stations. The
// returned severity is the maximum escalated severity.
func (c *Correlator) CheckRoute(ctx context.Context, route models.Route, direction int) (models.AlertInfo, error) {
	lines := routeLines(route)
	names := routeStationNames(route)
	ids := c.stationIDsFor(names)

	matched, err := c.AlertsForCommute(ctx, lines, direction, ids)
	if err != nil {
		return models.AlertInfo{}, err
	}

	info := models.AlertInfo{Severity: models.SeverityInfo}
	for _, a := range matched {
		if a.StationSkipping && c.skipHitsRoute(a, names, ids) {
			// Monotonic: escalation never downgrades.
			a.Severity = models.MaxSeverity(a.Severity, models.SeveritySevere)
		}
		info.Alerts = append(info.Alerts, a)
		info.Severity = models.MaxSeverity(info.Severity, a.Severity)
	}
	info.HasAlerts = len(info.Alerts) > 0
	return info, nil
}

// skipHitsRoute reports whether a skip alert names one of the route's
// stations, by text mention or by informed-entity stop id.
func (c *Correlator) skipHitsRoute(a models.ServiceAlert, names []string, ids []string) bool {
	text := strings.ToLower(a.Header + " " + a.Description)
	for _, name := range names {
		if name != "" && strings.Contains(text, strings.ToLower(name)) {
			return true
		}
	}
	for _, ie := range a.InformedEntities {
		if ie.StopID == "" {
			continue
		}
		for _, id := range ids {
			if stopMatches(ie.StopID, id) {
				return true
			}
		}
	}
	return false
}

func (c *Correlator) stationIDsFor(names []string) []string {
	var ids []string
	for _, name := range names {
		if st, ok := c.stations.ByName(name); ok {
			ids = append(ids, st.ID)
			for _, feedID := range st.FeedStopIDs {
				ids = append(ids, feedID)
			}
		}
	}
	return ids
}

func affectsAnyLine(a models.ServiceAlert, lines []string) bool {
	for _, line := range lines {
		if a.AffectsLine(line) {
			return true
		}
	}
	return false
}

// matchesDirection passes alerts whose informed entities carry no
// direction at all, or name the query direction.
func matchesDirection(a models.ServiceAlert, direction int) bool {
	sawDirection := false
	for _, ie := range a.InformedEntities {
		if ie.DirectionID == nil {
			continue
		}
		sawDirection = true
		if *ie.DirectionID == direction {
			return true
		}
	}
	return !sawDirection
}

// matchesStations passes alerts that name no stop (line-wide) or name
// at least one of the rider's stations, with or without the trailing
// N/S platform suffix.
func matchesStations(a models.ServiceAlert, stationIDs []string) bool {
	if len(stationIDs) == 0 {
		return true
	}
	sawStop := false
	for _, ie := range a.InformedEntities {
		if ie.StopID == "" {
			continue
		}
		sawStop = true
		for _, id := range stationIDs {
			if stopMatches(ie.StopID, id) {
				return true
			}
		}
	}
	return !sawStop
}

func stopMatches(alertStop, stationID string) bool {
	if alertStop == stationID {
		return true
	}
	trimmed := strings.TrimSuffix(strings.TrimSuffix(alertStop, "N"), "S")
	return trimmed == stationID
}

func routeLines(route models.Route) []string {
	seen := make(map[string]bool)
	var lines []string
	for _, step := range route.Steps {
		if step.Line != "" && !seen[step.Line] {
			seen[step.Line] = true
			lines = append(lines, step.Line)
		}
	}
	return lines
}

func routeStationNames(route models.Route) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, step := range route.Steps {
		add(step.FromStation)
		add(step.ToStation)
	}
	return names
}

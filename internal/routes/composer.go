// Package routes composes ranked multi-leg itineraries from station
// topology, live arrival feeds, walking estimates, and transfer hubs.
package routes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"commute-planner/internal/cache"
	"commute-planner/internal/feeds"
	"commute-planner/internal/geo"
	"commute-planner/internal/models"
	"commute-planner/internal/stations"
)

// estimatedHeadwayMinutes is the wait assumed per boarding when no
// realtime data is available at all.
const estimatedHeadwayMinutes = 7

// maxRoutesPerClass bounds how many itineraries each route class may
// contribute.
const maxRoutesPerClass = 3

// ArrivalSource supplies live predictions and static transit times;
// the feed gateway implements it, tests supply mocks.
type ArrivalSource interface {
	Arrivals(ctx context.Context, line, stationID string, direction int) ([]models.ArrivalPrediction, error)
	TransitTime(fromStationID, toStationID, line string) (int, models.DataSource)
}

// AlertAnnotator attaches correlated alerts to a finished route; the
// alert correlator implements it.
type AlertAnnotator interface {
	CheckRoute(ctx context.Context, route models.Route, direction int) (models.AlertInfo, error)
}

// Request describes one routing query. Origin and Destination are
// station names; the optional locations add walking legs from the
// rider's actual position.
type Request struct {
	Origin              string
	Destination         string
	OriginLocation      *models.Location
	DestinationLocation *models.Location
	TargetArrival       time.Time
}

// Composer produces ranked itineraries: direct, single-transfer, then
// multi-transfer.
type Composer struct {
	stations  *stations.Index
	hubs      *stations.Topology
	source    ArrivalSource
	estimator *geo.Estimator
	cache     *cache.Manager
	annotator AlertAnnotator
	log       *slog.Logger
	now       func() time.Time
}

// NewComposer wires a route composer. annotator may be nil to skip
// alert attachment.
func NewComposer(idx *stations.Index, hubs *stations.Topology, source ArrivalSource, estimator *geo.Estimator, c *cache.Manager, annotator AlertAnnotator, log *slog.Logger) *Composer {
	if log == nil {
		log = slog.Default()
	}
	return &Composer{
		stations:  idx,
		hubs:      hubs,
		source:    source,
		estimator: estimator,
		cache:     c,
		annotator: annotator,
		log:       log,
		now:       time.Now,
	}
}

// SetClock replaces the time source, for tests.
func (c *Composer) SetClock(now func() time.Time) {
	c.now = now
}

// CalculateRoutes returns itineraries sorted by total minutes, then
// transfer count, then discovery order. Unknown stations yield an
// empty list, not an error; a class whose feed is down is skipped and
// the others still run. When realtime fails entirely the result is a
// small set of schedule-estimated itineraries flagged as such.
func (c *Composer) CalculateRoutes(ctx context.Context, req Request) ([]models.Route, error) {
	origin, ok := c.stations.ByName(req.Origin)
	if !ok {
		c.log.Info("route request for unknown origin", "origin", req.Origin)
		return []models.Route{}, nil
	}
	dest, ok := c.stations.ByName(req.Destination)
	if !ok {
		c.log.Info("route request for unknown destination", "destination", req.Destination)
		return []models.Route{}, nil
	}

	key := fmt.Sprintf("%s|%s|%d", origin.ID, dest.ID, req.TargetArrival.Unix())
	return cache.Get(ctx, c.cache, key, cache.CategoryRoutes, func(ctx context.Context) ([]models.Route, error) {
		return c.compose(ctx, req, origin, dest)
	})
}

func (c *Composer) compose(ctx context.Context, req Request, origin, dest models.Station) ([]models.Route, error) {
	now := c.now()
	var all []models.Route
	feedFailures := 0

	direct, err := c.directRoutes(ctx, req, origin, dest, now)
	if err != nil {
		c.log.Warn("direct route class skipped", "error", err)
		feedFailures++
	}
	all = append(all, direct...)

	single, err := c.singleTransferRoutes(ctx, req, origin, dest, now)
	if err != nil {
		c.log.Warn("single-transfer route class skipped", "error", err)
		feedFailures++
	}
	all = append(all, single...)

	// Multi-transfer is the coverage backstop: always run it when any
	// earlier class came up empty.
	if len(direct) == 0 || len(single) == 0 {
		multi, err := c.multiTransferRoutes(ctx, req, origin, dest, now)
		if err != nil {
			c.log.Warn("multi-transfer route class skipped", "error", err)
			feedFailures++
		}
		all = append(all, multi...)
	}

	if len(all) == 0 && feedFailures > 0 {
		all = c.estimatedFallback(req, origin, dest, now)
	}

	sortRoutes(all)
	c.annotate(ctx, all, origin, dest)
	return all, nil
}

// directRoutes builds one itinerary per line shared by origin and
// destination.
func (c *Composer) directRoutes(ctx context.Context, req Request, origin, dest models.Station, now time.Time) ([]models.Route, error) {
	var out []models.Route
	var lastErr error
	for _, line := range origin.Lines {
		if !dest.HasLine(line) {
			continue
		}
		legs := []leg{{line: line, from: origin, to: dest}}
		route, err := c.buildRoute(ctx, req, legs, now, fmt.Sprintf("direct-%s", line))
		if err != nil {
			if errors.Is(err, models.ErrNoConnection) {
				c.log.Debug("no boardable departure for direct line", "line", line)
				continue
			}
			lastErr = err
			continue
		}
		out = append(out, route)
		if len(out) >= maxRoutesPerClass {
			break
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

// singleTransferRoutes builds itineraries over one hub per feasible
// line pair, preferring higher-priority hubs.
func (c *Composer) singleTransferRoutes(ctx context.Context, req Request, origin, dest models.Station, now time.Time) ([]models.Route, error) {
	var out []models.Route
	var lastErr error
	for _, lineA := range origin.Lines {
		for _, lineB := range dest.Lines {
			if lineA == lineB {
				continue
			}
			route, err := c.transferViaHub(ctx, req, origin, dest, lineA, lineB, now)
			if err != nil {
				if errors.Is(err, models.ErrNoConnection) || errors.Is(err, models.ErrNotFound) {
					continue
				}
				lastErr = err
				continue
			}
			out = append(out, route)
			if len(out) >= maxRoutesPerClass {
				return out, nil
			}
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (c *Composer) transferViaHub(ctx context.Context, req Request, origin, dest models.Station, lineA, lineB string, now time.Time) (models.Route, error) {
	hubs := c.hubs.HubsConnecting(lineA, lineB)
	if len(hubs) == 0 {
		return models.Route{}, models.ErrNotFound
	}
	var lastErr error = models.ErrNoConnection
	for _, hub := range hubs {
		hubStation, ok := c.stations.ByName(hub.Station)
		if !ok || hubStation.ID == origin.ID || hubStation.ID == dest.ID {
			continue
		}
		legs := []leg{
			{line: lineA, from: origin, to: hubStation},
			{line: lineB, from: hubStation, to: dest, transferMinutes: c.hubs.TransferMinutes(hub, lineA, lineB)},
		}
		id := fmt.Sprintf("transfer-%s-%s-%s", lineA, lineB, hubStation.ID)
		route, err := c.buildRoute(ctx, req, legs, now, id)
		if err != nil {
			lastErr = err
			continue
		}
		return route, nil
	}
	return models.Route{}, lastErr
}

// multiTransferRoutes builds three-line itineraries through two hubs.
func (c *Composer) multiTransferRoutes(ctx context.Context, req Request, origin, dest models.Station, now time.Time) ([]models.Route, error) {
	var out []models.Route
	var lastErr error
	for _, lineA := range origin.Lines {
		for _, lineC := range dest.Lines {
			for _, lineB := range c.intermediateLines(lineA, lineC) {
				route, err := c.twoHopRoute(ctx, req, origin, dest, lineA, lineB, lineC, now)
				if err != nil {
					if errors.Is(err, models.ErrNoConnection) || errors.Is(err, models.ErrNotFound) {
						continue
					}
					lastErr = err
					continue
				}
				out = append(out, route)
				if len(out) >= maxRoutesPerClass {
					return out, nil
				}
			}
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

// intermediateLines collects lines that share a hub with both ends.
func (c *Composer) intermediateLines(lineA, lineC string) []string {
	seen := map[string]bool{lineA: true, lineC: true}
	var out []string
	for _, hub := range c.hubs.HubsConnecting(lineA, lineA) {
		for _, l := range hub.Lines {
			if !seen[l] && len(c.hubs.HubsConnecting(l, lineC)) > 0 {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	return out
}

func (c *Composer) twoHopRoute(ctx context.Context, req Request, origin, dest models.Station, lineA, lineB, lineC string, now time.Time) (models.Route, error) {
	hubsAB := c.hubs.HubsConnecting(lineA, lineB)
	hubsBC := c.hubs.HubsConnecting(lineB, lineC)
	if len(hubsAB) == 0 || len(hubsBC) == 0 {
		return models.Route{}, models.ErrNotFound
	}
	var lastErr error = models.ErrNoConnection
	for _, hubAB := range hubsAB {
		first, ok := c.stations.ByName(hubAB.Station)
		if !ok || first.ID == origin.ID || first.ID == dest.ID {
			continue
		}
		for _, hubBC := range hubsBC {
			second, ok := c.stations.ByName(hubBC.Station)
			if !ok || second.ID == first.ID || second.ID == origin.ID || second.ID == dest.ID {
				continue
			}
			legs := []leg{
				{line: lineA, from: origin, to: first},
				{line: lineB, from: first, to: second, transferMinutes: c.hubs.TransferMinutes(hubAB, lineA, lineB)},
				{line: lineC, from: second, to: dest, transferMinutes: c.hubs.TransferMinutes(hubBC, lineB, lineC)},
			}
			id := fmt.Sprintf("multi-%s-%s-%s", lineA, lineB, lineC)
			route, err := c.buildRoute(ctx, req, legs, now, id)
			if err != nil {
				lastErr = err
				continue
			}
			return route, nil
		}
	}
	return models.Route{}, lastErr
}

func (c *Composer) annotate(ctx context.Context, routes []models.Route, origin, dest models.Station) {
	if c.annotator == nil {
		return
	}
	direction := deriveDirection(origin, dest)
	for i := range routes {
		info, err := c.annotator.CheckRoute(ctx, routes[i], direction)
		if err != nil {
			c.log.Warn("alert annotation skipped", "route", routes[i].ID, "error", err)
			continue
		}
		routes[i].Alerts = info.Alerts
	}
}

// deriveDirection maps origin→destination geometry onto the binary
// commute orientation: 1 (inbound/northbound) when heading north.
func deriveDirection(origin, dest models.Station) int {
	if dest.Lat > origin.Lat {
		return feeds.DirectionNorth
	}
	return feeds.DirectionSouth
}

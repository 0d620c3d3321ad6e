package routes

import (
	"context"
	"fmt"
	"sort"
	"time"

	"commute-planner/internal/models"
)

// leg is one boarding in a candidate path. transferMinutes is the hub
// platform time before this leg; zero for the first leg and for
// same-platform transfers.
type leg struct {
	line            string
	from            models.Station
	to              models.Station
	transferMinutes int
}

// buildRoute times a candidate path against live predictions. It
// returns ErrNoConnection when any leg has no boardable departure
// within the feed horizon; feed errors pass through so the caller can
// skip the whole class.
func (c *Composer) buildRoute(ctx context.Context, req Request, legs []leg, now time.Time, id string) (models.Route, error) {
	var steps []models.RouteStep
	cursor := now

	walkMin := c.walkMinutes(req.OriginLocation, legs[0].from)
	steps = append(steps, models.RouteStep{
		Type:        models.StepWalk,
		Minutes:     walkMin,
		Source:      models.SourceEstimated,
		ToStation:   legs[0].from.Name,
		Description: fmt.Sprintf("Walk to %s", legs[0].from.Name),
	})
	cursor = cursor.Add(time.Duration(walkMin) * time.Minute)

	for i, l := range legs {
		direction := deriveDirection(l.from, l.to)

		earliest := cursor
		if i > 0 {
			// Hub platform time comes first; the rider cannot board
			// anything departing before they reach the platform.
			steps = append(steps, models.RouteStep{
				Type:        models.StepTransfer,
				Minutes:     l.transferMinutes,
				Source:      models.SourceFixed,
				Line:        l.line,
				FromStation: l.from.Name,
				ToStation:   l.from.Name,
				Description: fmt.Sprintf("Transfer to the %s at %s", l.line, l.from.Name),
			})
			earliest = cursor.Add(time.Duration(l.transferMinutes) * time.Minute)
		}

		preds, err := c.source.Arrivals(ctx, l.line, l.from.ID, direction)
		if err != nil {
			return models.Route{}, fmt.Errorf("arrivals for %s at %s: %w", l.line, l.from.Name, err)
		}

		boarding, ok := firstBoardable(preds, earliest, i > 0)
		if !ok {
			return models.Route{}, fmt.Errorf("%s at %s after %s: %w",
				l.line, l.from.Name, earliest.Format(time.Kitchen), models.ErrNoConnection)
		}

		waitMin := minutesBetween(earliest, boarding.DepartureTime())
		steps = append(steps, models.RouteStep{
			Type:        models.StepWait,
			Minutes:     waitMin,
			Source:      models.SourceRealtime,
			Line:        l.line,
			FromStation: l.from.Name,
			Description: fmt.Sprintf("Wait for the %s", l.line),
		})

		transitMin, source := c.source.TransitTime(l.from.ID, l.to.ID, l.line)
		steps = append(steps, models.RouteStep{
			Type:        models.StepTransit,
			Minutes:     transitMin,
			Source:      source,
			Line:        l.line,
			FromStation: l.from.Name,
			ToStation:   l.to.Name,
			Description: fmt.Sprintf("Take the %s from %s to %s", l.line, l.from.Name, l.to.Name),
		})

		cursor = boarding.DepartureTime().Add(time.Duration(transitMin) * time.Minute)
	}

	last := legs[len(legs)-1]
	finalWalk := c.walkMinutes(req.DestinationLocation, last.to)
	steps = append(steps, models.RouteStep{
		Type:        models.StepArrive,
		Minutes:     finalWalk,
		Source:      models.SourceEstimated,
		FromStation: last.to.Name,
		Description: fmt.Sprintf("Arrive via %s", last.to.Name),
	})
	cursor = cursor.Add(time.Duration(finalWalk) * time.Minute)

	return c.finishRoute(id, steps, now, cursor, models.SourceRealtime), nil
}

// firstBoardable picks the first prediction the rider can physically
// make. First boardings need a strictly later departure; transfer
// boardings accept a departure equal to the platform-arrival instant.
func firstBoardable(preds []models.ArrivalPrediction, earliest time.Time, isTransfer bool) (models.ArrivalPrediction, bool) {
	for _, p := range preds {
		dep := p.DepartureTime()
		if isTransfer {
			if !dep.Before(earliest) {
				return p, true
			}
		} else if dep.After(earliest) {
			return p, true
		}
	}
	return models.ArrivalPrediction{}, false
}

// estimatedFallback produces schedule-only itineraries when realtime
// is entirely unavailable, clearly flagged so callers can render them
// apart from live results.
func (c *Composer) estimatedFallback(req Request, origin, dest models.Station, now time.Time) []models.Route {
	c.log.Warn("realtime unavailable, serving estimated itineraries",
		"origin", origin.Name, "destination", dest.Name)

	var out []models.Route
	for _, line := range origin.Lines {
		if !dest.HasLine(line) {
			continue
		}
		walkMin := c.walkMinutes(req.OriginLocation, origin)
		transitMin, _ := c.source.TransitTime(origin.ID, dest.ID, line)
		finalWalk := c.walkMinutes(req.DestinationLocation, dest)

		steps := []models.RouteStep{
			{Type: models.StepWalk, Minutes: walkMin, Source: models.SourceEstimated, ToStation: origin.Name,
				Description: fmt.Sprintf("Walk to %s", origin.Name)},
			{Type: models.StepWait, Minutes: estimatedHeadwayMinutes, Source: models.SourceEstimated, Line: line, FromStation: origin.Name,
				Description: fmt.Sprintf("Wait for the %s (typical headway)", line)},
			{Type: models.StepTransit, Minutes: transitMin, Source: models.SourceEstimated, Line: line, FromStation: origin.Name, ToStation: dest.Name,
				Description: fmt.Sprintf("Take the %s from %s to %s", line, origin.Name, dest.Name)},
			{Type: models.StepArrive, Minutes: finalWalk, Source: models.SourceEstimated, FromStation: dest.Name,
				Description: fmt.Sprintf("Arrive via %s", dest.Name)},
		}
		total := 0
		for _, s := range steps {
			total += s.Minutes
		}
		out = append(out, c.finishRoute(fmt.Sprintf("estimated-%s", line), steps, now,
			now.Add(time.Duration(total)*time.Minute), models.SourceEstimated))
		if len(out) >= maxRoutesPerClass {
			break
		}
	}
	return out
}

func (c *Composer) finishRoute(id string, steps []models.RouteStep, start, arrival time.Time, source models.DataSource) models.Route {
	total := 0
	transfers := 0
	for _, s := range steps {
		total += s.Minutes
		if s.Type == models.StepTransfer {
			transfers++
		}
	}
	return models.Route{
		ID:            id,
		ArrivalTime:   arrival,
		TotalMinutes:  total,
		Steps:         steps,
		TransferCount: transfers,
		IsDirect:      transfers == 0,
		Confidence:    confidence(steps),
		DataSource:    source,
	}
}

// confidence starts at 100 when every waiting segment came from live
// predictions and degrades stepwise per segment that fell back to an
// estimate. Scheduled transit times are the expected baseline and do
// not degrade it; schedule fallbacks do.
func confidence(steps []models.RouteStep) int {
	score := 100
	for _, s := range steps {
		if s.Source != models.SourceEstimated {
			continue
		}
		switch s.Type {
		case models.StepWait:
			score -= 25
		case models.StepTransit:
			score -= 15
		}
	}
	if score < 10 {
		score = 10
	}
	return score
}

// sortRoutes orders by total minutes, then transfer count; remaining
// ties keep discovery order.
func sortRoutes(routes []models.Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].TotalMinutes != routes[j].TotalMinutes {
			return routes[i].TotalMinutes < routes[j].TotalMinutes
		}
		return routes[i].TransferCount < routes[j].TransferCount
	})
}

func (c *Composer) walkMinutes(from *models.Location, station models.Station) int {
	if from == nil {
		// Rider is already at the station; only the access buffer.
		return c.estimator.MinutesForMiles(0, station.Borough)
	}
	return c.estimator.WalkingMinutes(*from, models.Location{Lat: station.Lat, Lng: station.Lng}, station.Borough)
}

func minutesBetween(a, b time.Time) int {
	d := b.Sub(a)
	if d < 0 {
		return 0
	}
	return int(d.Round(time.Minute) / time.Minute)
}

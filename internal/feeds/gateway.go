// Package feeds fetches realtime arrival predictions and static
// schedule segments per line, station, and direction.
package feeds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"commute-planner/internal/cache"
	"commute-planner/internal/models"
)

// Direction codes as used in commute queries and GTFS stop suffixes.
const (
	DirectionSouth = 0 // outbound, "S" suffix
	DirectionNorth = 1 // inbound, "N" suffix
)

// DefaultFeedURLs are the MTA GTFS-RT endpoints by line group.
var DefaultFeedURLs = map[string]string{
	"ace":     "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-ace",
	"bdfm":    "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-bdfm",
	"g":       "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-g",
	"jz":      "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-jz",
	"nqrw":    "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-nqrw",
	"l":       "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-l",
	"1234567": "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs",
	"si":      "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-si",
}

// lineToFeed maps line codes to their feed group.
var lineToFeed = map[string]string{
	"A": "ace", "C": "ace", "E": "ace",
	"B": "bdfm", "D": "bdfm", "F": "bdfm", "M": "bdfm",
	"G": "g",
	"J": "jz", "Z": "jz",
	"N": "nqrw", "Q": "nqrw", "R": "nqrw", "W": "nqrw",
	"L": "l",
	"1": "1234567", "2": "1234567", "3": "1234567", "4": "1234567",
	"5": "1234567", "6": "1234567", "7": "1234567",
	"SI": "si",
}

// stopEvent is one predicted stop call within a feed snapshot.
type stopEvent struct {
	Line       string
	Prediction models.ArrivalPrediction
}

// feedSnapshot is the parsed form of one feed-group fetch, grouped by
// stop id so per-station queries are map lookups.
type feedSnapshot struct {
	ByStop    map[string][]stopEvent
	FetchedAt time.Time
}

// StationResolver supplies per-line feed stop ids; the station index
// implements it.
type StationResolver interface {
	FeedStopID(stationID, line string) string
}

// Gateway fetches GTFS-RT trip updates through the cache manager and
// answers arrival and transit-time queries.
type Gateway struct {
	client   *http.Client
	cache    *cache.Manager
	schedule *Schedule
	stations StationResolver
	feedURLs map[string]string
	log      *slog.Logger
	now      func() time.Time
}

// NewGateway creates a feed gateway. feedURLs may be nil to use the
// defaults.
func NewGateway(c *cache.Manager, schedule *Schedule, stations StationResolver, feedURLs map[string]string, timeout time.Duration, log *slog.Logger) *Gateway {
	if feedURLs == nil {
		feedURLs = DefaultFeedURLs
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		client:   &http.Client{Timeout: timeout},
		cache:    c,
		schedule: schedule,
		stations: stations,
		feedURLs: feedURLs,
		log:      log,
		now:      time.Now,
	}
}

// Arrivals returns the finite, ascending-by-departure sequence of
// predicted arrivals for a line at a station in one direction. Every
// call re-derives the sequence from the (cached) feed snapshot; there
// is no cursor state to restart.
func (g *Gateway) Arrivals(ctx context.Context, line, stationID string, direction int) ([]models.ArrivalPrediction, error) {
	feedName, ok := lineToFeed[strings.ToUpper(line)]
	if !ok {
		return nil, fmt.Errorf("line %q: %w", line, models.ErrNotFound)
	}

	snapshot, err := cache.Get(ctx, g.cache, feedName, cache.CategoryRealtime, func(ctx context.Context) (*feedSnapshot, error) {
		return g.fetchFeed(ctx, feedName)
	})
	if err != nil {
		return nil, fmt.Errorf("feed %q: %w", feedName, err)
	}

	stopID := g.stations.FeedStopID(stationID, line) + directionSuffix(direction)
	events := snapshot.ByStop[stopID]

	var out []models.ArrivalPrediction
	for _, ev := range events {
		if ev.Line == strings.ToUpper(line) {
			out = append(out, ev.Prediction)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Departure < out[j].Departure
	})
	return out, nil
}

// TransitTime returns scheduled on-train minutes between two stations
// on a line, with the schedule table's documented soft fallback.
func (g *Gateway) TransitTime(fromStationID, toStationID, line string) (int, models.DataSource) {
	from := g.stations.FeedStopID(fromStationID, line)
	to := g.stations.FeedStopID(toStationID, line)
	minutes, source := g.schedule.TransitTime(from, to, line)
	if source == models.SourceEstimated {
		g.log.Debug("transit time fallback",
			"from", fromStationID, "to", toStationID, "line", line, "minutes", minutes)
	}
	return minutes, source
}

// FeedHealth is an upstream reachability summary.
type FeedHealth struct {
	Feed      string    `json:"feed"`
	Reachable bool      `json:"reachable"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Health probes one representative feed group. The result is cached
// so repeated health checks don't hammer the upstream.
func (g *Gateway) Health(ctx context.Context) (FeedHealth, error) {
	name := "ace"
	if _, ok := g.feedURLs[name]; !ok {
		for n := range g.feedURLs {
			name = n
			break
		}
	}
	health, err := cache.Get(ctx, g.cache, "feeds", cache.CategoryHealth, func(ctx context.Context) (*FeedHealth, error) {
		h := &FeedHealth{Feed: name, CheckedAt: g.now()}
		if _, err := g.fetchFeed(ctx, name); err != nil {
			h.Error = err.Error()
			return h, nil
		}
		h.Reachable = true
		return h, nil
	})
	if err != nil {
		return FeedHealth{}, err
	}
	return *health, nil
}

func (g *Gateway) fetchFeed(ctx context.Context, feedName string) (*feedSnapshot, error) {
	url, ok := g.feedURLs[feedName]
	if !ok {
		return nil, fmt.Errorf("unknown feed %q: %w", feedName, models.ErrNotFound)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w: %v", models.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d: %w", resp.StatusCode, models.ErrFeedUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading feed response: %w", err)
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("parsing feed protobuf: %w: %v", models.ErrBadPayload, err)
	}

	return g.parseFeed(feed), nil
}

// parseFeed groups trip-update stop calls by stop id. Records missing
// both timestamps are skipped rather than failing the snapshot.
func (g *Gateway) parseFeed(feed *gtfs.FeedMessage) *feedSnapshot {
	snapshot := &feedSnapshot{
		ByStop:    make(map[string][]stopEvent),
		FetchedAt: g.now(),
	}
	horizon := g.now().Add(-time.Minute)

	for _, entity := range feed.GetEntity() {
		tripUpdate := entity.GetTripUpdate()
		if tripUpdate == nil {
			continue
		}
		line := strings.ToUpper(tripUpdate.GetTrip().GetRouteId())
		if line == "" {
			continue
		}

		for _, stu := range tripUpdate.GetStopTimeUpdate() {
			stopID := stu.GetStopId()
			if stopID == "" {
				continue
			}
			arrival := stu.GetArrival().GetTime()
			departure := stu.GetDeparture().GetTime()
			if arrival == 0 && departure == 0 {
				continue
			}
			if departure == 0 {
				departure = arrival
			}
			if time.Unix(departure, 0).Before(horizon) {
				continue
			}
			snapshot.ByStop[stopID] = append(snapshot.ByStop[stopID], stopEvent{
				Line: line,
				Prediction: models.ArrivalPrediction{
					StopID:       stopID,
					StopSequence: int(stu.GetStopSequence()),
					Arrival:      arrival,
					Departure:    departure,
				},
			})
		}
	}
	return snapshot
}

func directionSuffix(direction int) string {
	if direction == DirectionNorth {
		return "N"
	}
	return "S"
}

package feeds

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"commute-planner/internal/cache"
	"commute-planner/internal/models"
)

// staticResolver maps station ids straight through, with one override.
type staticResolver map[string]string

func (r staticResolver) FeedStopID(stationID, line string) string {
	if id, ok := r[stationID+"/"+line]; ok {
		return id
	}
	return stationID
}

func tripUpdateFeed(t *testing.T, line string, stopTimes map[string][]int64) []byte {
	t.Helper()
	update := &gtfs.TripUpdate{
		Trip: &gtfs.TripDescriptor{RouteId: proto.String(line)},
	}
	seq := uint32(1)
	for stopID, times := range stopTimes {
		for _, ts := range times {
			update.StopTimeUpdate = append(update.StopTimeUpdate, &gtfs.TripUpdate_StopTimeUpdate{
				StopId:       proto.String(stopID),
				StopSequence: proto.Uint32(seq),
				Arrival:      &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(ts)},
				Departure:    &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(ts + 30)},
			})
			seq++
		}
	}
	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
		},
		Entity: []*gtfs.FeedEntity{
			{Id: proto.String("trip-1"), TripUpdate: update},
		},
	}
	data, err := proto.Marshal(msg)
	require.NoError(t, err)
	return data
}

func newTestGateway(t *testing.T, body []byte, status int) (*Gateway, *int) {
	t.Helper()
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	mgr := cache.NewManager(slog.Default())
	urls := map[string]string{"bdfm": srv.URL}
	g := NewGateway(mgr, testSchedule(), staticResolver{"A41/F": "F25"}, urls, 2*time.Second, slog.Default())
	return g, &hits
}

func TestArrivalsSortedAndFiltered(t *testing.T) {
	now := time.Now().Unix()
	body := tripUpdateFeed(t, "F", map[string][]int64{
		"F21N": {now + 1200, now + 300, now + 900},
		"F21S": {now + 600},
	})
	g, _ := newTestGateway(t, body, http.StatusOK)

	preds, err := g.Arrivals(context.Background(), "F", "F21", DirectionNorth)
	require.NoError(t, err)
	require.Len(t, preds, 3, "southbound events are filtered out")

	for i := 1; i < len(preds); i++ {
		assert.LessOrEqual(t, preds[i-1].Departure, preds[i].Departure, "ascending by departure")
	}
	assert.Equal(t, "F21N", preds[0].StopID)
}

func TestArrivalsUsesPerLineFeedStopID(t *testing.T) {
	now := time.Now().Unix()
	body := tripUpdateFeed(t, "F", map[string][]int64{
		"F25N": {now + 240},
	})
	g, _ := newTestGateway(t, body, http.StatusOK)

	preds, err := g.Arrivals(context.Background(), "F", "A41", DirectionNorth)
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "F25N", preds[0].StopID)
}

func TestArrivalsCachesFeedSnapshot(t *testing.T) {
	now := time.Now().Unix()
	body := tripUpdateFeed(t, "F", map[string][]int64{"F21N": {now + 300}})
	g, hits := newTestGateway(t, body, http.StatusOK)

	_, err := g.Arrivals(context.Background(), "F", "F21", DirectionNorth)
	require.NoError(t, err)
	_, err = g.Arrivals(context.Background(), "F", "F20", DirectionNorth)
	require.NoError(t, err)

	assert.Equal(t, 1, *hits, "both stations served from one feed fetch")
}

func TestArrivalsUnknownLine(t *testing.T) {
	g, _ := newTestGateway(t, nil, http.StatusOK)
	_, err := g.Arrivals(context.Background(), "X9", "F21", DirectionNorth)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestArrivalsUpstreamFailure(t *testing.T) {
	g, _ := newTestGateway(t, []byte("nope"), http.StatusBadGateway)
	_, err := g.Arrivals(context.Background(), "F", "F21", DirectionNorth)
	assert.ErrorIs(t, err, models.ErrFeedUnavailable)
}

func TestArrivalsEmptyForStationWithNoEvents(t *testing.T) {
	now := time.Now().Unix()
	body := tripUpdateFeed(t, "F", map[string][]int64{"F21N": {now + 300}})
	g, _ := newTestGateway(t, body, http.StatusOK)

	preds, err := g.Arrivals(context.Background(), "F", "F18", DirectionNorth)
	require.NoError(t, err)
	assert.Empty(t, preds)
}

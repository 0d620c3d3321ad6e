package stations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commute-planner/internal/models"
)

func jayStreetRecords() []stopRecord {
	return []stopRecord{
		{ID: "A41", Name: "Jay St-MetroTech", Borough: "Brooklyn", ParentKey: "jay-st",
			Lines: []string{"A", "C"}, Lat: 40.692338, Lng: -73.987342,
			FeedStopIDs: map[string]string{"A": "A41", "C": "A41"}},
		{ID: "F25", Name: "Jay St-MetroTech", Borough: "Brooklyn", ParentKey: "jay-st",
			Lines: []string{"F"}, Lat: 40.692180, Lng: -73.987151,
			FeedStopIDs: map[string]string{"F": "F25"}},
		{ID: "R29", Name: "Jay St-MetroTech", Borough: "Brooklyn", ParentKey: "jay-st",
			Lines: []string{"R"}, Lat: 40.692510, Lng: -73.987050,
			FeedStopIDs: map[string]string{"R": "R29"}},
	}
}

func TestConsolidateMergesParentKey(t *testing.T) {
	merged := Consolidate(jayStreetRecords())
	require.Len(t, merged, 1)

	st := merged[0]
	assert.Equal(t, "A41", st.ID, "lowest stop id becomes the identity")
	assert.ElementsMatch(t, []string{"A", "C", "F", "R"}, st.Lines)
	assert.Equal(t, "F25", st.FeedStopIDs["F"])
	assert.Equal(t, "A41", st.FeedStopIDs["A"])
	assert.Equal(t, "R29", st.FeedStopIDs["R"])
}

func TestConsolidateIsOrderIndependent(t *testing.T) {
	records := jayStreetRecords()
	reversed := []stopRecord{records[2], records[0], records[1]}

	a := Consolidate(records)
	b := Consolidate(reversed)
	assert.Equal(t, a, b)
}

func TestConsolidateMergesByProximityAndName(t *testing.T) {
	records := []stopRecord{
		{ID: "X01", Name: "Union Sq", Lines: []string{"L"}, Lat: 40.7347, Lng: -73.9906},
		// Same name, ~250 feet away, no parent key.
		{ID: "X02", Name: "Union Sq", Lines: []string{"N"}, Lat: 40.7352, Lng: -73.9899},
		// Same name but miles away: stays separate.
		{ID: "X03", Name: "Union Sq", Lines: []string{"Q"}, Lat: 40.6694, Lng: -73.9422},
	}
	merged := Consolidate(records)
	require.Len(t, merged, 2)
	assert.ElementsMatch(t, []string{"L", "N"}, merged[0].Lines)
}

func TestConsolidateKeepsDistinctStations(t *testing.T) {
	records := []stopRecord{
		{ID: "F20", Name: "Bergen St", Lines: []string{"F"}, Lat: 40.686145, Lng: -73.990862},
		{ID: "F21", Name: "Carroll St", Lines: []string{"F"}, Lat: 40.680303, Lng: -73.995048},
	}
	assert.Len(t, Consolidate(records), 2)
}

func testIndex() *Index {
	x := NewIndex()
	x.LoadStations([]models.Station{
		{ID: "F21", Name: "Carroll St", Borough: "Brooklyn", Lines: []string{"F", "G"},
			Lat: 40.680303, Lng: -73.995048, FeedStopIDs: map[string]string{"F": "F21"}},
		{ID: "F20", Name: "Bergen St", Borough: "Brooklyn", Lines: []string{"F", "G"},
			Lat: 40.686145, Lng: -73.990862},
		{ID: "A41", Name: "Jay St-MetroTech", Borough: "Brooklyn", Lines: []string{"A", "C", "F"},
			Lat: 40.692338, Lng: -73.987342, FeedStopIDs: map[string]string{"F": "F25", "A": "A41"}},
	})
	return x
}

func TestByNameIsCaseInsensitive(t *testing.T) {
	x := testIndex()
	st, ok := x.ByName("carroll st")
	require.True(t, ok)
	assert.Equal(t, "F21", st.ID)

	_, ok = x.ByName("Nowhere St")
	assert.False(t, ok)
}

func TestNearestOrdersByDistance(t *testing.T) {
	x := testIndex()
	got := x.Nearest(models.Location{Lat: 40.6805, Lng: -73.9950}, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "F21", got[0].ID)
	assert.Equal(t, "F20", got[1].ID)
	assert.Less(t, got[0].DistanceMeters, got[1].DistanceMeters)
}

func TestWithinRadius(t *testing.T) {
	x := testIndex()
	got := x.WithinRadius(models.Location{Lat: 40.680303, Lng: -73.995048}, 100)
	require.Len(t, got, 1)
	assert.Equal(t, "F21", got[0].ID)
}

func TestFeedStopIDFallsBackToStationID(t *testing.T) {
	x := testIndex()
	assert.Equal(t, "F25", x.FeedStopID("A41", "F"))
	assert.Equal(t, "A41", x.FeedStopID("A41", "C"), "unmapped line uses station id")
	assert.Equal(t, "ghost", x.FeedStopID("ghost", "F"), "unknown station passes through")
}

func TestOnLine(t *testing.T) {
	x := testIndex()
	assert.Len(t, x.OnLine("G"), 2)
	assert.Len(t, x.OnLine("A"), 1)
	assert.Empty(t, x.OnLine("7"))
}

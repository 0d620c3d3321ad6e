// Package stations holds the read-only station index and transfer-hub
// topology loaded at startup.
package stations

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"commute-planner/internal/geo"
	"commute-planner/internal/models"
)

// Physical stop records closer than this consolidate into one logical
// station even without a shared parent key.
const consolidationRadiusMiles = 0.15

// stopRecord is one physical stop row in the stations file. Several
// records may describe the same logical station.
type stopRecord struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Borough     string            `yaml:"borough"`
	ParentKey   string            `yaml:"parent_key"`
	Lines       []string          `yaml:"lines"`
	Lat         float64           `yaml:"lat"`
	Lng         float64           `yaml:"lng"`
	FeedStopIDs map[string]string `yaml:"feed_stop_ids"`
}

// Index is the static station lookup. It is populated once and
// read-only afterwards; the mutex only guards the load.
type Index struct {
	mu       sync.RWMutex
	stations []models.Station
	byID     map[string]int
	byName   map[string]int
	byLine   map[string][]int
	loaded   bool
}

// NewIndex creates an empty station index.
func NewIndex() *Index {
	return &Index{
		byID:   make(map[string]int),
		byName: make(map[string]int),
		byLine: make(map[string][]int),
	}
}

// Load reads station records from a YAML file and consolidates them.
func (x *Index) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading stations file: %w", err)
	}

	var doc struct {
		Stations []stopRecord `yaml:"stations"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing stations YAML: %w", err)
	}
	if len(doc.Stations) == 0 {
		return fmt.Errorf("stations file has no records")
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.stations = Consolidate(doc.Stations)
	x.reindex()
	x.loaded = true
	return nil
}

// LoadStations installs pre-built stations directly, used by tests and
// by callers that assemble the table in code.
func (x *Index) LoadStations(list []models.Station) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.stations = append([]models.Station(nil), list...)
	x.reindex()
	x.loaded = true
}

func (x *Index) reindex() {
	x.byID = make(map[string]int, len(x.stations))
	x.byName = make(map[string]int, len(x.stations))
	x.byLine = make(map[string][]int)
	for i, s := range x.stations {
		x.byID[s.ID] = i
		x.byName[normalizeName(s.Name)] = i
		for _, line := range s.Lines {
			x.byLine[line] = append(x.byLine[line], i)
		}
	}
}

// Consolidate merges physical stop records into logical stations.
// Records sharing a parent key, or within consolidationRadiusMiles of
// an already-merged record with the same name, collapse into one
// station. Input order does not affect the result: records are sorted
// by ID before grouping, so the merge is deterministic, and running it
// twice over its own output changes nothing.
func Consolidate(records []stopRecord) []models.Station {
	sorted := append([]stopRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	type group struct {
		primary stopRecord
		members []stopRecord
	}
	var groups []*group

	findGroup := func(r stopRecord) *group {
		for _, g := range groups {
			if r.ParentKey != "" && r.ParentKey == g.primary.ParentKey {
				return g
			}
			if normalizeName(r.Name) != normalizeName(g.primary.Name) {
				continue
			}
			miles := geo.DistanceMiles(
				models.Location{Lat: r.Lat, Lng: r.Lng},
				models.Location{Lat: g.primary.Lat, Lng: g.primary.Lng})
			if miles <= consolidationRadiusMiles {
				return g
			}
		}
		return nil
	}

	for _, r := range sorted {
		if g := findGroup(r); g != nil {
			g.members = append(g.members, r)
			continue
		}
		groups = append(groups, &group{primary: r, members: []stopRecord{r}})
	}

	out := make([]models.Station, 0, len(groups))
	for _, g := range groups {
		st := models.Station{
			ID:          g.primary.ID,
			Name:        g.primary.Name,
			Borough:     g.primary.Borough,
			Lat:         g.primary.Lat,
			Lng:         g.primary.Lng,
			FeedStopIDs: make(map[string]string),
		}
		lineSet := make(map[string]bool)
		for _, m := range g.members {
			for _, line := range m.Lines {
				if !lineSet[line] {
					lineSet[line] = true
					st.Lines = append(st.Lines, line)
				}
			}
			for line, feedID := range m.FeedStopIDs {
				if _, exists := st.FeedStopIDs[line]; !exists {
					st.FeedStopIDs[line] = feedID
				}
			}
		}
		sort.Strings(st.Lines)
		out = append(out, st)
	}
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ByID returns a station by its ID.
func (x *Index) ByID(id string) (models.Station, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	i, ok := x.byID[id]
	if !ok {
		return models.Station{}, false
	}
	return x.stations[i], true
}

// ByName returns a station by case-insensitive name.
func (x *Index) ByName(name string) (models.Station, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	i, ok := x.byName[normalizeName(name)]
	if !ok {
		return models.Station{}, false
	}
	return x.stations[i], true
}

// OnLine returns all stations served by a line.
func (x *Index) OnLine(line string) []models.Station {
	x.mu.RLock()
	defer x.mu.RUnlock()
	idxs := x.byLine[line]
	out := make([]models.Station, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, x.stations[i])
	}
	return out
}

// StationDistance pairs a station with its distance from a query point.
type StationDistance struct {
	models.Station
	DistanceMeters float64 `json:"distance_meters"`
	DistanceMiles  float64 `json:"distance_miles"`
}

// WithinRadius returns stations within radiusMeters of a point, sorted
// nearest first.
func (x *Index) WithinRadius(loc models.Location, radiusMeters float64) []StationDistance {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var results []StationDistance
	for _, s := range x.stations {
		dist := geo.DistanceMeters(loc, models.Location{Lat: s.Lat, Lng: s.Lng})
		if dist <= radiusMeters {
			results = append(results, StationDistance{
				Station:        s,
				DistanceMeters: dist,
				DistanceMiles:  geo.MetersToMiles(dist),
			})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceMeters < results[j].DistanceMeters
	})
	return results
}

// Nearest returns the limit closest stations to a point.
func (x *Index) Nearest(loc models.Location, limit int) []StationDistance {
	x.mu.RLock()
	defer x.mu.RUnlock()

	results := make([]StationDistance, 0, len(x.stations))
	for _, s := range x.stations {
		dist := geo.DistanceMeters(loc, models.Location{Lat: s.Lat, Lng: s.Lng})
		results = append(results, StationDistance{
			Station:        s,
			DistanceMeters: dist,
			DistanceMiles:  geo.MetersToMiles(dist),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceMeters < results[j].DistanceMeters
	})
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results
}

// FeedStopID returns the realtime-feed stop id a line uses for a
// station, falling back to the station ID when no mapping exists.
func (x *Index) FeedStopID(stationID, line string) string {
	st, ok := x.ByID(stationID)
	if !ok {
		return stationID
	}
	if feedID, ok := st.FeedStopIDs[line]; ok {
		return feedID
	}
	return st.ID
}

// All returns every logical station.
func (x *Index) All() []models.Station {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]models.Station(nil), x.stations...)
}

// Names returns every station name, for the alert classifier.
func (x *Index) Names() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	names := make([]string, 0, len(x.stations))
	for _, s := range x.stations {
		names = append(names, s.Name)
	}
	return names
}

// Count returns the number of logical stations.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.stations)
}

// IsLoaded returns true if data has been loaded.
func (x *Index) IsLoaded() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.loaded
}

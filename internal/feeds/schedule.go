package feeds

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"commute-planner/internal/models"
)

// fallbackCeilingMinutes caps the soft-failure transit time so an
// unknown segment never dominates an itinerary outright.
const fallbackCeilingMinutes = 45

// fallbackPadMinutes is added to the line's longest known direct time
// when a segment is missing from the schedule table.
const fallbackPadMinutes = 5

// scheduleStop is one stop in a line's ordered sequence. RunMinutes is
// the scheduled run time from the previous stop, zero for the first.
type scheduleStop struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	RunMinutes int    `yaml:"run_minutes"`
}

type scheduleLine struct {
	Stops []scheduleStop `yaml:"stops"`
}

// Schedule holds per-line static run-time tables used when computing
// on-train durations and as the fallback when realtime data is out.
type Schedule struct {
	mu     sync.RWMutex
	lines  map[string]scheduleLine
	loaded bool
}

// NewSchedule creates an empty schedule table.
func NewSchedule() *Schedule {
	return &Schedule{lines: make(map[string]scheduleLine)}
}

// Load reads schedule tables from a YAML file.
func (s *Schedule) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading schedule file: %w", err)
	}

	var doc struct {
		Lines map[string]scheduleLine `yaml:"lines"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing schedule YAML: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = doc.Lines
	s.loaded = true
	return nil
}

// LoadLines installs schedule rows directly, used by tests. Each entry
// maps a line to its ordered (stopID, runMinutes) pairs.
func (s *Schedule) LoadLines(lines map[string][][2]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = make(map[string]scheduleLine, len(lines))
	for line, rows := range lines {
		var sl scheduleLine
		for _, row := range rows {
			sl.Stops = append(sl.Stops, scheduleStop{ID: row[0].(string), RunMinutes: row[1].(int)})
		}
		s.lines[line] = sl
	}
	s.loaded = true
}

// TransitTime returns scheduled minutes between two stops on a line,
// summing run times along the stop sequence in either direction. When
// the line or either stop is unknown it fails soft: the returned
// minutes are the line's longest known direct time plus a pad, capped
// at a ceiling, and the source is flagged estimated.
func (s *Schedule) TransitTime(fromStopID, toStopID, line string) (int, models.DataSource) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sl, ok := s.lines[line]
	if !ok {
		return s.fallbackLocked(""), models.SourceEstimated
	}

	fromIdx, toIdx := -1, -1
	for i, stop := range sl.Stops {
		if stop.ID == fromStopID {
			fromIdx = i
		}
		if stop.ID == toStopID {
			toIdx = i
		}
	}
	if fromIdx < 0 || toIdx < 0 || fromIdx == toIdx {
		return s.fallbackLocked(line), models.SourceEstimated
	}

	lo, hi := fromIdx, toIdx
	if lo > hi {
		lo, hi = hi, lo
	}
	total := 0
	for i := lo + 1; i <= hi; i++ {
		total += sl.Stops[i].RunMinutes
	}
	return total, models.SourceFixed
}

// fallbackLocked computes the soft-failure value: strictly greater
// than any known direct time on the line, below the ceiling.
func (s *Schedule) fallbackLocked(line string) int {
	longest := 0
	if sl, ok := s.lines[line]; ok {
		for _, stop := range sl.Stops {
			longest += stop.RunMinutes
		}
	}
	if longest == 0 {
		// Unknown line: length of the longest table we have.
		for _, sl := range s.lines {
			sum := 0
			for _, stop := range sl.Stops {
				sum += stop.RunMinutes
			}
			if sum > longest {
				longest = sum
			}
		}
	}
	fb := longest + fallbackPadMinutes
	if fb > fallbackCeilingMinutes {
		fb = fallbackCeilingMinutes
	}
	if fb < fallbackPadMinutes {
		fb = fallbackPadMinutes
	}
	return fb
}

// HasLine reports whether the schedule covers a line.
func (s *Schedule) HasLine(line string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lines[line]
	return ok
}

// IsLoaded returns true if data has been loaded.
func (s *Schedule) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

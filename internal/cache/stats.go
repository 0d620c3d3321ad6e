package cache

import "time"

// CategoryStats summarizes fetch latency for one category.
type CategoryStats struct {
	Samples   int           `json:"samples"`
	Average   time.Duration `json:"average"`
	Latest    time.Duration `json:"latest"`
	Slowest   time.Duration `json:"slowest"`
	TotalTime time.Duration `json:"total_time"`
}

// Stats is a point-in-time snapshot of cache behavior.
type Stats struct {
	Hits                int64                    `json:"hits"`
	Misses              int64                    `json:"misses"`
	Evictions           int64                    `json:"evictions"`
	BackgroundRefreshes int64                    `json:"background_refreshes"`
	DuplicatesAvoided   int64                    `json:"duplicates_avoided"`
	HitRate             float64                  `json:"hit_rate"`
	Entries             int                      `json:"entries"`
	PerCategory         map[string]CategoryStats `json:"per_category"`
	RecentFailures      []FailureRecord          `json:"recent_failures"`
}

// Stats returns aggregated counters and per-category response times.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Hits:                m.hits,
		Misses:              m.misses,
		Evictions:           m.evictions,
		BackgroundRefreshes: m.refreshes,
		DuplicatesAvoided:   m.dupsAvoided,
		Entries:             len(m.entries),
		PerCategory:         make(map[string]CategoryStats, len(m.responseTimes)),
		RecentFailures:      append([]FailureRecord(nil), m.failures...),
	}
	if total := m.hits + m.misses; total > 0 {
		s.HitRate = float64(m.hits) / float64(total)
	}
	for cat, times := range m.responseTimes {
		if len(times) == 0 {
			continue
		}
		var cs CategoryStats
		cs.Samples = len(times)
		cs.Latest = times[len(times)-1]
		for _, d := range times {
			cs.TotalTime += d
			if d > cs.Slowest {
				cs.Slowest = d
			}
		}
		cs.Average = cs.TotalTime / time.Duration(len(times))
		s.PerCategory[string(cat)] = cs
	}
	return s
}

// Package alerts ingests service alerts and correlates them against
// commute lines, directions, and routes.
package alerts

import (
	"strings"

	"commute-planner/internal/models"
)

// Classifier decides whether an alert announces station skipping. It
// is an interface so the keyword heuristic can later be swapped for a
// structured-alert-code classifier without touching the filter logic.
type Classifier interface {
	StationSkipping(a models.ServiceAlert) bool
}

// skipKeywords is the phrase family that marks a station-skipping
// notice. "skip" also covers "skips" and "suspended ... skip".
var skipKeywords = []string{"skip", "not stopping", "bypass"}

// KeywordClassifier matches skip phrasing combined with at least one
// known station name in the alert text.
type KeywordClassifier struct {
	stationNames []string
}

// NewKeywordClassifier builds a classifier over the known station
// names.
func NewKeywordClassifier(stationNames []string) *KeywordClassifier {
	lowered := make([]string, 0, len(stationNames))
	for _, n := range stationNames {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			lowered = append(lowered, n)
		}
	}
	return &KeywordClassifier{stationNames: lowered}
}

// StationSkipping reports whether the alert's header or description
// uses skip phrasing and names a station. The check ignores direction:
// a skipped station can mean no service at all for a transfer there.
func (c *KeywordClassifier) StationSkipping(a models.ServiceAlert) bool {
	text := strings.ToLower(a.Header + " " + a.Description)

	hasKeyword := false
	for _, kw := range skipKeywords {
		if strings.Contains(text, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return false
	}

	for _, name := range c.stationNames {
		if strings.Contains(text, name) {
			return true
		}
	}
	return false
}

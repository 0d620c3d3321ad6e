package feeds

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"commute-planner/internal/models"
)

func testSchedule() *Schedule {
	s := NewSchedule()
	s.LoadLines(map[string][][2]any{
		"F": {
			{"F21", 0}, // Carroll St
			{"F20", 2}, // Bergen St
			{"F25", 3}, // Jay St-MetroTech
			{"F18", 2}, // York St
		},
	})
	return s
}

func TestTransitTimeSumsRunTimes(t *testing.T) {
	s := testSchedule()

	min, source := s.TransitTime("F21", "F25", "F")
	assert.Equal(t, 5, min)
	assert.Equal(t, models.SourceFixed, source)

	// Same segment queried in the opposite direction.
	min, source = s.TransitTime("F25", "F21", "F")
	assert.Equal(t, 5, min)
	assert.Equal(t, models.SourceFixed, source)

	min, _ = s.TransitTime("F21", "F18", "F")
	assert.Equal(t, 7, min)
}

func TestTransitTimeFallbackBounds(t *testing.T) {
	s := testSchedule()
	longestDirect := 7 // full F table

	min, source := s.TransitTime("F21", "XX99", "F")
	assert.Equal(t, models.SourceEstimated, source)
	assert.Greater(t, min, longestDirect, "fallback exceeds any known direct time")
	assert.LessOrEqual(t, min, fallbackCeilingMinutes)
}

func TestTransitTimeUnknownLine(t *testing.T) {
	s := testSchedule()
	min, source := s.TransitTime("F21", "F25", "Z")
	assert.Equal(t, models.SourceEstimated, source)
	assert.Positive(t, min)
	assert.LessOrEqual(t, min, fallbackCeilingMinutes)
}

func TestHasLine(t *testing.T) {
	s := testSchedule()
	assert.True(t, s.HasLine("F"))
	assert.False(t, s.HasLine("Q"))
}

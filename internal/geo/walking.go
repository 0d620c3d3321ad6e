package geo

import (
	"math"

	"commute-planner/internal/models"
)

// Walking speeds in miles per hour, keyed by borough. Dense Manhattan
// blocks with crosswalk waits are slower than outer-borough streets.
var boroughSpeeds = map[string]float64{
	"Manhattan":     2.8,
	"Brooklyn":      3.0,
	"Queens":        3.1,
	"Bronx":         3.0,
	"Staten Island": 3.1,
}

const defaultWalkingMPH = 3.0

// Estimator turns distances into walking minutes. BufferMinutes is a
// flat pad added to every walk to cover stairs and platform access.
type Estimator struct {
	BufferMinutes int
}

// NewEstimator returns an estimator with the given buffer, defaulting
// to one minute when a non-positive value is supplied.
func NewEstimator(bufferMinutes int) *Estimator {
	if bufferMinutes <= 0 {
		bufferMinutes = 1
	}
	return &Estimator{BufferMinutes: bufferMinutes}
}

// SpeedFor returns the walking speed in mph for a borough.
func (e *Estimator) SpeedFor(borough string) float64 {
	if mph, ok := boroughSpeeds[borough]; ok {
		return mph
	}
	return defaultWalkingMPH
}

// WalkingMinutes estimates minutes to walk between two points, using
// the destination borough's speed plus the access buffer.
func (e *Estimator) WalkingMinutes(from, to models.Location, borough string) int {
	miles := DistanceMiles(from, to)
	return e.MinutesForMiles(miles, borough)
}

// MinutesForMiles converts a distance in miles to walking minutes:
// round(miles/mph*60) + buffer.
func (e *Estimator) MinutesForMiles(miles float64, borough string) int {
	mph := e.SpeedFor(borough)
	return int(math.Round(miles/mph*60)) + e.BufferMinutes
}

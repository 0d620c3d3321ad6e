// Package geo provides distance and walking-time estimation over
// lat/lng coordinates.
package geo

import (
	"math"

	"commute-planner/internal/models"
)

const (
	earthRadiusMeters = 6371000
	metersPerMile     = 1609.344
)

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(a, b models.Location) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DistanceMiles returns the great-circle distance in miles.
func DistanceMiles(a, b models.Location) float64 {
	return DistanceMeters(a, b) / metersPerMile
}

// MetersToMiles converts meters to miles.
func MetersToMiles(meters float64) float64 {
	return meters / metersPerMile
}

// Package geo has the distance math used for nearby searches.
package geo

import (
	"math"

	"github.com/fridayce/rork-mapcask/internal/domain"
)

const earthRadiusKm = 6371.0

// Fallback is used when the device location is unavailable (Louisville, KY).
var Fallback = domain.Location{Latitude: 38.2527, Longitude: -85.7585}

// OrFallback returns l, or Fallback when l is the zero location.
func OrFallback(l domain.Location) domain.Location {
	if l.IsZero() {
		return Fallback
	}
	return l
}

// DistanceKm is the great-circle distance between a and b.
func DistanceKm(a, b domain.Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

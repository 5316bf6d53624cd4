// Package geo provides the distance and travel-time estimates used to
// order candidate stations by proximity.
package geo

import "math"

const earthRadiusKm = 6371.0

// fallbackSpeedKmh is the assumed average speed when no routing service
// is available.
const fallbackSpeedKmh = 30.0

// DistanceKm returns the haversine great-circle distance between two
// coordinates in kilometres.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// ETAMinutes estimates driving time between two coordinates from the
// haversine distance at the fallback average speed.
func ETAMinutes(lat1, lon1, lat2, lon2 float64) float64 {
	return DistanceKm(lat1, lon1, lat2, lon2) / fallbackSpeedKmh * 60
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }

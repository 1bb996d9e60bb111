package geo

import (
	"math"

	"github.com/example/blood-matching/internal/models"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between a and b in
// kilometres using the haversine formula. Inputs are decimal degrees;
// callers are responsible for passing valid coordinates.
func DistanceKm(a, b models.Coord) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

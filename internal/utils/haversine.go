package utils

import (
	"math"

	"github.com/securefront/compliance-scheduler/internal/models"
)

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle distance between two lat/lng points.
func DistanceKm(a, b models.Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(d float64) float64 {
	return d * math.Pi / 180
}

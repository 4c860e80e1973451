package utils

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/securefront/compliance-scheduler/internal/models"
)

func ring(poly []models.Point) orb.Ring {
	r := make(orb.Ring, 0, len(poly))
	for _, p := range poly {
		r = append(r, orb.Point{p.Lng, p.Lat})
	}
	return r
}

// PointInPolygon reports whether p lies inside poly or on its boundary.
// Vertices are taken in stored order; the polygon need not be convex or closed.
// Polygons with fewer than three vertices contain nothing.
func PointInPolygon(p models.Point, poly []models.Point) bool {
	if len(poly) < 3 {
		return false
	}
	return planar.RingContains(ring(poly), orb.Point{p.Lng, p.Lat})
}

// Centroid is the centre of the polygon's bounding box, good enough for
// reporting distances.
func Centroid(poly []models.Point) models.Point {
	if len(poly) == 0 {
		return models.Point{}
	}
	c := ring(poly).Bound().Center()
	return models.Point{Lat: c.Lat(), Lng: c.Lon()}
}

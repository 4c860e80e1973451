package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/securefront/compliance-scheduler/internal/models"
)

func TestPointInPolygon(t *testing.T) {
	square := []models.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 10}, {Lat: 10, Lng: 10}, {Lat: 10, Lng: 0}}
	// U shape: the notch between lng 3..7 above lat 3 is outside.
	concave := []models.Point{
		{Lat: 0, Lng: 0}, {Lat: 0, Lng: 10}, {Lat: 10, Lng: 10}, {Lat: 10, Lng: 7},
		{Lat: 3, Lng: 7}, {Lat: 3, Lng: 3}, {Lat: 10, Lng: 3}, {Lat: 10, Lng: 0},
	}

	cases := []struct {
		name string
		p    models.Point
		poly []models.Point
		want bool
	}{
		{"center", models.Point{Lat: 5, Lng: 5}, square, true},
		{"outside", models.Point{Lat: 11, Lng: 5}, square, false},
		{"vertex", models.Point{Lat: 0, Lng: 0}, square, true},
		{"far vertex", models.Point{Lat: 10, Lng: 10}, square, true},
		{"edge", models.Point{Lat: 0, Lng: 5}, square, true},
		{"edge collinear outside", models.Point{Lat: 0, Lng: 11}, square, false},
		{"concave notch", models.Point{Lat: 8, Lng: 5}, concave, false},
		{"concave arm", models.Point{Lat: 8, Lng: 1}, concave, true},
		{"concave base", models.Point{Lat: 1, Lng: 5}, concave, true},
		{"closed ring", models.Point{Lat: 5, Lng: 5}, append(square, square[0]), true},
		{"concave notch edge", models.Point{Lat: 5, Lng: 3}, concave, true},
		{"degenerate", models.Point{Lat: 0, Lng: 0}, square[:2], false},
		{"real coordinates", models.Point{Lat: 51.1605, Lng: 71.4704}, []models.Point{
			{Lat: 51.16, Lng: 71.47}, {Lat: 51.16, Lng: 71.471}, {Lat: 51.161, Lng: 71.471}, {Lat: 51.161, Lng: 71.47},
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PointInPolygon(tc.p, tc.poly))
		})
	}
}

func TestCentroid(t *testing.T) {
	square := []models.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 2}, {Lat: 2, Lng: 2}, {Lat: 2, Lng: 0}}
	assert.Equal(t, models.Point{Lat: 1, Lng: 1}, Centroid(square))
	assert.Equal(t, models.Point{}, Centroid(nil))

	site := []models.Point{{Lat: 51.16, Lng: 71.47}, {Lat: 51.16, Lng: 71.472}, {Lat: 51.161, Lng: 71.472}, {Lat: 51.161, Lng: 71.47}}
	c := Centroid(site)
	assert.InDelta(t, 51.1605, c.Lat, 1e-9)
	assert.InDelta(t, 71.471, c.Lng, 1e-9)
	assert.True(t, PointInPolygon(c, site))
}

func TestDistanceKm(t *testing.T) {
	// Astana to Almaty is roughly 970 km.
	astana := models.Point{Lat: 51.1605, Lng: 71.4704}
	almaty := models.Point{Lat: 43.2220, Lng: 76.8512}
	assert.InDelta(t, 970, DistanceKm(astana, almaty), 15)
	assert.InDelta(t, DistanceKm(astana, almaty), DistanceKm(almaty, astana), 1e-9)
	assert.Zero(t, DistanceKm(astana, astana))
}

func TestDedupKeyStable(t *testing.T) {
	a := DedupKey("geofence_leave", "e1", "site-1", "1700000000")
	b := DedupKey("geofence_leave", "e1", "site-1", "1700000000")
	c := DedupKey("geofence_leave", "e1", "site-1", "1700000060")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^geofence_leave:[0-9a-f]{16}$`, a)
	assert.NotEqual(t, DedupKey("x", "ab", "c"), DedupKey("x", "a", "bc"))
}

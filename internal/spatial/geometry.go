// Package spatial holds the map geometry helpers: centroid, bounds and the
// zoom level that fits them.
package spatial

import (
	"github.com/golang/geo/s2"
)

// Point is a latitude/longitude pair in degrees
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is a lat/lng rectangle
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Centroid calculates the geographic centroid on the sphere. The second
// return value is false when points is empty.
func Centroid(points []Point) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}

	var sum s2.Point
	for _, p := range points {
		sum = s2.Point{Vector: sum.Add(s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lng)).Vector)}
	}
	if sum.Norm() == 0 {
		return points[0], true
	}

	ll := s2.LatLngFromPoint(s2.Point{Vector: sum.Normalize()})
	return Point{Lat: ll.Lat.Degrees(), Lng: ll.Lng.Degrees()}, true
}

// BoundingBox returns the smallest rectangle containing every point
func BoundingBox(points []Point) (Bounds, bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}

	bounder := s2.NewRectBounder()
	for _, p := range points {
		bounder.AddPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lng)))
	}
	rect := bounder.RectBound()

	return Bounds{
		South: rect.Lo().Lat.Degrees(),
		West:  rect.Lo().Lng.Degrees(),
		North: rect.Hi().Lat.Degrees(),
		East:  rect.Hi().Lng.Degrees(),
	}, true
}

// Diagonal returns the corner-to-corner distance of the bounds in meters
func (b Bounds) Diagonal() float64 {
	return HaversineDistance(b.South, b.West, b.North, b.East)
}

// fitZooms maps a maximum diagonal in meters to a web-map zoom level
var fitZooms = []struct {
	maxMeters float64
	zoom      int
}{
	{2_000, 15},
	{5_000, 14},
	{12_000, 13},
	{30_000, 12},
	{60_000, 11},
	{120_000, 10},
	{250_000, 9},
}

// FitZoom picks a zoom level that shows the whole bounds
func FitZoom(b Bounds) int {
	d := b.Diagonal()
	for _, z := range fitZooms {
		if d <= z.maxMeters {
			return z.zoom
		}
	}
	return 8
}

// apps/go-server/internal/geo/geo.go
//
// Great-circle helpers for capital coordinates.
//
// Distances use the haversine angle from the S2 library scaled by a
// spherical Earth radius of 6371 km, rounded to the nearest kilometre.
// Map cells are plain geohashes so clients can drop a pin without
// needing the raw coordinates.

package geo

import (
	"math"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used for all distance feedback.
const EarthRadiusKm = 6371.0

// MapCellPrecision is the geohash length handed to clients (~1.2 km cells).
const MapCellPrecision = 6

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Point) latLng() s2.LatLng { return s2.LatLngFromDegrees(p.Lat, p.Lon) }

// Valid reports whether latitude is within [-90,90] and longitude within [-180,180].
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.latLng().IsValid()
}

// DistanceKm returns the haversine surface distance between a and b in whole kilometres.
func DistanceKm(a, b Point) int {
	angle := a.latLng().Distance(b.latLng())
	return int(math.Round(angle.Radians() * EarthRadiusKm))
}

// MapCell returns the geohash of p at MapCellPrecision.
func MapCell(p Point) string {
	return geohash.EncodeWithPrecision(p.Lat, p.Lon, MapCellPrecision)
}

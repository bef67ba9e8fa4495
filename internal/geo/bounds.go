// Package geo holds the bounds validation and area math for analysis requests.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/orbitalscope/terralens/pkg/models"
)

var (
	ErrInvalidBounds = errors.New("invalid bounds")
	ErrAreaTooLarge  = errors.New("analysis area too large")
)

const (
	kmPerDegree = 111.32
	// Meters per degree of latitude, used for the point+radius conversion.
	// This is a flat-Earth approximation, not a geodesic conversion.
	metersPerDegree = 111000.0
)

// Bounds is an axis-aligned latitude/longitude rectangle.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MinLng float64 `json:"minLng"`
	MaxLat float64 `json:"maxLat"`
	MaxLng float64 `json:"maxLng"`
}

// Validate rejects degenerate or inverted rectangles.
func (b Bounds) Validate() error {
	if b.MinLat >= b.MaxLat {
		return fmt.Errorf("%w: minLat (%v) must be less than maxLat (%v)", ErrInvalidBounds, b.MinLat, b.MaxLat)
	}
	if b.MinLng >= b.MaxLng {
		return fmt.Errorf("%w: minLng (%v) must be less than maxLng (%v)", ErrInvalidBounds, b.MinLng, b.MaxLng)
	}
	return nil
}

// AreaKm2 computes the approximate area of the rectangle in square kilometers
// using a flat-Earth approximation scaled by the cosine of the mean latitude.
func (b Bounds) AreaKm2() float64 {
	latDiff := b.MaxLat - b.MinLat
	lngDiff := b.MaxLng - b.MinLng
	meanLat := (b.MinLat + b.MaxLat) / 2
	return latDiff * kmPerDegree * lngDiff * kmPerDegree * math.Cos(meanLat*math.Pi/180)
}

// FromPointRadius converts a center point and radius in meters to a bounding
// box via a degree-delta approximation (radius / 111000 degrees per axis).
func FromPointRadius(lat, lng, radiusMeters float64) Bounds {
	delta := radiusMeters / metersPerDegree
	return Bounds{
		MinLat: lat - delta,
		MinLng: lng - delta,
		MaxLat: lat + delta,
		MaxLng: lng + delta,
	}
}

// Per-kind area ceilings in km².
var areaCeilings = map[string]float64{
	models.KindBuildingHeight:    100,
	models.KindSegmentation:      1000,
	models.KindMining:            5000,
	models.KindDeforestation:     10000,
	models.KindImagery:           10000,
	models.KindFire:              50000,
	models.KindEnvironmentalRisk: 10000,
}

// Default ceiling for kinds without an explicit entry.
const defaultAreaCeiling = 1000.0

// MaxAreaKm2 returns the area ceiling for an analysis kind.
func MaxAreaKm2(kind string) float64 {
	if ceiling, ok := areaCeilings[kind]; ok {
		return ceiling
	}
	return defaultAreaCeiling
}

// CheckArea validates the bounds and enforces the per-kind area ceiling,
// returning the computed area on success.
func CheckArea(b Bounds, kind string) (float64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	area := b.AreaKm2()
	if ceiling := MaxAreaKm2(kind); area > ceiling {
		return area, fmt.Errorf("%w: %.2f km² exceeds the %.0f km² limit for %s", ErrAreaTooLarge, area, ceiling, kind)
	}
	return area, nil
}

// HaversineKm returns the great-circle distance between two points in km.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

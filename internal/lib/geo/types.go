package geo

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrMalformedGeometry is returned when an encoded polyline cannot be
	// decoded into at least two coordinates.
	ErrMalformedGeometry = errors.New("malformed geometry")

	// ErrInvalidCoordinate is returned for coordinates outside the valid
	// latitude/longitude ranges or containing NaN/Inf.
	ErrInvalidCoordinate = errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
)

// Coordinate is a geographic position in decimal degrees.
// Field order is longitude then latitude everywhere in this module; the
// polyline codec is the only place that converts from latitude-first input.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// NewCoordinate creates a Coordinate with validation
func NewCoordinate(lon, lat float64) (Coordinate, error) {
	c := Coordinate{Lon: lon, Lat: lat}
	if err := ValidateCoordinate(c); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Valid reports whether the coordinate lies within the WGS84 ranges.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 &&
		c.Lon >= -180 && c.Lon <= 180
}

// String formats the coordinate as "lon,lat".
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lon, c.Lat)
}

// ValidateCoordinate returns ErrInvalidCoordinate when c is not Valid.
func ValidateCoordinate(c Coordinate) error {
	if !c.Valid() {
		return fmt.Errorf("%w: got %v", ErrInvalidCoordinate, c)
	}
	return nil
}

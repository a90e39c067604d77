package geo

import (
	"fmt"

	"github.com/twpayne/go-polyline"
)

// DecodePolyline decodes an encoded polyline (1e-5 precision) into
// coordinates in encoding order. The encoding stores latitude first; the
// result is normalised to Coordinate{Lon, Lat}.
//
// Any truncated trailing group, invalid byte or odd number of values fails
// with ErrMalformedGeometry rather than silently dropping the partial
// coordinate, as does a polyline with fewer than two points.
func DecodePolyline(encoded string) ([]Coordinate, error) {
	if encoded == "" {
		return nil, fmt.Errorf("%w: encoded polyline string is empty", ErrMalformedGeometry)
	}

	coords, rest, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGeometry, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedGeometry, len(rest))
	}
	if len(coords) < 2 {
		return nil, fmt.Errorf("%w: decoded %d coordinates, need at least 2", ErrMalformedGeometry, len(coords))
	}

	points := make([]Coordinate, len(coords))
	for i, c := range coords {
		points[i] = Coordinate{Lon: c[1], Lat: c[0]}
		if !points[i].Valid() {
			return nil, fmt.Errorf("%w: point %d out of range (%v)", ErrMalformedGeometry, i, points[i])
		}
	}
	return points, nil
}

// EncodePolyline is the inverse of DecodePolyline.
func EncodePolyline(points []Coordinate) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}

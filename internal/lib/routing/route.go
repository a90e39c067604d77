package routing

import (
	"fmt"
	"time"

	"github.com/dpup/nav.ersn.net/server/internal/lib/geo"
)

// NewRoute builds and validates a Route. A non-positive totalDistanceMeters
// is replaced by the length of the geometry.
func NewRoute(points []geo.Coordinate, instructions []Instruction, totalDistanceMeters float64, totalDuration time.Duration) (*Route, error) {
	if totalDistanceMeters <= 0 {
		totalDistanceMeters = geo.PathLength(points, 0, len(points)-1)
	}

	route := &Route{
		Points:              points,
		Instructions:        instructions,
		TotalDistanceMeters: totalDistanceMeters,
		TotalDuration:       totalDuration,
	}
	if err := route.Validate(); err != nil {
		return nil, err
	}
	return route, nil
}

// NewRouteFromPolyline decodes the encoded geometry and builds a Route from it.
func NewRouteFromPolyline(encoded string, instructions []Instruction, totalDistanceMeters float64, totalDuration time.Duration) (*Route, error) {
	points, err := geo.DecodePolyline(encoded)
	if err != nil {
		return nil, err
	}
	return NewRoute(points, instructions, totalDistanceMeters, totalDuration)
}

// Validate checks the route invariants: at least one point and one
// instruction, every interval within the point range and non-decreasing, and
// intervals monotonically increasing across instructions (sharing at most a
// boundary point).
func (r *Route) Validate() error {
	if r == nil || len(r.Points) == 0 {
		return fmt.Errorf("%w: route has no points", ErrEmptyRoute)
	}
	if len(r.Instructions) == 0 {
		return fmt.Errorf("%w: route has no instructions", ErrEmptyRoute)
	}

	for i, p := range r.Points {
		if !p.Valid() {
			return fmt.Errorf("%w: point %d out of range (%v)", geo.ErrMalformedGeometry, i, p)
		}
	}

	last := len(r.Points) - 1
	for i, inst := range r.Instructions {
		if inst.IntervalStart < 0 || inst.IntervalEnd > last {
			return fmt.Errorf("%w: instruction %d interval [%d, %d] outside [0, %d]",
				ErrInvalidInterval, i, inst.IntervalStart, inst.IntervalEnd, last)
		}
		if inst.IntervalStart > inst.IntervalEnd {
			return fmt.Errorf("%w: instruction %d interval [%d, %d] is decreasing",
				ErrInvalidInterval, i, inst.IntervalStart, inst.IntervalEnd)
		}
		if i > 0 && r.Instructions[i-1].IntervalEnd > inst.IntervalStart {
			return fmt.Errorf("%w: instruction %d starts at %d before instruction %d ends at %d",
				ErrInvalidInterval, i, inst.IntervalStart, i-1, r.Instructions[i-1].IntervalEnd)
		}
	}
	return nil
}

// Origin returns the first route point.
func (r *Route) Origin() geo.Coordinate {
	return r.Points[0]
}

// Destination returns the final route point.
func (r *Route) Destination() geo.Coordinate {
	return r.Points[len(r.Points)-1]
}

// Length returns the path length of the geometry in meters, which can differ
// slightly from the provider's TotalDistanceMeters.
func (r *Route) Length() float64 {
	return geo.PathLength(r.Points, 0, len(r.Points)-1)
}

package cache

import (
	"fmt"
	"math"
	"time"

	"github.com/dpup/nav.ersn.net/server/internal/lib/geo"
	"github.com/dpup/nav.ersn.net/server/internal/lib/routing"
)

const routeSource = "route_provider"

// RouteKey builds the cache key for a planned route. Coordinates are rounded
// to polyline precision so equivalent requests share an entry.
func RouteKey(origin, destination geo.Coordinate, mode routing.TravelMode) string {
	return fmt.Sprintf("route:%s:%s:%s", mode, roundedPoint(origin), roundedPoint(destination))
}

func roundedPoint(c geo.Coordinate) string {
	return fmt.Sprintf("%.5f,%.5f", round5(c.Lon), round5(c.Lat))
}

func round5(v float64) float64 {
	// Normalise -0 so both signs share a key
	return math.Round(v*1e5)/1e5 + 0
}

// SetRoute caches a planned route.
func (c *Cache) SetRoute(origin, destination geo.Coordinate, mode routing.TravelMode, route *routing.Route, ttl time.Duration) error {
	return c.Set(RouteKey(origin, destination, mode), route, ttl, routeSource)
}

// GetRoute returns a fresh cached route, revalidated after decoding.
func (c *Cache) GetRoute(origin, destination geo.Coordinate, mode routing.TravelMode) (*routing.Route, bool, error) {
	var route routing.Route
	found, err := c.Get(RouteKey(origin, destination, mode), &route)
	if err != nil || !found {
		return nil, false, err
	}
	if err := route.Validate(); err != nil {
		return nil, false, fmt.Errorf("cached route invalid: %w", err)
	}
	return &route, true, nil
}

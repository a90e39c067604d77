package geo

import (
	"math"
)

// EarthRadiusMeters is the mean sphere radius used by every distance
// calculation. The sphere model is accurate to within 0.5%.
const EarthRadiusMeters = 6371000

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Distance calculates great-circle distance between two coordinates in
// meters using the Haversine formula.
func Distance(a, b Coordinate) float64 {
	// If points are the same, distance is 0
	if a == b {
		return 0
	}

	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dlat := lat2 - lat1
	dlon := toRadians(b.Lon) - toRadians(a.Lon)

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Bearing returns the initial bearing from a to b in degrees, normalised
// into [0, 360). Identical points yield 0.
func Bearing(a, b Coordinate) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dlon := toRadians(b.Lon) - toRadians(a.Lon)

	y := math.Sin(dlon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dlon)

	return math.Mod(toDegrees(math.Atan2(y, x))+360, 360)
}

// ClosestPointIndex returns the index of the route vertex nearest to
// position. It is a linear nearest-vertex scan, not a projection onto
// segments; upstream polylines are dense enough for the difference not to
// matter. Ties resolve to the lowest index, except that a position exactly
// equidistant from two consecutive vertices is at the midpoint of that
// segment and is credited to the vertex ahead, so a duplicated vertex
// resolves to its later copy. Returns -1 for an empty slice.
func ClosestPointIndex(position Coordinate, points []Coordinate) int {
	if len(points) == 0 {
		return -1
	}

	best := 0
	bestDistance := math.Inf(1)
	for i, p := range points {
		d := Distance(position, p)
		if d < bestDistance {
			best = i
			bestDistance = d
		}
	}

	if best+1 < len(points) && Distance(position, points[best+1]) == bestDistance {
		best++
	}
	return best
}

// PathLength sums the consecutive-point distances between points[from] and
// points[to]. Indexes are clamped to the slice; from >= to yields 0.
func PathLength(points []Coordinate, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to > len(points)-1 {
		to = len(points) - 1
	}

	total := 0.0
	for i := from; i < to; i++ {
		total += Distance(points[i], points[i+1])
	}
	return total
}

// RemainingDistance is the distance from position to points[closestIndex]
// plus the path length from that vertex to the final point.
func RemainingDistance(position Coordinate, points []Coordinate, closestIndex int) float64 {
	if len(points) == 0 || closestIndex < 0 || closestIndex >= len(points) {
		return 0
	}
	return Distance(position, points[closestIndex]) + PathLength(points, closestIndex, len(points)-1)
}

// Package progress turns raw position samples into progress snapshots for
// a single route.
package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/dpup/nav.ersn.net/server/internal/lib/geo"
	"github.com/dpup/nav.ersn.net/server/internal/lib/routing"
)

// DefaultArrivalThresholdMeters is the remaining distance under which a
// session is considered arrived.
const DefaultArrivalThresholdMeters = 50.0

// Snapshot is the derived progress state for one position sample.
type Snapshot struct {
	Position                     geo.Coordinate `json:"position"`
	ClosestPointIndex            int            `json:"closest_point_index"`
	RemainingDistanceMeters      float64        `json:"remaining_distance_meters"`
	RemainingDuration            time.Duration  `json:"remaining_duration"`
	ActiveInstructionIndex       int            `json:"active_instruction_index"`
	DistanceToNextManeuverMeters float64        `json:"distance_to_next_maneuver_meters"`
	ProgressFraction             float64        `json:"progress_fraction"`
	Bearing                      float64        `json:"bearing"`
	Arrived                      bool           `json:"arrived"`
	Timestamp                    time.Time      `json:"timestamp"`
}

// Advance computes a snapshot for position against route. It never sets
// Arrived; arrival depends on the caller's threshold.
func Advance(route *routing.Route, position geo.Coordinate) (Snapshot, error) {
	return advance(route, position, 0)
}

func advance(route *routing.Route, position geo.Coordinate, floor int) (Snapshot, error) {
	if route == nil || len(route.Points) == 0 {
		return Snapshot{}, fmt.Errorf("advance: %w", routing.ErrEmptyRoute)
	}
	if err := geo.ValidateCoordinate(position); err != nil {
		return Snapshot{}, fmt.Errorf("advance: %w", err)
	}

	closest := geo.ClosestPointIndex(position, route.Points)
	remaining := geo.RemainingDistance(position, route.Points, closest)

	fraction := 1.0
	if route.TotalDistanceMeters > 0 {
		fraction = clamp(1-remaining/route.TotalDistanceMeters, 0, 1)
	}

	active := routing.ActiveInstructionFrom(closest, route.Instructions, floor)

	return Snapshot{
		Position:                     position,
		ClosestPointIndex:            closest,
		RemainingDistanceMeters:      remaining,
		RemainingDuration:            time.Duration(float64(route.TotalDuration) * (1 - fraction)),
		ActiveInstructionIndex:       active,
		DistanceToNextManeuverMeters: routing.DistanceToNextManeuver(position, route.Points, closest, route.Instructions, active),
		ProgressFraction:             fraction,
		Bearing:                      travelBearing(route.Points, closest),
	}, nil
}

// travelBearing is the direction of the route segment leaving index i, or
// arriving at it for the final point.
func travelBearing(points []geo.Coordinate, i int) float64 {
	switch {
	case len(points) < 2:
		return 0
	case i+1 < len(points):
		return geo.Bearing(points[i], points[i+1])
	default:
		return geo.Bearing(points[len(points)-2], points[len(points)-1])
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Tracker advances one route for one session. It remembers the active
// instruction so matching never moves backward, and accumulates the
// distance traveled between accepted samples. Tracker is not safe for
// concurrent use; the session serializes calls.
type Tracker struct {
	route            *routing.Route
	arrivalThreshold float64

	last     Snapshot
	hasLast  bool
	traveled float64
	samples  int
}

// NewTracker creates a tracker for route. A non-positive threshold selects
// DefaultArrivalThresholdMeters.
func NewTracker(route *routing.Route, arrivalThresholdMeters float64) *Tracker {
	if arrivalThresholdMeters <= 0 {
		arrivalThresholdMeters = DefaultArrivalThresholdMeters
	}
	return &Tracker{
		route:            route,
		arrivalThreshold: arrivalThresholdMeters,
	}
}

// Update processes one sample. On error the tracker state is unchanged.
func (t *Tracker) Update(position geo.Coordinate, timestamp time.Time) (Snapshot, error) {
	floor := 0
	if t.hasLast {
		floor = t.last.ActiveInstructionIndex
	}

	snap, err := advance(t.route, position, floor)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Timestamp = timestamp
	snap.Arrived = snap.RemainingDistanceMeters < t.arrivalThreshold

	if t.hasLast {
		t.traveled += geo.Distance(t.last.Position, position)
	}
	t.last = snap
	t.hasLast = true
	t.samples++
	return snap, nil
}

// Last returns the most recent snapshot, if any sample has been accepted.
func (t *Tracker) Last() (Snapshot, bool) {
	return t.last, t.hasLast
}

// TraveledMeters is the summed distance between consecutive accepted samples.
func (t *Tracker) TraveledMeters() float64 {
	return t.traveled
}

// Samples is the number of accepted samples.
func (t *Tracker) Samples() int {
	return t.samples
}

// ArrivalThreshold returns the tracker's arrival distance in meters.
func (t *Tracker) ArrivalThreshold() float64 {
	return t.arrivalThreshold
}

package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dpup/nav.ersn.net/server/internal/lib/geo"
)

var (
	// ErrEmptyRoute is returned for a route without points or instructions.
	ErrEmptyRoute = errors.New("empty route")

	// ErrInvalidInterval is returned when instruction intervals fall outside
	// the route or are not monotonically increasing.
	ErrInvalidInterval = errors.New("invalid instruction interval")

	// ErrNoRoute is returned by a Provider that found no path between the
	// requested endpoints.
	ErrNoRoute = errors.New("no route found")
)

// TravelMode selects the vehicle profile used by the route provider
type TravelMode string

const (
	ModeCar        TravelMode = "car"
	ModeBike       TravelMode = "bike"
	ModeFoot       TravelMode = "foot"
	ModeMotorcycle TravelMode = "motorcycle"
)

// IsValid returns true if the mode is a recognized travel mode.
func (m TravelMode) IsValid() bool {
	switch m {
	case ModeCar, ModeBike, ModeFoot, ModeMotorcycle:
		return true
	}
	return false
}

// ParseTravelMode converts a string to a TravelMode, returning an error if invalid.
func ParseTravelMode(s string) (TravelMode, error) {
	mode := TravelMode(s)
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid travel mode: %s", s)
	}
	return mode, nil
}

// Sign is the maneuver code attached to an instruction. Values follow the
// GraphHopper instruction sign table.
type Sign int

const (
	SignUTurnUnknown     Sign = -98
	SignUTurnLeft        Sign = -8
	SignKeepLeft         Sign = -7
	SignLeaveRoundabout  Sign = -6
	SignTurnSharpLeft    Sign = -3
	SignTurnLeft         Sign = -2
	SignTurnSlightLeft   Sign = -1
	SignContinue         Sign = 0
	SignTurnSlightRight  Sign = 1
	SignTurnRight        Sign = 2
	SignTurnSharpRight   Sign = 3
	SignFinish           Sign = 4
	SignReachedVia       Sign = 5
	SignUseRoundabout    Sign = 6
	SignKeepRight        Sign = 7
	SignUTurnRight       Sign = 8
)

var signNames = map[Sign]string{
	SignUTurnUnknown:    "u_turn",
	SignUTurnLeft:       "u_turn_left",
	SignKeepLeft:        "keep_left",
	SignLeaveRoundabout: "leave_roundabout",
	SignTurnSharpLeft:   "turn_sharp_left",
	SignTurnLeft:        "turn_left",
	SignTurnSlightLeft:  "turn_slight_left",
	SignContinue:        "continue",
	SignTurnSlightRight: "turn_slight_right",
	SignTurnRight:       "turn_right",
	SignTurnSharpRight:  "turn_sharp_right",
	SignFinish:          "finish",
	SignReachedVia:      "reached_via",
	SignUseRoundabout:   "use_roundabout",
	SignKeepRight:       "keep_right",
	SignUTurnRight:      "u_turn_right",
}

func (s Sign) String() string {
	if name, ok := signNames[s]; ok {
		return name
	}
	return fmt.Sprintf("sign(%d)", int(s))
}

// Instruction is a single turn-by-turn maneuver covering the route points
// [IntervalStart, IntervalEnd].
type Instruction struct {
	Text           string        `json:"text"`
	StreetName     string        `json:"street_name"`
	IntervalStart  int           `json:"interval_start"`
	IntervalEnd    int           `json:"interval_end"`
	DistanceMeters float64       `json:"distance_meters"`
	Duration       time.Duration `json:"duration"`
	Sign           Sign          `json:"sign"`
}

// Contains reports whether the route point index falls inside the interval.
func (i Instruction) Contains(index int) bool {
	return index >= i.IntervalStart && index <= i.IntervalEnd
}

// Route is a computed route: geometry, maneuvers and the provider's totals.
// A Route is never modified after construction.
type Route struct {
	Points              []geo.Coordinate `json:"points"`
	Instructions        []Instruction    `json:"instructions"`
	TotalDistanceMeters float64          `json:"total_distance_meters"`
	TotalDuration       time.Duration    `json:"total_duration"`
}

// Provider computes routes between two points. Implementations live under
// internal/clients.
type Provider interface {
	Route(ctx context.Context, origin, destination geo.Coordinate, mode TravelMode) (*Route, error)
}

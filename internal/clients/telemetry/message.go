package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dpup/nav.ersn.net/server/internal/lib/geo"
	"github.com/dpup/nav.ersn.net/server/internal/lib/position"
)

// ErrMalformedMessage is returned for position messages that cannot be
// decoded into a valid sample.
var ErrMalformedMessage = errors.New("malformed position message")

// positionMessage is the JSON wire format of a position fix.
type positionMessage struct {
	Lat       *float64   `json:"lat"`
	Lon       *float64   `json:"lon"`
	AccuracyM *float64   `json:"accuracy_m,omitempty"`
	Timestamp *time.Time `json:"ts,omitempty"`
}

// DecodeSample parses a position message. A message without a timestamp
// takes fallback, normally the Kafka message time.
func DecodeSample(value []byte, fallback time.Time) (position.Sample, error) {
	var msg positionMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return position.Sample{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.Lat == nil || msg.Lon == nil {
		return position.Sample{}, fmt.Errorf("%w: missing lat or lon", ErrMalformedMessage)
	}

	coord, err := geo.NewCoordinate(*msg.Lon, *msg.Lat)
	if err != nil {
		return position.Sample{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.AccuracyM != nil && *msg.AccuracyM < 0 {
		return position.Sample{}, fmt.Errorf("%w: negative accuracy %v", ErrMalformedMessage, *msg.AccuracyM)
	}

	ts := fallback
	if msg.Timestamp != nil {
		ts = *msg.Timestamp
	}
	return position.Sample{
		Coordinate:     coord,
		AccuracyMeters: msg.AccuracyM,
		Timestamp:      ts,
	}, nil
}

// EncodeSample renders a sample in the wire format read by DecodeSample.
func EncodeSample(s position.Sample) ([]byte, error) {
	lat, lon := s.Coordinate.Lat, s.Coordinate.Lon
	msg := positionMessage{
		Lat:       &lat,
		Lon:       &lon,
		AccuracyM: s.AccuracyMeters,
	}
	if !s.Timestamp.IsZero() {
		ts := s.Timestamp.UTC()
		msg.Timestamp = &ts
	}
	return json.Marshal(msg)
}

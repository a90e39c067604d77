package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/nav.ersn.net/server/internal/lib/geo"
	"github.com/dpup/nav.ersn.net/server/internal/lib/position"
)

func TestDecodeSample(t *testing.T) {
	fallback := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

	sample, err := DecodeSample([]byte(`{"lat": 38.0675, "lon": -120.5436, "accuracy_m": 4.5, "ts": "2024-03-09T10:15:30Z"}`), fallback)
	require.NoError(t, err)
	assert.Equal(t, geo.Coordinate{Lon: -120.5436, Lat: 38.0675}, sample.Coordinate)
	require.NotNil(t, sample.AccuracyMeters)
	assert.Equal(t, 4.5, *sample.AccuracyMeters)
	assert.Equal(t, time.Date(2024, 3, 9, 10, 15, 30, 0, time.UTC), sample.Timestamp)

	sample, err = DecodeSample([]byte(`{"lat": 0, "lon": 0}`), fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, sample.Timestamp, "missing ts uses the message time")
	assert.Nil(t, sample.AccuracyMeters)
}

func TestDecodeSample_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not json", `lat=1,lon=2`},
		{"missing lon", `{"lat": 38.1}`},
		{"missing lat", `{"lon": -120.5}`},
		{"latitude out of range", `{"lat": 138.1, "lon": -120.5}`},
		{"negative accuracy", `{"lat": 38.1, "lon": -120.5, "accuracy_m": -1}`},
		{"bad timestamp", `{"lat": 38.1, "lon": -120.5, "ts": "yesterday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSample([]byte(tt.value), time.Now())
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestEncodeSample(t *testing.T) {
	ts := time.Date(2024, 3, 9, 10, 15, 30, 0, time.UTC)
	value, err := EncodeSample(position.Sample{
		Coordinate:     geo.Coordinate{Lon: -120.5436, Lat: 38.0675},
		AccuracyMeters: position.Accuracy(3),
		Timestamp:      ts,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"lat": 38.0675, "lon": -120.5436, "accuracy_m": 3, "ts": "2024-03-09T10:15:30Z"}`, string(value))

	value, err = EncodeSample(position.Sample{Coordinate: geo.Coordinate{Lon: 1, Lat: 2}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"lat": 2, "lon": 1}`, string(value))
}

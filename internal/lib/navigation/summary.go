package navigation

import "time"

// TripSummary describes a finished session.
type TripSummary struct {
	StartedAt              time.Time     `json:"started_at"`
	EndedAt                time.Time     `json:"ended_at"`
	TotalDistanceMeters    float64       `json:"total_distance_meters"`
	PlannedDuration        time.Duration `json:"planned_duration"`
	AverageSpeedKph        float64       `json:"average_speed_kph"`
	TraveledDistanceMeters float64       `json:"traveled_distance_meters"`
	Arrived                bool          `json:"arrived"`
	SamplesProcessed       int           `json:"samples_processed"`
}

// Elapsed is the wall time between start and end.
func (s TripSummary) Elapsed() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}

// averageSpeedKph returns 0 for a non-positive elapsed time.
func averageSpeedKph(distanceMeters float64, elapsed time.Duration) float64 {
	hours := elapsed.Hours()
	if hours <= 0 {
		return 0
	}
	return (distanceMeters / 1000) / hours
}

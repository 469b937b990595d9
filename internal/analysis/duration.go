// Package analysis turns raw calendar events into a deterministic
// CalendarAnalysis: durations, categories, collaborators and insights.
package analysis

import (
	"math"
	"time"

	"timesherpa/internal/models"
)

// DefaultDurationMinutes is used when an event's bounds cannot be read.
const DefaultDurationMinutes = 60

// DurationMinutes returns the length of the event in minutes. Missing,
// unparsable or inverted bounds yield DefaultDurationMinutes.
func DurationMinutes(e models.Event) int {
	start, ok := e.Start.Time(time.UTC)
	if !ok {
		return DefaultDurationMinutes
	}
	end, ok := e.End.Time(time.UTC)
	if !ok {
		return DefaultDurationMinutes
	}
	if end.Before(start) {
		return DefaultDurationMinutes
	}
	return int(end.Sub(start) / time.Minute)
}

// DurationHours is DurationMinutes expressed in hours.
func DurationHours(e models.Event) float64 {
	return float64(DurationMinutes(e)) / 60
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// percent returns round(part/whole*100), or 0 when whole is not positive.
func percent(part, whole float64) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(part / whole * 100))
}

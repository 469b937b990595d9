// Package workweek answers workday questions for a configurable seven-day week.
package workweek

import (
	"time"

	"timesherpa/internal/models"
)

// MaxLookahead bounds how many calendar days NextWorkdays inspects.
const MaxLookahead = 14

// IsWorkday reports whether the date falls on a day flagged in the workweek.
func IsWorkday(date time.Time, ww models.WorkweekSettings) bool {
	return ww.Includes(date.Weekday())
}

// NextWorkdays returns up to count workdays starting with startDate itself.
// At most MaxLookahead calendar days are inspected, so fewer than count
// days come back when the workweek is sparse or empty.
func NextWorkdays(startDate time.Time, count int, ww models.WorkweekSettings) []time.Time {
	var days []time.Time
	for checked := 0; len(days) < count && checked < MaxLookahead; checked++ {
		day := startDate.AddDate(0, 0, checked)
		if IsWorkday(day, ww) {
			days = append(days, day)
		}
	}
	return days
}

// InRange returns every workday between start and end inclusive.
func InRange(start, end time.Time, ww models.WorkweekSettings) []time.Time {
	var days []time.Time
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if IsWorkday(day, ww) {
			days = append(days, day)
		}
	}
	return days
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Package settings stores per-user workweek preferences.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"timesherpa/internal/models"
)

// ErrInvalidWorkweek is returned for unparsable workweek strings.
var ErrInvalidWorkweek = errors.New("invalid workweek")

// Source resolves the workweek of a user.
type Source interface {
	GetUserWorkweek(ctx context.Context, userID string) (models.WorkweekSettings, error)
}

// StaticSource returns the same workweek for every user.
type StaticSource struct {
	Workweek models.WorkweekSettings
}

func (s StaticSource) GetUserWorkweek(context.Context, string) (models.WorkweekSettings, error) {
	return s.Workweek, nil
}

var dayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseWorkweek parses a comma separated list of days such as
// "mon,tue,wed". Full day names are accepted as well. "none" yields a
// workweek without workdays.
func ParseWorkweek(s string) (models.WorkweekSettings, error) {
	var ww models.WorkweekSettings
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "none" {
		return ww, nil
	}
	if s == "" {
		return ww, fmt.Errorf("%w: empty", ErrInvalidWorkweek)
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if len(part) < 3 {
			return ww, fmt.Errorf("%w: unknown day %q", ErrInvalidWorkweek, part)
		}
		day, ok := dayNames[part[:3]]
		if !ok || (len(part) > 3 && part != strings.ToLower(day.String())) {
			return ww, fmt.Errorf("%w: unknown day %q", ErrInvalidWorkweek, part)
		}
		ww.Set(day, true)
	}
	return ww, nil
}

// FormatWorkweek is the inverse of ParseWorkweek, Monday first.
func FormatWorkweek(ww models.WorkweekSettings) string {
	var days []string
	for d := time.Monday; ; d = (d + 1) % 7 {
		if ww.Includes(d) {
			days = append(days, strings.ToLower(d.String()[:3]))
		}
		if d == time.Sunday {
			break
		}
	}
	if len(days) == 0 {
		return "none"
	}
	return strings.Join(days, ",")
}

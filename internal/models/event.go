package models

import (
	"strings"
	"time"
)

// Person identifies an attendee or organizer of an event.
type Person struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	// Self marks the calendar owner in the attendee list.
	Self bool `json:"self,omitempty"`
}

// Name returns the display name, falling back to the local part of the email.
func (p Person) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Email == "" {
		return "Unknown"
	}
	local, _, _ := strings.Cut(p.Email, "@")
	return local
}

// EventTime is either a timestamp (DateTime, RFC 3339) or an all-day date
// (Date, YYYY-MM-DD). Providers fill exactly one of them.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

// IsAllDay reports whether the time carries a date without a clock time.
func (t EventTime) IsAllDay() bool {
	return t.DateTime == "" && t.Date != ""
}

// Time parses the value. All-day dates are interpreted at midnight in loc.
func (t EventTime) Time(loc *time.Location) (time.Time, bool) {
	if t.DateTime != "" {
		v, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return v, true
	}
	if t.Date != "" {
		if loc == nil {
			loc = time.UTC
		}
		v, err := time.ParseInLocation("2006-01-02", t.Date, loc)
		if err != nil {
			return time.Time{}, false
		}
		return v, true
	}
	return time.Time{}, false
}

// Raw returns whichever representation is set.
func (t EventTime) Raw() string {
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

// Event represents a calendar event read from a provider.
// This is an internal representation, independent of any specific calendar provider.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
	Attendees   []Person  `json:"attendees,omitempty"`
	Organizer   *Person   `json:"organizer,omitempty"`
	HTMLLink    string    `json:"htmlLink,omitempty"`
	Source      string    `json:"source,omitempty"` // e.g. "google-primary" or "caldav"
}

// OtherAttendees returns the attendees excluding the calendar owner.
func (e Event) OtherAttendees() []Person {
	out := make([]Person, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		if a.Self {
			continue
		}
		out = append(out, a)
	}
	return out
}

// WorkweekSettings flags which weekdays count as workdays.
type WorkweekSettings struct {
	Monday    bool `json:"monday"`
	Tuesday   bool `json:"tuesday"`
	Wednesday bool `json:"wednesday"`
	Thursday  bool `json:"thursday"`
	Friday    bool `json:"friday"`
	Saturday  bool `json:"saturday"`
	Sunday    bool `json:"sunday"`
}

// DefaultWorkweek is Monday through Friday.
func DefaultWorkweek() WorkweekSettings {
	return WorkweekSettings{
		Monday:    true,
		Tuesday:   true,
		Wednesday: true,
		Thursday:  true,
		Friday:    true,
	}
}

// Includes reports whether the weekday is flagged as a workday.
func (w WorkweekSettings) Includes(day time.Weekday) bool {
	switch day {
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	case time.Sunday:
		return w.Sunday
	}
	return false
}

// Set flags a weekday on or off.
func (w *WorkweekSettings) Set(day time.Weekday, on bool) {
	switch day {
	case time.Monday:
		w.Monday = on
	case time.Tuesday:
		w.Tuesday = on
	case time.Wednesday:
		w.Wednesday = on
	case time.Thursday:
		w.Thursday = on
	case time.Friday:
		w.Friday = on
	case time.Saturday:
		w.Saturday = on
	case time.Sunday:
		w.Sunday = on
	}
}

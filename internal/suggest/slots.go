package suggest

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"timesherpa/internal/models"
	"timesherpa/internal/workweek"
)

// MaxSlotsPerSuggestion caps every strategy's output.
const MaxSlotsPerSuggestion = 4

// ClockTime is a time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) on(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

// Window is a candidate block starting at a fixed time of day.
type Window struct {
	Start  ClockTime
	Length time.Duration
}

// SearchInput is what a strategy searches over. From is the first day
// considered, already in the user's timezone.
type SearchInput struct {
	From     time.Time
	Events   []models.Event
	Workweek models.WorkweekSettings
	Text     string
}

// Strategy finds candidate slots for one suggestion type.
type Strategy interface {
	Find(in SearchInput) []models.TimeSlot
}

// FocusGapStrategy walks each day's working window and emits gaps between
// events that are at least MinGap long, trimmed to MaxGap.
type FocusGapStrategy struct {
	Days     int
	DayStart ClockTime
	DayEnd   ClockTime
	MinGap   time.Duration
	MaxGap   time.Duration
	Limit    int
}

func (s FocusGapStrategy) Find(in SearchInput) []models.TimeSlot {
	var slots []models.TimeSlot
	for _, day := range workweek.NextWorkdays(in.From, s.Days, in.Workweek) {
		open, closeAt := s.DayStart.on(day), s.DayEnd.on(day)
		cursor := open
		emit := func(gapEnd time.Time) bool {
			gap := gapEnd.Sub(cursor)
			if gap < s.MinGap {
				return false
			}
			if gap > s.MaxGap {
				gap = s.MaxGap
			}
			reason := fmt.Sprintf("%s open block on %s with no meetings - ideal for deep work",
				hoursLabel(gap), day.Format("Monday, Jan 2"))
			slots = append(slots, slot(cursor, cursor.Add(gap), reason))
			return len(slots) >= s.Limit
		}
		for _, b := range busyBetween(in.Events, open, closeAt) {
			if b.start.After(cursor) && emit(b.start) {
				return slots
			}
			if b.end.After(cursor) {
				cursor = b.end
			}
		}
		if closeAt.After(cursor) && emit(closeAt) {
			return slots
		}
	}
	return slots
}

var explicitTimePattern = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)

// ParseExplicitTime finds the first "<N>am", "<N>pm" or "<N>:<MM>pm" mention
// in text and returns it in 24-hour form.
func ParseExplicitTime(text string) (ClockTime, bool) {
	m := explicitTimePattern.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return ClockTime{}, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return ClockTime{}, false
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return ClockTime{}, false
		}
	}
	switch {
	case m[3] == "am" && hour == 12:
		hour = 0
	case m[3] == "pm" && hour != 12:
		hour += 12
	}
	return ClockTime{Hour: hour, Minute: minute}, true
}

// ExplicitTimeStrategy proposes the time named in the suggestion text on
// each upcoming workday. Without a time in the text it proposes nothing.
type ExplicitTimeStrategy struct {
	Days   int
	Length time.Duration
	Limit  int
}

func (s ExplicitTimeStrategy) Find(in SearchInput) []models.TimeSlot {
	at, ok := ParseExplicitTime(in.Text)
	if !ok {
		return nil
	}
	var slots []models.TimeSlot
	for _, day := range workweek.NextWorkdays(in.From, s.Days, in.Workweek) {
		start := at.on(day)
		end := start.Add(s.Length)
		if end.Day() != start.Day() {
			return slots
		}
		reason := fmt.Sprintf("Protected break at %s on %s, as suggested", start.Format("3:04 PM"), day.Format("Monday, Jan 2"))
		slots = append(slots, slot(start, end, reason))
		if len(slots) >= s.Limit {
			break
		}
	}
	return slots
}

// FixedWindowStrategy checks a list of candidate windows on each workday
// and keeps the ones no event overlaps. Reason is a format string taking
// the weekday/date label.
type FixedWindowStrategy struct {
	Days    int
	Windows []Window
	Limit   int
	Reason  string
}

func (s FixedWindowStrategy) Find(in SearchInput) []models.TimeSlot {
	var slots []models.TimeSlot
	for _, day := range workweek.NextWorkdays(in.From, s.Days, in.Workweek) {
		for _, w := range s.Windows {
			start := w.Start.on(day)
			end := start.Add(w.Length)
			if len(busyBetween(in.Events, start, end)) > 0 {
				continue
			}
			slots = append(slots, slot(start, end, fmt.Sprintf(s.Reason, day.Format("Monday, Jan 2"), start.Format("3:04 PM"))))
			if len(slots) >= s.Limit {
				return slots
			}
		}
	}
	return slots
}

// DefaultStrategies is the production strategy table.
func DefaultStrategies() map[models.SuggestionType]Strategy {
	return map[models.SuggestionType]Strategy{
		models.SuggestionFocusTime: FocusGapStrategy{
			Days:     7,
			DayStart: ClockTime{Hour: 9},
			DayEnd:   ClockTime{Hour: 17},
			MinGap:   2 * time.Hour,
			MaxGap:   3 * time.Hour,
			Limit:    3,
		},
		models.SuggestionBreak: ExplicitTimeStrategy{
			Days:   5,
			Length: time.Hour,
			Limit:  MaxSlotsPerSuggestion,
		},
		models.SuggestionMeetingScheduling: FixedWindowStrategy{
			Days: 7,
			Windows: []Window{
				{Start: ClockTime{Hour: 10}, Length: time.Hour},
				{Start: ClockTime{Hour: 14}, Length: time.Hour},
				{Start: ClockTime{Hour: 15}, Length: time.Hour},
			},
			Limit:  4,
			Reason: "%s at %s is open for a meeting",
		},
		models.SuggestionReviewSession: FixedWindowStrategy{
			Days: 5,
			Windows: []Window{
				{Start: ClockTime{Hour: 9}, Length: time.Hour},
				{Start: ClockTime{Hour: 16}, Length: time.Hour},
				{Start: ClockTime{Hour: 13}, Length: time.Hour},
			},
			Limit:  3,
			Reason: "%s at %s is free to review recurring meetings",
		},
		models.SuggestionPlanningTime: FixedWindowStrategy{
			Days: 7,
			Windows: []Window{
				{Start: ClockTime{Hour: 8}, Length: 2 * time.Hour},
				{Start: ClockTime{Hour: 17}, Length: time.Hour},
				{Start: ClockTime{Hour: 10}, Length: time.Hour},
			},
			Limit:  3,
			Reason: "%s at %s is free for strategic planning",
		},
	}
}

// Searcher dispatches slot searches by suggestion type.
type Searcher struct {
	strategies map[models.SuggestionType]Strategy
	loc        *time.Location
}

// NewSearcher builds a searcher. A nil strategy table uses DefaultStrategies
// and a nil location uses UTC.
func NewSearcher(loc *time.Location, strategies map[models.SuggestionType]Strategy) *Searcher {
	if strategies == nil {
		strategies = DefaultStrategies()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Searcher{strategies: strategies, loc: loc}
}

// HasStrategy reports whether slots can be searched for the type.
func (s *Searcher) HasStrategy(kind models.SuggestionType) bool {
	_, ok := s.strategies[kind]
	return ok
}

// FindSlots searches the days starting at from (converted to the searcher's
// timezone) for slots matching the suggestion type.
func (s *Searcher) FindSlots(kind models.SuggestionType, events []models.Event, ww models.WorkweekSettings, text string, from time.Time) []models.TimeSlot {
	strategy, ok := s.strategies[kind]
	if !ok {
		return nil
	}
	slots := strategy.Find(SearchInput{
		From:     workweek.StartOfDay(from.In(s.loc)),
		Events:   events,
		Workweek: ww,
		Text:     text,
	})
	if len(slots) > MaxSlotsPerSuggestion {
		slots = slots[:MaxSlotsPerSuggestion]
	}
	return slots
}

type interval struct {
	start, end time.Time
}

// busyBetween returns the timed events overlapping [from, to), clipped to
// that range and sorted by start. All-day events do not block time.
func busyBetween(events []models.Event, from, to time.Time) []interval {
	var out []interval
	for _, e := range events {
		if e.Start.IsAllDay() {
			continue
		}
		start, ok := e.Start.Time(from.Location())
		if !ok {
			continue
		}
		end, ok := e.End.Time(from.Location())
		if !ok || !end.After(start) {
			continue
		}
		if !start.Before(to) || !end.After(from) {
			continue
		}
		start, end = start.In(from.Location()), end.In(from.Location())
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		out = append(out, interval{start: start, end: end})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	return out
}

func slot(start, end time.Time, reasoning string) models.TimeSlot {
	return models.TimeSlot{
		StartTime: start.Format("15:04"),
		EndTime:   end.Format("15:04"),
		Date:      start.Format("2006-01-02"),
		Reasoning: reasoning,
	}
}

func hoursLabel(d time.Duration) string {
	h := d.Hours()
	if h == float64(int(h)) {
		return fmt.Sprintf("%d-hour", int(h))
	}
	return fmt.Sprintf("%.1f-hour", h)
}

package analysis

import (
	"sort"
	"strings"
	"time"

	"timesherpa/internal/models"
)

// eventFeatures is what the category rules look at.
type eventFeatures struct {
	title     string // lower-cased
	attendees int    // excluding the calendar owner
}

type categoryRule struct {
	category string
	matches  func(f eventFeatures) bool
}

// categoryRules is evaluated top-down and the first match wins. The order is
// the tie-break policy: a titled "lunch" event with no attendees lands in
// Focus Time because that rule comes before Personal Time.
var categoryRules = []categoryRule{
	{models.CategoryOneOnOne, func(f eventFeatures) bool {
		return f.attendees == 1 || containsAny(f.title, "1:1", "1-1", "one on one")
	}},
	{models.CategoryTeam, func(f eventFeatures) bool {
		return f.attendees > 5 || containsAny(f.title, "team", "standup", "all hands")
	}},
	{models.CategoryFocus, func(f eventFeatures) bool {
		return f.attendees == 0 || containsAny(f.title, "focus", "work time", "blocked")
	}},
	{models.CategoryPersonal, func(f eventFeatures) bool {
		return containsAny(f.title, "lunch", "break", "personal")
	}},
	{models.CategorySmallGroup, func(f eventFeatures) bool {
		return f.attendees >= 1 && f.attendees <= 5
	}},
}

// CategoryOrder lists the categories in rule priority, ending with Other.
func CategoryOrder() []string {
	order := make([]string, 0, len(categoryRules)+1)
	for _, r := range categoryRules {
		order = append(order, r.category)
	}
	return append(order, models.CategoryOther)
}

// Categorize assigns the event to exactly one category.
func Categorize(e models.Event) string {
	f := eventFeatures{
		title:     strings.ToLower(e.Title),
		attendees: len(e.OtherAttendees()),
	}
	for _, r := range categoryRules {
		if r.matches(f) {
			return r.category
		}
	}
	return models.CategoryOther
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// CategoryBucket accumulates the events of one category.
type CategoryBucket struct {
	Hours    float64
	Count    int
	Meetings []models.MeetingDetail
}

// CollaboratorTally accumulates time shared with one person.
type CollaboratorTally struct {
	Hours float64
	Count int
}

// Categorized is the output of Categorize over an event set.
type Categorized struct {
	Buckets       map[string]*CategoryBucket
	Collaborators map[string]*CollaboratorTally
	TotalHours    float64
	EventCount    int
	// LargestMeeting is the highest attendee count seen.
	LargestMeeting int
}

// CategorizeAll partitions events into categories and tallies collaborators.
// Meetings inside each bucket are sorted by start time.
func CategorizeAll(events []models.Event) *Categorized {
	c := &Categorized{
		Buckets:       make(map[string]*CategoryBucket),
		Collaborators: make(map[string]*CollaboratorTally),
		EventCount:    len(events),
	}
	for _, e := range events {
		minutes := DurationMinutes(e)
		hours := float64(minutes) / 60
		category := Categorize(e)

		b, ok := c.Buckets[category]
		if !ok {
			b = &CategoryBucket{}
			c.Buckets[category] = b
		}
		b.Hours += hours
		b.Count++
		b.Meetings = append(b.Meetings, meetingDetail(e, minutes))
		c.TotalHours += hours

		others := e.OtherAttendees()
		if len(e.Attendees) > c.LargestMeeting {
			c.LargestMeeting = len(e.Attendees)
		}
		for _, a := range others {
			name := a.Name()
			t, ok := c.Collaborators[name]
			if !ok {
				t = &CollaboratorTally{}
				c.Collaborators[name] = t
			}
			t.Hours += hours
			t.Count++
		}
	}
	for _, b := range c.Buckets {
		sort.SliceStable(b.Meetings, func(i, j int) bool {
			return startKey(b.Meetings[i].StartTime).Before(startKey(b.Meetings[j].StartTime))
		})
	}
	return c
}

// Hours returns the total hours of a category, zero when absent.
func (c *Categorized) Hours(category string) float64 {
	if b, ok := c.Buckets[category]; ok {
		return b.Hours
	}
	return 0
}

func startKey(raw string) time.Time {
	t, _ := models.EventTime{DateTime: raw}.Time(time.UTC)
	if t.IsZero() {
		t, _ = models.EventTime{Date: raw}.Time(time.UTC)
	}
	return t
}

func meetingDetail(e models.Event, minutes int) models.MeetingDetail {
	attendees := e.Attendees
	if attendees == nil {
		attendees = []models.Person{}
	}
	link := e.HTMLLink
	if link == "" && e.ID != "" {
		link = "https://calendar.google.com/calendar/event?eid=" + e.ID
	}
	return models.MeetingDetail{
		ID:                 e.ID,
		Title:              e.Title,
		StartTime:          e.Start.Raw(),
		EndTime:            e.End.Raw(),
		Duration:           minutes,
		AttendeeCount:      len(e.Attendees),
		Attendees:          attendees,
		GoogleCalendarLink: link,
		Organizer:          e.Organizer,
	}
}

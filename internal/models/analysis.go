package models

import "time"

// Category names. The set is closed; External Meetings is reserved for
// model-provided narratives and is never assigned by the rule engine.
const (
	CategoryOneOnOne   = "1:1 Meetings"
	CategoryTeam       = "Team Meetings"
	CategoryExternal   = "External Meetings"
	CategoryFocus      = "Focus Time"
	CategoryPersonal   = "Personal Time"
	CategorySmallGroup = "Small Group Meetings"
	CategoryOther      = "Other"
)

// MeetingDetail is a snapshot of one event taken at analysis time.
type MeetingDetail struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	StartTime          string   `json:"startTime"`
	EndTime            string   `json:"endTime"`
	Duration           int      `json:"duration"` // minutes
	AttendeeCount      int      `json:"attendeeCount"`
	Attendees          []Person `json:"attendees"`
	GoogleCalendarLink string   `json:"googleCalendarLink"`
	Organizer          *Person  `json:"organizer,omitempty"`
}

// TimeCategory aggregates the events assigned to one category.
type TimeCategory struct {
	Name       string          `json:"name"`
	TotalHours float64         `json:"totalHours"`
	Percentage int             `json:"percentage"`
	EventCount int             `json:"eventCount"`
	Meetings   []MeetingDetail `json:"meetings"`
}

// Collaborator is a person the user shares events with.
type Collaborator struct {
	Name         string  `json:"name"`
	TotalHours   float64 `json:"totalHours"`
	MeetingCount int     `json:"meetingCount"`
}

// CalendarAnalysis is recomputed for every request and never persisted.
type CalendarAnalysis struct {
	Categories            []TimeCategory         `json:"categories"`
	TotalMeetingHours     float64                `json:"totalMeetingHours"`
	FocusHours            float64                `json:"focusHours"`
	KeyInsights           []string               `json:"keyInsights"`
	Suggestions           []string               `json:"suggestions"`
	ActionableSuggestions []ActionableSuggestion `json:"actionableSuggestions"`
	TopCollaborators      []Collaborator         `json:"topCollaborators"`
	LastUpdated           time.Time              `json:"lastUpdated"`
}

// ScheduleSuggestions is the result of analyzing upcoming events.
type ScheduleSuggestions struct {
	Suggestions              []string               `json:"suggestions"`
	Anomalies                []string               `json:"anomalies"`
	FocusTimeRecommendations []string               `json:"focusTimeRecommendations"`
	ActionableSuggestions    []ActionableSuggestion `json:"actionableSuggestions,omitempty"`
}

// SuggestionType is the closed set of intents the classifier assigns.
type SuggestionType string

const (
	SuggestionFocusTime         SuggestionType = "focus_time"
	SuggestionBreak             SuggestionType = "break"
	SuggestionReviewSession     SuggestionType = "review_session"
	SuggestionPlanningTime      SuggestionType = "planning_time"
	SuggestionMeetingScheduling SuggestionType = "meeting_scheduling"
	SuggestionWorkLifeBalance   SuggestionType = "work_life_balance"
	SuggestionGeneral           SuggestionType = "general"
)

// Valid reports whether t is one of the known types.
func (t SuggestionType) Valid() bool {
	switch t {
	case SuggestionFocusTime, SuggestionBreak, SuggestionReviewSession, SuggestionPlanningTime,
		SuggestionMeetingScheduling, SuggestionWorkLifeBalance, SuggestionGeneral:
		return true
	}
	return false
}

// TimeSlot is a proposed window on a specific date, in the user's timezone.
type TimeSlot struct {
	StartTime string `json:"startTime"` // HH:MM
	EndTime   string `json:"endTime"`   // HH:MM
	Date      string `json:"date"`      // YYYY-MM-DD
	Reasoning string `json:"reasoning"`
}

// ActionableSuggestion pairs a narrative suggestion with its classified
// intent. SuggestedTimeSlots is only set when Actionable is true.
type ActionableSuggestion struct {
	ID                 string         `json:"id"`
	Text               string         `json:"text"`
	Type               SuggestionType `json:"type"`
	Actionable         bool           `json:"actionable"`
	ActionLabel        string         `json:"actionLabel,omitempty"`
	ActionDescription  string         `json:"actionDescription,omitempty"`
	SuggestedTimeSlots []TimeSlot     `json:"suggestedTimeSlots,omitempty"`
}

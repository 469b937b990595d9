package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"timesherpa/internal/analysis"
	"timesherpa/internal/models"
)

var recurringKeywords = []string{"recurring", "weekly", "daily", "standup", "sync"}

type eventSummary struct {
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Duration      int    `json:"duration"` // minutes
	AttendeeCount int    `json:"attendeeCount"`
	Attendees     string `json:"attendees"`
	Organizer     string `json:"organizer"`
	IsRecurring   bool   `json:"isRecurring"`
	Time          string `json:"time"`
}

func summarize(events []models.Event) []eventSummary {
	out := make([]eventSummary, 0, len(events))
	for _, e := range events {
		names := make([]string, 0, len(e.Attendees))
		for _, a := range e.Attendees {
			switch {
			case a.Email != "":
				names = append(names, a.Email)
			case a.DisplayName != "":
				names = append(names, a.DisplayName)
			default:
				names = append(names, "Unknown")
			}
		}
		organizer := ""
		if e.Organizer != nil {
			organizer = e.Organizer.Email
			if organizer == "" {
				organizer = e.Organizer.DisplayName
			}
		}
		title := strings.ToLower(e.Title)
		recurring := false
		for _, k := range recurringKeywords {
			if strings.Contains(title, k) {
				recurring = true
				break
			}
		}
		out = append(out, eventSummary{
			Title:         e.Title,
			Description:   e.Description,
			Duration:      analysis.DurationMinutes(e),
			AttendeeCount: len(e.Attendees),
			Attendees:     strings.Join(names, ", "),
			Organizer:     organizer,
			IsRecurring:   recurring,
			Time:          e.Start.Raw(),
		})
	}
	return out
}

func workdayNames(ww models.WorkweekSettings) string {
	var days []string
	for d := time.Monday; ; d = (d + 1) % 7 {
		if ww.Includes(d) {
			days = append(days, d.String())
		}
		if d == time.Sunday {
			break
		}
	}
	if len(days) == 0 {
		return "none"
	}
	return strings.Join(days, ", ")
}

const historicalPromptTemplate = `You are analyzing calendar events for a leader/executive to help them understand their time allocation.
Their workdays are: %s.

Events to analyze: %s

Consider these categories when reasoning about the calendar:
- "1:1 Meetings": exactly one other attendee, or titles containing "1:1", "1-1", "one on one"
- "Team Meetings": more than 5 attendees, standups, team syncs, all-hands
- "External Meetings": attendees from other organizations, client/customer/vendor meetings
- "Focus Time": blocked time for deep work, no attendees, titles like "focus", "work time", "blocked"
- "Personal Time": lunch, breaks, personal appointments
- "Other": everything else

Provide 3-5 key insights about their time management patterns (meeting load,
balance between meetings and focus time, collaboration patterns, schedule
density, back-to-back meetings).

Provide 2-4 concrete suggestions. Phrase each as an action the person can put
on their calendar when possible, for example "Block 2-hour focus time on
Tuesday mornings", "Schedule a 30-min break at 1pm", "Consolidate the three
weekly status meetings", "Reserve Friday afternoon for weekly planning".

Extract the top 5 people the user spends the most time with.

Return ONLY valid JSON in this exact structure:
{
  "keyInsights": [
    "You spend 60%% of your time in meetings",
    "Consider blocking more focus time - you only have 8 hours this month"
  ],
  "suggestions": [
    "Block 2-hour focus time on Tuesday and Thursday mornings"
  ],
  "topCollaborators": [
    {"name": "John Doe", "totalHours": 5.5, "meetingCount": 4}
  ]
}
`

const upcomingPromptTemplate = `You are a productivity coach analyzing an executive's upcoming week to help them optimize their schedule.
Their workdays are: %s.

Upcoming events for the next 7 days: %s

Analyze these events and provide:

1. SUGGESTIONS: 2-4 specific, actionable recommendations based on patterns you see:
   - Back-to-back meeting warnings (3+ hours without breaks)
   - Meeting-heavy days that need balance
   - Missing regular 1:1s or team syncs
   - Work-life balance concerns (late meetings, no lunch breaks)

2. ANOMALIES: 1-3 unusual patterns compared to typical executive schedules.

3. FOCUS TIME RECOMMENDATIONS: 2-3 specific suggestions for deep work, naming
   days and times.

Return ONLY valid JSON in this exact structure:
{
  "suggestions": [
    "Tuesday has 6 hours of back-to-back meetings from 10am-4pm. Schedule a 30-min break at 1pm for lunch."
  ],
  "anomalies": [
    "No team meetings scheduled - unusual for a leadership role"
  ],
  "focusTimeRecommendations": [
    "Block Thursday 2-5pm for strategic planning or deep work"
  ]
}
`

// HistoricalPrompt builds the prompt for analyzing past events.
func HistoricalPrompt(events []models.Event, ww models.WorkweekSettings) (string, error) {
	payload, err := json.MarshalIndent(summarize(events), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode events: %w", err)
	}
	return fmt.Sprintf(historicalPromptTemplate, workdayNames(ww), payload), nil
}

// UpcomingPrompt builds the prompt for the next week's events.
func UpcomingPrompt(events []models.Event, ww models.WorkweekSettings) (string, error) {
	payload, err := json.MarshalIndent(summarize(events), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode events: %w", err)
	}
	return fmt.Sprintf(upcomingPromptTemplate, workdayNames(ww), payload), nil
}

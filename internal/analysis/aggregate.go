package analysis

import (
	"fmt"
	"sort"
	"time"

	"timesherpa/internal/models"
)

const (
	topCollaboratorLimit = 5
	busyEventThreshold   = 50
	lightEventThreshold  = 20
	largeMeetingSize     = 8
	// focus below this share of tracked time triggers a suggestion
	minFocusShare = 0.2
	// meeting percentage above this triggers a suggestion
	maxMeetingPercentage = 70
)

// Baseline suggestion texts. Their wording is chosen so the intent
// classifier maps them to focus_time, review_session and general.
const (
	SuggestBlockFocusTime = "Block dedicated focus time on your calendar for deep work - only %d%% of your tracked time is focus time"
	SuggestDelegate       = "Meetings take %d%% of your time - consider whether you can delegate or decline some meetings"
	SuggestLargeMeetings  = "Large meetings with more than 8 attendees are often inefficient - check whether every attendee needs to be there"
)

// Totals are the headline numbers of a categorized event set.
type Totals struct {
	TotalHours        float64
	FocusHours        float64
	PersonalHours     float64
	MeetingHours      float64
	MeetingPercentage int
}

// ComputeTotals derives meeting and focus hours. Meeting time is everything
// that is neither focus nor personal time.
func ComputeTotals(c *Categorized) Totals {
	focus := c.Hours(models.CategoryFocus)
	personal := c.Hours(models.CategoryPersonal)
	meeting := c.TotalHours - focus - personal
	if meeting < 0 {
		meeting = 0
	}
	return Totals{
		TotalHours:        c.TotalHours,
		FocusHours:        focus,
		PersonalHours:     personal,
		MeetingHours:      meeting,
		MeetingPercentage: percent(meeting, c.TotalHours),
	}
}

// Aggregate is the deterministic analysis used on its own and as the
// safety net under the model-backed analysis.
func Aggregate(events []models.Event, now time.Time) models.CalendarAnalysis {
	c := CategorizeAll(events)
	totals := ComputeTotals(c)
	collaborators := TopCollaborators(c, topCollaboratorLimit)

	return models.CalendarAnalysis{
		Categories:        Categories(c),
		TotalMeetingHours: round1(totals.MeetingHours),
		FocusHours:        round1(totals.FocusHours),
		KeyInsights:       KeyInsights(c, totals, collaborators),
		Suggestions:       BaselineSuggestions(c, totals),
		TopCollaborators:  collaborators,
		LastUpdated:       now,
	}
}

// Categories converts the buckets into TimeCategory values ordered by hours,
// largest first. Ties keep rule priority order.
func Categories(c *Categorized) []models.TimeCategory {
	out := make([]models.TimeCategory, 0, len(c.Buckets))
	for _, name := range CategoryOrder() {
		b, ok := c.Buckets[name]
		if !ok {
			continue
		}
		out = append(out, models.TimeCategory{
			Name:       name,
			TotalHours: round1(b.Hours),
			Percentage: percent(b.Hours, c.TotalHours),
			EventCount: b.Count,
			Meetings:   b.Meetings,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalHours > out[j].TotalHours
	})
	return out
}

// TopCollaborators ranks people by shared hours, descending.
func TopCollaborators(c *Categorized, limit int) []models.Collaborator {
	out := make([]models.Collaborator, 0, len(c.Collaborators))
	for name, t := range c.Collaborators {
		out = append(out, models.Collaborator{
			Name:         name,
			TotalHours:   t.Hours,
			MeetingCount: t.Count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalHours != out[j].TotalHours {
			return out[i].TotalHours > out[j].TotalHours
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].TotalHours = round1(out[i].TotalHours)
	}
	return out
}

// KeyInsights produces the fixed-threshold narrative.
func KeyInsights(c *Categorized, totals Totals, top []models.Collaborator) []string {
	insights := []string{
		fmt.Sprintf("You spent %d%% of your time in meetings (%.1f hours)", totals.MeetingPercentage, totals.MeetingHours),
		fmt.Sprintf("You have %.1f hours of focus time scheduled", totals.FocusHours),
	}
	switch {
	case c.EventCount > busyEventThreshold:
		insights = append(insights, "Your calendar is very busy - consider delegating or declining some meetings")
	case c.EventCount < lightEventThreshold:
		insights = append(insights, "Your calendar has room for more strategic activities")
	default:
		insights = append(insights, "Your meeting load appears balanced")
	}
	if len(top) > 0 {
		insights = append(insights, fmt.Sprintf("You spend the most time with %s (%.1f hours)", top[0].Name, top[0].TotalHours))
	}
	return insights
}

// BaselineSuggestions returns the heuristic suggestions used when no model
// suggestions are available.
func BaselineSuggestions(c *Categorized, totals Totals) []string {
	suggestions := []string{}
	if totals.FocusHours < totals.TotalHours*minFocusShare {
		suggestions = append(suggestions, fmt.Sprintf(SuggestBlockFocusTime, percent(totals.FocusHours, totals.TotalHours)))
	}
	if totals.MeetingPercentage > maxMeetingPercentage {
		suggestions = append(suggestions, fmt.Sprintf(SuggestDelegate, totals.MeetingPercentage))
	}
	if c.LargestMeeting > largeMeetingSize {
		suggestions = append(suggestions, SuggestLargeMeetings)
	}
	return suggestions
}

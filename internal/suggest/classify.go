// Package suggest turns narrative suggestions into typed, schedulable
// actions and searches the calendar for time slots to put them in.
package suggest

import (
	"strings"

	"timesherpa/internal/models"
)

// Intent is the classifier's verdict on a suggestion text.
type Intent struct {
	Type              models.SuggestionType
	Actionable        bool
	ActionLabel       string
	ActionDescription string
}

type intentRule struct {
	kind    models.SuggestionType
	matches func(text string) bool
}

// intentRules is evaluated top-down on the lower-cased text and the first
// match wins. review_session must stay ahead of meeting_scheduling: "consolidate
// your meetings" mentions meetings but is not a request to schedule one.
// Stems ("consolidat", "delegat") catch the -ing and -ion forms.
var intentRules = []intentRule{
	{models.SuggestionFocusTime, func(s string) bool {
		return has(s, "focus time") || has(s, "deep work") ||
			(has(s, "block") && (has(s, "time") || has(s, "hour")))
	}},
	{models.SuggestionBreak, func(s string) bool {
		return has(s, "break") || has(s, "lunch")
	}},
	{models.SuggestionReviewSession, func(s string) bool {
		return (has(s, "consolidat") || has(s, "delegat")) && has(s, "meeting")
	}},
	{models.SuggestionMeetingScheduling, func(s string) bool {
		return has(s, "1:1") || has(s, "1-1") || (has(s, "schedule") && has(s, "meeting"))
	}},
	{models.SuggestionPlanningTime, func(s string) bool {
		return has(s, "plan") || has(s, "strategy") || (has(s, "review") && !has(s, "meeting"))
	}},
	{models.SuggestionWorkLifeBalance, func(s string) bool {
		return has(s, "work-life") || has(s, "balance") || (has(s, "late") && has(s, "meeting"))
	}},
}

func has(s, sub string) bool { return strings.Contains(s, sub) }

// intentLabels holds the action metadata per type. Types missing from the
// table are advisory only.
var intentLabels = map[models.SuggestionType]Intent{
	models.SuggestionFocusTime: {
		Actionable:        true,
		ActionLabel:       "Block Focus Time",
		ActionDescription: "Reserve a 2-3 hour block for deep work",
	},
	models.SuggestionBreak: {
		Actionable:        true,
		ActionLabel:       "Schedule Break",
		ActionDescription: "Protect a break at the time mentioned",
	},
	models.SuggestionReviewSession: {
		Actionable:        true,
		ActionLabel:       "Schedule Review Session",
		ActionDescription: "Set aside an hour to review, consolidate or delegate recurring meetings",
	},
	models.SuggestionMeetingScheduling: {
		Actionable:        true,
		ActionLabel:       "Schedule Meeting",
		ActionDescription: "Find an open hour for this meeting",
	},
	models.SuggestionPlanningTime: {
		Actionable:        true,
		ActionLabel:       "Block Planning Time",
		ActionDescription: "Reserve time for strategic planning",
	},
}

// Classify maps free text to an intent. Matching is case-insensitive.
func Classify(text string) Intent {
	lower := strings.ToLower(text)
	kind := models.SuggestionGeneral
	for _, r := range intentRules {
		if r.matches(lower) {
			kind = r.kind
			break
		}
	}
	intent := intentLabels[kind]
	intent.Type = kind
	return intent
}

// IntentOrder lists the types in rule priority, ending with general.
func IntentOrder() []models.SuggestionType {
	order := make([]models.SuggestionType, 0, len(intentRules)+1)
	for _, r := range intentRules {
		order = append(order, r.kind)
	}
	return append(order, models.SuggestionGeneral)
}

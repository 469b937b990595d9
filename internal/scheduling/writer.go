// Package scheduling turns accepted suggestions into calendar events.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"timesherpa/internal/metrics"
	"timesherpa/internal/models"
)

// Provenance keys stored in the private extended properties of every
// event the writer creates.
const (
	PropGenerated      = "timeSherpaGenerated"
	PropSuggestionID   = "suggestionId"
	PropSuggestionType = "suggestionType"
)

// EventBody is the provider-neutral event to insert.
type EventBody struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	ColorID     string
	Properties  map[string]string
}

// InsertedEvent identifies the created event.
type InsertedEvent struct {
	ID       string
	HTMLLink string
}

// EventInserter writes one event to the user's calendar.
type EventInserter interface {
	InsertEvent(ctx context.Context, token string, body EventBody) (*InsertedEvent, error)
}

// Request is an accepted suggestion and the slot chosen for it.
type Request struct {
	Suggestion models.ActionableSuggestion `json:"suggestion"`
	TimeSlot   models.TimeSlot             `json:"timeSlot"`
}

// Result reports the outcome of one scheduling attempt.
type Result struct {
	Success   bool   `json:"success"`
	EventID   string `json:"eventId,omitempty"`
	EventLink string `json:"eventLink,omitempty"`
	Error     string `json:"error,omitempty"`
	// Invalid marks a rejected request as opposed to a failed write.
	Invalid   bool   `json:"-"`
}

// ValidationError reports a malformed suggestion or time slot.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type template struct {
	summary string
	body    string
	colorID string
}

var templates = map[models.SuggestionType]template{
	models.SuggestionFocusTime: {
		summary: "Focus Time - Deep Work",
		body:    "Scheduled based on TimeSherpa insight: \"%s\"\n\nThis time is blocked for deep work and strategic thinking.",
		colorID: "9",
	},
	models.SuggestionBreak: {
		summary: "Break Time",
		body:    "Scheduled based on TimeSherpa insight: \"%s\"\n\nTake a break to recharge and maintain productivity.",
		colorID: "10",
	},
	models.SuggestionReviewSession: {
		summary: "Meeting Review Session",
		body: "Scheduled based on TimeSherpa insight: \"%s\"\n\nUse this time to:\n" +
			"• Review recurring meetings for consolidation opportunities\n" +
			"• Identify meetings that can be delegated\n" +
			"• Optimize your meeting schedule",
		colorID: "6",
	},
	models.SuggestionPlanningTime: {
		summary: "Strategic Planning Time",
		body: "Scheduled based on TimeSherpa insight: \"%s\"\n\nUse this time for:\n" +
			"• Strategic planning and preparation\n" +
			"• Weekly/monthly planning\n" +
			"• Goal setting and review",
		colorID: "8",
	},
	models.SuggestionMeetingScheduling: {
		summary: "Scheduled Meeting",
		body:    "Meeting scheduled based on TimeSherpa insight: \"%s\"\n\nPlease add attendees and agenda details.",
		colorID: "11",
	},
}

var defaultTemplate = template{
	summary: "TimeSherpa Suggestion",
	body:    "Scheduled based on insight: \"%s\"",
	colorID: "1",
}

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// Writer schedules suggestions through an EventInserter.
type Writer struct {
	inserter EventInserter
	loc      *time.Location
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewWriter returns a Writer that interprets slot dates and times in loc.
func NewWriter(logger *slog.Logger, inserter EventInserter, loc *time.Location, m *metrics.Metrics) *Writer {
	if loc == nil {
		loc = time.UTC
	}
	return &Writer{inserter: inserter, loc: loc, logger: logger, metrics: m}
}

// Schedule creates exactly one event for the request. It never returns an
// error: failures are reported through Result.
func (w *Writer) Schedule(ctx context.Context, token string, req Request) Result {
	body, err := w.Body(req)
	if err != nil {
		w.logger.Warn("Rejected schedule request", "error", err)
		w.metrics.ObserveScheduled(string(req.Suggestion.Type), false)
		return Result{Error: err.Error(), Invalid: true}
	}

	created, err := w.inserter.InsertEvent(ctx, token, body)
	if err != nil {
		w.logger.Error("Failed to schedule calendar event", "suggestionId", req.Suggestion.ID, "error", err)
		w.metrics.ObserveScheduled(string(req.Suggestion.Type), false)
		return Result{Error: err.Error()}
	}
	if created == nil {
		created = &InsertedEvent{}
	}

	w.logger.Info("Scheduled calendar event", "suggestionId", req.Suggestion.ID, "type", req.Suggestion.Type, "eventID", created.ID)
	w.metrics.ObserveScheduled(string(req.Suggestion.Type), true)
	return Result{Success: true, EventID: created.ID, EventLink: created.HTMLLink}
}

// Body validates the request and builds the event to insert.
func (w *Writer) Body(req Request) (EventBody, error) {
	s := req.Suggestion
	if strings.TrimSpace(s.ID) == "" {
		return EventBody{}, &ValidationError{Field: "suggestion.id", Reason: "required"}
	}
	if s.Type != "" && !s.Type.Valid() {
		return EventBody{}, &ValidationError{Field: "suggestion.type", Reason: fmt.Sprintf("unknown type %q", s.Type)}
	}
	start, end, err := w.slotTimes(req.TimeSlot)
	if err != nil {
		return EventBody{}, err
	}

	t, ok := templates[s.Type]
	if !ok {
		t = defaultTemplate
	}
	return EventBody{
		Summary:     t.summary,
		Description: fmt.Sprintf(t.body, s.Text),
		Start:       start,
		End:         end,
		TimeZone:    w.loc.String(),
		ColorID:     t.colorID,
		Properties: map[string]string{
			PropGenerated:      "true",
			PropSuggestionID:   s.ID,
			PropSuggestionType: string(s.Type),
		},
	}, nil
}

func (w *Writer) slotTimes(slot models.TimeSlot) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", slot.Date, w.loc)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: "timeSlot.date", Reason: "expected YYYY-MM-DD"}
	}
	start, err := at(day, slot.StartTime, w.loc)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: "timeSlot.startTime", Reason: err.Error()}
	}
	end, err := at(day, slot.EndTime, w.loc)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: "timeSlot.endTime", Reason: err.Error()}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, &ValidationError{Field: "timeSlot", Reason: "end must be after start"}
	}
	return start, end, nil
}

func at(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	m := clockPattern.FindStringSubmatch(clock)
	if m == nil {
		return time.Time{}, errors.New("expected HH:MM")
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

package ai

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"timesherpa/internal/analysis"
	"timesherpa/internal/metrics"
	"timesherpa/internal/models"
)

const (
	modeHistory  = "history"
	modeUpcoming = "upcoming"
)

// Fallback texts for upcoming analyses when the model result is unusable.
const (
	FallbackUpcomingSuggestion  = "Review your upcoming schedule for optimization opportunities."
	FallbackFocusRecommendation = "Consider blocking time for focused work."
)

type historicalResponse struct {
	KeyInsights      []string         `json:"keyInsights"`
	Suggestions      []string         `json:"suggestions"`
	TopCollaborators []aiCollaborator `json:"topCollaborators"`
}

type aiCollaborator struct {
	Name         string  `json:"name"`
	TotalHours   float64 `json:"totalHours"`
	Hours        float64 `json:"hours"` // older prompt shape
	MeetingCount int     `json:"meetingCount"`
}

type upcomingResponse struct {
	Suggestions              []string `json:"suggestions"`
	Anomalies                []string `json:"anomalies"`
	FocusTimeRecommendations []string `json:"focusTimeRecommendations"`
}

// Analyzer produces analyses that always succeed: the model narrates when
// it can, and the deterministic aggregate stands in when it cannot.
type Analyzer struct {
	gen     Generator
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAnalyzer returns an Analyzer. gen may be nil, which behaves like a
// generator without an API key.
func NewAnalyzer(logger *slog.Logger, gen Generator, m *metrics.Metrics) *Analyzer {
	return &Analyzer{gen: gen, logger: logger, metrics: m, now: time.Now}
}

// Analyze returns the analysis of past events. Categories, meeting details,
// counts and hours always come from the deterministic aggregate; only
// insights, suggestions and collaborator ranking may come from the model.
func (a *Analyzer) Analyze(ctx context.Context, events []models.Event, ww models.WorkweekSettings) models.CalendarAnalysis {
	base := analysis.Aggregate(events, a.now())

	result := a.historical(ctx, events, ww)
	if !result.IsOk() {
		a.logger.Warn("Using fallback calendar analysis", "reason", result.Reason, "events", len(events))
		a.metrics.ObserveAnalysis(modeHistory, "fallback")
		return base
	}
	a.metrics.ObserveAnalysis(modeHistory, "model")
	return merge(base, result.Value)
}

func (a *Analyzer) historical(ctx context.Context, events []models.Event, ww models.WorkweekSettings) Result[historicalResponse] {
	if len(events) == 0 {
		return Fallback[historicalResponse]("no events to analyze")
	}
	prompt, err := HistoricalPrompt(events, ww)
	if err != nil {
		return Fallback[historicalResponse](err.Error())
	}
	text, err := a.generate(ctx, prompt)
	if err != nil {
		return Fallback[historicalResponse](err.Error())
	}
	parsed := ExtractJSON[historicalResponse](text)
	if !parsed.IsOk() {
		return parsed
	}
	if len(nonEmpty(parsed.Value.KeyInsights)) == 0 && len(nonEmpty(parsed.Value.Suggestions)) == 0 {
		return Fallback[historicalResponse]("response has no insights or suggestions")
	}
	return parsed
}

// AnalyzeUpcoming returns suggestions, anomalies and focus recommendations
// for upcoming events, or the fixed fallback triple.
func (a *Analyzer) AnalyzeUpcoming(ctx context.Context, events []models.Event, ww models.WorkweekSettings) models.ScheduleSuggestions {
	result := a.upcoming(ctx, events, ww)
	if !result.IsOk() {
		a.logger.Warn("Using fallback upcoming analysis", "reason", result.Reason, "events", len(events))
		a.metrics.ObserveAnalysis(modeUpcoming, "fallback")
		return FallbackUpcoming()
	}
	a.metrics.ObserveAnalysis(modeUpcoming, "model")
	v := result.Value
	return models.ScheduleSuggestions{
		Suggestions:              nonEmpty(v.Suggestions),
		Anomalies:                nonEmpty(v.Anomalies),
		FocusTimeRecommendations: nonEmpty(v.FocusTimeRecommendations),
	}
}

func (a *Analyzer) upcoming(ctx context.Context, events []models.Event, ww models.WorkweekSettings) Result[upcomingResponse] {
	if len(events) == 0 {
		return Fallback[upcomingResponse]("no events to analyze")
	}
	prompt, err := UpcomingPrompt(events, ww)
	if err != nil {
		return Fallback[upcomingResponse](err.Error())
	}
	text, err := a.generate(ctx, prompt)
	if err != nil {
		return Fallback[upcomingResponse](err.Error())
	}
	parsed := ExtractJSON[upcomingResponse](text)
	if !parsed.IsOk() {
		return parsed
	}
	if len(nonEmpty(parsed.Value.Suggestions)) == 0 && len(nonEmpty(parsed.Value.FocusTimeRecommendations)) == 0 {
		return Fallback[upcomingResponse]("response has no suggestions")
	}
	return parsed
}

// FallbackUpcoming is the generic upcoming result.
func FallbackUpcoming() models.ScheduleSuggestions {
	return models.ScheduleSuggestions{
		Suggestions:              []string{FallbackUpcomingSuggestion},
		Anomalies:                []string{},
		FocusTimeRecommendations: []string{FallbackFocusRecommendation},
	}
}

func (a *Analyzer) generate(ctx context.Context, prompt string) (string, error) {
	if a.gen == nil {
		return "", ErrMissingAPIKey
	}
	start := time.Now()
	text, err := a.gen.Generate(ctx, prompt)
	if !errors.Is(err, ErrMissingAPIKey) {
		a.metrics.ObserveModelCall(err, time.Since(start))
	}
	if err != nil {
		if !errors.Is(err, ErrMissingAPIKey) {
			a.logger.Error("Model request failed", "error", err)
		}
		return "", err
	}
	a.logger.Debug("Model response received", "bytes", len(text))
	return text, nil
}

func merge(base models.CalendarAnalysis, r historicalResponse) models.CalendarAnalysis {
	if insights := nonEmpty(r.KeyInsights); len(insights) > 0 {
		base.KeyInsights = insights
	}
	if suggestions := nonEmpty(r.Suggestions); len(suggestions) > 0 {
		base.Suggestions = suggestions
	}
	var collaborators []models.Collaborator
	for _, c := range r.TopCollaborators {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		hours := c.TotalHours
		if hours == 0 {
			hours = c.Hours
		}
		collaborators = append(collaborators, models.Collaborator{
			Name:         name,
			TotalHours:   math.Round(hours*10) / 10,
			MeetingCount: c.MeetingCount,
		})
		if len(collaborators) == 5 {
			break
		}
	}
	if len(collaborators) > 0 {
		base.TopCollaborators = collaborators
	}
	return base
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

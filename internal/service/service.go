// Package service wires the event source, analyzer, suggestion builder,
// trend calculator and scheduling writer into the request-level
// operations used by the CLI and the HTTP server.
package service

import (
	"context"
	"log/slog"
	"time"

	"timesherpa/internal/metrics"
	"timesherpa/internal/models"
	"timesherpa/internal/scheduling"
	"timesherpa/internal/settings"
	"timesherpa/internal/suggest"
	"timesherpa/internal/trends"
	"timesherpa/internal/workweek"
)

const (
	historyWindow  = 30 * 24 * time.Hour
	upcomingWindow = 7 * 24 * time.Hour
	// slot search looks at up to 14 calendar days after today
	busyWindowDays = workweek.MaxLookahead
)

// Analyzer produces analyses that never fail.
type Analyzer interface {
	Analyze(ctx context.Context, events []models.Event, ww models.WorkweekSettings) models.CalendarAnalysis
	AnalyzeUpcoming(ctx context.Context, events []models.Event, ww models.WorkweekSettings) models.ScheduleSuggestions
}

// Service holds the collaborators of every operation.
type Service struct {
	source    trends.EventSource
	analyzer  Analyzer
	builder   *suggest.Builder
	trends    *trends.Calculator
	writer    *scheduling.Writer
	workweeks settings.Source
	fallback  models.WorkweekSettings
	metrics   *metrics.Metrics
	loc       *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

// Options collects the dependencies of New.
type Options struct {
	Source    trends.EventSource
	Analyzer  Analyzer
	Builder   *suggest.Builder
	Trends    *trends.Calculator
	Writer    *scheduling.Writer
	Workweeks settings.Source

	// DefaultWorkweek is used when a lookup fails. Nil means Monday to Friday.
	DefaultWorkweek *models.WorkweekSettings
	Metrics         *metrics.Metrics
	Location        *time.Location
}

// New returns a Service.
func New(logger *slog.Logger, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	fallback := models.DefaultWorkweek()
	if opts.DefaultWorkweek != nil {
		fallback = *opts.DefaultWorkweek
	}
	workweeks := opts.Workweeks
	if workweeks == nil {
		workweeks = settings.StaticSource{Workweek: fallback}
	}
	return &Service{
		source:    opts.Source,
		analyzer:  opts.Analyzer,
		builder:   opts.Builder,
		trends:    opts.Trends,
		writer:    opts.Writer,
		workweeks: workweeks,
		fallback:  fallback,
		metrics:   opts.Metrics,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

// Analysis analyzes the last 30 days and attaches actionable suggestions
// with slots over the coming two weeks. A calendar that cannot be read is
// analyzed as empty; only a cancelled context is returned as an error.
func (s *Service) Analysis(ctx context.Context, token, userID string) (models.CalendarAnalysis, error) {
	ww := s.workweek(ctx, userID)
	now := s.now()

	events, err := s.source.ListEvents(ctx, token, now.Add(-historyWindow), now)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.CalendarAnalysis{}, ctxErr
		}
		s.logger.Warn("Failed to fetch calendar events, analyzing an empty calendar", "userID", userID, "error", err)
		events = nil
	}
	s.logger.Info("Analyzing calendar", "userID", userID, "events", len(events))

	result := s.analyzer.Analyze(ctx, events, ww)
	busy := s.busyCalendar(ctx, token, now)
	result.ActionableSuggestions = s.actionable(result.Suggestions, busy, ww, now)
	return result, nil
}

// Upcoming analyzes the next 7 days. Actionable suggestions are built from
// both the suggestions and the focus time recommendations. As with
// Analysis, an unreadable calendar is treated as empty.
func (s *Service) Upcoming(ctx context.Context, token, userID string) (models.ScheduleSuggestions, error) {
	ww := s.workweek(ctx, userID)
	now := s.now()
	searchStart, searchEnd := s.searchRange(now)

	events, err := s.source.ListEvents(ctx, token, now, searchEnd)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.ScheduleSuggestions{}, ctxErr
		}
		s.logger.Warn("Failed to fetch upcoming events, analyzing an empty calendar", "userID", userID, "error", err)
		events = nil
	}

	var week []models.Event
	limit := now.Add(upcomingWindow)
	for _, e := range events {
		if start, ok := e.Start.Time(s.loc); ok && start.Before(limit) {
			week = append(week, e)
		}
	}
	s.logger.Info("Analyzing upcoming week", "userID", userID, "events", len(week))

	result := s.analyzer.AnalyzeUpcoming(ctx, week, ww)
	texts := append(append([]string{}, result.Suggestions...), result.FocusTimeRecommendations...)
	result.ActionableSuggestions = s.build(texts, events, ww, searchStart)
	return result, nil
}

// WeekOverWeek compares the trailing four weeks.
func (s *Service) WeekOverWeek(ctx context.Context, token, userID string) (*trends.Report, error) {
	return s.trends.Report(ctx, token, s.workweek(ctx, userID))
}

// ScheduleSuggestion writes one accepted suggestion to the calendar.
func (s *Service) ScheduleSuggestion(ctx context.Context, token string, req scheduling.Request) scheduling.Result {
	return s.writer.Schedule(ctx, token, req)
}

func (s *Service) workweek(ctx context.Context, userID string) models.WorkweekSettings {
	ww, err := s.workweeks.GetUserWorkweek(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to load workweek, using default", "userID", userID, "error", err)
		return s.fallback
	}
	return ww
}

// searchRange is [start of tomorrow, start of tomorrow + 14 days) in the
// primary timezone.
func (s *Service) searchRange(now time.Time) (time.Time, time.Time) {
	start := workweek.StartOfDay(now.In(s.loc)).AddDate(0, 0, 1)
	return start, start.AddDate(0, 0, busyWindowDays)
}

func (s *Service) busyCalendar(ctx context.Context, token string, now time.Time) []models.Event {
	start, end := s.searchRange(now)
	events, err := s.source.ListEvents(ctx, token, start, end)
	if err != nil {
		s.logger.Warn("Failed to fetch upcoming events for slot search", "error", err)
		return nil
	}
	return events
}

func (s *Service) actionable(texts []string, busy []models.Event, ww models.WorkweekSettings, now time.Time) []models.ActionableSuggestion {
	start, _ := s.searchRange(now)
	return s.build(texts, busy, ww, start)
}

func (s *Service) build(texts []string, busy []models.Event, ww models.WorkweekSettings, from time.Time) []models.ActionableSuggestion {
	out := s.builder.Build(texts, busy, ww, from)
	for _, a := range out {
		s.metrics.ObserveSuggestion(string(a.Type))
	}
	return out
}

// Package trends compares weekly analyses of the trailing four weeks.
package trends

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"timesherpa/internal/models"
	"timesherpa/internal/workweek"
)

// WeekCount is the number of trailing 7-day windows in a report.
const WeekCount = 4

// stableThreshold is the smallest |changePercent| that counts as a move.
const stableThreshold = 5

// Direction of a TrendMetric.
type Direction string

const (
	Up     Direction = "up"
	Down   Direction = "down"
	Stable Direction = "stable"
)

// TrendMetric compares the most recent week against the one before it.
type TrendMetric struct {
	Change        float64   `json:"change"`
	Direction     Direction `json:"direction"`
	ChangePercent int       `json:"changePercent"`
}

// Trends holds one metric per tracked figure.
type Trends struct {
	MeetingHours        TrendMetric `json:"meetingHours"`
	FocusHours          TrendMetric `json:"focusHours"`
	FocusTimePercentage TrendMetric `json:"focusTimePercentage"`
	EventCount          TrendMetric `json:"eventCount"`
}

// WeekSummary is the slice of a CalendarAnalysis kept per week.
type WeekSummary struct {
	TotalMeetingHours   float64               `json:"totalMeetingHours"`
	FocusHours          float64               `json:"focusHours"`
	FocusTimePercentage int                   `json:"focusTimePercentage"`
	Categories          []models.TimeCategory `json:"categories"`
	TopCategory         string                `json:"topCategory"`
	EventCount          int                   `json:"eventCount"`
}

// WeekEntry is one 7-day window.
type WeekEntry struct {
	WeekStart time.Time   `json:"weekStart"`
	WeekEnd   time.Time   `json:"weekEnd"`
	WeekLabel string      `json:"weekLabel"`
	Analysis  WeekSummary `json:"analysis"`
}

// Report is the week-over-week response. Weeks are most recent first.
type Report struct {
	Weeks       []WeekEntry `json:"weeks"`
	Trends      Trends      `json:"trends"`
	GeneratedAt time.Time   `json:"generatedAt"`
}

// Metric computes the trend between current and previous values.
func Metric(current, previous float64) TrendMetric {
	change := current - previous
	pct := 0
	if previous != 0 {
		pct = int(math.Round(change / previous * 100))
	}
	dir := Stable
	if pct <= -stableThreshold || pct >= stableThreshold {
		dir = Up
		if change < 0 {
			dir = Down
		}
	}
	return TrendMetric{
		Change:        math.Round(change*10) / 10,
		Direction:     dir,
		ChangePercent: pct,
	}
}

// Compute compares weeks[0] (most recent) with weeks[1]. With fewer than
// two weeks every metric is zero and stable.
func Compute(weeks []WeekSummary) Trends {
	if len(weeks) < 2 {
		zero := TrendMetric{Direction: Stable}
		return Trends{MeetingHours: zero, FocusHours: zero, FocusTimePercentage: zero, EventCount: zero}
	}
	cur, prev := weeks[0], weeks[1]
	return Trends{
		MeetingHours:        Metric(cur.TotalMeetingHours, prev.TotalMeetingHours),
		FocusHours:          Metric(cur.FocusHours, prev.FocusHours),
		FocusTimePercentage: Metric(float64(cur.FocusTimePercentage), float64(prev.FocusTimePercentage)),
		EventCount:          Metric(float64(cur.EventCount), float64(prev.EventCount)),
	}
}

// Summarize reduces an analysis of one week's events.
func Summarize(a models.CalendarAnalysis, eventCount int) WeekSummary {
	focusPct := 0
	if denom := a.TotalMeetingHours + a.FocusHours; denom > 0 {
		focusPct = int(math.Round(a.FocusHours / denom * 100))
	}
	top := "None"
	if len(a.Categories) > 0 {
		top = a.Categories[0].Name
	}
	categories := a.Categories
	if categories == nil {
		categories = []models.TimeCategory{}
	}
	return WeekSummary{
		TotalMeetingHours:   a.TotalMeetingHours,
		FocusHours:          a.FocusHours,
		FocusTimePercentage: focusPct,
		Categories:          categories,
		TopCategory:         top,
		EventCount:          eventCount,
	}
}

// EventSource lists events in a time range.
type EventSource interface {
	ListEvents(ctx context.Context, token string, start, end time.Time) ([]models.Event, error)
}

// Analyzer turns a week's events into an analysis.
type Analyzer interface {
	Analyze(ctx context.Context, events []models.Event, ww models.WorkweekSettings) models.CalendarAnalysis
}

// Window is the [Start, End] range of week i, counting back from now.
// Week 0 ends at the end of today and starts at the beginning of the
// day six days earlier.
func Window(now time.Time, i int) (start, end time.Time) {
	day := workweek.StartOfDay(now).AddDate(0, 0, -7*i)
	end = day.AddDate(0, 0, 1).Add(-time.Millisecond)
	start = day.AddDate(0, 0, -6)
	return start, end
}

// Label formats a week start as "Week of Jan 2".
func Label(start time.Time) string {
	return "Week of " + start.Format("Jan 2")
}

// Calculator fetches and analyzes the trailing weeks.
type Calculator struct {
	source      EventSource
	analyzer    Analyzer
	logger      *slog.Logger
	loc         *time.Location
	concurrency int
	now         func() time.Time
}

// NewCalculator returns a Calculator. concurrency bounds the number of
// week windows fetched at once; values below 1 mean sequential.
func NewCalculator(logger *slog.Logger, source EventSource, analyzer Analyzer, loc *time.Location, concurrency int) *Calculator {
	if concurrency < 1 {
		concurrency = 1
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{
		source:      source,
		analyzer:    analyzer,
		logger:      logger,
		loc:         loc,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Report builds the four-week report. Any fetch failure fails the report.
func (c *Calculator) Report(ctx context.Context, token string, ww models.WorkweekSettings) (*Report, error) {
	now := c.now().In(c.loc)

	// Oldest first: slot 0 holds the window furthest in the past.
	weeks := make([]WeekEntry, WeekCount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for slot := 0; slot < WeekCount; slot++ {
		back := WeekCount - 1 - slot
		g.Go(func() error {
			start, end := Window(now, back)
			events, err := c.source.ListEvents(gctx, token, start, end)
			if err != nil {
				return fmt.Errorf("failed to fetch events for %s: %w", Label(start), err)
			}
			a := c.analyzer.Analyze(gctx, events, ww)
			weeks[slot] = WeekEntry{
				WeekStart: start,
				WeekEnd:   end,
				WeekLabel: Label(start),
				Analysis:  Summarize(a, len(events)),
			}
			c.logger.Debug("Analyzed week", "week", weeks[slot].WeekLabel, "events", len(events))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.Reverse(weeks)
	summaries := make([]WeekSummary, len(weeks))
	for i, w := range weeks {
		summaries[i] = w.Analysis
	}
	return &Report{
		Weeks:       weeks,
		Trends:      Compute(summaries),
		GeneratedAt: c.now(),
	}, nil
}

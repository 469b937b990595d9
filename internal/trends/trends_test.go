package trends

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesherpa/internal/models"
)

func TestMetric(t *testing.T) {
	tests := []struct {
		name      string
		cur, prev float64
		want      TrendMetric
	}{
		{"down", 10, 12, TrendMetric{Change: -2, Direction: Down, ChangePercent: -17}},
		{"up", 12, 10, TrendMetric{Change: 2, Direction: Up, ChangePercent: 20}},
		{"small change is stable", 10, 10.2, TrendMetric{Change: -0.2, Direction: Stable, ChangePercent: -2}},
		{"five percent moves", 10.5, 10, TrendMetric{Change: 0.5, Direction: Up, ChangePercent: 5}},
		{"previous zero", 5, 0, TrendMetric{Change: 5, Direction: Stable, ChangePercent: 0}},
		{"both zero", 0, 0, TrendMetric{Direction: Stable}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Metric(tt.cur, tt.prev))
		})
	}
}

func TestCompute(t *testing.T) {
	weeks := []WeekSummary{
		{TotalMeetingHours: 10, FocusHours: 5, FocusTimePercentage: 33, EventCount: 12},
		{TotalMeetingHours: 12, FocusHours: 4.9, FocusTimePercentage: 29, EventCount: 12},
		{TotalMeetingHours: 8},
		{TotalMeetingHours: 9},
	}
	got := Compute(weeks)
	assert.Equal(t, TrendMetric{Change: -2, Direction: Down, ChangePercent: -17}, got.MeetingHours)
	assert.Equal(t, Stable, got.FocusHours.Direction)
	assert.Equal(t, TrendMetric{Change: 4, Direction: Up, ChangePercent: 14}, got.FocusTimePercentage)
	assert.Equal(t, TrendMetric{Change: 0, Direction: Stable, ChangePercent: 0}, got.EventCount)
}

func TestComputeNeedsTwoWeeks(t *testing.T) {
	zero := TrendMetric{Direction: Stable}
	want := Trends{MeetingHours: zero, FocusHours: zero, FocusTimePercentage: zero, EventCount: zero}
	assert.Equal(t, want, Compute(nil))
	assert.Equal(t, want, Compute([]WeekSummary{{TotalMeetingHours: 40, EventCount: 3}}))
}

func TestSummarize(t *testing.T) {
	s := Summarize(models.CalendarAnalysis{
		TotalMeetingHours: 20,
		FocusHours:        10,
		Categories:        []models.TimeCategory{{Name: models.CategoryTeam}, {Name: models.CategoryFocus}},
	}, 7)
	assert.Equal(t, 33, s.FocusTimePercentage)
	assert.Equal(t, models.CategoryTeam, s.TopCategory)
	assert.Equal(t, 7, s.EventCount)

	empty := Summarize(models.CalendarAnalysis{}, 0)
	assert.Equal(t, 0, empty.FocusTimePercentage)
	assert.Equal(t, "None", empty.TopCategory)
	assert.NotNil(t, empty.Categories)
}

func TestWindow(t *testing.T) {
	now := time.Date(2025, 1, 26, 15, 30, 0, 0, time.UTC)

	start, end := Window(now, 0)
	assert.Equal(t, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 26, 23, 59, 59, int(999*time.Millisecond), time.UTC), end)
	assert.Equal(t, 6, int(end.Sub(start).Hours()/24))

	start, _ = Window(now, 3)
	assert.Equal(t, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, "Week of Dec 30", Label(start))
}

// weekSource answers each window with a single event whose id names the
// week index, counting back from now.
type weekSource struct {
	now   time.Time
	err   error
	mu    sync.Mutex
	calls int
}

func (s *weekSource) ListEvents(_ context.Context, token string, start, _ time.Time) ([]models.Event, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if token != "tok" {
		return nil, errors.New("bad token")
	}
	for i := 0; i < WeekCount; i++ {
		if ws, _ := Window(s.now, i); ws.Equal(start) {
			return []models.Event{{ID: string(rune('0' + i))}}, nil
		}
	}
	return nil, errors.New("unexpected window")
}

type hoursAnalyzer map[string]float64

func (h hoursAnalyzer) Analyze(_ context.Context, events []models.Event, _ models.WorkweekSettings) models.CalendarAnalysis {
	return models.CalendarAnalysis{TotalMeetingHours: h[events[0].ID], FocusHours: 5}
}

func newTestCalculator(src EventSource, concurrency int, now time.Time) *Calculator {
	c := NewCalculator(slog.New(slog.NewTextHandler(io.Discard, nil)), src, hoursAnalyzer{"0": 10, "1": 12, "2": 8, "3": 9}, time.UTC, concurrency)
	c.now = func() time.Time { return now }
	return c
}

func TestReport(t *testing.T) {
	now := time.Date(2025, 1, 26, 10, 0, 0, 0, time.UTC)

	for _, concurrency := range []int{1, 4} {
		src := &weekSource{now: now}
		report, err := newTestCalculator(src, concurrency, now).Report(context.Background(), "tok", models.DefaultWorkweek())
		require.NoError(t, err)

		assert.Equal(t, WeekCount, src.calls)
		require.Len(t, report.Weeks, WeekCount)
		for i := 0; i < len(report.Weeks)-1; i++ {
			assert.True(t, report.Weeks[i].WeekStart.After(report.Weeks[i+1].WeekStart), "weeks must be most recent first")
		}
		assert.Equal(t, "Week of Jan 20", report.Weeks[0].WeekLabel)
		assert.Equal(t, []float64{10, 12, 8, 9}, []float64{
			report.Weeks[0].Analysis.TotalMeetingHours,
			report.Weeks[1].Analysis.TotalMeetingHours,
			report.Weeks[2].Analysis.TotalMeetingHours,
			report.Weeks[3].Analysis.TotalMeetingHours,
		})
		assert.Equal(t, TrendMetric{Change: -2, Direction: Down, ChangePercent: -17}, report.Trends.MeetingHours)
		assert.Equal(t, 1, report.Weeks[0].Analysis.EventCount)
		assert.Equal(t, now, report.GeneratedAt)
	}
}

func TestReportFetchError(t *testing.T) {
	now := time.Date(2025, 1, 26, 10, 0, 0, 0, time.UTC)
	src := &weekSource{now: now, err: errors.New("calendar API error")}
	_, err := newTestCalculator(src, 1, now).Report(context.Background(), "tok", models.DefaultWorkweek())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calendar API error")
}

package service

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

	"timesherpa/internal/ai"
	"timesherpa/internal/models"
	"timesherpa/internal/scheduling"
	"timesherpa/internal/settings"
	"timesherpa/internal/suggest"
	"timesherpa/internal/trends"
)

var (
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
	// Sunday noon.
	fixedNow = time.Date(2025, 1, 19, 12, 0, 0, 0, time.UTC)
)

func meeting(id, start string, minutes int, attendees ...string) models.Event {
	s, _ := time.Parse(time.RFC3339, start)
	e := models.Event{
		ID:    id,
		Title: "Sync " + id,
		Start: models.EventTime{DateTime: s.Format(time.RFC3339)},
		End:   models.EventTime{DateTime: s.Add(time.Duration(minutes) * time.Minute).Format(time.RFC3339)},
	}
	for _, a := range attendees {
		e.Attendees = append(e.Attendees, models.Person{Email: a})
	}
	return e
}

type call struct{ start, end time.Time }

type fakeSource struct {
	past    []models.Event
	future  []models.Event
	pastErr error
	futErr  error

	mu    sync.Mutex
	calls []call
}

func (f *fakeSource) ListEvents(_ context.Context, _ string, start, end time.Time) ([]models.Event, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{start, end})
	f.mu.Unlock()
	if !end.After(fixedNow) {
		return f.past, f.pastErr
	}
	return f.future, f.futErr
}

type failingWorkweeks struct{}

func (failingWorkweeks) GetUserWorkweek(context.Context, string) (models.WorkweekSettings, error) {
	return models.WorkweekSettings{}, errors.New("db down")
}

type recordingInserter struct{ bodies []scheduling.EventBody }

func (r *recordingInserter) InsertEvent(_ context.Context, _ string, body scheduling.EventBody) (*scheduling.InsertedEvent, error) {
	r.bodies = append(r.bodies, body)
	return &scheduling.InsertedEvent{ID: "evt-9"}, nil
}

func newTestService(src trends.EventSource, analyzer Analyzer, workweeks settings.Source, ins scheduling.EventInserter) *Service {
	if analyzer == nil {
		a := ai.NewAnalyzer(discard, nil, nil)
		analyzer = a
	}
	s := New(discard, Options{
		Source:    src,
		Analyzer:  analyzer,
		Builder:   suggest.NewBuilder(suggest.NewSearcher(time.UTC, nil)),
		Trends:    trends.NewCalculator(discard, src, analyzer, time.UTC, 1),
		Writer:    scheduling.NewWriter(discard, ins, time.UTC, nil),
		Workweeks: workweeks,
		Location:  time.UTC,
	})
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestAnalysis(t *testing.T) {
	src := &fakeSource{
		past: []models.Event{
			meeting("1", "2025-01-13T10:00:00Z", 60, "a@x.com"),
			meeting("2", "2025-01-14T10:00:00Z", 60, "a@x.com"),
			meeting("3", "2025-01-15T10:00:00Z", 60, "b@x.com"),
		},
		future: []models.Event{
			meeting("4", "2025-01-20T10:00:00Z", 60, "c@x.com"),
		},
	}
	svc := newTestService(src, nil, nil, &recordingInserter{})

	got, err := svc.Analysis(context.Background(), "tok", "user1")
	require.NoError(t, err)

	require.Len(t, src.calls, 2)
	assert.Equal(t, fixedNow.Add(-30*24*time.Hour), src.calls[0].start)
	assert.Equal(t, fixedNow, src.calls[0].end)
	assert.Equal(t, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), src.calls[1].start)
	assert.Equal(t, time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), src.calls[1].end)

	require.Len(t, got.Suggestions, 2)
	require.Len(t, got.ActionableSuggestions, 2)

	focus := got.ActionableSuggestions[0]
	assert.Equal(t, models.SuggestionFocusTime, focus.Type)
	assert.True(t, focus.Actionable)
	require.NotEmpty(t, focus.SuggestedTimeSlots)
	assert.Equal(t, models.TimeSlot{
		StartTime: "11:00",
		EndTime:   "14:00",
		Date:      "2025-01-20",
		Reasoning: focus.SuggestedTimeSlots[0].Reasoning,
	}, focus.SuggestedTimeSlots[0])

	review := got.ActionableSuggestions[1]
	assert.Equal(t, models.SuggestionReviewSession, review.Type)
	require.NotEmpty(t, review.SuggestedTimeSlots)
	assert.Equal(t, "2025-01-20", review.SuggestedTimeSlots[0].Date)
	assert.Equal(t, "09:00", review.SuggestedTimeSlots[0].StartTime)
}

func TestAnalysisBusyFetchFailure(t *testing.T) {
	src := &fakeSource{
		past:   []models.Event{meeting("1", "2025-01-13T10:00:00Z", 60, "a@x.com")},
		futErr: errors.New("quota exceeded"),
	}
	svc := newTestService(src, nil, failingWorkweeks{}, &recordingInserter{})

	got, err := svc.Analysis(context.Background(), "tok", "user1")
	require.NoError(t, err)
	require.NotEmpty(t, got.ActionableSuggestions)
	// Empty calendar: Monday 09:00 to 12:00 is the first focus block.
	assert.Equal(t, "09:00", got.ActionableSuggestions[0].SuggestedTimeSlots[0].StartTime)
}

func TestAnalysisFetchFailureAnalyzesEmptyCalendar(t *testing.T) {
	src := &fakeSource{pastErr: errors.New("calendar API unavailable")}
	got, err := newTestService(src, nil, nil, &recordingInserter{}).Analysis(context.Background(), "tok", "")
	require.NoError(t, err)
	assert.Empty(t, got.Categories)
	assert.Zero(t, got.TotalMeetingHours)
	assert.Zero(t, got.FocusHours)
	assert.Equal(t, "You spent 0% of your time in meetings (0.0 hours)", got.KeyInsights[0])
}

func TestAnalysisCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{pastErr: context.Canceled}
	_, err := newTestService(src, nil, nil, &recordingInserter{}).Analysis(ctx, "tok", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUpcomingFetchFailureAnalyzesEmptyCalendar(t *testing.T) {
	src := &fakeSource{futErr: errors.New("calendar API unavailable")}
	got, err := newTestService(src, nil, nil, &recordingInserter{}).Upcoming(context.Background(), "tok", "")
	require.NoError(t, err)
	assert.Equal(t, []string{ai.FallbackUpcomingSuggestion}, got.Suggestions)
	assert.Equal(t, []string{ai.FallbackFocusRecommendation}, got.FocusTimeRecommendations)
	assert.Len(t, got.ActionableSuggestions, 2)
}

func TestWorkweekLookupFailureUsesConfiguredDefault(t *testing.T) {
	weekend := models.WorkweekSettings{Saturday: true, Sunday: true}
	analyzer := &scriptedAnalyzer{}
	svc := New(discard, Options{
		Source:          &fakeSource{},
		Analyzer:        analyzer,
		Builder:         suggest.NewBuilder(suggest.NewSearcher(time.UTC, nil)),
		Workweeks:       failingWorkweeks{},
		DefaultWorkweek: &weekend,
		Location:        time.UTC,
	})
	svc.now = func() time.Time { return fixedNow }

	_, err := svc.Analysis(context.Background(), "tok", "user1")
	require.NoError(t, err)
	assert.Equal(t, weekend, analyzer.workweek)
}

func TestDefaultWorkweekWithoutStore(t *testing.T) {
	weekend := models.WorkweekSettings{Saturday: true, Sunday: true}
	analyzer := &scriptedAnalyzer{}
	svc := New(discard, Options{
		Source:          &fakeSource{},
		Analyzer:        analyzer,
		Builder:         suggest.NewBuilder(suggest.NewSearcher(time.UTC, nil)),
		DefaultWorkweek: &weekend,
	})
	svc.now = func() time.Time { return fixedNow }

	_, err := svc.Analysis(context.Background(), "tok", "user1")
	require.NoError(t, err)
	assert.Equal(t, weekend, analyzer.workweek)
}

type scriptedAnalyzer struct {
	upcoming models.ScheduleSuggestions
	seen     []models.Event
	workweek models.WorkweekSettings
}

func (s *scriptedAnalyzer) Analyze(_ context.Context, events []models.Event, ww models.WorkweekSettings) models.CalendarAnalysis {
	s.workweek = ww
	return models.CalendarAnalysis{TotalMeetingHours: float64(len(events))}
}

func (s *scriptedAnalyzer) AnalyzeUpcoming(_ context.Context, events []models.Event, _ models.WorkweekSettings) models.ScheduleSuggestions {
	s.seen = events
	return s.upcoming
}

func TestUpcoming(t *testing.T) {
	src := &fakeSource{future: []models.Event{
		meeting("soon", "2025-01-21T10:00:00Z", 60, "a@x.com"),
		meeting("later", "2025-01-29T10:00:00Z", 60, "a@x.com"),
	}}
	analyzer := &scriptedAnalyzer{upcoming: models.ScheduleSuggestions{
		Suggestions:              []string{"Schedule a 30-min break at 1pm for lunch."},
		Anomalies:                []string{"No team meetings"},
		FocusTimeRecommendations: []string{"Your schedule shows good work-life balance"},
	}}
	svc := newTestService(src, analyzer, nil, &recordingInserter{})

	got, err := svc.Upcoming(context.Background(), "tok", "user1")
	require.NoError(t, err)

	require.Len(t, analyzer.seen, 1)
	assert.Equal(t, "soon", analyzer.seen[0].ID)
	assert.Equal(t, []string{"No team meetings"}, got.Anomalies)

	require.Len(t, got.ActionableSuggestions, 2)
	brk := got.ActionableSuggestions[0]
	assert.Equal(t, models.SuggestionBreak, brk.Type)
	require.Len(t, brk.SuggestedTimeSlots, 4)
	assert.Equal(t, models.TimeSlot{StartTime: "13:00", EndTime: "14:00", Date: "2025-01-20", Reasoning: brk.SuggestedTimeSlots[0].Reasoning}, brk.SuggestedTimeSlots[0])

	balance := got.ActionableSuggestions[1]
	assert.Equal(t, models.SuggestionWorkLifeBalance, balance.Type)
	assert.False(t, balance.Actionable)
	assert.Empty(t, balance.SuggestedTimeSlots)
}

func TestWeekOverWeek(t *testing.T) {
	src := &fakeSource{past: []models.Event{meeting("1", "2025-01-13T10:00:00Z", 60, "a@x.com")}}
	svc := newTestService(src, &scriptedAnalyzer{}, nil, &recordingInserter{})

	report, err := svc.WeekOverWeek(context.Background(), "tok", "user1")
	require.NoError(t, err)
	assert.Len(t, report.Weeks, trends.WeekCount)
	assert.Len(t, src.calls, trends.WeekCount)
}

func TestScheduleSuggestion(t *testing.T) {
	ins := &recordingInserter{}
	svc := newTestService(&fakeSource{}, nil, nil, ins)

	res := svc.ScheduleSuggestion(context.Background(), "tok", scheduling.Request{
		Suggestion: models.ActionableSuggestion{ID: "s1", Type: models.SuggestionPlanningTime, Text: "Reserve Friday afternoon for planning"},
		TimeSlot:   models.TimeSlot{Date: "2025-01-24", StartTime: "08:00", EndTime: "10:00"},
	})
	assert.Equal(t, scheduling.Result{Success: true, EventID: "evt-9"}, res)
	require.Len(t, ins.bodies, 1)
	assert.Equal(t, "Strategic Planning Time", ins.bodies[0].Summary)
}

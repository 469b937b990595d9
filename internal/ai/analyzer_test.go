package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesherpa/internal/analysis"
	"timesherpa/internal/metrics"
	"timesherpa/internal/models"
)

type fakeGenerator struct {
	text    string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

var fixedNow = time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)

func newTestAnalyzer(gen Generator) *Analyzer {
	a := NewAnalyzer(slog.New(slog.NewTextHandler(io.Discard, nil)), gen, metrics.New(prometheus.NewRegistry()))
	a.now = func() time.Time { return fixedNow }
	return a
}

func testEvents() []models.Event {
	return []models.Event{
		{
			ID:        "1",
			Title:     "Weekly sync with John",
			Start:     models.EventTime{DateTime: "2025-01-15T10:00:00Z"},
			End:       models.EventTime{DateTime: "2025-01-15T11:00:00Z"},
			Attendees: []models.Person{{Email: "john@company.com", DisplayName: "John Doe"}},
			Organizer: &models.Person{Email: "me@company.com"},
		},
		{
			ID:    "2",
			Title: "Focus block",
			Start: models.EventTime{DateTime: "2025-01-15T13:00:00Z"},
			End:   models.EventTime{DateTime: "2025-01-15T15:00:00Z"},
		},
	}
}

func TestAnalyzeUsesModelNarrative(t *testing.T) {
	gen := &fakeGenerator{text: "Here is the analysis:\n" + `{
		"categories": [{"name": "Invented", "totalHours": 99}],
		"totalMeetingHours": 42,
		"keyInsights": ["Insight one", "  "],
		"suggestions": ["Block 2-hour focus time on Tuesday mornings"],
		"topCollaborators": [{"name": "John Doe", "hours": 1.04}, {"name": ""}]
	}`}
	a := newTestAnalyzer(gen)
	events := testEvents()

	got := a.Analyze(context.Background(), events, models.DefaultWorkweek())
	base := analysis.Aggregate(events, fixedNow)

	assert.Equal(t, base.Categories, got.Categories)
	assert.Equal(t, base.TotalMeetingHours, got.TotalMeetingHours)
	assert.Equal(t, base.FocusHours, got.FocusHours)
	assert.Equal(t, []string{"Insight one"}, got.KeyInsights)
	assert.Equal(t, []string{"Block 2-hour focus time on Tuesday mornings"}, got.Suggestions)
	assert.Equal(t, []models.Collaborator{{Name: "John Doe", TotalHours: 1.0}}, got.TopCollaborators)
	assert.Equal(t, fixedNow, got.LastUpdated)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], `"isRecurring": true`)
	assert.Contains(t, gen.prompts[0], "Monday, Tuesday, Wednesday, Thursday, Friday")
}

func TestAnalyzeKeepsBaselineSuggestionsWhenModelHasNone(t *testing.T) {
	gen := &fakeGenerator{text: `{"keyInsights": ["Only insights"], "suggestions": []}`}
	a := newTestAnalyzer(gen)
	events := testEvents()

	got := a.Analyze(context.Background(), events, models.DefaultWorkweek())
	assert.Equal(t, []string{"Only insights"}, got.KeyInsights)
	assert.Equal(t, analysis.Aggregate(events, fixedNow).Suggestions, got.Suggestions)
}

func TestAnalyzeFallsBack(t *testing.T) {
	events := testEvents()
	want := analysis.Aggregate(events, fixedNow)

	tests := []struct {
		name string
		gen  Generator
	}{
		{"nil generator", nil},
		{"missing key", &fakeGenerator{err: ErrMissingAPIKey}},
		{"network failure", &fakeGenerator{err: errors.New("connection reset")}},
		{"prose only", &fakeGenerator{text: "I could not analyze this calendar."}},
		{"wrong types", &fakeGenerator{text: `{"keyInsights": "not a list"}`}},
		{"empty object", &fakeGenerator{text: `{}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestAnalyzer(tt.gen).Analyze(context.Background(), events, models.DefaultWorkweek())
			assert.Equal(t, want, got)
		})
	}
}

func TestAnalyzeSkipsModelWithoutEvents(t *testing.T) {
	gen := &fakeGenerator{text: `{"keyInsights": ["x"]}`}
	got := newTestAnalyzer(gen).Analyze(context.Background(), nil, models.DefaultWorkweek())
	assert.Empty(t, gen.prompts)
	assert.Empty(t, got.Categories)
	assert.NotEmpty(t, got.KeyInsights)
}

func TestAnalyzeUpcoming(t *testing.T) {
	t.Run("model result", func(t *testing.T) {
		gen := &fakeGenerator{text: "```json\n" + `{
			"suggestions": ["Schedule a 30-min break at 1pm for lunch."],
			"anomalies": ["No team meetings"],
			"focusTimeRecommendations": ["Block Thursday 2-5pm for deep work"]
		}` + "\n```"}
		got := newTestAnalyzer(gen).AnalyzeUpcoming(context.Background(), testEvents(), models.DefaultWorkweek())
		assert.Equal(t, []string{"Schedule a 30-min break at 1pm for lunch."}, got.Suggestions)
		assert.Equal(t, []string{"No team meetings"}, got.Anomalies)
		assert.Equal(t, []string{"Block Thursday 2-5pm for deep work"}, got.FocusTimeRecommendations)
		assert.Contains(t, gen.prompts[0], "Upcoming events for the next 7 days")
	})

	t.Run("fallback triple", func(t *testing.T) {
		got := newTestAnalyzer(&fakeGenerator{text: "nope"}).AnalyzeUpcoming(context.Background(), testEvents(), models.DefaultWorkweek())
		assert.Equal(t, FallbackUpcoming(), got)
	})

	t.Run("upstream error", func(t *testing.T) {
		gen := &fakeGenerator{err: context.DeadlineExceeded}
		got := newTestAnalyzer(gen).AnalyzeUpcoming(context.Background(), testEvents(), models.DefaultWorkweek())
		assert.Len(t, gen.prompts, 1)
		assert.Equal(t, []string{FallbackUpcomingSuggestion}, got.Suggestions)
		assert.Empty(t, got.Anomalies)
	})

	t.Run("no events skips the model", func(t *testing.T) {
		gen := &fakeGenerator{text: `{"suggestions": ["x"], "anomalies": [], "focusTimeRecommendations": []}`}
		got := newTestAnalyzer(gen).AnalyzeUpcoming(context.Background(), nil, models.DefaultWorkweek())
		assert.Empty(t, gen.prompts)
		assert.Equal(t, FallbackUpcoming(), got)
	})
}

func TestUnconfiguredGeneratorsFailFast(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	g, err := NewGeminiGenerator(context.Background(), logger, "", "", 0)
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.NoError(t, g.Close())

	o := NewOpenAIGenerator(logger, "", "", "gpt-4o-mini", 0)
	_, err = o.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestWorkdayNames(t *testing.T) {
	assert.Equal(t, "Wednesday, Sunday", workdayNames(models.WorkweekSettings{Wednesday: true, Sunday: true}))
	assert.Equal(t, "none", workdayNames(models.WorkweekSettings{}))
}

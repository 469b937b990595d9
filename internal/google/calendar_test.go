package google

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"

	"timesherpa/internal/models"
	"timesherpa/internal/scheduling"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *CalendarClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.baseClient = srv.Client()
	c.endpoint = srv.URL + "/"
	return c
}

func TestListEvents(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "2025-01-01T00:00:00Z", q.Get("timeMin"))
		assert.Equal(t, "2025-01-31T00:00:00Z", q.Get("timeMax"))
		assert.Equal(t, "true", q.Get("singleEvents"))
		assert.Equal(t, "startTime", q.Get("orderBy"))
		assert.Equal(t, "2500", q.Get("maxResults"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(calendar.Events{Items: []*calendar.Event{
			{
				Id:       "1",
				Summary:  "1:1 with John",
				Start:    &calendar.EventDateTime{DateTime: "2025-01-20T10:00:00Z"},
				End:      &calendar.EventDateTime{DateTime: "2025-01-20T11:00:00Z"},
				HtmlLink: "https://www.google.com/calendar/event?eid=1",
				Attendees: []*calendar.EventAttendee{
					{Email: "me@company.com", Self: true},
					{Email: "john@company.com", DisplayName: "John Doe"},
				},
				Organizer: &calendar.EventOrganizer{Email: "me@company.com", Self: true},
			},
			{
				Id:      "2",
				Summary: "Offsite",
				Start:   &calendar.EventDateTime{Date: "2025-01-22"},
				End:     &calendar.EventDateTime{Date: "2025-01-23"},
			},
			{Id: "3", Status: "cancelled"},
		}})
	})

	events, err := c.ListEvents(context.Background(), "tok", start, end)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, models.Event{
		ID:    "1",
		Title: "1:1 with John",
		Start: models.EventTime{DateTime: "2025-01-20T10:00:00Z"},
		End:   models.EventTime{DateTime: "2025-01-20T11:00:00Z"},
		Attendees: []models.Person{
			{Email: "me@company.com", Self: true},
			{Email: "john@company.com", DisplayName: "John Doe"},
		},
		Organizer: &models.Person{Email: "me@company.com", Self: true},
		HTMLLink:  "https://www.google.com/calendar/event?eid=1",
		Source:    "google-primary",
	}, events[0])
	assert.True(t, events[1].Start.IsAllDay())
	assert.Nil(t, events[1].Organizer)
}

func TestListEventsErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":401,"message":"Invalid Credentials"}}`, http.StatusUnauthorized)
	})

	_, err := c.ListEvents(context.Background(), "expired", time.Time{}, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to retrieve events")

	_, err = c.ListEvents(context.Background(), "", time.Time{}, time.Time{})
	assert.EqualError(t, err, "missing access token")
}

func TestInsertEvent(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	var got calendar.Event

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(calendar.Event{Id: "new-1", HtmlLink: "https://www.google.com/calendar/event?eid=new-1"})
	})

	created, err := c.InsertEvent(context.Background(), "tok", scheduling.EventBody{
		Summary:     "Focus Time - Deep Work",
		Description: "desc",
		Start:       time.Date(2025, 1, 15, 9, 0, 0, 0, loc),
		End:         time.Date(2025, 1, 15, 11, 0, 0, 0, loc),
		TimeZone:    "America/New_York",
		ColorID:     "9",
		Properties:  map[string]string{scheduling.PropGenerated: "true", scheduling.PropSuggestionID: "s1"},
	})
	require.NoError(t, err)
	assert.Equal(t, &scheduling.InsertedEvent{ID: "new-1", HTMLLink: "https://www.google.com/calendar/event?eid=new-1"}, created)

	assert.Equal(t, "Focus Time - Deep Work", got.Summary)
	assert.Equal(t, "2025-01-15T09:00:00-05:00", got.Start.DateTime)
	assert.Equal(t, "2025-01-15T11:00:00-05:00", got.End.DateTime)
	assert.Equal(t, "America/New_York", got.Start.TimeZone)
	assert.Equal(t, "9", got.ColorId)
	require.NotNil(t, got.Reminders)
	assert.True(t, got.Reminders.UseDefault)
	require.NotNil(t, got.ExtendedProperties)
	assert.Equal(t, "true", got.ExtendedProperties.Private[scheduling.PropGenerated])
	assert.Equal(t, "s1", got.ExtendedProperties.Private[scheduling.PropSuggestionID])
}

func TestTokenFile(t *testing.T) {
	assert.Equal(t, "token-work.json", TokenFile("work"))
}

func TestAccessTokenFromValidFile(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, SaveToken(TokenFile("work"), &oauth2.Token{
		AccessToken: "saved",
		Expiry:      time.Now().Add(time.Hour),
	}))

	token, err := AccessToken(context.Background(), "", "", "work")
	require.NoError(t, err)
	assert.Equal(t, "saved", token)

	accounts, err := GetTokenAccounts()
	require.NoError(t, err)
	assert.Equal(t, []string{"work"}, accounts)
}

func TestAccessTokenMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := AccessToken(context.Background(), "", "", "personal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run the 'auth' command")
}

package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"timesherpa/internal/models"
	"timesherpa/internal/scheduling"
)

const (
	credentialsFile   = "credentials.json"
	primaryCalendarID = "primary"
	maxResults        = 2500
	defaultLookback   = 30 * 24 * time.Hour
)

// CalendarClient reads and writes the primary Google calendar on behalf of
// whichever access token a call is made with.
type CalendarClient struct {
	logger     *slog.Logger
	calendarID string
	// baseClient and endpoint are only overridden in tests.
	baseClient *http.Client
	endpoint   string
}

// NewClient creates a new Google Calendar client for the primary calendar.
func NewClient(logger *slog.Logger) *CalendarClient {
	return &CalendarClient{logger: logger, calendarID: primaryCalendarID}
}

func (c *CalendarClient) service(ctx context.Context, token string) (*calendar.Service, error) {
	if token == "" {
		return nil, errors.New("missing access token")
	}
	if c.baseClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.baseClient)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return service, nil
}

// ListEvents fetches single (expanded) events between start and end. A
// zero start means 30 days before now, a zero end means now.
func (c *CalendarClient) ListEvents(ctx context.Context, token string, start, end time.Time) ([]models.Event, error) {
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.Add(-defaultLookback)
	}
	service, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Fetching events", "calendarID", c.calendarID, "start", start, "end", end)
	var items []*calendar.Event
	err = service.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		MaxResults(maxResults).
		OrderBy("startTime").
		Pages(ctx, func(page *calendar.Events) error {
			items = append(items, page.Items...)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	c.logger.Info("Successfully fetched events from Google Calendar", "count", len(items), "calendarID", c.calendarID)
	return c.toInternalEvents(items), nil
}

// toInternalEvents converts Google Calendar events to the internal Event model.
func (c *CalendarClient) toInternalEvents(googleEvents []*calendar.Event) []models.Event {
	internalEvents := make([]models.Event, 0, len(googleEvents))
	for _, item := range googleEvents {
		if item.Status == "cancelled" {
			continue
		}

		var attendees []models.Person
		for _, a := range item.Attendees {
			attendees = append(attendees, models.Person{Email: a.Email, DisplayName: a.DisplayName, Self: a.Self})
		}

		event := models.Event{
			ID:          item.Id,
			Title:       item.Summary,
			Description: item.Description,
			Start:       eventTime(item.Start),
			End:         eventTime(item.End),
			Attendees:   attendees,
			HTMLLink:    item.HtmlLink,
			Source:      "google-" + c.calendarID,
		}
		if item.Organizer != nil {
			event.Organizer = &models.Person{
				Email:       item.Organizer.Email,
				DisplayName: item.Organizer.DisplayName,
				Self:        item.Organizer.Self,
			}
		}
		internalEvents = append(internalEvents, event)
	}
	return internalEvents
}

func eventTime(t *calendar.EventDateTime) models.EventTime {
	if t == nil {
		return models.EventTime{}
	}
	return models.EventTime{DateTime: t.DateTime, Date: t.Date}
}

// InsertEvent creates the event on the primary calendar.
func (c *CalendarClient) InsertEvent(ctx context.Context, token string, body scheduling.EventBody) (*scheduling.InsertedEvent, error) {
	service, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	event := &calendar.Event{
		Summary:     body.Summary,
		Description: body.Description,
		Start:       &calendar.EventDateTime{DateTime: body.Start.Format(time.RFC3339), TimeZone: body.TimeZone},
		End:         &calendar.EventDateTime{DateTime: body.End.Format(time.RFC3339), TimeZone: body.TimeZone},
		ColorId:     body.ColorID,
		Reminders:   &calendar.EventReminders{UseDefault: true},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: body.Properties,
		},
	}
	created, err := service.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	c.logger.Debug("Inserted event", "calendarID", c.calendarID, "eventID", created.Id)
	return &scheduling.InsertedEvent{ID: created.Id, HTMLLink: created.HtmlLink}, nil
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes environment variables over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the root directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob" // For desktop app flow
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// TokenFile is where the token of an account is stored.
func TokenFile(account string) string {
	return fmt.Sprintf("token-%s.json", account)
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// AccessToken loads the saved token of an account and returns a valid
// access token, refreshing and re-saving it when it has expired.
func AccessToken(ctx context.Context, clientID, clientSecret, account string) (string, error) {
	file := TokenFile(account)
	token, err := tokenFromFile(file)
	if err != nil {
		return "", fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", account, err)
	}
	if token.Valid() {
		return token.AccessToken, nil
	}

	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return "", fmt.Errorf("token for account %s expired and cannot be refreshed: %w", account, err)
	}
	fresh, err := config.TokenSource(ctx, token).Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh token for account %s: %w", account, err)
	}
	if fresh.AccessToken != token.AccessToken {
		if err := SaveToken(file, fresh); err != nil {
			return "", err
		}
	}
	return fresh.AccessToken, nil
}

// GetTokenAccounts lists the accounts with a saved token in the working directory.
func GetTokenAccounts() ([]string, error) {
	files, err := os.ReadDir(".")
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "token-") && strings.HasSuffix(file.Name(), ".json") {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), "token-"), ".json")
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}

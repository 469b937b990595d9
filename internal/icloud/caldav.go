package icloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"timesherpa/internal/models"
	"timesherpa/internal/scheduling"
)

const (
	// DefaultEndpoint is the iCloud CalDAV server.
	DefaultEndpoint = "https://caldav.icloud.com/"
	propPrefix      = "X-TIMESHERPA-"
	productID       = "-//timesherpa//EN"
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "timesherpa/1.0")
	return t.Transport.RoundTrip(req)
}

// CalDAVClient reads and writes one calendar on a CalDAV server. It
// authenticates with its own credentials, so the token passed to
// ListEvents and InsertEvent is ignored.
type CalDAVClient struct {
	caldavClient *caldav.Client
	logger       *slog.Logger
	calendarPath string
	loc          *time.Location
	// owner is the lower-cased username, matched against attendee addresses.
	owner string
}

// NewClient creates a CalDAV client and resolves the calendar named calendarName.
func NewClient(ctx context.Context, logger *slog.Logger, endpoint, username, password, calendarName string, loc *time.Location) (*CalDAVClient, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if loc == nil {
		loc = time.UTC
	}
	transport := &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	c := &CalDAVClient{
		caldavClient: caldavClient,
		logger:       logger,
		loc:          loc,
		owner:        strings.ToLower(username),
	}

	logger.Info("Finding CalDAV calendar", "calendarName", calendarName)
	calendarPath, err := c.findCalendar(ctx, calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", calendarName, err)
	}
	c.calendarPath = calendarPath
	logger.Info("Successfully found CalDAV calendar", "path", calendarPath)

	return c, nil
}

// ListEvents returns the events overlapping [start, end], with recurring
// events expanded to one event per occurrence. A zero start means 30 days
// before now, a zero end means now.
func (c *CalDAVClient) ListEvents(ctx context.Context, _ string, start, end time.Time) ([]models.Event, error) {
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -30)
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{Name: ical.CompEvent, AllProps: true}},
		},
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{{Name: ical.CompEvent, Start: start.UTC(), End: end.UTC()}},
		},
	}
	objects, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	reader := eventReader{loc: c.loc, owner: c.owner, start: start, end: end}
	var events []models.Event
	for _, obj := range objects {
		events = append(events, reader.events(obj.Data)...)
	}
	c.logger.Info("Successfully fetched events from CalDAV", "count", len(events), "path", c.calendarPath)
	return events, nil
}

// InsertEvent stores the event as a new calendar object.
func (c *CalDAVClient) InsertEvent(ctx context.Context, _ string, body scheduling.EventBody) (*scheduling.InsertedEvent, error) {
	uid := GenerateUID()
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, toICal(uid, body))

	eventPath := strings.TrimSuffix(c.calendarPath, "/") + "/" + uid + ".ics"
	if _, err := c.caldavClient.PutCalendarObject(ctx, eventPath, cal); err != nil {
		return nil, fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}

	c.logger.Info("Successfully created CalDAV event", "uid", uid, "summary", body.Summary)
	return &scheduling.InsertedEvent{ID: uid}, nil
}

// toICal converts an event body to a VEVENT. Provenance properties become
// X-TIMESHERPA-* properties.
func toICal(uid string, body scheduling.EventBody) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, body.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, body.Start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, body.End)

	if body.Description != "" {
		ve.Props.SetText(ical.PropDescription, body.Description)
	}
	for key, value := range body.Properties {
		ve.Props.SetText(propPrefix+strings.ToUpper(key), value)
	}
	return ve
}

// eventReader converts calendar objects returned for the [start, end] query
// window. The server matches recurring events by any occurrence but returns
// the master component, so occurrences are expanded here.
type eventReader struct {
	loc        *time.Location
	owner      string
	start, end time.Time
}

// events extracts the VEVENTs of a calendar object. Overridden occurrences
// (RECURRENCE-ID) replace the occurrence they were generated from.
func (r eventReader) events(cal *ical.Calendar) []models.Event {
	if cal == nil {
		return nil
	}
	var (
		events     []models.Event
		masters    []*ical.Component
		overridden = make(map[string]bool)
	)
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		rid := comp.Props.Get(ical.PropRecurrenceID)
		if rid == nil {
			masters = append(masters, comp)
			continue
		}
		if at, err := rid.DateTime(r.loc); err == nil {
			overridden[occurrenceID(text(comp, ical.PropUID), at)] = true
		}
		if r.overlaps(comp) {
			events = append(events, r.event(comp))
		}
	}
	for _, comp := range masters {
		events = append(events, r.expand(comp, overridden)...)
	}
	return events
}

// expand returns one event per occurrence of comp inside the window, or comp
// itself when it does not recur.
func (r eventReader) expand(comp *ical.Component, overridden map[string]bool) []models.Event {
	base := r.event(comp)
	set, err := comp.RecurrenceSet(r.loc)
	if err != nil || set == nil || r.start.IsZero() || r.end.IsZero() {
		return []models.Event{base}
	}
	start, end, ok := r.bounds(comp)
	if !ok {
		return []models.Event{base}
	}
	length := end.Sub(start)
	allDay := comp.Props.Get(ical.PropDateTimeStart).ValueType() == ical.ValueDate

	var out []models.Event
	for _, at := range set.Between(r.start.Add(-length), r.end, false) {
		id := occurrenceID(base.ID, at)
		if overridden[id] {
			continue
		}
		occurrence := base
		occurrence.ID = id
		occurrence.Start = timeOf(at, allDay)
		occurrence.End = timeOf(at.Add(length), allDay)
		out = append(out, occurrence)
	}
	return out
}

func (r eventReader) event(comp *ical.Component) models.Event {
	event := models.Event{
		ID:          text(comp, ical.PropUID),
		Title:       text(comp, ical.PropSummary),
		Description: text(comp, ical.PropDescription),
		Start:       eventTime(comp.Props.Get(ical.PropDateTimeStart), r.loc),
		End:         eventTime(comp.Props.Get(ical.PropDateTimeEnd), r.loc),
		Source:      "caldav",
	}
	for _, p := range comp.Props.Values(ical.PropAttendee) {
		event.Attendees = append(event.Attendees, r.person(p))
	}
	if p := comp.Props.Get(ical.PropOrganizer); p != nil {
		organizer := r.person(*p)
		event.Organizer = &organizer
	}
	return event
}

func (r eventReader) bounds(comp *ical.Component) (time.Time, time.Time, bool) {
	ev := ical.Event{Component: comp}
	start, err := ev.DateTimeStart(r.loc)
	if err != nil || start.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	end, err := ev.DateTimeEnd(r.loc)
	if err != nil || end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// overlaps reports whether comp falls inside the window. Components without
// readable times are kept.
func (r eventReader) overlaps(comp *ical.Component) bool {
	if r.start.IsZero() || r.end.IsZero() {
		return true
	}
	start, end, ok := r.bounds(comp)
	if !ok {
		return true
	}
	return start.Before(r.end) && end.After(r.start)
}

// person reads an ATTENDEE or ORGANIZER. The calendar owner is marked Self.
func (r eventReader) person(p ical.Prop) models.Person {
	email := strings.TrimPrefix(strings.ToLower(p.Value), "mailto:")
	return models.Person{
		Email:       email,
		DisplayName: p.Params.Get(ical.ParamCommonName),
		Self:        r.owner != "" && email == r.owner,
	}
}

func occurrenceID(uid string, at time.Time) string {
	return uid + "/" + at.UTC().Format("20060102T150405Z")
}

func text(comp *ical.Component, name string) string {
	p := comp.Props.Get(name)
	if p == nil {
		return ""
	}
	v, err := p.Text()
	if err != nil {
		return p.Value
	}
	return v
}

func eventTime(p *ical.Prop, loc *time.Location) models.EventTime {
	if p == nil {
		return models.EventTime{}
	}
	t, err := p.DateTime(loc)
	if err != nil {
		return models.EventTime{}
	}
	return timeOf(t, p.ValueType() == ical.ValueDate)
}

func timeOf(t time.Time, allDay bool) models.EventTime {
	if allDay {
		return models.EventTime{Date: t.Format("2006-01-02")}
	}
	return models.EventTime{DateTime: t.Format(time.RFC3339)}
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (c *CalDAVClient) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}

// GenerateUID creates a new unique identifier for an event.
func GenerateUID() string {
	return uuid.New().String()
}

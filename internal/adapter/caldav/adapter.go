// Package caldav implements the calendar provider against any CalDAV
// server (iCloud, Fastmail, Radicale, Nextcloud, ...) with HTTP basic
// auth. Event IDs are the server object paths, which are stable and
// unique per occurrence object.
package caldav

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"upcal/internal/core"
	"upcal/internal/store"
)

const (
	deniedState  = "denied"
	grantedState = "granted"
)

// statusClient records the status code of the last response so error
// classification can consult it; the library itself does not export
// its HTTP error type. Safe under the adapter's single-owner model.
type statusClient struct {
	inner webdav.HTTPClient
	last  int
}

func (s *statusClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := s.inner.Do(req)
	if resp != nil {
		s.last = resp.StatusCode
	}
	return resp, err
}

// CalDAVAdapter implements core.Provider over a CalDAV server.
type CalDAVAdapter struct {
	id        string
	name      string
	serverURL string
	username  string
	password  string
	creds     *store.Store

	http      *statusClient
	client    *caldav.Client
	calendars []caldav.Calendar
}

func NewCalDAVAdapter(id, name, serverURL, username, password string, creds *store.Store) *CalDAVAdapter {
	return &CalDAVAdapter{
		id:        id,
		name:      name,
		serverURL: serverURL,
		username:  username,
		password:  password,
		creds:     creds,
	}
}

func (c *CalDAVAdapter) ID() string   { return c.id }
func (c *CalDAVAdapter) Name() string { return c.name }

// SettingsHint tells a denied user where to fix things: CalDAV has no
// consent screen, so the fix is new credentials on the server side.
func (c *CalDAVAdapter) SettingsHint() string {
	return c.serverURL
}

// AuthorizationStatus reads the recorded verification outcome only.
// Unconfigured credentials always mean NotDetermined.
func (c *CalDAVAdapter) AuthorizationStatus(ctx context.Context) core.AuthStatus {
	if c.serverURL == "" || c.username == "" {
		return core.AuthNotDetermined
	}

	switch state, _ := c.creds.AuthState(c.id); state {
	case deniedState:
		return core.AuthDenied
	case grantedState:
		return core.AuthGranted
	default:
		return core.AuthNotDetermined
	}
}

// RequestFullAccess verifies the configured credentials by discovering
// the principal. A 401/403 is the server refusing access and is
// recorded as a sticky denial; anything else is a transient failure.
func (c *CalDAVAdapter) RequestFullAccess(ctx context.Context) (core.AuthStatus, error) {
	if c.AuthorizationStatus(ctx) == core.AuthDenied {
		return core.AuthDenied, nil
	}

	if err := c.connect(ctx); err != nil {
		if c.isAuthRefused(err) {
			c.creds.SetAuthState(c.id, deniedState)
			return core.AuthDenied, nil
		}
		return core.AuthNotDetermined, err
	}

	c.creds.SetAuthState(c.id, grantedState)
	return core.AuthGranted, nil
}

// connect builds the client and discovers the calendar home set once.
func (c *CalDAVAdapter) connect(ctx context.Context) error {
	if c.client != nil && c.calendars != nil {
		return nil
	}

	var httpClient webdav.HTTPClient = http.DefaultClient
	if c.username != "" && c.password != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(httpClient, c.username, c.password)
	}
	c.http = &statusClient{inner: httpClient}

	client, err := caldav.NewClient(c.http, c.serverURL)
	if err != nil {
		return fmt.Errorf("create CalDAV client: %w", err)
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return fmt.Errorf("discover principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return fmt.Errorf("discover calendar home set: %w", err)
	}

	calendars, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return fmt.Errorf("find calendars: %w", err)
	}

	c.client = client
	c.calendars = calendars
	return nil
}

func (c *CalDAVAdapter) Calendars(ctx context.Context) ([]core.CalendarRef, error) {
	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	refs := make([]core.CalendarRef, 0, len(c.calendars))
	for _, cal := range c.calendars {
		refs = append(refs, calendarRef(cal))
	}
	return refs, nil
}

// DefaultCalendar is the first calendar of the home set; CalDAV has no
// server-side notion of a default write target.
func (c *CalDAVAdapter) DefaultCalendar(ctx context.Context) (core.CalendarRef, error) {
	if err := c.connect(ctx); err != nil {
		return core.CalendarRef{}, err
	}
	if len(c.calendars) == 0 {
		return core.CalendarRef{}, fmt.Errorf("no calendars on server")
	}
	return calendarRef(c.calendars[0]), nil
}

// Events issues a time-range calendar-query REPORT against every
// calendar. Servers expand recurrences into the queried range.
func (c *CalDAVAdapter) Events(ctx context.Context, start, end time.Time) ([]core.Event, error) {
	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			Comps:    []caldav.CalendarCompRequest{{Name: ical.CompEvent, AllProps: true}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start.UTC(),
				End:   end.UTC(),
			}},
		},
	}

	var results []core.Event
	for _, cal := range c.calendars {
		objects, err := c.client.QueryCalendar(ctx, cal.Path, query)
		if err != nil {
			return nil, fmt.Errorf("query calendar %s: %w", cal.Path, err)
		}
		ref := calendarRef(cal)
		for _, obj := range objects {
			results = append(results, parseObject(obj, ref)...)
		}
	}

	return results, nil
}

// LookupEvent fetches one object by its path.
func (c *CalDAVAdapter) LookupEvent(ctx context.Context, id string) (core.Event, error) {
	if err := c.connect(ctx); err != nil {
		return core.Event{}, err
	}

	obj, err := c.client.GetCalendarObject(ctx, id)
	if err != nil {
		if c.isNotFound(err) {
			return core.Event{}, core.ErrNotFound
		}
		return core.Event{}, err
	}

	events := parseObject(*obj, c.refForPath(id))
	if len(events) == 0 {
		return core.Event{}, core.ErrNotFound
	}
	return events[0], nil
}

// Save writes the event as a single-VEVENT object. A draft without an
// ID gets a fresh UID-derived path under its calendar.
func (c *CalDAVAdapter) Save(ctx context.Context, ev core.Event, occurrenceOnly bool) (core.Event, error) {
	if err := c.connect(ctx); err != nil {
		return core.Event{}, err
	}

	path := ev.ID
	uid := strings.TrimSuffix(lastSegment(path), ".ics")
	if path == "" {
		calPath := ev.Calendar.ID
		if calPath == "" {
			def, err := c.DefaultCalendar(ctx)
			if err != nil {
				return core.Event{}, err
			}
			ev.Calendar = def
			calPath = def.ID
		}
		uid = uuid.NewString()
		path = strings.TrimSuffix(calPath, "/") + "/" + uid + ".ics"
	}

	cal := buildObject(ev, uid)
	if _, err := c.client.PutCalendarObject(ctx, path, cal); err != nil {
		return core.Event{}, fmt.Errorf("put calendar object: %w", err)
	}

	ev.ID = path
	return ev, nil
}

func (c *CalDAVAdapter) Remove(ctx context.Context, ev core.Event, occurrenceOnly bool) error {
	if err := c.connect(ctx); err != nil {
		return err
	}

	if err := c.client.RemoveAll(ctx, ev.ID); err != nil {
		if c.isNotFound(err) {
			return core.ErrNotFound
		}
		return err
	}
	return nil
}

func (c *CalDAVAdapter) refForPath(objPath string) core.CalendarRef {
	for _, cal := range c.calendars {
		if strings.HasPrefix(objPath, strings.TrimSuffix(cal.Path, "/")+"/") {
			return calendarRef(cal)
		}
	}
	return core.CalendarRef{}
}

func calendarRef(cal caldav.Calendar) core.CalendarRef {
	name := cal.Name
	if name == "" {
		name = lastSegment(cal.Path)
	}
	return core.CalendarRef{ID: cal.Path, Name: name}
}

func lastSegment(path string) string {
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if len(parts) == 0 {
		return path
	}
	return parts[len(parts)-1]
}

// isAuthRefused reports whether err came from the server rejecting the
// credentials outright, judged by the last observed status code.
func (c *CalDAVAdapter) isAuthRefused(err error) bool {
	if err == nil || c.http == nil {
		return false
	}
	return c.http.last == http.StatusUnauthorized || c.http.last == http.StatusForbidden
}

// isNotFound reports whether err came from a request for an object the
// server no longer has.
func (c *CalDAVAdapter) isNotFound(err error) bool {
	if err == nil || c.http == nil {
		return false
	}
	return c.http.last == http.StatusNotFound || c.http.last == http.StatusGone
}

// parseObject extracts the VEVENTs of one calendar object. The object
// path is the event ID; a multi-VEVENT object (recurrence overrides)
// yields one Event per component sharing that path.
func parseObject(obj caldav.CalendarObject, cal core.CalendarRef) []core.Event {
	if obj.Data == nil {
		return nil
	}

	var events []core.Event
	for _, comp := range obj.Data.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		events = append(events, parseComponent(comp, obj.Path, cal))
	}
	return events
}

func parseComponent(comp *ical.Component, path string, cal core.CalendarRef) core.Event {
	ev := core.Event{
		ID:       path,
		Calendar: cal,
	}

	if prop := comp.Props.Get(ical.PropSummary); prop != nil {
		ev.Title = prop.Value
	}
	if prop := comp.Props.Get(ical.PropDescription); prop != nil {
		ev.Notes = prop.Value
	}
	if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
		// DATE (no time part) marks an all-day event
		ev.IsAllDay = prop.ValueType() == ical.ValueDate
		if t, err := prop.DateTime(time.UTC); err == nil {
			ev.Start = t
		}
	}
	if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
		if t, err := prop.DateTime(time.UTC); err == nil {
			ev.End = t
		}
	}

	return ev
}

// buildObject serializes the event as a one-VEVENT calendar.
func buildObject(ev core.Event, uid string) *ical.Calendar {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetText(ical.PropSummary, ev.Title)
	if ev.Notes != "" {
		event.Props.SetText(ical.PropDescription, ev.Notes)
	}
	if ev.IsAllDay {
		event.Props.SetDate(ical.PropDateTimeStart, ev.Start)
		event.Props.SetDate(ical.PropDateTimeEnd, ev.End)
	} else {
		event.Props.SetDateTime(ical.PropDateTimeStart, ev.Start.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, ev.End.UTC())
	}
	event.Props.SetText(ical.PropStatus, "CONFIRMED")
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//upcal//upcal//EN")
	cal.Component.Children = append(cal.Component.Children, event.Component)
	return cal
}

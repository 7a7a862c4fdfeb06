package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"upcal/internal/adapter/loopback"
	"upcal/internal/core"
	"upcal/internal/store"
)

// SettingsURL is where a user who refused access can change their
// mind; there is no in-app path back from a denial.
const SettingsURL = "https://myaccount.google.com/permissions"

const deniedState = "denied"

// GoogleAdapter implements core.Provider against the Google Calendar
// API. One adapter instance lives for the whole process.
type GoogleAdapter struct {
	id        string
	name      string
	credsFile string
	creds     *store.Store
	config    *oauth2.Config
	service   *calendar.Service
	calendars []core.CalendarRef
}

func NewGoogleAdapter(id, name, credsFile string, creds *store.Store) *GoogleAdapter {
	return &GoogleAdapter{
		id:        id,
		name:      name,
		credsFile: credsFile,
		creds:     creds,
	}
}

func (g *GoogleAdapter) ID() string   { return g.id }
func (g *GoogleAdapter) Name() string { return g.name }

// AuthorizationStatus reads the credential store only: a recorded
// refusal means Denied, a stored token means Granted, nothing yet
// means NotDetermined. No network traffic, no failures.
func (g *GoogleAdapter) AuthorizationStatus(ctx context.Context) core.AuthStatus {
	if state, _ := g.creds.AuthState(g.id); state == deniedState {
		return core.AuthDenied
	}

	if _, err := g.creds.Token(g.id); err != nil {
		return core.AuthNotDetermined
	}
	return core.AuthGranted
}

// RequestFullAccess runs the loopback consent flow. An explicit
// refusal is persisted so Denied sticks across runs; revisiting
// SettingsURL is the only way back.
func (g *GoogleAdapter) RequestFullAccess(ctx context.Context) (core.AuthStatus, error) {
	if g.AuthorizationStatus(ctx) == core.AuthDenied {
		return core.AuthDenied, nil
	}

	config, err := g.oauthConfig()
	if err != nil {
		return core.AuthNotDetermined, err
	}

	tok, err := loopback.GetToken(ctx, config, g.name, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if err != nil {
		if errors.Is(err, loopback.ErrConsentDenied) {
			g.creds.SetAuthState(g.id, deniedState)
			return core.AuthDenied, nil
		}
		return core.AuthNotDetermined, err
	}

	if err := g.creds.SaveToken(g.id, tok); err != nil {
		return core.AuthNotDetermined, fmt.Errorf("save token: %w", err)
	}
	g.creds.ClearAuthState(g.id)

	return core.AuthGranted, nil
}

func (g *GoogleAdapter) oauthConfig() (*oauth2.Config, error) {
	if g.config != nil {
		return g.config, nil
	}

	b, err := os.ReadFile(g.credsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	config.RedirectURL = loopback.RedirectURL

	g.config = config
	return config, nil
}

// ensureService lazily builds the Calendar service from the stored
// token. The service and the calendar list are built once and reused.
func (g *GoogleAdapter) ensureService(ctx context.Context) error {
	if g.service != nil {
		return nil
	}

	config, err := g.oauthConfig()
	if err != nil {
		return err
	}

	tok, err := g.creds.Token(g.id)
	if err != nil {
		return fmt.Errorf("read token (run 'upcal auth' first): %w", err)
	}

	client := config.Client(ctx, tok)
	g.service, err = calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return err
	}

	return g.loadCalendarList(ctx)
}

func (g *GoogleAdapter) loadCalendarList(ctx context.Context) error {
	calList, err := g.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("load calendar list: %w", err)
	}

	g.calendars = g.calendars[:0]
	for _, cal := range calList.Items {
		g.calendars = append(g.calendars, core.CalendarRef{
			ID:    cal.Id,
			Name:  cal.Summary,
			Color: cal.BackgroundColor,
		})
	}
	return nil
}

func (g *GoogleAdapter) Calendars(ctx context.Context) ([]core.CalendarRef, error) {
	if err := g.ensureService(ctx); err != nil {
		return nil, err
	}

	out := make([]core.CalendarRef, len(g.calendars))
	copy(out, g.calendars)
	return out, nil
}

// DefaultCalendar returns the account's primary calendar, the write
// target for new events.
func (g *GoogleAdapter) DefaultCalendar(ctx context.Context) (core.CalendarRef, error) {
	if err := g.ensureService(ctx); err != nil {
		return core.CalendarRef{}, err
	}

	calList, err := g.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return core.CalendarRef{}, err
	}
	for _, cal := range calList.Items {
		if cal.Primary {
			return core.CalendarRef{ID: cal.Id, Name: cal.Summary, Color: cal.BackgroundColor}, nil
		}
	}
	return core.CalendarRef{}, fmt.Errorf("account has no primary calendar")
}

// Events retrieves single occurrences from every calendar in the
// window. SingleEvents expands recurring series server-side.
func (g *GoogleAdapter) Events(ctx context.Context, start, end time.Time) ([]core.Event, error) {
	if err := g.ensureService(ctx); err != nil {
		return nil, err
	}

	var results []core.Event
	for _, cal := range g.calendars {
		events, err := g.eventsFromCalendar(ctx, cal, start, end)
		if err != nil {
			return nil, err
		}
		results = append(results, events...)
	}

	return results, nil
}

func (g *GoogleAdapter) eventsFromCalendar(ctx context.Context, cal core.CalendarRef, start, end time.Time) ([]core.Event, error) {
	tMin := start.Format(time.RFC3339)
	tMax := end.Format(time.RFC3339)

	var results []core.Event
	pageToken := ""

	for {
		req := g.service.Events.List(cal.ID).
			ShowDeleted(false).
			SingleEvents(true).
			TimeMin(tMin).
			TimeMax(tMax).
			OrderBy("startTime").
			Context(ctx)

		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		eventsResult, err := req.Do()
		if err != nil {
			return nil, fmt.Errorf("api call failed for calendar %s: %w", cal.ID, err)
		}

		for _, item := range eventsResult.Items {
			results = append(results, parseEvent(item, cal))
		}

		pageToken = eventsResult.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return results, nil
}

// LookupEvent searches the loaded calendars for the event. The default
// write target is where nearly all app-created events live, so the
// primary calendar is probed implicitly via the calendar list order.
func (g *GoogleAdapter) LookupEvent(ctx context.Context, id string) (core.Event, error) {
	if err := g.ensureService(ctx); err != nil {
		return core.Event{}, err
	}

	for _, cal := range g.calendars {
		item, err := g.service.Events.Get(cal.ID, id).Context(ctx).Do()
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return core.Event{}, err
		}
		return parseEvent(item, cal), nil
	}

	return core.Event{}, core.ErrNotFound
}

// Save persists the event durably before returning. With SingleEvents
// expansion, an occurrence's own ID already scopes the write to that
// single instance; occurrenceOnly is therefore implicit on update.
func (g *GoogleAdapter) Save(ctx context.Context, ev core.Event, occurrenceOnly bool) (core.Event, error) {
	if err := g.ensureService(ctx); err != nil {
		return core.Event{}, err
	}

	calID := ev.Calendar.ID
	if calID == "" {
		def, err := g.DefaultCalendar(ctx)
		if err != nil {
			return core.Event{}, err
		}
		ev.Calendar = def
		calID = def.ID
	}

	item := buildEvent(ev)

	var saved *calendar.Event
	var err error
	if ev.ID == "" {
		saved, err = g.service.Events.Insert(calID, item).Context(ctx).Do()
	} else {
		saved, err = g.service.Events.Update(calID, ev.ID, item).Context(ctx).Do()
	}
	if err != nil {
		if isNotFound(err) {
			return core.Event{}, core.ErrNotFound
		}
		return core.Event{}, err
	}

	return parseEvent(saved, ev.Calendar), nil
}

func (g *GoogleAdapter) Remove(ctx context.Context, ev core.Event, occurrenceOnly bool) error {
	if err := g.ensureService(ctx); err != nil {
		return err
	}

	calID := ev.Calendar.ID
	if calID == "" {
		calID = "primary"
	}

	if err := g.service.Events.Delete(calID, ev.ID).Context(ctx).Do(); err != nil {
		if isNotFound(err) {
			return core.ErrNotFound
		}
		return err
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 404 || apiErr.Code == 410
	}
	return false
}

// parseEvent converts a Google Calendar event to the unified Event type.
func parseEvent(item *calendar.Event, cal core.CalendarRef) core.Event {
	var startTime, endTime time.Time
	isAllDay := false

	if item.Start != nil && item.Start.DateTime != "" {
		startTime, _ = time.Parse(time.RFC3339, item.Start.DateTime)
		if item.End != nil {
			endTime, _ = time.Parse(time.RFC3339, item.End.DateTime)
		}
	} else if item.Start != nil {
		// All day event (YYYY-MM-DD); Google end dates are exclusive
		startTime, _ = time.Parse("2006-01-02", item.Start.Date)
		if item.End != nil {
			endTime, _ = time.Parse("2006-01-02", item.End.Date)
		}
		isAllDay = true
	}

	return core.Event{
		ID:       item.Id,
		Calendar: cal,
		Title:    item.Summary,
		Notes:    item.Description,
		Start:    startTime,
		End:      endTime,
		IsAllDay: isAllDay,
	}
}

// buildEvent converts the unified Event to the API representation.
func buildEvent(ev core.Event) *calendar.Event {
	item := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Notes,
	}

	if ev.IsAllDay {
		item.Start = &calendar.EventDateTime{Date: ev.Start.Format("2006-01-02")}
		item.End = &calendar.EventDateTime{Date: ev.End.Format("2006-01-02")}
	} else {
		item.Start = &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)}
		item.End = &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339)}
	}

	return item
}

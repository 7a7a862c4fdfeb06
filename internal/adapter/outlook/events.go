package outlook

import (
	"context"
	"fmt"
	"time"

	abstractions "github.com/microsoft/kiota-abstractions-go"
	msgraphcore "github.com/microsoftgraph/msgraph-sdk-go-core"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"upcal/internal/core"
)

// Events retrieves single occurrences from every calendar in the
// window. The CalendarView endpoint expands recurring series
// server-side, so each returned item is one occurrence.
func (o *OutlookAdapter) Events(ctx context.Context, start, end time.Time) ([]core.Event, error) {
	if err := o.ensureClient(ctx); err != nil {
		return nil, err
	}

	var results []core.Event
	for _, cal := range o.calendars {
		events, err := o.eventsFromCalendar(ctx, cal, start, end)
		if err != nil {
			return nil, err
		}
		results = append(results, events...)
	}

	return results, nil
}

func (o *OutlookAdapter) eventsFromCalendar(ctx context.Context, cal core.CalendarRef, start, end time.Time) ([]core.Event, error) {
	startStr := start.UTC().Format(time.RFC3339)
	endStr := end.UTC().Format(time.RFC3339)
	selectFields := []string{
		"id", "subject", "body", "start", "end", "isAllDay", "isCancelled",
	}
	orderBy := []string{"start/dateTime"}
	top := int32(100)

	headers := abstractions.NewRequestHeaders()
	headers.Add("Prefer", `outlook.timezone="UTC"`)

	config := &users.ItemCalendarsItemCalendarViewRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.ItemCalendarsItemCalendarViewRequestBuilderGetQueryParameters{
			StartDateTime: &startStr,
			EndDateTime:   &endStr,
			Select:        selectFields,
			Orderby:       orderBy,
			Top:           &top,
		},
		Headers: headers,
	}
	result, err := o.client.Me().Calendars().ByCalendarId(cal.ID).CalendarView().Get(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("fetch calendar view: %w", err)
	}

	var results []core.Event

	pageIterator, err := msgraphcore.NewPageIterator[models.Eventable](
		result,
		o.client.GetAdapter(),
		models.CreateEventCollectionResponseFromDiscriminatorValue,
	)
	if err != nil {
		return nil, fmt.Errorf("create page iterator: %w", err)
	}

	err = pageIterator.Iterate(ctx, func(item models.Eventable) bool {
		if derefBool(item.GetIsCancelled()) {
			return true // skip cancelled, continue
		}
		results = append(results, parseGraphEvent(item, cal))
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return results, nil
}

// LookupEvent fetches the current representation of one event by ID.
func (o *OutlookAdapter) LookupEvent(ctx context.Context, id string) (core.Event, error) {
	if err := o.ensureClient(ctx); err != nil {
		return core.Event{}, err
	}

	headers := abstractions.NewRequestHeaders()
	headers.Add("Prefer", `outlook.timezone="UTC"`)
	config := &users.ItemEventsEventItemRequestBuilderGetRequestConfiguration{
		Headers: headers,
	}

	item, err := o.client.Me().Events().ByEventId(id).Get(ctx, config)
	if err != nil {
		if isNotFound(err) {
			return core.Event{}, core.ErrNotFound
		}
		return core.Event{}, err
	}

	return parseGraphEvent(item, o.calendarFor(item)), nil
}

// Save persists the event durably before returning. Graph event IDs
// from an expanded CalendarView identify single occurrences, so an
// update with occurrenceOnly touches only that instance.
func (o *OutlookAdapter) Save(ctx context.Context, ev core.Event, occurrenceOnly bool) (core.Event, error) {
	if err := o.ensureClient(ctx); err != nil {
		return core.Event{}, err
	}

	item := buildGraphEvent(ev)

	var saved models.Eventable
	var err error
	if ev.ID == "" {
		calID := ev.Calendar.ID
		if calID == "" {
			def, derr := o.DefaultCalendar(ctx)
			if derr != nil {
				return core.Event{}, derr
			}
			ev.Calendar = def
			calID = def.ID
		}
		saved, err = o.client.Me().Calendars().ByCalendarId(calID).Events().Post(ctx, item, nil)
	} else {
		saved, err = o.client.Me().Events().ByEventId(ev.ID).Patch(ctx, item, nil)
	}
	if err != nil {
		if isNotFound(err) {
			return core.Event{}, core.ErrNotFound
		}
		return core.Event{}, err
	}

	return parseGraphEvent(saved, ev.Calendar), nil
}

func (o *OutlookAdapter) Remove(ctx context.Context, ev core.Event, occurrenceOnly bool) error {
	if err := o.ensureClient(ctx); err != nil {
		return err
	}

	if err := o.client.Me().Events().ByEventId(ev.ID).Delete(ctx, nil); err != nil {
		if isNotFound(err) {
			return core.ErrNotFound
		}
		return err
	}
	return nil
}

// calendarFor resolves the owning calendar ref for a fetched event,
// falling back to an empty ref when Graph omits the expansion.
func (o *OutlookAdapter) calendarFor(item models.Eventable) core.CalendarRef {
	cal := item.GetCalendar()
	if cal == nil {
		return core.CalendarRef{}
	}
	id := derefStr(cal.GetId())
	for _, ref := range o.calendars {
		if ref.ID == id {
			return ref
		}
	}
	return core.CalendarRef{ID: id, Name: derefStr(cal.GetName())}
}

// parseGraphEvent converts a Graph SDK event into the unified Event.
func parseGraphEvent(item models.Eventable, cal core.CalendarRef) core.Event {
	notes := ""
	if body := item.GetBody(); body != nil {
		if content := body.GetContent(); content != nil {
			notes = *content
		}
	}

	return core.Event{
		ID:       derefStr(item.GetId()),
		Calendar: cal,
		Title:    derefStr(item.GetSubject()),
		Notes:    notes,
		Start:    parseSDKDateTime(item.GetStart()),
		End:      parseSDKDateTime(item.GetEnd()),
		IsAllDay: derefBool(item.GetIsAllDay()),
	}
}

// buildGraphEvent converts the unified Event to the Graph
// representation for Post/Patch.
func buildGraphEvent(ev core.Event) models.Eventable {
	item := models.NewEvent()
	item.SetSubject(&ev.Title)

	body := models.NewItemBody()
	contentType := models.TEXT_BODYTYPE
	body.SetContentType(&contentType)
	body.SetContent(&ev.Notes)
	item.SetBody(body)

	utc := "UTC"
	layout := "2006-01-02T15:04:05"
	startStr := ev.Start.UTC().Format(layout)
	endStr := ev.End.UTC().Format(layout)

	start := models.NewDateTimeTimeZone()
	start.SetDateTime(&startStr)
	start.SetTimeZone(&utc)
	item.SetStart(start)

	end := models.NewDateTimeTimeZone()
	end.SetDateTime(&endStr)
	end.SetTimeZone(&utc)
	item.SetEnd(end)

	item.SetIsAllDay(&ev.IsAllDay)

	return item
}

// parseSDKDateTime converts a Graph SDK DateTimeTimeZone to time.Time.
// Times are in UTC because we set the Prefer: outlook.timezone="UTC" header.
func parseSDKDateTime(dt models.DateTimeTimeZoneable) time.Time {
	if dt == nil {
		return time.Time{}
	}
	dateTimeStr := dt.GetDateTime()
	if dateTimeStr == nil {
		return time.Time{}
	}
	layouts := []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, *dateTimeStr); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

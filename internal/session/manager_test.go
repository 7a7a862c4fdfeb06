package session_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"upcal/internal/core"
	"upcal/internal/session"
)

// fakeProvider is an in-memory calendar backend. Events returns stored
// events in insertion order so sort stability is observable.
type fakeProvider struct {
	status     core.AuthStatus
	requestErr error

	order  []string
	byID   map[string]core.Event
	nextID int

	failFetch  bool
	failSave   bool
	fetchCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		status: core.AuthGranted,
		byID:   map[string]core.Event{},
	}
}

func (f *fakeProvider) ID() string   { return "fake" }
func (f *fakeProvider) Name() string { return "Fake Calendar" }

func (f *fakeProvider) AuthorizationStatus(ctx context.Context) core.AuthStatus {
	return f.status
}

func (f *fakeProvider) RequestFullAccess(ctx context.Context) (core.AuthStatus, error) {
	if f.requestErr != nil {
		return f.status, f.requestErr
	}
	f.status = core.AuthGranted
	return f.status, nil
}

func (f *fakeProvider) Calendars(ctx context.Context) ([]core.CalendarRef, error) {
	return []core.CalendarRef{{ID: "default", Name: "Default"}}, nil
}

func (f *fakeProvider) DefaultCalendar(ctx context.Context) (core.CalendarRef, error) {
	return core.CalendarRef{ID: "default", Name: "Default"}, nil
}

func (f *fakeProvider) Events(ctx context.Context, start, end time.Time) ([]core.Event, error) {
	f.fetchCalls++
	if f.failFetch {
		return nil, errors.New("backend unreachable")
	}

	out := make([]core.Event, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.byID[id])
	}
	return out, nil
}

func (f *fakeProvider) LookupEvent(ctx context.Context, id string) (core.Event, error) {
	ev, ok := f.byID[id]
	if !ok {
		return core.Event{}, core.ErrNotFound
	}
	return ev, nil
}

func (f *fakeProvider) Save(ctx context.Context, ev core.Event, occurrenceOnly bool) (core.Event, error) {
	if f.failSave {
		return core.Event{}, errors.New("write refused")
	}

	if ev.ID == "" {
		f.nextID++
		ev.ID = fmt.Sprintf("ev-%d", f.nextID)
		f.order = append(f.order, ev.ID)
	} else if _, ok := f.byID[ev.ID]; !ok {
		return core.Event{}, core.ErrNotFound
	}

	f.byID[ev.ID] = ev
	return ev, nil
}

func (f *fakeProvider) Remove(ctx context.Context, ev core.Event, occurrenceOnly bool) error {
	if _, ok := f.byID[ev.ID]; !ok {
		return core.ErrNotFound
	}
	delete(f.byID, ev.ID)
	for i, id := range f.order {
		if id == ev.ID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

// seed stores an event directly on the backend, bypassing the manager.
func (f *fakeProvider) seed(title string, start time.Time, d time.Duration) core.Event {
	f.nextID++
	ev := core.Event{
		ID:       fmt.Sprintf("ev-%d", f.nextID),
		Calendar: core.CalendarRef{ID: "default", Name: "Default"},
		Title:    title,
		Start:    start,
		End:      start.Add(d),
	}
	f.order = append(f.order, ev.ID)
	f.byID[ev.ID] = ev
	return ev
}

func TestFetchSortsByStartKeepingProviderOrderOnTies(t *testing.T) {
	fake := newFakeProvider()
	base := time.Now().Add(time.Hour)

	// Inserted out of order; b and c share a start instant.
	a := fake.seed("late", base.Add(48*time.Hour), time.Hour)
	b := fake.seed("tie-first", base, time.Hour)
	c := fake.seed("tie-second", base, time.Hour)

	mgr := session.NewManager(fake)
	mgr.Fetch(context.Background())

	events := mgr.Events()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	want := []string{b.ID, c.ID, a.ID}
	for i, id := range want {
		if events[i].ID != id {
			t.Errorf("events[%d].ID = %s, want %s", i, events[i].ID, id)
		}
	}
	if msg := mgr.LastError(); msg != "" {
		t.Errorf("unexpected error after fetch: %s", msg)
	}
}

func TestCreateAddsEventWithGivenFields(t *testing.T) {
	fake := newFakeProvider()
	mgr := session.NewManager(fake)
	mgr.Fetch(context.Background())

	start := time.Now().Add(2 * time.Hour).Truncate(time.Minute)
	end := start.Add(45 * time.Minute)

	if !mgr.Create(context.Background(), "Dentist", start, end, "") {
		t.Fatalf("Create failed: %s", mgr.LastError())
	}

	events := mgr.Events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	got := events[0]
	if got.ID == "" {
		t.Error("created event has no ID")
	}
	if got.Title != "Dentist" {
		t.Errorf("Title = %q, want %q", got.Title, "Dentist")
	}
	if !got.Start.Equal(start) || !got.End.Equal(end) {
		t.Errorf("time = [%v, %v], want [%v, %v]", got.Start, got.End, start, end)
	}
	if got.Notes != "" {
		t.Errorf("Notes = %q, want empty", got.Notes)
	}
	if got.Calendar.ID != "default" {
		t.Errorf("Calendar.ID = %q, want default", got.Calendar.ID)
	}
}

func TestCreatePersistsEmptyTitle(t *testing.T) {
	fake := newFakeProvider()
	mgr := session.NewManager(fake)

	start := time.Now().Add(time.Hour)
	if !mgr.Create(context.Background(), "", start, start.Add(time.Hour), "") {
		t.Fatalf("Create failed: %s", mgr.LastError())
	}

	events := mgr.Events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Title != "" {
		t.Errorf("Title = %q, want empty", events[0].Title)
	}
}

func TestUpdatePatchesOnlyGivenFields(t *testing.T) {
	fake := newFakeProvider()
	start := time.Now().Add(time.Hour).Truncate(time.Minute)
	ev := fake.seed("Standup", start, 15*time.Minute)
	fake.byID[ev.ID] = withNotes(fake.byID[ev.ID], "daily")

	mgr := session.NewManager(fake)
	mgr.Fetch(context.Background())

	title := "Standup (moved)"
	before := fake.fetchCalls
	if !mgr.Update(context.Background(), ev, core.EventPatch{Title: &title}) {
		t.Fatalf("Update failed: %s", mgr.LastError())
	}
	if got := fake.fetchCalls - before; got != 1 {
		t.Errorf("update triggered %d fetches, want 1", got)
	}

	events := mgr.Events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	got := events[0]
	if got.Title != title {
		t.Errorf("Title = %q, want %q", got.Title, title)
	}
	if !got.Start.Equal(start) {
		t.Errorf("Start changed: %v, want %v", got.Start, start)
	}
	if got.Notes != "daily" {
		t.Errorf("Notes changed: %q, want %q", got.Notes, "daily")
	}
}

func TestDeleteMissingEventReportsFailureAndKeepsList(t *testing.T) {
	fake := newFakeProvider()
	kept := fake.seed("Keep me", time.Now().Add(time.Hour), time.Hour)

	mgr := session.NewManager(fake)
	mgr.Fetch(context.Background())

	if mgr.Delete(context.Background(), core.Event{ID: "ev-gone"}) {
		t.Fatal("Delete of a missing event reported success")
	}
	if mgr.LastError() == "" {
		t.Error("LastError is empty after failed delete")
	}

	events := mgr.Events()
	if len(events) != 1 || events[0].ID != kept.ID {
		t.Errorf("list changed after failed delete: %+v", events)
	}
}

func TestRequestAccessFetchesOnGrant(t *testing.T) {
	fake := newFakeProvider()
	fake.status = core.AuthNotDetermined
	fake.seed("Kickoff", time.Now().Add(time.Hour), time.Hour)

	mgr := session.NewManager(fake)
	mgr.Gate().CheckStatus(context.Background())

	if got := mgr.RequestAccess(context.Background()); got != core.AuthGranted {
		t.Fatalf("RequestAccess = %v, want granted", got)
	}
	if events := mgr.Events(); len(events) != 1 {
		t.Errorf("got %d events after grant, want 1", len(events))
	}
}

func TestFetchFailureKeepsListAndSetsError(t *testing.T) {
	fake := newFakeProvider()
	ev := fake.seed("Survivor", time.Now().Add(time.Hour), time.Hour)

	mgr := session.NewManager(fake)
	mgr.Fetch(context.Background())

	fake.failFetch = true
	mgr.Fetch(context.Background())

	if mgr.LastError() == "" {
		t.Error("LastError is empty after failed fetch")
	}
	events := mgr.Events()
	if len(events) != 1 || events[0].ID != ev.ID {
		t.Errorf("list changed after failed fetch: %+v", events)
	}

	// Recovery clears the error slot
	fake.failFetch = false
	mgr.Fetch(context.Background())
	if msg := mgr.LastError(); msg != "" {
		t.Errorf("LastError = %q after successful fetch, want empty", msg)
	}
}

func TestEventsReturnsACopy(t *testing.T) {
	fake := newFakeProvider()
	fake.seed("Original", time.Now().Add(time.Hour), time.Hour)

	mgr := session.NewManager(fake)
	mgr.Fetch(context.Background())

	leaked := mgr.Events()
	leaked[0].Title = "Tampered"

	if got := mgr.Events()[0].Title; got != "Original" {
		t.Errorf("Title = %q after mutating a returned slice, want %q", got, "Original")
	}
}

func TestOnChangeFiresOnMutationAndError(t *testing.T) {
	fake := newFakeProvider()
	mgr := session.NewManager(fake)

	calls := 0
	mgr.SetOnChange(func() { calls++ })

	mgr.Fetch(context.Background())
	if calls != 1 {
		t.Fatalf("onChange fired %d times after fetch, want 1", calls)
	}

	fake.failFetch = true
	mgr.Fetch(context.Background())
	if calls != 2 {
		t.Errorf("onChange fired %d times after failed fetch, want 2", calls)
	}

	mgr.ClearError()
	if calls != 3 {
		t.Errorf("onChange fired %d times after ClearError, want 3", calls)
	}
	if mgr.LastError() != "" {
		t.Error("LastError not cleared")
	}
}

func withNotes(ev core.Event, notes string) core.Event {
	ev.Notes = notes
	return ev
}

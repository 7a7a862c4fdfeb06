package core

import (
	"context"
	"time"
)

// Provider represents a calendar backend (Google, Outlook, CalDAV, ...).
// One Provider handle is created per process and reused for every
// operation, so that writes and reads observe the same session
// (default calendar selection, token refresh state, connection reuse).
type Provider interface {
	// ID returns the unique identifier from the config (e.g. "google")
	ID() string
	// Name returns a human-readable label (e.g. "Google Calendar")
	Name() string

	// AuthorizationStatus reports the current permission state without
	// side effects on the backend. It never fails; when the backend is
	// unreachable the last known state is returned.
	AuthorizationStatus(ctx context.Context) AuthStatus

	// RequestFullAccess issues the one-time permission flow (OAuth
	// consent, credential verification). It blocks until the user
	// responds or ctx is cancelled. Calling it while already denied is
	// a no-op that returns AuthDenied again.
	RequestFullAccess(ctx context.Context) (AuthStatus, error)

	// Calendars returns all calendars the user can read events from.
	Calendars(ctx context.Context) ([]CalendarRef, error)

	// DefaultCalendar returns the calendar new events are written to.
	DefaultCalendar(ctx context.Context) (CalendarRef, error)

	// Events retrieves single occurrences from all calendars
	// intersecting [start, end), recurrences expanded by the backend.
	Events(ctx context.Context, start, end time.Time) ([]Event, error)

	// LookupEvent fetches the backend's current representation of one
	// event by ID. Returns ErrNotFound when the event no longer exists.
	LookupEvent(ctx context.Context, id string) (Event, error)

	// Save persists ev durably before returning. An empty ev.ID
	// creates a new event (the returned Event carries the assigned ID);
	// a non-empty ID replaces the stored representation. occurrenceOnly
	// limits the write to this single occurrence of a recurring series.
	Save(ctx context.Context, ev Event, occurrenceOnly bool) (Event, error)

	// Remove deletes the event, committing before returning.
	Remove(ctx context.Context, ev Event, occurrenceOnly bool) error
}

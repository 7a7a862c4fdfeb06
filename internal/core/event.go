package core

import (
	"time"
)

// AuthStatus represents the user's calendar-access permission state.
type AuthStatus int

const (
	// No decision recorded yet; a request may be issued
	AuthNotDetermined AuthStatus = iota
	// Access granted
	AuthGranted
	// Access refused; the only way back is the provider's own settings surface
	AuthDenied
)

func (s AuthStatus) String() string {
	switch s {
	case AuthGranted:
		return "granted"
	case AuthDenied:
		return "denied"
	default:
		return "not-determined"
	}
}

// CalendarRef identifies the calendar an event belongs to.
type CalendarRef struct {
	// Opaque ID (e.g., "primary", "user@example.com", a CalDAV object path)
	ID string
	// Human-readable name (e.g., "Work", "Family")
	Name string
	// Display color as reported by the provider (hex string, may be empty)
	Color string
}

// All adapters (Google, Outlook, CalDAV) must convert their data to this
// format. Identity is by ID, never by value: two Events with the same ID
// are the same event regardless of field content.
type Event struct {
	// Unique ID, assigned by the provider. Empty on a not-yet-saved draft.
	ID string
	// Which calendar this event belongs to
	Calendar CalendarRef
	// Details. Title may be empty at this level; form layers enforce otherwise.
	Title string
	Notes string
	// Timing. End >= Start is expected but enforced upstream.
	Start    time.Time
	End      time.Time
	IsAllDay bool
}

// Duration returns the length of the event.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// InProgress checks if the event is happening right now.
func (e Event) InProgress(now time.Time) bool {
	return now.After(e.Start) && now.Before(e.End)
}

// EventPatch carries the fields of an update. A nil field means
// "retain the provider's current value".
type EventPatch struct {
	Title *string
	Start *time.Time
	End   *time.Time
	Notes *string
}

// IsZero reports whether the patch changes nothing.
func (p EventPatch) IsZero() bool {
	return p.Title == nil && p.Start == nil && p.End == nil && p.Notes == nil
}

// Apply returns a copy of ev with the patch's present fields applied.
func (p EventPatch) Apply(ev Event) Event {
	if p.Title != nil {
		ev.Title = *p.Title
	}
	if p.Start != nil {
		ev.Start = *p.Start
	}
	if p.End != nil {
		ev.End = *p.End
	}
	if p.Notes != nil {
		ev.Notes = *p.Notes
	}
	return ev
}

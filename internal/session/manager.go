// Package session owns the in-memory list of upcoming events and the
// four calendar operations (fetch, create, update, delete) against a
// provider. The provider, not this package, is authoritative: every
// successful mutation is followed by a full re-fetch rather than an
// incremental edit, because the backend may expand recurrences, move
// events between calendars, or merge concurrent writes from other
// devices.
package session

import (
	"context"
	"sort"
	"time"

	"upcal/internal/auth"
	"upcal/internal/core"
)

// Window is the forward-looking fetch range: [now, now+30d).
const Window = 30 * 24 * time.Hour

// Manager coordinates event state for the UI surfaces. All fields are
// read and written from a single goroutine (the CLI call or the TUI
// update loop); there is no internal locking.
type Manager struct {
	provider core.Provider
	gate     *auth.Gate

	events   []core.Event
	lastErr  string
	onChange func()

	// now is replaceable in tests
	now func() time.Time
}

// NewManager wires a manager and its gate to one long-lived provider
// handle. Constructing ad hoc providers per operation is not supported:
// the handle carries session state (default calendar, token refresh).
func NewManager(provider core.Provider) *Manager {
	m := &Manager{
		provider: provider,
		now:      time.Now,
	}
	m.gate = auth.NewGate(provider, m.recordError)
	return m
}

// Gate exposes the authorization gate for surface routing.
func (m *Manager) Gate() *auth.Gate {
	return m.gate
}

// SetOnChange registers a callback fired after every state mutation
// (event list replacement or error slot write). Pass nil to unregister.
func (m *Manager) SetOnChange(fn func()) {
	m.onChange = fn
}

// Events returns a copy of the current list, sorted ascending by start
// instant. Callers never receive an alias into the manager's own slice.
func (m *Manager) Events() []core.Event {
	out := make([]core.Event, len(m.events))
	copy(out, m.events)
	return out
}

// LastError returns the most recent failure message, or "" when the
// last operation succeeded or the slot was cleared.
func (m *Manager) LastError() string {
	return m.lastErr
}

// ClearError acknowledges a displayed error message.
func (m *Manager) ClearError() {
	m.lastErr = ""
	m.notify()
}

// RequestAccess runs the gate's permission flow; a fresh grant
// immediately populates the event list.
func (m *Manager) RequestAccess(ctx context.Context) core.AuthStatus {
	state := m.gate.RequestAccess(ctx)
	if state == core.AuthGranted {
		m.Fetch(ctx)
	}
	return state
}

// Fetch replaces the event list with the provider's view of the next
// 30 days, sorted ascending by start with provider order preserved on
// ties. On a read failure the list is left unchanged and the error
// slot is set; Fetch never reports failure to its caller directly.
func (m *Manager) Fetch(ctx context.Context) {
	start := m.now()
	end := start.Add(Window)

	fetched, err := m.provider.Events(ctx, start, end)
	if err != nil {
		m.recordError(core.NewProviderError(core.OpFetch, err).Error())
		return
	}

	sort.SliceStable(fetched, func(i, j int) bool {
		return fetched[i].Start.Before(fetched[j].Start)
	})

	m.events = fetched
	m.lastErr = ""
	m.notify()
}

// Create persists a new event on the provider's default writable
// calendar and re-fetches on success. Title is stored as given, even
// empty; non-empty titles are a form-layer rule, not a session rule.
func (m *Manager) Create(ctx context.Context, title string, start, end time.Time, notes string) bool {
	cal, err := m.provider.DefaultCalendar(ctx)
	if err != nil {
		m.recordError(core.NewProviderError(core.OpSave, err).Error())
		return false
	}

	draft := core.Event{
		Calendar: cal,
		Title:    title,
		Notes:    notes,
		Start:    start,
		End:      end,
	}

	if _, err := m.provider.Save(ctx, draft, true); err != nil {
		m.recordError(core.NewProviderError(core.OpSave, err).Error())
		return false
	}

	m.Fetch(ctx)
	return true
}

// Update applies the patch to the provider's current representation of
// the event (read-modify-write by ID, never through an alias into the
// local list), saves this single occurrence, and re-fetches on success.
func (m *Manager) Update(ctx context.Context, ev core.Event, patch core.EventPatch) bool {
	current, err := m.provider.LookupEvent(ctx, ev.ID)
	if err != nil {
		m.recordError(core.NewProviderError(core.OpUpdate, err).Error())
		return false
	}

	if _, err := m.provider.Save(ctx, patch.Apply(current), true); err != nil {
		m.recordError(core.NewProviderError(core.OpUpdate, err).Error())
		return false
	}

	m.Fetch(ctx)
	return true
}

// Delete removes this single occurrence, commits immediately, and
// re-fetches on success.
func (m *Manager) Delete(ctx context.Context, ev core.Event) bool {
	if err := m.provider.Remove(ctx, ev, true); err != nil {
		m.recordError(core.NewProviderError(core.OpRemove, err).Error())
		return false
	}

	m.Fetch(ctx)
	return true
}

// recordError overwrites the single error slot. Acceptable under the
// single-owner model; a concurrent-writer extension would need a queue.
func (m *Manager) recordError(msg string) {
	m.lastErr = msg
	m.notify()
}

func (m *Manager) notify() {
	if m.onChange != nil {
		m.onChange()
	}
}

package editor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"upcal/internal/core"
	"upcal/internal/editor"
)

// recordingProvider captures Save/Remove calls; the editor never uses
// the read side.
type recordingProvider struct {
	saved   []core.Event
	removed []core.Event
}

func (p *recordingProvider) ID() string   { return "rec" }
func (p *recordingProvider) Name() string { return "Recorder" }

func (p *recordingProvider) AuthorizationStatus(ctx context.Context) core.AuthStatus {
	return core.AuthGranted
}
func (p *recordingProvider) RequestFullAccess(ctx context.Context) (core.AuthStatus, error) {
	return core.AuthGranted, nil
}
func (p *recordingProvider) Calendars(ctx context.Context) ([]core.CalendarRef, error) {
	return nil, nil
}
func (p *recordingProvider) DefaultCalendar(ctx context.Context) (core.CalendarRef, error) {
	return core.CalendarRef{ID: "default"}, nil
}
func (p *recordingProvider) Events(ctx context.Context, start, end time.Time) ([]core.Event, error) {
	return nil, nil
}
func (p *recordingProvider) LookupEvent(ctx context.Context, id string) (core.Event, error) {
	return core.Event{}, core.ErrNotFound
}

func (p *recordingProvider) Save(ctx context.Context, ev core.Event, occurrenceOnly bool) (core.Event, error) {
	if ev.ID == "" {
		ev.ID = "ev-new"
	}
	p.saved = append(p.saved, ev)
	return ev, nil
}

func (p *recordingProvider) Remove(ctx context.Context, ev core.Event, occurrenceOnly bool) error {
	p.removed = append(p.removed, ev)
	return nil
}

// script writes an executable shell script and returns its path for use
// as the editor command.
func script(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fake-editor.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write fake editor: %v", err)
	}
	return path
}

func sampleEvent() core.Event {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	return core.Event{
		ID:       "ev-1",
		Calendar: core.CalendarRef{ID: "default", Name: "Default"},
		Title:    "Planning",
		Start:    start,
		End:      start.Add(time.Hour),
	}
}

func TestUntouchedBufferCancels(t *testing.T) {
	provider := &recordingProvider{}
	ed := &editor.Editor{Provider: provider, Command: "true"}

	ev := sampleEvent()
	var outcomes []editor.Outcome
	err := ed.Open(context.Background(), &ev, func(o editor.Outcome) { outcomes = append(outcomes, o) })
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if len(outcomes) != 1 || outcomes[0] != editor.OutcomeCanceled {
		t.Errorf("outcomes = %v, want exactly one OutcomeCanceled", outcomes)
	}
	if len(provider.saved) != 0 || len(provider.removed) != 0 {
		t.Error("provider was written to on a cancel")
	}
}

func TestEditedBufferSaves(t *testing.T) {
	provider := &recordingProvider{}
	ed := &editor.Editor{
		Provider: provider,
		Command: script(t, `printf 'title: Edited\nstart: 2026-09-01T10:00:00Z\nend: 2026-09-01T11:30:00Z\nall_day: false\nnotes: from the editor\n' > "$1"`),
	}

	ev := sampleEvent()
	var outcomes []editor.Outcome
	if err := ed.Open(context.Background(), &ev, func(o editor.Outcome) { outcomes = append(outcomes, o) }); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if len(outcomes) != 1 || outcomes[0] != editor.OutcomeSaved {
		t.Fatalf("outcomes = %v, want exactly one OutcomeSaved", outcomes)
	}
	if len(provider.saved) != 1 {
		t.Fatalf("provider received %d saves, want 1", len(provider.saved))
	}

	got := provider.saved[0]
	if got.ID != "ev-1" {
		t.Errorf("saved ID = %q, want the existing event's ID", got.ID)
	}
	if got.Title != "Edited" || got.Notes != "from the editor" {
		t.Errorf("saved event = %+v", got)
	}
	if want := 90 * time.Minute; got.Duration() != want {
		t.Errorf("saved duration = %v, want %v", got.Duration(), want)
	}
}

func TestEmptiedBufferDeletesExistingEvent(t *testing.T) {
	provider := &recordingProvider{}
	ed := &editor.Editor{Provider: provider, Command: script(t, `: > "$1"`)}

	ev := sampleEvent()
	var outcomes []editor.Outcome
	if err := ed.Open(context.Background(), &ev, func(o editor.Outcome) { outcomes = append(outcomes, o) }); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if len(outcomes) != 1 || outcomes[0] != editor.OutcomeDeleted {
		t.Errorf("outcomes = %v, want exactly one OutcomeDeleted", outcomes)
	}
	if len(provider.removed) != 1 || provider.removed[0].ID != "ev-1" {
		t.Errorf("removed = %+v, want the existing event", provider.removed)
	}
}

func TestEmptiedBufferOnNewDraftCancels(t *testing.T) {
	provider := &recordingProvider{}
	ed := &editor.Editor{Provider: provider, Command: script(t, `: > "$1"`)}

	var outcomes []editor.Outcome
	if err := ed.Open(context.Background(), nil, func(o editor.Outcome) { outcomes = append(outcomes, o) }); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if len(outcomes) != 1 || outcomes[0] != editor.OutcomeCanceled {
		t.Errorf("outcomes = %v, want exactly one OutcomeCanceled", outcomes)
	}
	if len(provider.saved) != 0 || len(provider.removed) != 0 {
		t.Error("provider was written to after emptying a new draft")
	}
}

func TestEditorFailureStillCompletesOnce(t *testing.T) {
	provider := &recordingProvider{}
	ed := &editor.Editor{Provider: provider, Command: "false"}

	ev := sampleEvent()
	var outcomes []editor.Outcome
	err := ed.Open(context.Background(), &ev, func(o editor.Outcome) { outcomes = append(outcomes, o) })
	if err == nil {
		t.Fatal("Open succeeded with a failing editor")
	}

	if len(outcomes) != 1 || outcomes[0] != editor.OutcomeCanceled {
		t.Errorf("outcomes = %v, want exactly one OutcomeCanceled", outcomes)
	}
	if len(provider.saved) != 0 || len(provider.removed) != 0 {
		t.Error("provider was written to after an editor failure")
	}
}

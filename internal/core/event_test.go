package core_test

import (
	"testing"
	"time"

	"upcal/internal/core"
)

func TestEventPatchApply(t *testing.T) {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	base := core.Event{
		ID:    "ev-1",
		Title: "Planning",
		Notes: "bring slides",
		Start: start,
		End:   start.Add(time.Hour),
	}

	newTitle := "Planning (moved)"
	newStart := start.Add(24 * time.Hour)
	newEnd := newStart.Add(30 * time.Minute)
	empty := ""

	tests := []struct {
		name  string
		patch core.EventPatch
		want  core.Event
	}{
		{
			name:  "zero patch changes nothing",
			patch: core.EventPatch{},
			want:  base,
		},
		{
			name:  "title only",
			patch: core.EventPatch{Title: &newTitle},
			want: core.Event{
				ID: "ev-1", Title: newTitle, Notes: "bring slides",
				Start: start, End: start.Add(time.Hour),
			},
		},
		{
			name:  "times only",
			patch: core.EventPatch{Start: &newStart, End: &newEnd},
			want: core.Event{
				ID: "ev-1", Title: "Planning", Notes: "bring slides",
				Start: newStart, End: newEnd,
			},
		},
		{
			name:  "notes cleared with present empty string",
			patch: core.EventPatch{Notes: &empty},
			want: core.Event{
				ID: "ev-1", Title: "Planning", Notes: "",
				Start: start, End: start.Add(time.Hour),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.patch.Apply(base)
			if got != tt.want {
				t.Errorf("Apply = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEventPatchIsZero(t *testing.T) {
	if !(core.EventPatch{}).IsZero() {
		t.Error("empty patch reported non-zero")
	}

	s := ""
	if (core.EventPatch{Notes: &s}).IsZero() {
		t.Error("patch with a present empty field reported zero")
	}
}

func TestEventInProgress(t *testing.T) {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	ev := core.Event{Start: start, End: start.Add(time.Hour)}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before", start.Add(-time.Minute), false},
		{"during", start.Add(30 * time.Minute), true},
		{"after", start.Add(2 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ev.InProgress(tt.now); got != tt.want {
				t.Errorf("InProgress(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestAuthStatusString(t *testing.T) {
	tests := []struct {
		status core.AuthStatus
		want   string
	}{
		{core.AuthNotDetermined, "not-determined"},
		{core.AuthGranted, "granted"},
		{core.AuthDenied, "denied"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", int(tt.status), got, tt.want)
		}
	}
}

package google

import (
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"

	"upcal/internal/core"
)

func TestParseEvent(t *testing.T) {
	cal := core.CalendarRef{ID: "primary", Name: "Personal"}

	tests := []struct {
		name       string
		item       *calendar.Event
		wantStart  time.Time
		wantEnd    time.Time
		wantAllDay bool
	}{
		{
			name: "timed event",
			item: &calendar.Event{
				Id:      "ev-1",
				Summary: "Sync",
				Start:   &calendar.EventDateTime{DateTime: "2026-09-01T10:00:00Z"},
				End:     &calendar.EventDateTime{DateTime: "2026-09-01T11:00:00Z"},
			},
			wantStart: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC),
		},
		{
			name: "all-day event",
			item: &calendar.Event{
				Id:      "ev-2",
				Summary: "Conference",
				Start:   &calendar.EventDateTime{Date: "2026-09-10"},
				End:     &calendar.EventDateTime{Date: "2026-09-11"},
			},
			wantStart:  time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
			wantEnd:    time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC),
			wantAllDay: true,
		},
		{
			name: "timed event with missing end",
			item: &calendar.Event{
				Id:      "ev-3",
				Summary: "Open ended",
				Start:   &calendar.EventDateTime{DateTime: "2026-09-01T10:00:00Z"},
			},
			wantStart: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "all-day event with missing end",
			item: &calendar.Event{
				Id:      "ev-4",
				Summary: "Marker",
				Start:   &calendar.EventDateTime{Date: "2026-09-10"},
			},
			wantStart:  time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
			wantAllDay: true,
		},
		{
			name: "no timing at all",
			item: &calendar.Event{Id: "ev-5", Summary: "Bare"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseEvent(tt.item, cal)

			if got.ID != tt.item.Id || got.Title != tt.item.Summary {
				t.Errorf("identity = (%q, %q), want (%q, %q)", got.ID, got.Title, tt.item.Id, tt.item.Summary)
			}
			if !got.Start.Equal(tt.wantStart) {
				t.Errorf("Start = %v, want %v", got.Start, tt.wantStart)
			}
			if !got.End.Equal(tt.wantEnd) {
				t.Errorf("End = %v, want %v", got.End, tt.wantEnd)
			}
			if got.IsAllDay != tt.wantAllDay {
				t.Errorf("IsAllDay = %v, want %v", got.IsAllDay, tt.wantAllDay)
			}
			if got.Calendar != cal {
				t.Errorf("Calendar = %+v, want %+v", got.Calendar, cal)
			}
		})
	}
}

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"upcal/internal/core"
)

var (
	addStart    string
	addEnd      string
	addDuration time.Duration
	addNotes    string
	addAllDay   bool
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create an event on your default calendar",
	Long: `Create an event on your provider's default calendar.

Times are local. --end and --duration are alternatives; with neither,
the event lasts one hour.

Examples:
  upcal add "Team sync" --start "tomorrow 10:00"
  upcal add "Offsite" --start "2026-09-03 09:00" --end "2026-09-03 17:30"
  upcal add "1:1" --start 14:00 --duration 30m --notes "bring the roadmap"
  upcal add "Conference" --start 2026-09-10 --all-day`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addStart, "start", "s", "", "start time (required)")
	addCmd.Flags().StringVarP(&addEnd, "end", "e", "", "end time")
	addCmd.Flags().DurationVar(&addDuration, "duration", 0, "event length (alternative to --end)")
	addCmd.Flags().StringVarP(&addNotes, "notes", "n", "", "free-form notes")
	addCmd.Flags().BoolVar(&addAllDay, "all-day", false, "all-day event; --start and --end take dates")
	addCmd.MarkFlagRequired("start")

	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	if err := requireAccess(); err != nil {
		return err
	}

	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		return fmt.Errorf("title must not be empty")
	}

	if addAllDay {
		return runAddAllDay(cmd, title)
	}

	start, err := parseDateTime(addStart)
	if err != nil {
		return err
	}

	var end time.Time
	switch {
	case addEnd != "" && addDuration != 0:
		return fmt.Errorf("--end and --duration are mutually exclusive")
	case addEnd != "":
		end, err = parseDateTime(addEnd)
		if err != nil {
			return err
		}
	case addDuration != 0:
		end = start.Add(addDuration)
	default:
		end = start.Add(time.Hour)
	}

	if !end.After(start) {
		return fmt.Errorf("end (%s) must be after start (%s)", end.Format("Jan 2 15:04"), start.Format("Jan 2 15:04"))
	}

	if !manager.Create(cmd.Context(), title, start, end, addNotes) {
		return fmt.Errorf("create failed: %s", manager.LastError())
	}

	fmt.Printf("✅ Created %q, %s\n", title, formatEventTime(start, end, false))
	return nil
}

// runAddAllDay writes the draft through the provider directly: the
// manager's Create is a timed-event path, and like the external editor
// we re-fetch afterwards so the list reflects the provider's view.
func runAddAllDay(cmd *cobra.Command, title string) error {
	day, err := parseDate(addStart)
	if err != nil {
		return err
	}

	// Exclusive end: a one-day event ends at the next midnight
	end := day.AddDate(0, 0, 1)
	if addEnd != "" {
		last, err := parseDate(addEnd)
		if err != nil {
			return err
		}
		end = last.AddDate(0, 0, 1)
	}
	if !end.After(day) {
		return fmt.Errorf("end date must not be before the start date")
	}

	cal, err := provider.DefaultCalendar(cmd.Context())
	if err != nil {
		return err
	}

	draft := core.Event{
		Calendar: cal,
		Title:    title,
		Notes:    addNotes,
		Start:    day,
		End:      end,
		IsAllDay: true,
	}
	if _, err := provider.Save(cmd.Context(), draft, true); err != nil {
		return fmt.Errorf("create failed: %w", err)
	}

	manager.Fetch(cmd.Context())
	fmt.Printf("✅ Created %q, %s\n", title, formatEventTime(day, end, true))
	return nil
}

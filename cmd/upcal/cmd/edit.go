package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"upcal/internal/core"
	"upcal/internal/editor"
)

var (
	editTitle  string
	editStart  string
	editEnd    string
	editNotes  string
	editInTool bool
)

var editCmd = &cobra.Command{
	Use:   "edit <event>",
	Short: "Change an event",
	Long: `Change a single event, found by ID or by a title match among your
upcoming events.

Flags patch individual fields; only the flags you pass change. With
--editor the event opens in $EDITOR as a YAML document instead, and
emptying the buffer deletes it.

Examples:
  upcal edit "team sync" --start "tomorrow 11:00"
  upcal edit "team sync" --title "Weekly sync" --notes ""
  upcal edit "offsite" --editor`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringVar(&editTitle, "title", "", "new title")
	editCmd.Flags().StringVar(&editStart, "start", "", "new start time")
	editCmd.Flags().StringVar(&editEnd, "end", "", "new end time")
	editCmd.Flags().StringVar(&editNotes, "notes", "", "new notes")
	editCmd.Flags().BoolVar(&editInTool, "editor", false, "open the event in $EDITOR")

	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	if err := requireAccess(); err != nil {
		return err
	}

	ev, err := resolveEvent(cmd, args[0])
	if err != nil {
		return err
	}

	if editInTool {
		return runEditorSession(cmd, ev)
	}

	var patch core.EventPatch
	if cmd.Flags().Changed("title") {
		patch.Title = &editTitle
	}
	if cmd.Flags().Changed("notes") {
		patch.Notes = &editNotes
	}
	if cmd.Flags().Changed("start") {
		t, err := parseDateTime(editStart)
		if err != nil {
			return err
		}
		patch.Start = &t
	}
	if cmd.Flags().Changed("end") {
		t, err := parseDateTime(editEnd)
		if err != nil {
			return err
		}
		patch.End = &t
	}

	if patch.IsZero() {
		return fmt.Errorf("nothing to change; pass --title, --start, --end, --notes, or --editor")
	}

	if !manager.Update(cmd.Context(), ev, patch) {
		return fmt.Errorf("update failed: %s", manager.LastError())
	}

	fmt.Println("✅ Updated:")
	if updated := findByID(manager.Events(), ev.ID); updated != nil {
		printEventDetail(*updated)
	}
	return nil
}

// runEditorSession hands the event to $EDITOR and re-fetches once the
// completion callback reports what happened.
func runEditorSession(cmd *cobra.Command, ev core.Event) error {
	ed := &editor.Editor{Provider: provider}

	var outcome editor.Outcome
	err := ed.Open(cmd.Context(), &ev, func(o editor.Outcome) { outcome = o })
	if err != nil {
		return err
	}

	manager.Fetch(cmd.Context())

	switch outcome {
	case editor.OutcomeSaved:
		fmt.Println("✅ Saved.")
	case editor.OutcomeDeleted:
		fmt.Println("🗑️  Deleted.")
	default:
		fmt.Println("Canceled; nothing changed.")
	}
	return nil
}

// resolveEvent finds one upcoming event by exact ID or by
// case-insensitive title substring. Ambiguity is an error that lists
// the candidates.
func resolveEvent(cmd *cobra.Command, arg string) (core.Event, error) {
	manager.Fetch(cmd.Context())
	if msg := manager.LastError(); msg != "" {
		return core.Event{}, fmt.Errorf("%s", msg)
	}

	events := manager.Events()
	if ev := findByID(events, arg); ev != nil {
		return *ev, nil
	}

	needle := strings.ToLower(arg)
	var matches []core.Event
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.Title), needle) {
			matches = append(matches, ev)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return core.Event{}, fmt.Errorf("no upcoming event matches %q", arg)
	default:
		var lines []string
		for _, ev := range matches {
			lines = append(lines, fmt.Sprintf("  %s  %s  (%s)", ev.Start.Local().Format("Jan 2 15:04"), ev.Title, ev.ID))
		}
		return core.Event{}, fmt.Errorf("%q matches %d events; use the ID:\n%s", arg, len(matches), strings.Join(lines, "\n"))
	}
}

func findByID(events []core.Event, id string) *core.Event {
	for i := range events {
		if events[i].ID == id {
			return &events[i]
		}
	}
	return nil
}

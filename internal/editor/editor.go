// Package editor is the full-featured editing surface: it hands the
// event to the user's own $EDITOR as a YAML document and writes the
// result straight to the provider, outside the session manager's CRUD
// paths. Callers must re-fetch after the completion callback fires.
package editor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"upcal/internal/core"
)

// Outcome reports what the user did in the editor.
type Outcome int

const (
	// Buffer left untouched; nothing written to the provider
	OutcomeCanceled Outcome = iota
	// Event created or updated
	OutcomeSaved
	// Buffer emptied; existing event removed
	OutcomeDeleted
)

// draft is the YAML shape presented to the user.
type draft struct {
	Title  string    `yaml:"title"`
	Start  time.Time `yaml:"start"`
	End    time.Time `yaml:"end"`
	AllDay bool      `yaml:"all_day"`
	Notes  string    `yaml:"notes,omitempty"`
}

// Editor drives one edit session against a provider handle.
type Editor struct {
	Provider core.Provider
	// Command overrides $EDITOR (tests use "true" / "cp fixture").
	Command string
}

// Open serializes ev (or a blank one-hour draft when ev is nil),
// launches the editor, and applies the result. done fires exactly once
// regardless of outcome, including on error, mirroring a modal editing
// surface's single dismissal signal.
func (e *Editor) Open(ctx context.Context, ev *core.Event, done func(Outcome)) error {
	outcome := OutcomeCanceled
	if done != nil {
		defer func() { done(outcome) }()
	}

	var d draft
	var existing core.Event
	if ev != nil {
		existing = *ev
		d = draft{
			Title:  ev.Title,
			Start:  ev.Start,
			End:    ev.End,
			AllDay: ev.IsAllDay,
			Notes:  ev.Notes,
		}
	} else {
		now := time.Now().Truncate(time.Minute)
		d = draft{Start: now.Add(time.Hour), End: now.Add(2 * time.Hour)}
	}

	original, err := yaml.Marshal(&d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	f, err := os.CreateTemp("", "upcal-event-*.yaml")
	if err != nil {
		return fmt.Errorf("create draft file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(original); err != nil {
		f.Close()
		return fmt.Errorf("write draft: %w", err)
	}
	f.Close()

	if err := e.run(ctx, path); err != nil {
		return err
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read draft back: %w", err)
	}

	if bytes.Equal(bytes.TrimSpace(edited), bytes.TrimSpace(original)) {
		return nil // untouched buffer = cancel
	}

	if len(bytes.TrimSpace(edited)) == 0 {
		if existing.ID == "" {
			return nil // emptied a new draft = cancel
		}
		if err := e.Provider.Remove(ctx, existing, true); err != nil {
			return core.NewProviderError(core.OpRemove, err)
		}
		outcome = OutcomeDeleted
		return nil
	}

	var out draft
	if err := yaml.Unmarshal(edited, &out); err != nil {
		return fmt.Errorf("parse edited draft: %w", err)
	}

	next := existing
	next.Title = out.Title
	next.Start = out.Start
	next.End = out.End
	next.IsAllDay = out.AllDay
	next.Notes = out.Notes

	if _, err := e.Provider.Save(ctx, next, true); err != nil {
		return core.NewProviderError(core.OpSave, err)
	}
	outcome = OutcomeSaved
	return nil
}

func (e *Editor) run(ctx context.Context, path string) error {
	command := e.Command
	if command == "" {
		command = os.Getenv("EDITOR")
	}
	if command == "" {
		command = "vi"
	}

	// $EDITOR may carry arguments ("code --wait") or a quoted binary
	// path containing spaces
	parts := splitCommand(command)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	args := append(parts[1:], path)

	cmd := exec.CommandContext(ctx, parts[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run editor %q: %w", command, err)
	}
	return nil
}

// splitCommand splits an editor command into argv, honoring single and
// double quotes. No escape handling: a shell-grade value belongs in a
// wrapper script.
func splitCommand(s string) []string {
	var args []string
	var cur strings.Builder
	var quote rune
	inArg := false

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args
}

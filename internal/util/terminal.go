// Package util holds small terminal output helpers shared by the CLI
// and the interactive view.
package util

import "fmt"

// MakeHyperlink wraps displayText in an OSC 8 terminal hyperlink.
// Terminals without OSC 8 support render the display text unchanged.
func MakeHyperlink(url, displayText string) string {
	// BEL terminator (\a) rather than ST for wider terminal support
	return fmt.Sprintf("\033]8;;%s\a%s\033]8;;\a", url, displayText)
}

// TruncateText truncates s to maxLen runes, appending "…" if truncated.
func TruncateText(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return "…"
	}
	return string(runes[:maxLen-1]) + "…"
}

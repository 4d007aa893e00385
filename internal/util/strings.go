// Package util holds small text helpers shared by the CLI and the Discord
// surface.
package util

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Ellipsis marks truncated text.
const Ellipsis = "…"

// Ellipsize shortens s to at most maxRunes runes, ending with Ellipsis when
// anything was cut. It ignores escape codes, so use it for plain text such as
// chat messages.
func Ellipsize(s string, maxRunes int) string {
	if maxRunes < 1 {
		return Ellipsis
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes-1]) + Ellipsis
}

// FitWidth shortens s to at most width terminal columns. Styled strings keep
// their escape sequences and wide characters count as two columns.
func FitWidth(s string, width int) string {
	if width < 1 {
		return Ellipsis
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, Ellipsis)
}

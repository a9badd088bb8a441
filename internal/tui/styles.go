package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme colors
var (
	ColorBrand  = lipgloss.Color("99")  // Primary purple
	ColorMuted  = lipgloss.Color("241") // Labels, static text
	ColorBright = lipgloss.Color("255") // Dynamic values, emphasis
	ColorAccent = lipgloss.Color("99")  // Action keys
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBrand).
			MarginLeft(2)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			MarginTop(1).
			MarginLeft(2)
)

// KeyHint creates a keyboard hint like "[k] action"
func KeyHint(key, action string) string {
	keyStyle := lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true)

	actionStyle := lipgloss.NewStyle().
		Foreground(ColorMuted)

	return keyStyle.Render("["+key+"]") + " " + actionStyle.Render(action)
}

// KeyHints joins multiple key hints
func KeyHints(hints ...string) string {
	return strings.Join(hints, "  ")
}

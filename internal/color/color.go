// Package color provides color detection and theming for operator output.
package color

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Profile detects the current color profile based on environment variables and flags.
// Returns true if color output should be enabled.
//
// Color is disabled when any of:
//   - NO_COLOR env is set (any value, per https://no-color.org)
//   - CLICOLOR=0
//   - TERM=dumb
//   - noColorFlag is true (--no-color CLI flag)
func Profile(noColorFlag bool) bool {
	if noColorFlag {
		return false
	}

	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}

	if os.Getenv("CLICOLOR") == "0" {
		return false
	}

	if os.Getenv("TERM") == "dumb" {
		return false
	}

	return true
}

// IsTerminal returns true if the given file is a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// IsInteractive reports whether both stdin and stdout are terminals, which
// huh forms need.
func IsInteractive() bool {
	return IsTerminal(os.Stdin) && IsTerminal(os.Stdout)
}

// Theme holds lipgloss styles for flow output.
type Theme struct {
	Step     lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Advisory lipgloss.Style
	Info     lipgloss.Style
	Header   lipgloss.Style
	Key      lipgloss.Style
	Muted    lipgloss.Style
}

// NewTheme creates a Theme. When color is false, all styles are empty (no ANSI codes).
func NewTheme(color bool) Theme {
	if !color {
		return Theme{}
	}

	return Theme{
		Step:     lipgloss.NewStyle().Foreground(lipgloss.Color("12")), // bright blue
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")), // bright green
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Advisory: lipgloss.NewStyle().Foreground(lipgloss.Color("11")), // bright yellow
		Info:     lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Header:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
		Key:      lipgloss.NewStyle().Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")), // gray
	}
}

// Package ui holds the terminal palette and the styled output helpers
// used by the commands. Styling is applied only when the destination is
// a terminal, so piped output stays plain.
package ui

import "github.com/charmbracelet/lipgloss"

// --- Color palette ---

var (
	White = lipgloss.Color("#E2E2E2")
	Gray  = lipgloss.Color("#888888")
	Muted = lipgloss.Color("#555555")
	Blue  = lipgloss.Color("#5FAFFF")

	Green  = lipgloss.Color("#5FD787")
	Yellow = lipgloss.Color("#FFD787")
	Red    = lipgloss.Color("#FF8787")
)

// --- Typography ---

var (
	// Title is the header text style.
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(White)

	// Label is used for field names in detail views.
	Label = lipgloss.NewStyle().
		Foreground(Gray).
		Bold(true)

	// MutedText is for hints and less important info.
	MutedText = lipgloss.NewStyle().
			Foreground(Muted)

	// AccentText highlights names and addresses.
	AccentText = lipgloss.NewStyle().
			Foreground(Blue)

	ErrorText = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	SuccessText = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	WarningText = lipgloss.NewStyle().
			Foreground(Yellow).
			Bold(true)
)

// StatusStyle returns the style for a server status value.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "running", "succeeded":
		return lipgloss.NewStyle().Foreground(Green).Bold(true)
	case "initializing", "starting", "rebuilding", "migrating":
		return lipgloss.NewStyle().Foreground(Yellow).Bold(true)
	case "stopping", "deleting":
		return lipgloss.NewStyle().Foreground(Yellow)
	case "off", "failed":
		return lipgloss.NewStyle().Foreground(Red)
	default:
		return lipgloss.NewStyle().Foreground(Gray)
	}
}

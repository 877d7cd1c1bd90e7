package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Ink-wash palette
	inkCyan   = lipgloss.Color("#5FD7D7")
	sealRed   = lipgloss.Color("#D75F5F")
	jadeGreen = lipgloss.Color("#87D787")
	amber     = lipgloss.Color("#FFAF5F")
	paperBg   = lipgloss.Color("#1C1C1C")
	panelBg   = lipgloss.Color("#262626")
	dimWhite  = lipgloss.Color("#A8A8A8")

	baseStyle = lipgloss.NewStyle().
			Background(paperBg).
			Foreground(dimWhite)

	logoStyle = lipgloss.NewStyle().
			Foreground(inkCyan).
			Bold(true).
			Padding(1, 0).
			Align(lipgloss.Center)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(sealRed).
			Background(panelBg).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Background(sealRed).
			Foreground(paperBg).
			Bold(true).
			Padding(0, 1)

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(inkCyan).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(amber)

	successStyle = lipgloss.NewStyle().
			Foreground(jadeGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(sealRed).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(amber).
			Bold(true)

	chapterActiveStyle = lipgloss.NewStyle().
				Foreground(jadeGreen).
				Bold(true)

	chapterDoneStyle = lipgloss.NewStyle().
				Foreground(dimWhite).
				Faint(true)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))

	logMessageStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 2)
)

// stateStyle picks the colour for a chapter row
func stateStyle(s string) lipgloss.Style {
	switch s {
	case "completed", "skipped":
		return chapterDoneStyle
	case "failed":
		return errorStyle
	case "extracting", "downloading":
		return chapterActiveStyle
	default:
		return logMessageStyle
	}
}

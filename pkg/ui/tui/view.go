package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, logoStyle.Width(m.width).Render(logo))

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel((m.width-4)/2),
		m.renderCurrentPanel((m.width-4)/2),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderChaptersPanel((m.width-4)/2),
		m.renderLogsPanel((m.width-4)/2),
	)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else if m.finished {
		sections = append(sections, helpStyle.Render("Run over. Press enter to exit"))
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to stop"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

const logo = `
╔═══════════════════════════════════════╗
║   漫 画 柜   M H G S C R A P E R      ║
╚═══════════════════════════════════════╝`

func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" RUN ")

	elapsed := time.Since(m.started)
	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Series:"), statsValueStyle.Render(m.series)),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(formatDuration(elapsed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Completed:"), statsValueStyle.Render(fmt.Sprintf("%d chapters", m.completed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Skipped:"), statsValueStyle.Render(fmt.Sprintf("%d chapters", m.skipped))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Pages:"), statsValueStyle.Render(fmt.Sprintf("%d (%s)", m.pages, FormatBytes(m.bytes)))),
	}

	switch {
	case m.finished && m.runErr != nil:
		stats = append(stats, errorStyle.Render("✗ STOPPED"))
	case m.finished:
		stats = append(stats, successStyle.Render("✓ DONE"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m *Model) renderCurrentPanel(width int) string {
	title := titleStyle.Render(" CURRENT CHAPTER ")

	item := m.Current()
	if item == nil {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("Idle")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	ratio := 0.0
	if item.Pages > 0 {
		ratio = float64(item.Dispatched) / float64(item.Pages)
	}
	if ratio > 1 {
		ratio = 1
	}

	bar := m.bar
	if width > 24 {
		bar.Width = width - 8
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		fmt.Sprintf("%s %s", m.spinner.View(), chapterActiveStyle.Render(label(item))),
		fmt.Sprintf("%s [%d/%d]", string(item.State), item.Dispatched, item.Pages),
		bar.ViewAs(ratio),
	)
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m *Model) renderChaptersPanel(width int) string {
	title := titleStyle.Render(" CHAPTERS ")

	chapters := m.Chapters()
	start := len(chapters) - 8
	if start < 0 {
		start = 0
	}

	var rows []string
	for _, item := range chapters[start:] {
		icon := "•"
		switch string(item.State) {
		case "completed":
			icon = "✓"
		case "skipped":
			icon = "↷"
		case "failed":
			icon = "✗"
		}
		rows = append(rows, stateStyle(string(item.State)).Render(truncate(icon+" "+label(item), width-4)))
	}
	if len(rows) == 0 {
		rows = append(rows, lipgloss.NewStyle().Foreground(dimWhite).Render("Waiting for chapters..."))
	}
	if m.failed > 0 {
		rows = append(rows, warningStyle.Render(fmt.Sprintf("%d failed", m.failed)))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := logMessageStyle.Render(truncate(log.Message, width-25))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Stop the run and quit
    enter    - Exit once the run is over
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Chapters:
    ` + successStyle.Render("✓") + `        - Downloaded and recorded
    ↷        - Already in the ledger
    ` + errorStyle.Render("✗") + `        - Failed, run stopped
`
	return panelStyle.Width(m.width).Render(help)
}

// truncate shortens s to n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

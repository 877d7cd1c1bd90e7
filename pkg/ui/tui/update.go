package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"mhgscraper/pkg/scraper"
)

// refreshInterval paces redraws of the elapsed-time panel
const refreshInterval = 100 * time.Millisecond

// ChapterEventMsg carries a chapter state change
type ChapterEventMsg struct {
	Event scraper.Event
}

// PageTickMsg is sent once per dispatched image of the current chapter
type PageTickMsg struct{}

// RunFinishedMsg is sent when the series run returns
type RunFinishedMsg struct {
	Report *scraper.Report
	Err    error
}

// LogMsg appends a line to the log panel
type LogMsg struct {
	Level   string
	Message string
}

type refreshMsg time.Time

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Update applies run messages and key presses to the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case refreshMsg:
		// Stop redrawing once the run is over; the last frame stays up
		if !m.finished {
			return m, refresh()
		}

	case ChapterEventMsg:
		m.ApplyEvent(msg.Event)

	case PageTickMsg:
		m.AddTick()

	case RunFinishedMsg:
		m.Finish(msg.Report, msg.Err)

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
	}

	return m, nil
}

// handleKey quits on q or ctrl+c, and also on enter or esc once the run is
// over. Quitting an unfinished run calls onQuit first.
func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m.quit()
	case tea.KeyEnter, tea.KeyEsc:
		if m.finished {
			return tea.Quit
		}
		return nil
	case tea.KeyCtrlL:
		m.logMessages = nil
		return nil
	}

	switch msg.String() {
	case "q", "Q":
		return m.quit()
	case "?":
		m.showHelp = !m.showHelp
	}
	return nil
}

func (m *Model) quit() tea.Cmd {
	if !m.finished && m.onQuit != nil {
		m.onQuit()
	}
	return tea.Quit
}

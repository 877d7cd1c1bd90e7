package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mhgscraper/pkg/scraper"
)

// ChapterItem is one row of the dashboard
type ChapterItem struct {
	URL        string
	Title      string
	State      scraper.State
	Pages      int
	Dispatched int
	Bytes      int64
	Err        error
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the dashboard state. It is only touched from the bubbletea loop.
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	series   string
	chapters map[string]*ChapterItem
	order    []string
	current  string

	completed int
	skipped   int
	failed    int
	pages     int
	bytes     int64
	started   time.Time

	finished bool
	runErr   error

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	onQuit func()
}

// NewModel creates the dashboard for one series run. onQuit runs when the
// user quits before the run ends.
func NewModel(series string, onQuit func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(inkCyan)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return Model{
		spinner:        s,
		bar:            bar,
		series:         series,
		chapters:       make(map[string]*ChapterItem),
		started:        time.Now(),
		maxLogMessages: 50,
		onQuit:         onQuit,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refresh())
}

// ApplyEvent records a chapter state change
func (m *Model) ApplyEvent(e scraper.Event) {
	item, ok := m.chapters[e.URL]
	if !ok {
		item = &ChapterItem{URL: e.URL}
		m.chapters[e.URL] = item
		m.order = append(m.order, e.URL)
	}

	item.State = e.State
	if e.Title != "" {
		item.Title = e.Title
	}
	if e.Pages > 0 {
		item.Pages = e.Pages
	}

	switch e.State {
	case scraper.StateExtracting:
		m.current = e.URL
	case scraper.StateDownloading:
		m.current = e.URL
		item.Dispatched = 0
		m.AddLogMessage("INFO", fmt.Sprintf("Downloading %s (%d pages)", item.Title, item.Pages))
	case scraper.StateCompleted:
		item.Bytes = e.Bytes
		m.completed++
		m.pages += item.Pages
		m.bytes += e.Bytes
		m.AddLogMessage("SUCCESS", "Completed: "+item.Title)
	case scraper.StateSkipped:
		m.skipped++
	case scraper.StateFailed:
		item.Err = e.Err
		m.failed++
		m.AddLogMessage("ERROR", fmt.Sprintf("Failed: %s - %v", label(item), e.Err))
	}
}

// AddTick advances the current chapter's page counter
func (m *Model) AddTick() {
	if item := m.Current(); item != nil {
		item.Dispatched++
	}
}

// Finish marks the run as over
func (m *Model) Finish(report *scraper.Report, err error) {
	m.finished = true
	m.runErr = err
	m.current = ""
	if err != nil {
		m.AddLogMessage("ERROR", "Run stopped: "+err.Error())
		return
	}
	if report != nil {
		m.AddLogMessage("SUCCESS", fmt.Sprintf("Run finished: %d chapters, %d skipped", report.Completed, report.Skipped))
	}
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = sealRed
	case "WARN":
		color = amber
	case "SUCCESS":
		color = jadeGreen
	case "INFO":
		color = inkCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Current returns the chapter being processed, or nil
func (m *Model) Current() *ChapterItem {
	if m.current == "" {
		return nil
	}
	return m.chapters[m.current]
}

// Chapters returns the chapters seen so far in order
func (m *Model) Chapters() []*ChapterItem {
	out := make([]*ChapterItem, 0, len(m.order))
	for _, u := range m.order {
		out = append(out, m.chapters[u])
	}
	return out
}

func label(item *ChapterItem) string {
	if item.Title != "" {
		return item.Title
	}
	return item.URL
}

// FormatBytes formats bytes to human readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

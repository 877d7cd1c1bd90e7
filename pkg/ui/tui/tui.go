package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"mhgscraper/pkg/scraper"
)

// TUI is a full-screen dashboard for one series run. It observes chapter
// events and stands in for the per-chapter progress bar.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a dashboard. cancel is called when the user quits before
// the run finishes.
func NewTUI(series string, cancel func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(series, cancel)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	program := tea.NewProgram(&model, opts...)

	return &TUI{
		program: program,
		model:   &model,
	}
}

// Start runs the dashboard until it quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// ChapterEvent implements scraper.Observer
func (t *TUI) ChapterEvent(e scraper.Event) {
	t.Send(ChapterEventMsg{Event: e})
}

// StartProgress returns a progress that advances the current chapter
func (t *TUI) StartProgress(title string, total int) scraper.Progress {
	return &pageProgress{tui: t}
}

// Finished reports the run result on the dashboard
func (t *TUI) Finished(report *scraper.Report, err error) {
	t.Send(RunFinishedMsg{Report: report, Err: err})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(message string) {
	t.Send(LogMsg{Level: "INFO", Message: message})
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(message string) {
	t.Send(LogMsg{Level: "WARN", Message: message})
}

// Progress adapts the dashboard to scraper.ProgressFactory
func (t *TUI) Progress() scraper.ProgressFactory {
	return progressFactory{tui: t}
}

type progressFactory struct {
	tui *TUI
}

func (p progressFactory) Start(title string, total int) scraper.Progress {
	return p.tui.StartProgress(title, total)
}

type pageProgress struct {
	tui *TUI
}

func (p *pageProgress) Tick()  { p.tui.Send(PageTickMsg{}) }
func (p *pageProgress) Close() {}

var _ scraper.Observer = (*TUI)(nil)

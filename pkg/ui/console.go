package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"mhgscraper/pkg/scraper"
)

// ConsoleObserver prints one line per chapter state change
type ConsoleObserver struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

// NewConsoleObserver writes to w, or the console output when w is nil.
// Extracting lines are only shown when verbose is set.
func NewConsoleObserver(w io.Writer, verbose bool) *ConsoleObserver {
	if w == nil {
		w = out
	}
	return &ConsoleObserver{w: w, verbose: verbose}
}

// ChapterEvent implements scraper.Observer
func (c *ConsoleObserver) ChapterEvent(e scraper.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.State {
	case scraper.StateSkipped:
		if !IsQuietMode() {
			fmt.Fprintf(c.w, "%s %s\n", Dim("skip"), Dim(e.URL))
		}
	case scraper.StateExtracting:
		if c.verbose && !IsQuietMode() {
			fmt.Fprintf(c.w, "%s %s\n", Magenta("→"), e.URL)
		}
	case scraper.StateCompleted:
		if !IsQuietMode() {
			fmt.Fprintf(c.w, "%s %s • %d pages • %s\n", Green("✓"), e.Title, e.Pages, FormatBytes(e.Bytes))
		}
	case scraper.StateFailed:
		label := e.Title
		if label == "" {
			label = e.URL
		}
		fmt.Fprintf(c.w, "%s %s: %v\n", Red("✗"), label, e.Err)
	}
}

// Observers fans chapter events out to several observers
type Observers []scraper.Observer

// ChapterEvent implements scraper.Observer
func (o Observers) ChapterEvent(e scraper.Event) {
	for _, obs := range o {
		if obs != nil {
			obs.ChapterEvent(e)
		}
	}
}

// PrintReport prints the totals of a run
func PrintReport(w io.Writer, r *scraper.Report) {
	if w == nil {
		w = out
	}
	if r == nil || IsQuietMode() {
		return
	}

	fmt.Fprintf(w, "\n%s Downloaded %d chapters (%d skipped)\n",
		Green("✓"),
		r.Completed,
		r.Skipped,
	)
	fmt.Fprintf(w, "  %s %d pages, %s in %s\n",
		Dim("•"),
		r.Pages,
		FormatBytes(r.Bytes),
		FormatDuration(r.Duration),
	)
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatBytes formats bytes in a human-readable way
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

var _ scraper.Observer = (*ConsoleObserver)(nil)

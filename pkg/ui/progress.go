package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"mhgscraper/pkg/scraper"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// ChapterBars creates one textual progress bar per chapter
type ChapterBars struct {
	writer   io.Writer
	width    int
	throttle time.Duration
}

// NewChapterBars writes bars to w, or stderr when w is nil
func NewChapterBars(w io.Writer) *ChapterBars {
	if w == nil {
		w = os.Stderr
	}
	return &ChapterBars{
		writer:   w,
		width:    30,
		throttle: 65 * time.Millisecond,
	}
}

// Start implements scraper.ProgressFactory
func (c *ChapterBars) Start(title string, total int) scraper.Progress {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.writer),
		progressbar.OptionSetDescription(title+"   "),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetWidth(c.width),
		progressbar.OptionThrottle(c.throttle),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetVisibility(!IsQuietMode()),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        ProgressBar,
			SaucerPadding: ProgressEmpty,
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.writer)
		}),
	)
	return &ChapterBar{bar: bar}
}

// ChapterBar advances once per dispatched image
type ChapterBar struct {
	bar *progressbar.ProgressBar
}

// Tick implements downloader.ProgressSink
func (b *ChapterBar) Tick() {
	_ = b.bar.Add(1)
}

// Close finishes the bar. A bar closed early keeps its last state.
func (b *ChapterBar) Close() {
	if b.bar.IsFinished() {
		return
	}
	_ = b.bar.Exit()
}

// Current returns the number of ticks so far
func (b *ChapterBar) Current() int64 {
	return b.bar.State().CurrentNum
}

var _ scraper.ProgressFactory = (*ChapterBars)(nil)

package scraper

import (
	"context"

	"mhgscraper/internal/downloader"
	"mhgscraper/pkg/models"
)

// Extractor recovers a chapter's title and image descriptors from its page
type Extractor interface {
	Extract(ctx context.Context, chapterURL string) (*models.Chapter, error)
}

// ChapterLister resolves a series page into its chapter URLs
type ChapterLister interface {
	ListChapters(ctx context.Context, seriesURL string) ([]string, error)
}

// Downloader fetches a batch of images under a concurrency limit
type Downloader interface {
	DownloadBatch(ctx context.Context, descs []models.ImageDescriptor, referrer string, limit int, progress downloader.ProgressSink) (downloader.Summary, error)
}

// Ledger records which chapters finished downloading
type Ledger interface {
	IsComplete(key string) bool
	MarkComplete(key string) error
}

// Progress is one chapter's progress indicator
type Progress interface {
	Tick()
	Close()
}

// ProgressFactory creates a progress indicator labelled with the chapter title
type ProgressFactory interface {
	Start(title string, total int) Progress
}

// Observer is told about every chapter state change
type Observer interface {
	ChapterEvent(event Event)
}

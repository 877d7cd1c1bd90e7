package manhuagui

import (
	"context"
	"strings"

	"mhgscraper/pkg/logger"
	"mhgscraper/pkg/models"
)

// HTMLExtractor recovers chapter manifests from raw page HTML by unpacking
// the reader script in process, without a browser
type HTMLExtractor struct {
	client    *Client
	imageHost string
	logger    logger.Logger
}

// NewHTMLExtractor creates an extractor that fetches pages through client.
// imageHost is prefixed to the manifest path to form the image directory.
func NewHTMLExtractor(client *Client, imageHost string, log logger.Logger) *HTMLExtractor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &HTMLExtractor{
		client:    client,
		imageHost: strings.TrimRight(imageHost, "/"),
		logger:    log,
	}
}

// Extract fetches chapterURL and returns its title and image descriptors
func (e *HTMLExtractor) Extract(ctx context.Context, chapterURL string) (*models.Chapter, error) {
	html, err := e.client.FetchHTML(ctx, chapterURL)
	if err != nil {
		return nil, err
	}

	page, err := ParseChapterPage(html, chapterURL)
	if err != nil {
		return nil, err
	}

	manifest, err := ExtractManifest(page.Script, chapterURL)
	if err != nil {
		return nil, err
	}

	e.logger.DebugWithFields("Manifest unpacked", map[string]interface{}{
		"url":   chapterURL,
		"bname": manifest.BookName,
		"cname": manifest.ChapterName,
		"files": len(manifest.Files),
	})

	return buildChapter(chapterURL, page.Title, manifest, e.imageHost+manifest.Path)
}

// ListChapters fetches a series page and returns its chapter URLs
func (e *HTMLExtractor) ListChapters(ctx context.Context, seriesURL string) ([]string, error) {
	html, err := e.client.FetchHTML(ctx, seriesURL)
	if err != nil {
		return nil, err
	}
	return ParseChapterList(html, seriesURL)
}

func buildChapter(chapterURL, title string, m *Manifest, filePath string) (*models.Chapter, error) {
	images, err := m.Descriptors(filePath)
	if err != nil {
		return nil, err
	}
	return &models.Chapter{
		URL:    chapterURL,
		Title:  title,
		Series: m.SeriesDir(),
		Name:   m.ChapterDir(),
		Images: images,
	}, nil
}

package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"time"

	"mhgscraper/pkg/models"
)

// FileName is the sidecar written inside each chapter directory
const FileName = "info.json"

// Writer persists a JSON document under the output root
type Writer interface {
	WriteJSON(rel string, v interface{}) error
}

// FromChapter builds the sidecar for a chapter that finished downloading
func FromChapter(ch *models.Chapter, bytes int64, downloadedAt time.Time) *models.ChapterInfo {
	return &models.ChapterInfo{
		Title:        ch.Title,
		Series:       ch.Series,
		Chapter:      ch.Name,
		SourceURL:    ch.URL,
		Pages:        len(ch.Images),
		Bytes:        bytes,
		DownloadedAt: downloadedAt.UTC(),
	}
}

// RelPath returns the sidecar location relative to the output root
func RelPath(ch *models.Chapter) string {
	return path.Join(ch.Series, ch.Name, FileName)
}

// Save writes info next to the chapter's images
func Save(w Writer, ch *models.Chapter, info *models.ChapterInfo) error {
	if err := w.WriteJSON(RelPath(ch), info); err != nil {
		return fmt.Errorf("failed to write chapter metadata: %w", err)
	}
	return nil
}

// Load reads a sidecar from an absolute path
func Load(file string) (*models.ChapterInfo, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var info models.ChapterInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &info, nil
}

// Info wraps ChapterInfo with display helpers
type Info struct {
	*models.ChapterInfo
}

// Summary returns a one-line description for display
func (m Info) Summary() string {
	return fmt.Sprintf("%s / %s: %d pages", m.Series, m.Chapter, m.Pages)
}

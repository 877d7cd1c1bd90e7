package metadata

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mhgscraper/pkg/models"
	"mhgscraper/pkg/storage"
)

func testChapter() *models.Chapter {
	return &models.Chapter{
		URL:    "https://www.manhuagui.com/comic/1/2.html",
		Title:  "seriesA ch1",
		Series: "seriesA",
		Name:   "ch1",
		Images: []models.ImageDescriptor{
			{RemoteURL: "https://i.example/1.jpg", LocalPath: "seriesA/ch1/1.jpg"},
			{RemoteURL: "https://i.example/2.jpg", LocalPath: "seriesA/ch1/2.jpg"},
		},
	}
}

func TestFromChapter(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CST", 8*3600))
	info := FromChapter(testChapter(), 2048, at)

	assert.Equal(t, "seriesA", info.Series)
	assert.Equal(t, "ch1", info.Chapter)
	assert.Equal(t, 2, info.Pages)
	assert.Equal(t, int64(2048), info.Bytes)
	assert.Equal(t, time.UTC, info.DownloadedAt.Location())
}

func TestSaveAndLoad(t *testing.T) {
	root := t.TempDir()
	mgr, err := storage.NewManager(root)
	require.NoError(t, err)

	ch := testChapter()
	info := FromChapter(ch, 10, time.Now())
	require.NoError(t, Save(mgr, ch, info))

	loaded, err := Load(filepath.Join(root, "seriesA", "ch1", FileName))
	require.NoError(t, err)
	assert.Equal(t, ch.URL, loaded.SourceURL)
	assert.Equal(t, "seriesA / ch1: 2 pages", Info{loaded}.Summary())
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	assert.Error(t, err)
}

package scraper

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mhgscraper/internal/downloader"
	mhgerrors "mhgscraper/pkg/errors"
	"mhgscraper/pkg/logger"
	"mhgscraper/pkg/models"
)

// recorder captures the order in which collaborators are called
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeExtractor struct {
	rec      *recorder
	pages    map[string]int
	errs     map[string]error
	chapters []string
	listErr  error
}

func (f *fakeExtractor) Extract(ctx context.Context, chapterURL string) (*models.Chapter, error) {
	f.rec.add("extract " + chapterURL)
	if err := f.errs[chapterURL]; err != nil {
		return nil, err
	}
	name := path.Base(chapterURL)
	ch := &models.Chapter{URL: chapterURL, Title: "series " + name, Series: "series", Name: name}
	for i := 0; i < f.pages[chapterURL]; i++ {
		ch.Images = append(ch.Images, models.ImageDescriptor{
			RemoteURL: fmt.Sprintf("https://i.example/%s/%d.jpg", name, i),
			LocalPath: fmt.Sprintf("series/%s/%d.jpg", name, i+1),
		})
	}
	return ch, nil
}

func (f *fakeExtractor) ListChapters(ctx context.Context, seriesURL string) ([]string, error) {
	f.rec.add("list " + seriesURL)
	return f.chapters, f.listErr
}

type fakeDownloader struct {
	rec     *recorder
	err     error
	written []string
	limits  []int
}

func (f *fakeDownloader) DownloadBatch(ctx context.Context, descs []models.ImageDescriptor, referrer string, limit int, progress downloader.ProgressSink) (downloader.Summary, error) {
	f.rec.add("download " + referrer)
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return downloader.Summary{}, f.err
	}
	for _, d := range descs {
		progress.Tick()
		f.written = append(f.written, d.LocalPath)
	}
	return downloader.Summary{Images: len(descs), Bytes: int64(len(descs) * 100)}, nil
}

type fakeLedger struct {
	rec     *recorder
	done    map[string]bool
	markErr error
}

func newFakeLedger(rec *recorder, done ...string) *fakeLedger {
	l := &fakeLedger{rec: rec, done: map[string]bool{}}
	for _, u := range done {
		l.done[u] = true
	}
	return l
}

func (f *fakeLedger) IsComplete(key string) bool { return f.done[key] }

func (f *fakeLedger) MarkComplete(key string) error {
	f.rec.add("mark " + key)
	if f.markErr != nil {
		return f.markErr
	}
	f.done[key] = true
	return nil
}

type fakeProgress struct {
	titles []string
	ticks  int
	closed int
}

func (f *fakeProgress) Start(title string, total int) Progress {
	f.titles = append(f.titles, title)
	return f
}

func (f *fakeProgress) Tick()  { f.ticks++ }
func (f *fakeProgress) Close() { f.closed++ }

type fakeObserver struct {
	events []Event
}

func (f *fakeObserver) ChapterEvent(e Event) { f.events = append(f.events, e) }

func (f *fakeObserver) states(url string) []State {
	var out []State
	for _, e := range f.events {
		if e.URL == url {
			out = append(out, e.State)
		}
	}
	return out
}

type fakeMetadata struct {
	rec     *recorder
	written map[string]interface{}
	err     error
}

func (f *fakeMetadata) WriteJSON(rel string, v interface{}) error {
	if f.rec != nil {
		f.rec.add("metadata " + rel)
	}
	if f.err != nil {
		return f.err
	}
	if f.written == nil {
		f.written = map[string]interface{}{}
	}
	f.written[rel] = v
	return nil
}

type harness struct {
	rec        *recorder
	extractor  *fakeExtractor
	downloader *fakeDownloader
	ledger     *fakeLedger
	progress   *fakeProgress
	observer   *fakeObserver
	scraper    *Scraper
}

func newHarness(t *testing.T, done ...string) *harness {
	t.Helper()
	rec := &recorder{}
	h := &harness{
		rec:        rec,
		extractor:  &fakeExtractor{rec: rec, pages: map[string]int{}, errs: map[string]error{}},
		downloader: &fakeDownloader{rec: rec},
		ledger:     newFakeLedger(rec, done...),
		progress:   &fakeProgress{},
		observer:   &fakeObserver{},
	}

	s, err := New(Options{
		Extractor:  h.extractor,
		Lister:     h.extractor,
		Downloader: h.downloader,
		Ledger:     h.ledger,
		Progress:   h.progress,
		Observer:   h.observer,
		Logger:     logger.NewNopLogger(),
	})
	require.NoError(t, err)
	h.scraper = s
	return h
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	s, err := New(Options{
		Extractor:  &fakeExtractor{},
		Downloader: &fakeDownloader{},
		Ledger:     newFakeLedger(&recorder{}),
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultConcurrency, s.concurrency)
}

func TestEndToEndTwoChapters(t *testing.T) {
	h := newHarness(t)
	h.extractor.pages["u1"] = 2
	h.extractor.pages["u2"] = 3

	report, err := h.scraper.DownloadChapters(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"u1": true, "u2": true}, h.ledger.done)
	assert.Len(t, h.downloader.written, 5)
	assert.Equal(t, []string{
		"extract u1", "download u1", "mark u1",
		"extract u2", "download u2", "mark u2",
	}, h.rec.list())

	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, 5, report.Pages)
	assert.Equal(t, int64(500), report.Bytes)
	assert.Equal(t, []int{DefaultConcurrency, DefaultConcurrency}, h.downloader.limits)
	assert.Equal(t, []string{"series u1", "series u2"}, h.progress.titles)
	assert.Equal(t, 5, h.progress.ticks)
	assert.Equal(t, 2, h.progress.closed)
	assert.Equal(t, []State{StateExtracting, StateDownloading, StateCompleted}, h.observer.states("u1"))
}

func TestIdempotentSkip(t *testing.T) {
	h := newHarness(t, "u1")
	h.extractor.pages["u2"] = 1

	report, err := h.scraper.DownloadChapters(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)

	for _, call := range h.rec.list() {
		assert.NotContains(t, call, "u1")
	}
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, []State{StateSkipped}, h.observer.states("u1"))
}

func TestDownloadFailureDoesNotMark(t *testing.T) {
	h := newHarness(t)
	h.extractor.pages["u1"] = 4
	h.extractor.pages["u2"] = 1
	h.downloader.err = mhgerrors.TransportStatus("fetch image", "https://i.example/u1/2.jpg", 404)

	report, err := h.scraper.DownloadChapters(context.Background(), []string{"u1", "u2"})
	require.Error(t, err)

	assert.True(t, mhgerrors.IsTransport(err))
	assert.False(t, h.ledger.IsComplete("u1"))
	assert.Equal(t, []string{"extract u1", "download u1"}, h.rec.list())
	assert.Empty(t, report.Results)
	assert.Equal(t, 1, h.progress.closed)
	assert.Equal(t, []State{StateExtracting, StateDownloading, StateFailed}, h.observer.states("u1"))
}

func TestUnclassifiedDownloadFailureIsTransport(t *testing.T) {
	h := newHarness(t)
	h.extractor.pages["u1"] = 1
	h.downloader.err = errors.New("connection reset")

	_, err := h.scraper.DownloadChapter(context.Background(), "u1")
	assert.True(t, mhgerrors.IsTransport(err))
}

func TestExtractionFailureHaltsRun(t *testing.T) {
	h := newHarness(t)
	h.extractor.errs["u1"] = errors.New("script not found")
	h.extractor.pages["u2"] = 1

	_, err := h.scraper.DownloadChapters(context.Background(), []string{"u1", "u2"})
	require.Error(t, err)

	assert.True(t, mhgerrors.IsExtraction(err))
	assert.Equal(t, []string{"extract u1"}, h.rec.list())
	assert.Empty(t, h.ledger.done)
}

func TestEmptyManifestIsExtractionError(t *testing.T) {
	h := newHarness(t)

	_, err := h.scraper.DownloadChapter(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, mhgerrors.IsExtraction(err))
	assert.ErrorIs(t, err, ErrNoImages)
	assert.Equal(t, []string{"extract u1"}, h.rec.list())
}

func TestLedgerFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.extractor.pages["u1"] = 1
	h.extractor.pages["u2"] = 1
	h.ledger.markErr = errors.New("read-only file system")

	_, err := h.scraper.DownloadChapters(context.Background(), []string{"u1", "u2"})
	require.Error(t, err)

	assert.True(t, mhgerrors.IsPersistence(err))
	assert.NotContains(t, h.rec.list(), "extract u2")
}

func TestMetadataWrittenBeforeMark(t *testing.T) {
	h := newHarness(t)
	h.extractor.pages["https://example/ch1"] = 2
	meta := &fakeMetadata{rec: h.rec}
	h.scraper.metadata = meta

	_, err := h.scraper.DownloadChapter(context.Background(), "https://example/ch1")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"extract https://example/ch1",
		"download https://example/ch1",
		"metadata series/ch1/info.json",
		"mark https://example/ch1",
	}, h.rec.list())

	require.Contains(t, meta.written, "series/ch1/info.json")
	info := meta.written["series/ch1/info.json"].(*models.ChapterInfo)
	assert.Equal(t, 2, info.Pages)
	assert.Equal(t, "https://example/ch1", info.SourceURL)
}

func TestMetadataFailureDoesNotMark(t *testing.T) {
	h := newHarness(t)
	h.extractor.pages["u1"] = 1
	h.scraper.metadata = &fakeMetadata{err: errors.New("disk full")}

	_, err := h.scraper.DownloadChapter(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, mhgerrors.IsPersistence(err))
	assert.False(t, h.ledger.IsComplete("u1"))
}

func TestDownloadAll(t *testing.T) {
	h := newHarness(t)
	h.extractor.chapters = []string{"c1", "c2"}
	h.extractor.pages["c1"] = 1
	h.extractor.pages["c2"] = 1

	report, err := h.scraper.DownloadAll(context.Background(), "series-url")
	require.NoError(t, err)

	assert.Equal(t, "list series-url", h.rec.list()[0])
	assert.Equal(t, 2, report.Completed)
}

func TestDownloadAllEmptySeries(t *testing.T) {
	h := newHarness(t)

	report, err := h.scraper.DownloadAll(context.Background(), "series-url")
	require.NoError(t, err)
	assert.Zero(t, report.Completed)
}

func TestDownloadAllListFailure(t *testing.T) {
	h := newHarness(t)
	h.extractor.listErr = errors.New("selector missing")

	_, err := h.scraper.DownloadAll(context.Background(), "series-url")
	assert.True(t, mhgerrors.IsExtraction(err))
}

func TestDownloadAllWithoutLister(t *testing.T) {
	s, err := New(Options{
		Extractor:  &fakeExtractor{},
		Downloader: &fakeDownloader{},
		Ledger:     newFakeLedger(&recorder{}),
		Logger:     logger.NewNopLogger(),
	})
	require.NoError(t, err)

	_, err = s.DownloadAll(context.Background(), "series-url")
	assert.ErrorIs(t, err, ErrNoLister)
}

func TestCancelledBetweenChapters(t *testing.T) {
	h := newHarness(t)
	h.extractor.pages["u1"] = 1

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.scraper.DownloadChapters(ctx, []string{"u1"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.rec.list())
	assert.Empty(t, report.Results)
}

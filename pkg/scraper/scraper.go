package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mhgscraper/internal/downloader"
	mhgerrors "mhgscraper/pkg/errors"
	"mhgscraper/pkg/logger"
	"mhgscraper/pkg/metadata"
	"mhgscraper/pkg/models"
)

// DefaultConcurrency is the per-chapter image limit
const DefaultConcurrency = 10

// State is a chapter's position in the download pipeline
type State string

const (
	StatePending     State = "pending"
	StateExtracting  State = "extracting"
	StateDownloading State = "downloading"
	StateCompleted   State = "completed"
	StateSkipped     State = "skipped"
	StateFailed      State = "failed"
)

var (
	ErrNoLister  = errors.New("no chapter lister configured")
	ErrNoImages  = errors.New("chapter has no images")
	ErrNoTitle   = errors.New("chapter has no title")
	errMissingOp = errors.New("extractor, downloader and ledger are required")
)

// Event reports a chapter state change
type Event struct {
	URL   string
	Title string
	State State
	Pages int
	Bytes int64
	Err   error
}

// Result is the outcome of one chapter
type Result struct {
	URL      string
	Title    string
	State    State
	Pages    int
	Bytes    int64
	Duration time.Duration
}

// Report summarises a run over several chapters
type Report struct {
	Results   []Result
	Completed int
	Skipped   int
	Pages     int
	Bytes     int64
	Duration  time.Duration
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	switch res.State {
	case StateCompleted:
		r.Completed++
		r.Pages += res.Pages
		r.Bytes += res.Bytes
	case StateSkipped:
		r.Skipped++
	}
}

// Options wires the Scraper's collaborators. Extractor, Downloader and
// Ledger are required.
type Options struct {
	Extractor  Extractor
	Lister     ChapterLister
	Downloader Downloader
	Ledger     Ledger
	// Metadata receives the chapter sidecar. Nil disables it.
	Metadata    metadata.Writer
	Progress    ProgressFactory
	Observer    Observer
	Concurrency int
	Logger      logger.Logger
	Now         func() time.Time
}

// Scraper runs chapters through extraction, download and ledger recording
type Scraper struct {
	extractor   Extractor
	lister      ChapterLister
	downloader  Downloader
	ledger      Ledger
	metadata    metadata.Writer
	progress    ProgressFactory
	observer    Observer
	concurrency int
	logger      logger.Logger
	now         func() time.Time
}

// New creates a Scraper
func New(opts Options) (*Scraper, error) {
	if opts.Extractor == nil || opts.Downloader == nil || opts.Ledger == nil {
		return nil, errMissingOp
	}

	s := &Scraper{
		extractor:   opts.Extractor,
		lister:      opts.Lister,
		downloader:  opts.Downloader,
		ledger:      opts.Ledger,
		metadata:    opts.Metadata,
		progress:    opts.Progress,
		observer:    opts.Observer,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	if s.logger == nil {
		s.logger = logger.GetLogger()
	}
	if s.progress == nil {
		s.progress = nopProgressFactory{}
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s, nil
}

// DownloadAll lists the series' chapters and downloads them in page order
func (s *Scraper) DownloadAll(ctx context.Context, seriesURL string) (*Report, error) {
	if s.lister == nil {
		return &Report{}, ErrNoLister
	}

	s.logger.InfoWithFields("Listing chapters", map[string]interface{}{
		"series": seriesURL,
	})

	urls, err := s.lister.ListChapters(ctx, seriesURL)
	if err != nil {
		return &Report{}, mhgerrors.Classified(mhgerrors.KindExtraction, "list chapters", seriesURL, err)
	}

	s.logger.InfoWithFields("Chapters found", map[string]interface{}{
		"series":   seriesURL,
		"chapters": len(urls),
	})

	return s.DownloadChapters(ctx, urls)
}

// DownloadChapters downloads each chapter in order. The first failure
// stops the run; the report covers the chapters handled before it.
func (s *Scraper) DownloadChapters(ctx context.Context, urls []string) (*Report, error) {
	start := s.now()
	report := &Report{}

	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			report.Duration = s.now().Sub(start)
			return report, fmt.Errorf("run stopped before chapter %d of %d: %w", i+1, len(urls), err)
		}

		res, err := s.DownloadChapter(ctx, u)
		if err != nil {
			report.Duration = s.now().Sub(start)
			return report, err
		}
		report.add(res)
	}

	report.Duration = s.now().Sub(start)
	s.logger.InfoWithFields("Run finished", map[string]interface{}{
		"completed": report.Completed,
		"skipped":   report.Skipped,
		"pages":     report.Pages,
		"bytes":     report.Bytes,
		"duration":  report.Duration,
	})
	return report, nil
}

// DownloadChapter runs one chapter through the pipeline. A chapter already
// in the ledger is skipped without touching the extractor or downloader.
func (s *Scraper) DownloadChapter(ctx context.Context, chapterURL string) (Result, error) {
	start := s.now()
	res := Result{URL: chapterURL, State: StatePending}

	if s.ledger.IsComplete(chapterURL) {
		res.State = StateSkipped
		s.emit(Event{URL: chapterURL, State: StateSkipped})
		logger.LogChapter(s.logger, "skipped", chapterURL, "", 0, nil)
		return res, nil
	}

	res.State = StateExtracting
	s.emit(Event{URL: chapterURL, State: StateExtracting})

	ch, err := s.extract(ctx, chapterURL)
	if err != nil {
		return s.fail(res, err)
	}
	res.Title = ch.Title
	res.Pages = len(ch.Images)

	res.State = StateDownloading
	s.emit(Event{URL: chapterURL, Title: ch.Title, State: StateDownloading, Pages: res.Pages})
	logger.LogChapter(s.logger, "downloading", chapterURL, ch.Title, res.Pages, nil)

	bar := s.progress.Start(ch.Title, len(ch.Images))
	summary, err := s.downloader.DownloadBatch(ctx, ch.Images, chapterURL, s.concurrency, bar)
	bar.Close()
	res.Bytes = summary.Bytes
	if err != nil {
		return s.fail(res, mhgerrors.Classified(mhgerrors.KindTransport, "download chapter", chapterURL, err))
	}

	if s.metadata != nil {
		info := metadata.FromChapter(ch, summary.Bytes, s.now())
		if err := metadata.Save(s.metadata, ch, info); err != nil {
			return s.fail(res, mhgerrors.Classified(mhgerrors.KindPersistence, "write metadata", chapterURL, err))
		}
	}

	if err := s.ledger.MarkComplete(chapterURL); err != nil {
		return s.fail(res, mhgerrors.Classified(mhgerrors.KindPersistence, "mark complete", chapterURL, err))
	}

	res.State = StateCompleted
	res.Duration = s.now().Sub(start)
	s.emit(Event{URL: chapterURL, Title: ch.Title, State: StateCompleted, Pages: res.Pages, Bytes: res.Bytes})
	logger.LogChapter(s.logger, "completed", chapterURL, ch.Title, res.Pages, nil)

	return res, nil
}

func (s *Scraper) extract(ctx context.Context, chapterURL string) (*models.Chapter, error) {
	ch, err := s.extractor.Extract(ctx, chapterURL)
	if err != nil {
		return nil, mhgerrors.Classified(mhgerrors.KindExtraction, "extract chapter", chapterURL, err)
	}
	if ch == nil || len(ch.Images) == 0 {
		return nil, mhgerrors.Extraction("extract chapter", chapterURL, ErrNoImages)
	}
	if ch.Title == "" {
		return nil, mhgerrors.Extraction("extract chapter", chapterURL, ErrNoTitle)
	}
	return ch, nil
}

func (s *Scraper) fail(res Result, err error) (Result, error) {
	failedIn := res.State
	res.State = StateFailed
	s.emit(Event{URL: res.URL, Title: res.Title, State: StateFailed, Pages: res.Pages, Bytes: res.Bytes, Err: err})

	s.logger.WithError(err).WithFields(map[string]interface{}{
		"url":   res.URL,
		"stage": string(failedIn),
		"kind":  string(mhgerrors.KindOf(err)),
	}).Error("Chapter failed")

	return res, err
}

func (s *Scraper) emit(e Event) {
	if s.observer != nil {
		s.observer.ChapterEvent(e)
	}
}

type nopProgressFactory struct{}

func (nopProgressFactory) Start(string, int) Progress { return nopProgress{} }

type nopProgress struct{}

func (nopProgress) Tick()  {}
func (nopProgress) Close() {}

var _ downloader.ProgressSink = nopProgress{}

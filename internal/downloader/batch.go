package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	mhgerrors "mhgscraper/pkg/errors"
	"mhgscraper/pkg/logger"
	"mhgscraper/pkg/models"
)

// Mode selects how the concurrency limit is enforced
type Mode string

const (
	// ModeWindow keeps up to limit fetches in flight, starting the next
	// one as soon as any finishes
	ModeWindow Mode = "window"
	// ModeChunked starts limit fetches, waits for all of them, then starts
	// the next group
	ModeChunked Mode = "chunked"
)

var (
	ErrEmptyBatch    = errors.New("batch has no images")
	ErrInvalidLimit  = errors.New("concurrency limit must be positive")
	ErrDuplicatePath = errors.New("duplicate local path in batch")
)

// ImageFetcher downloads one image, sending referer as the Referer header
type ImageFetcher interface {
	FetchImage(ctx context.Context, url, referer string) ([]byte, error)
}

// ImageStorage writes image content under the output root
type ImageStorage interface {
	WriteImage(rel string, r io.Reader) (int64, error)
}

// ProgressSink is ticked once per image as it is dispatched
type ProgressSink interface {
	Tick()
}

// Summary describes a completed batch
type Summary struct {
	Images   int
	Bytes    int64
	Duration time.Duration
}

// BatchDownloader fetches a chapter's images under a concurrency ceiling
type BatchDownloader struct {
	fetcher ImageFetcher
	storage ImageStorage
	mode    Mode
	logger  logger.Logger
}

// NewBatchDownloader creates a downloader. An unknown mode falls back to
// ModeChunked.
func NewBatchDownloader(fetcher ImageFetcher, storage ImageStorage, mode Mode, log logger.Logger) *BatchDownloader {
	if log == nil {
		log = logger.GetLogger()
	}
	if mode != ModeWindow {
		mode = ModeChunked
	}

	return &BatchDownloader{
		fetcher: fetcher,
		storage: storage,
		mode:    mode,
		logger:  log,
	}
}

// Mode reports the dispatch mode in use
func (d *BatchDownloader) Mode() Mode {
	return d.mode
}

// DownloadBatch fetches every descriptor and writes it to its local path.
// It returns nil only when every image was written. The first failure
// stops further dispatch and is returned; images already written stay on
// disk.
func (d *BatchDownloader) DownloadBatch(
	ctx context.Context,
	descs []models.ImageDescriptor,
	referrer string,
	limit int,
	progress ProgressSink,
) (Summary, error) {
	if err := validateBatch(descs, limit); err != nil {
		return Summary{}, err
	}

	start := time.Now()
	var written atomic.Int64

	d.logger.DebugWithFields("Starting batch", map[string]interface{}{
		"referrer": referrer,
		"images":   len(descs),
		"limit":    limit,
		"mode":     string(d.mode),
	})

	run := func(ctx context.Context, desc models.ImageDescriptor) error {
		n, err := d.fetchAndWrite(ctx, desc, referrer)
		written.Add(n)
		return err
	}

	var err error
	if d.mode == ModeChunked {
		err = d.runChunked(ctx, descs, limit, progress, run)
	} else {
		err = d.runWindow(ctx, descs, limit, progress, run)
	}

	summary := Summary{
		Images:   len(descs),
		Bytes:    written.Load(),
		Duration: time.Since(start),
	}

	if err != nil {
		d.logger.ErrorWithFields("Batch failed", map[string]interface{}{
			"referrer": referrer,
			"error":    err.Error(),
		})
		return summary, err
	}

	d.logger.DebugWithFields("Batch completed", map[string]interface{}{
		"referrer": referrer,
		"images":   summary.Images,
		"bytes":    summary.Bytes,
		"duration": summary.Duration,
	})
	return summary, nil
}

// runWindow holds one semaphore permit per in-flight image. A failure
// cancels the group context, which stops dispatch and aborts the fetches
// still running.
func (d *BatchDownloader) runWindow(
	ctx context.Context,
	descs []models.ImageDescriptor,
	limit int,
	progress ProgressSink,
	run func(context.Context, models.ImageDescriptor) error,
) error {
	sem := semaphore.NewWeighted(int64(limit))
	g, gctx := errgroup.WithContext(ctx)

	dispatched := 0
	for _, desc := range descs {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		tick(progress)
		dispatched++

		g.Go(func() error {
			defer sem.Release(1)
			return run(gctx, desc)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if dispatched < len(descs) {
		// Only the parent context can stop dispatch without a task error
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		return mhgerrors.Transport("download batch", "", err)
	}
	return nil
}

// runChunked dispatches limit images, joins them, then continues. A slow
// image holds back the whole next chunk.
func (d *BatchDownloader) runChunked(
	ctx context.Context,
	descs []models.ImageDescriptor,
	limit int,
	progress ProgressSink,
	run func(context.Context, models.ImageDescriptor) error,
) error {
	var g errgroup.Group

	for i, desc := range descs {
		if err := ctx.Err(); err != nil {
			g.Wait()
			return mhgerrors.Transport("download batch", "", err)
		}

		g.Go(func() error {
			return run(ctx, desc)
		})

		if (i+1)%limit == 0 {
			if err := g.Wait(); err != nil {
				return err
			}
			g = errgroup.Group{}
		}
		tick(progress)
	}

	return g.Wait()
}

func (d *BatchDownloader) fetchAndWrite(ctx context.Context, desc models.ImageDescriptor, referrer string) (int64, error) {
	data, err := d.fetcher.FetchImage(ctx, desc.RemoteURL, referrer)
	if err != nil {
		return 0, mhgerrors.Classified(mhgerrors.KindTransport, "fetch image", desc.RemoteURL, err)
	}

	n, err := d.storage.WriteImage(desc.LocalPath, bytes.NewReader(data))
	if err != nil {
		return 0, mhgerrors.Classified(mhgerrors.KindPersistence, "write image", desc.LocalPath, err)
	}

	d.logger.DebugWithFields("Image written", map[string]interface{}{
		"path":  desc.LocalPath,
		"bytes": n,
	})
	return n, nil
}

func validateBatch(descs []models.ImageDescriptor, limit int) error {
	if len(descs) == 0 {
		return ErrEmptyBatch
	}
	if limit <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}

	seen := make(map[string]bool, len(descs))
	for _, desc := range descs {
		if seen[desc.LocalPath] {
			return fmt.Errorf("%w: %s", ErrDuplicatePath, desc.LocalPath)
		}
		seen[desc.LocalPath] = true
	}
	return nil
}

func tick(progress ProgressSink) {
	if progress != nil {
		progress.Tick()
	}
}

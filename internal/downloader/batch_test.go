package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mhgerrors "mhgscraper/pkg/errors"
	"mhgscraper/pkg/logger"
	"mhgscraper/pkg/models"
	"mhgscraper/pkg/storage"
)

// MockFetcher records concurrency and per-URL calls
type MockFetcher struct {
	delay    time.Duration
	delays   map[string]time.Duration
	failures map[string]error

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu       sync.Mutex
	calls    map[string]int
	started  map[string]time.Time
	referers map[string]bool
}

func NewMockFetcher(delay time.Duration) *MockFetcher {
	return &MockFetcher{
		delay:    delay,
		delays:   map[string]time.Duration{},
		failures: map[string]error{},
		calls:    map[string]int{},
		started:  map[string]time.Time{},
		referers: map[string]bool{},
	}
}

func (m *MockFetcher) FetchImage(ctx context.Context, url, referer string) ([]byte, error) {
	m.mu.Lock()
	m.calls[url]++
	m.started[url] = time.Now()
	m.referers[referer] = true
	delay, ok := m.delays[url]
	if !ok {
		delay = m.delay
	}
	failure := m.failures[url]
	m.mu.Unlock()

	cur := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		old := m.maxInFlight.Load()
		if cur <= old || m.maxInFlight.CompareAndSwap(old, cur) {
			break
		}
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, mhgerrors.Transport("fetch image", url, ctx.Err())
	}

	if failure != nil {
		return nil, failure
	}
	return []byte("data:" + url), nil
}

func (m *MockFetcher) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

type countingSink struct{ ticks atomic.Int32 }

func (s *countingSink) Tick() { s.ticks.Add(1) }

func makeDescriptors(n int) []models.ImageDescriptor {
	descs := make([]models.ImageDescriptor, n)
	for i := range descs {
		descs[i] = models.ImageDescriptor{
			RemoteURL: fmt.Sprintf("https://i.hamreus.com/ps3/c/%03d.jpg?cid=1&md5=m", i+1),
			LocalPath: fmt.Sprintf("series/chapter/%d.jpg", i+1),
		}
	}
	return descs
}

func newTestDownloader(t *testing.T, fetcher ImageFetcher, mode Mode) (*BatchDownloader, string) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewManager(root)
	require.NoError(t, err)
	return NewBatchDownloader(fetcher, store, mode, logger.NewNopLogger()), root
}

func TestDownloadBatchConcurrencyBound(t *testing.T) {
	for _, mode := range []Mode{ModeWindow, ModeChunked} {
		t.Run(string(mode), func(t *testing.T) {
			fetcher := NewMockFetcher(15 * time.Millisecond)
			d, root := newTestDownloader(t, fetcher, mode)
			sink := &countingSink{}

			const n, limit = 23, 4
			summary, err := d.DownloadBatch(context.Background(), makeDescriptors(n), "https://www.manhuagui.com/comic/1/2.html", limit, sink)
			require.NoError(t, err)

			assert.LessOrEqual(t, int(fetcher.maxInFlight.Load()), limit)
			assert.Greater(t, int(fetcher.maxInFlight.Load()), 1, "fetches should overlap")
			assert.Equal(t, n, fetcher.totalCalls())
			assert.Equal(t, int32(n), sink.ticks.Load())
			assert.Equal(t, n, summary.Images)
			assert.Greater(t, summary.Bytes, int64(0))

			for i := 1; i <= n; i++ {
				_, err := os.Stat(filepath.Join(root, "series", "chapter", fmt.Sprintf("%d.jpg", i)))
				assert.NoError(t, err)
			}
		})
	}
}

func TestDownloadBatchSendsReferrer(t *testing.T) {
	fetcher := NewMockFetcher(0)
	d, _ := newTestDownloader(t, fetcher, ModeWindow)

	_, err := d.DownloadBatch(context.Background(), makeDescriptors(3), "https://www.manhuagui.com/comic/9/8.html", 10, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"https://www.manhuagui.com/comic/9/8.html": true}, fetcher.referers)
}

func TestDownloadBatchPathDerivation(t *testing.T) {
	fetcher := NewMockFetcher(0)
	d, root := newTestDownloader(t, fetcher, ModeWindow)

	descs := []models.ImageDescriptor{{RemoteURL: "https://i.hamreus.com/3.jpg", LocalPath: "seriesA/ch1/3.jpg"}}
	_, err := d.DownloadBatch(context.Background(), descs, "ref", 10, nil)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(root, "seriesA", "ch1"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	data, err := os.ReadFile(filepath.Join(root, "seriesA", "ch1", "3.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "data:https://i.hamreus.com/3.jpg", string(data))
}

func TestDownloadBatchFailureIsAllOrNothing(t *testing.T) {
	for _, mode := range []Mode{ModeWindow, ModeChunked} {
		t.Run(string(mode), func(t *testing.T) {
			descs := makeDescriptors(12)
			fetcher := NewMockFetcher(5 * time.Millisecond)
			fetcher.failures[descs[2].RemoteURL] = mhgerrors.TransportStatus("fetch image", descs[2].RemoteURL, 404)

			d, _ := newTestDownloader(t, fetcher, mode)
			_, err := d.DownloadBatch(context.Background(), descs, "ref", 3, nil)
			require.Error(t, err)

			assert.True(t, mhgerrors.IsTransport(err))
			fetcher.mu.Lock()
			defer fetcher.mu.Unlock()
			for url, n := range fetcher.calls {
				assert.Equal(t, 1, n, "%s attempted more than once", url)
			}
			assert.Less(t, len(fetcher.calls), len(descs), "dispatch should stop after the failing chunk")
		})
	}
}

type failingStorage struct{}

func (failingStorage) WriteImage(string, io.Reader) (int64, error) {
	return 0, errors.New("disk full")
}

func TestDownloadBatchWriteFailureIsPersistence(t *testing.T) {
	d := NewBatchDownloader(NewMockFetcher(0), failingStorage{}, ModeWindow, logger.NewNopLogger())

	_, err := d.DownloadBatch(context.Background(), makeDescriptors(2), "ref", 2, nil)
	require.Error(t, err)
	assert.True(t, mhgerrors.IsPersistence(err))
}

func TestDownloadBatchRejectsBadInput(t *testing.T) {
	dup := makeDescriptors(2)
	dup[1].LocalPath = dup[0].LocalPath

	tests := []struct {
		name  string
		descs []models.ImageDescriptor
		limit int
		want  error
	}{
		{"empty", nil, 10, ErrEmptyBatch},
		{"zero limit", makeDescriptors(2), 0, ErrInvalidLimit},
		{"negative limit", makeDescriptors(2), -1, ErrInvalidLimit},
		{"duplicate path", dup, 10, ErrDuplicatePath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := NewMockFetcher(0)
			d, _ := newTestDownloader(t, fetcher, ModeWindow)
			sink := &countingSink{}

			_, err := d.DownloadBatch(context.Background(), tt.descs, "ref", tt.limit, sink)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, fetcher.totalCalls())
			assert.Zero(t, sink.ticks.Load())
		})
	}
}

func TestChunkedModeStallsOnSlowImage(t *testing.T) {
	descs := makeDescriptors(3)
	slow := 120 * time.Millisecond

	starts := map[Mode]time.Duration{}
	for _, mode := range []Mode{ModeWindow, ModeChunked} {
		fetcher := NewMockFetcher(0)
		fetcher.delays[descs[0].RemoteURL] = slow

		d, _ := newTestDownloader(t, fetcher, mode)
		begin := time.Now()
		_, err := d.DownloadBatch(context.Background(), descs, "ref", 2, nil)
		require.NoError(t, err)

		starts[mode] = fetcher.started[descs[2].RemoteURL].Sub(begin)
	}

	assert.Less(t, starts[ModeWindow], slow/2, "window mode reuses the free permit immediately")
	assert.GreaterOrEqual(t, starts[ModeChunked], slow, "chunked mode waits for the whole first chunk")
}

func TestDownloadBatchCancelled(t *testing.T) {
	fetcher := NewMockFetcher(time.Second)
	d, _ := newTestDownloader(t, fetcher, ModeWindow)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := d.DownloadBatch(ctx, makeDescriptors(20), "ref", 2, nil)
	require.Error(t, err)
	assert.True(t, mhgerrors.IsTransport(err))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestNewBatchDownloaderDefaultsToChunked(t *testing.T) {
	d := NewBatchDownloader(NewMockFetcher(0), failingStorage{}, Mode("bogus"), nil)
	assert.Equal(t, ModeChunked, d.Mode())

	d = NewBatchDownloader(NewMockFetcher(0), failingStorage{}, ModeWindow, nil)
	assert.Equal(t, ModeWindow, d.Mode())
}

package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	mhgerrors "mhgscraper/pkg/errors"
	"mhgscraper/pkg/logger"
)

// document is the on-disk shape: {"downloadedPages": {"<chapter url>": true}}
type document struct {
	DownloadedPages map[string]bool `json:"downloadedPages"`
}

// JSONLedger keeps the whole ledger in one JSON file that is rewritten
// atomically after every mutation
type JSONLedger struct {
	path  string
	pages map[string]bool
	mu    sync.Mutex
	log   logger.Logger
}

// OpenJSON loads the ledger at path. A missing file yields an empty ledger;
// a file that exists but does not parse is a persistence error.
func OpenJSON(path string, log logger.Logger) (*JSONLedger, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	l := &JSONLedger{
		path:  path,
		pages: make(map[string]bool),
		log:   log,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.DebugWithFields("Ledger not found, starting empty", map[string]interface{}{
				"path": path,
			})
			return l, nil
		}
		return nil, mhgerrors.Persistence("load ledger", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, mhgerrors.Persistence("load ledger", path, fmt.Errorf("failed to decode ledger: %w", err))
	}
	for k, v := range doc.DownloadedPages {
		l.pages[k] = v
	}

	log.DebugWithFields("Ledger loaded", map[string]interface{}{
		"path":    path,
		"entries": len(l.pages),
	})

	return l, nil
}

// IsComplete reports whether key has been recorded. A nil ledger knows nothing.
func (l *JSONLedger) IsComplete(key string) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pages[key]
}

// MarkComplete sets key and rewrites the file. When the write fails the
// in-memory flag is restored so memory never claims more than disk.
func (l *JSONLedger) MarkComplete(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, had := l.pages[key]
	l.pages[key] = true

	if err := l.save(); err != nil {
		if had {
			l.pages[key] = prev
		} else {
			delete(l.pages, key)
		}
		return err
	}

	l.log.DebugWithFields("Chapter recorded in ledger", map[string]interface{}{
		"url": key,
	})
	return nil
}

// Forget drops key and rewrites the file. Unknown keys are a no-op.
func (l *JSONLedger) Forget(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, had := l.pages[key]
	if !had {
		return nil
	}
	delete(l.pages, key)

	if err := l.save(); err != nil {
		l.pages[key] = prev
		return err
	}
	return nil
}

// Entries returns the recorded keys in sorted order
func (l *JSONLedger) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]string, 0, len(l.pages))
	for k, v := range l.pages {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Flush rewrites the file from memory
func (l *JSONLedger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save()
}

// Close is a no-op; every mutation is already on disk
func (l *JSONLedger) Close() error { return nil }

// Path returns the ledger file location
func (l *JSONLedger) Path() string { return l.path }

// save writes the full document to a temp file, syncs it and renames it over
// the ledger. Caller holds mu.
func (l *JSONLedger) save() error {
	data, err := json.Marshal(document{DownloadedPages: l.pages})
	if err != nil {
		return mhgerrors.Persistence("save ledger", l.path, fmt.Errorf("failed to encode ledger: %w", err))
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return mhgerrors.Persistence("save ledger", l.path, fmt.Errorf("failed to create ledger directory: %w", err))
		}
	}

	tempPath := l.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return mhgerrors.Persistence("save ledger", l.path, fmt.Errorf("failed to create temporary ledger file: %w", err))
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return mhgerrors.Persistence("save ledger", l.path, fmt.Errorf("failed to write ledger: %w", err))
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return mhgerrors.Persistence("save ledger", l.path, fmt.Errorf("failed to sync ledger: %w", err))
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return mhgerrors.Persistence("save ledger", l.path, fmt.Errorf("failed to close ledger: %w", err))
	}

	if err := os.Rename(tempPath, l.path); err != nil {
		os.Remove(tempPath)
		return mhgerrors.Persistence("save ledger", l.path, fmt.Errorf("failed to replace ledger: %w", err))
	}

	return nil
}

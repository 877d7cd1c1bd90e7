package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	mhgerrors "mhgscraper/pkg/errors"
	"mhgscraper/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS downloaded_pages (
	url          TEXT PRIMARY KEY,
	completed_at TEXT NOT NULL
);`

// SQLiteLedger stores completed chapters in a SQLite table. Keys are read
// into memory at open; writes go straight to the database.
type SQLiteLedger struct {
	path  string
	db    *sql.DB
	pages map[string]bool
	mu    sync.Mutex
	log   logger.Logger
}

// OpenSQLite opens or creates the database at path
func OpenSQLite(path string, log logger.Logger) (*SQLiteLedger, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, mhgerrors.Persistence("open ledger", path, fmt.Errorf("create sqlite dir: %w", err))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, mhgerrors.Persistence("open ledger", path, fmt.Errorf("open sqlite: %w", err))
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, mhgerrors.Persistence("open ledger", path, fmt.Errorf("set sqlite WAL: %w", err))
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, mhgerrors.Persistence("open ledger", path, fmt.Errorf("create schema: %w", err))
	}

	l := &SQLiteLedger{
		path:  path,
		db:    db,
		pages: make(map[string]bool),
		log:   log,
	}

	if err := l.load(); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.DebugWithFields("SQLite ledger opened", map[string]interface{}{
		"path":    path,
		"entries": len(l.pages),
	})

	return l, nil
}

func (l *SQLiteLedger) load() error {
	rows, err := l.db.Query(`SELECT url FROM downloaded_pages`)
	if err != nil {
		return mhgerrors.Persistence("load ledger", l.path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return mhgerrors.Persistence("load ledger", l.path, err)
		}
		l.pages[url] = true
	}
	if err := rows.Err(); err != nil {
		return mhgerrors.Persistence("load ledger", l.path, err)
	}
	return nil
}

// IsComplete reports whether key has been recorded
func (l *SQLiteLedger) IsComplete(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pages[key]
}

// MarkComplete upserts key with the current time. The cache only changes
// once the row is written.
func (l *SQLiteLedger) MarkComplete(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(
		`INSERT INTO downloaded_pages (url, completed_at) VALUES (?, ?)
		 ON CONFLICT(url) DO UPDATE SET completed_at = excluded.completed_at`,
		key, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return mhgerrors.Persistence("mark complete", l.path, err)
	}
	l.pages[key] = true
	return nil
}

// Forget deletes the row for key
func (l *SQLiteLedger) Forget(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.db.Exec(`DELETE FROM downloaded_pages WHERE url = ?`, key); err != nil {
		return mhgerrors.Persistence("forget", l.path, err)
	}
	delete(l.pages, key)
	return nil
}

// Entries returns the recorded keys in sorted order
func (l *SQLiteLedger) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]string, 0, len(l.pages))
	for k := range l.pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flush checkpoints the WAL into the main database file
func (l *SQLiteLedger) Flush() error {
	if _, err := l.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE);`); err != nil {
		return mhgerrors.Persistence("flush ledger", l.path, err)
	}
	return nil
}

// Close releases the database handle
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

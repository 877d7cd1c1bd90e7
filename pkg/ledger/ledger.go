package ledger

import (
	"fmt"
	"strings"

	"mhgscraper/pkg/config"
	"mhgscraper/pkg/logger"
)

// Store records which chapter URLs have been fully downloaded.
// Contents are loaded when the store is opened; every mutation is persisted
// before the call returns.
type Store interface {
	// IsComplete returns the stored flag, false for unknown keys
	IsComplete(key string) bool
	// MarkComplete sets the flag for key and persists the store
	MarkComplete(key string) error
	// Forget removes key and persists the store
	Forget(key string) error
	// Entries returns every completed key in lexical order
	Entries() []string
	// Flush rewrites the durable store from memory
	Flush() error
	// Close releases the underlying storage
	Close() error
}

// Open opens the ledger backend selected by cfg
func Open(cfg config.LedgerConfig, log logger.Logger) (Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	switch strings.ToLower(cfg.Backend) {
	case "", "json":
		return OpenJSON(cfg.Path, log)
	case "sqlite":
		return OpenSQLite(cfg.Path, log)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

// Migrate copies every completed key from src into dst and returns how
// many keys were newly recorded in dst
func Migrate(src, dst Store) (int, error) {
	copied := 0
	for _, key := range src.Entries() {
		if dst.IsComplete(key) {
			continue
		}
		if err := dst.MarkComplete(key); err != nil {
			return copied, fmt.Errorf("failed to migrate %s: %w", key, err)
		}
		copied++
	}
	return copied, nil
}

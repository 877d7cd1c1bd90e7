// Package ledger records which chapters have been completely downloaded.
//
// The default backend is a single JSON file shaped
//
//	{"downloadedPages": {"https://www.manhuagui.com/comic/1/2.html": true}}
//
// which is rewritten in full (temp file, fsync, rename) after every
// mutation. A SQLite backend is available for large libraries and can be
// populated from an existing JSON ledger with Migrate.
//
// A chapter is only marked once all of its images are on disk, so a key
// present in the ledger means the chapter never needs to be fetched again.
package ledger

// Package scraper drives chapter downloads from a manhuagui series.
//
// Each chapter URL moves through a small state machine:
//
//	Pending -> Extracting -> Downloading -> Completed
//	Pending -> Skipped (already recorded in the ledger)
//
// The Scraper checks the ledger, asks the Extractor for the chapter's title
// and image descriptors, hands the descriptors to the Downloader with the
// chapter URL as referrer, and records the chapter in the ledger only after
// every image was written. Chapters run strictly one after another. Any
// failure stops the run and is returned to the caller unchanged in kind.
//
// Usage:
//
//	s, err := scraper.New(scraper.Options{
//	    Extractor:  extractor,
//	    Lister:     extractor,
//	    Downloader: batch,
//	    Ledger:     store,
//	})
//	if err != nil {
//	    return err
//	}
//	report, err := s.DownloadAll(ctx, "https://www.manhuagui.com/comic/1234/")
package scraper

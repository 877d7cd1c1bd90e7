package models

import "time"

// ImageDescriptor pairs a remote image URL with the slash-separated path it is
// written to, relative to the output root.
type ImageDescriptor struct {
	RemoteURL string `json:"remote_url"`
	LocalPath string `json:"local_path"`
}

// Chapter is the result of extracting one chapter page.
type Chapter struct {
	URL    string            `json:"url"`
	Title  string            `json:"title"`
	Series string            `json:"series"`
	Name   string            `json:"name"`
	Images []ImageDescriptor `json:"images"`
}

// ChapterInfo is the sidecar written next to a downloaded chapter.
type ChapterInfo struct {
	Title        string    `json:"title"`
	Series       string    `json:"series"`
	Chapter      string    `json:"chapter"`
	SourceURL    string    `json:"source_url"`
	Pages        int       `json:"pages"`
	Bytes        int64     `json:"bytes"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

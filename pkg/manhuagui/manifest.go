package manhuagui

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	mhgerrors "mhgscraper/pkg/errors"
	"mhgscraper/pkg/models"
)

var (
	webpSuffix   = regexp.MustCompile(`(?i)\.webp$`)
	extensionExp = regexp.MustCompile(`\.[^./]+$`)
	unsafeName   = strings.NewReplacer("/", "_", "\\", "_", "\x00", "")
)

// ID is a numeric identifier the site sometimes emits as a string
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected number or string, got %s", data)
	}
	*id = ID(n.String())
	return nil
}

// Signature holds the signing parameters appended to image URLs
type Signature struct {
	MD5 string `json:"md5"`
}

// Manifest is the chapter description the reader page hands to SMH.imgData
type Manifest struct {
	BookID      ID        `json:"bid"`
	BookName    string    `json:"bname"`
	ChapterID   ID        `json:"cid"`
	ChapterName string    `json:"cname"`
	Files       []string  `json:"files"`
	Path        string    `json:"path"`
	Len         int       `json:"len"`
	Finished    bool      `json:"finished"`
	PrevID      ID        `json:"prevId"`
	NextID      ID        `json:"nextId"`
	Signature   Signature `json:"sl"`
}

// ParseManifest decodes and validates a manifest. Any shape problem is
// reported as a single extraction error.
func ParseManifest(data []byte, sourceURL string) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, mhgerrors.Extraction("parse manifest", sourceURL, fmt.Errorf("malformed manifest: %w", err))
	}
	if err := m.Validate(); err != nil {
		return nil, mhgerrors.Extraction("parse manifest", sourceURL, err)
	}
	return &m, nil
}

// Validate checks every required field and joins all problems found
func (m *Manifest) Validate() error {
	var errs []error

	if strings.TrimSpace(m.BookName) == "" {
		errs = append(errs, errors.New("bname is required"))
	}
	if strings.TrimSpace(m.ChapterName) == "" {
		errs = append(errs, errors.New("cname is required"))
	}
	if m.ChapterID == "" {
		errs = append(errs, errors.New("cid is required"))
	}
	if m.Signature.MD5 == "" {
		errs = append(errs, errors.New("sl.md5 is required"))
	}
	if len(m.Files) == 0 {
		errs = append(errs, errors.New("files must not be empty"))
	}
	for i, f := range m.Files {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, fmt.Errorf("files[%d] is empty", i))
		}
	}

	return errors.Join(errs...)
}

// SeriesDir is the book name made safe for use as one path segment
func (m *Manifest) SeriesDir() string {
	return safeSegment(m.BookName)
}

// ChapterDir is the chapter name made safe for use as one path segment
func (m *Manifest) ChapterDir() string {
	return safeSegment(m.ChapterName)
}

// Descriptors builds one image descriptor per file, in page order.
// filePath is the absolute image directory URL the page reader would use.
func (m *Manifest) Descriptors(filePath string) ([]models.ImageDescriptor, error) {
	descs := make([]models.ImageDescriptor, 0, len(m.Files))
	series, chapter := m.SeriesDir(), m.ChapterDir()

	for idx, file := range m.Files {
		name := webpSuffix.ReplaceAllString(file, "")
		ext := extensionExp.FindString(name)
		if ext == "" {
			return nil, mhgerrors.Extraction("build descriptors", filePath, fmt.Errorf("file %q has no extension", file))
		}

		descs = append(descs, models.ImageDescriptor{
			RemoteURL: filePath + name + "?cid=" + string(m.ChapterID) + "&md5=" + m.Signature.MD5,
			LocalPath: series + "/" + chapter + "/" + strconv.Itoa(idx+1) + ext,
		})
	}

	return descs, nil
}

func safeSegment(s string) string {
	s = strings.TrimSpace(unsafeName.Replace(s))
	if s == "." || s == ".." {
		return "_"
	}
	return s
}

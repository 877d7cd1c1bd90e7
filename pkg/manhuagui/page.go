package manhuagui

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	mhgerrors "mhgscraper/pkg/errors"
)

var (
	titlePattern  = regexp.MustCompile(`关灯(.+)\(.+\)`)
	readerPattern = regexp.MustCompile(`window.+fromCharCode`)
)

// ChapterPage is what a chapter reader page yields before unpacking
type ChapterPage struct {
	Title  string
	Script string
}

// ParseTitle pulls the display title out of the text of div.title
func ParseTitle(text, sourceURL string) (string, error) {
	m := titlePattern.FindStringSubmatch(text)
	if m == nil {
		return "", mhgerrors.Extraction("parse title", sourceURL, errors.New("title pattern not found"))
	}
	return strings.TrimSpace(m[1]), nil
}

// ParseChapterPage finds the title and the packed reader script in a
// chapter page
func ParseChapterPage(html, sourceURL string) (*ChapterPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, mhgerrors.Extraction("parse chapter page", sourceURL, err)
	}

	title, err := ParseTitle(doc.Find("div.title").First().Text(), sourceURL)
	if err != nil {
		return nil, err
	}

	var script string
	doc.Find("script:not([src])").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		body := s.Text()
		if readerPattern.MatchString(body) {
			script = body
			return false
		}
		return true
	})
	if script == "" {
		return nil, mhgerrors.Extraction("parse chapter page", sourceURL, errors.New("reader script not found"))
	}

	return &ChapterPage{Title: title, Script: script}, nil
}

// ParseChapterList returns the absolute chapter URLs listed on a series
// page, in page order. Pages that hide the list in the LZString-compressed
// __VIEWSTATE field are decoded first.
func ParseChapterList(html, seriesURL string) ([]string, error) {
	base, err := url.Parse(seriesURL)
	if err != nil {
		return nil, mhgerrors.Extraction("parse chapter list", seriesURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, mhgerrors.Extraction("parse chapter list", seriesURL, err)
	}

	if state, ok := doc.Find("#__VIEWSTATE").Attr("value"); ok && state != "" {
		decoded, err := DecompressFromBase64(state)
		if err != nil {
			return nil, mhgerrors.Extraction("parse chapter list", seriesURL, err)
		}
		hidden, err := goquery.NewDocumentFromReader(strings.NewReader(decoded))
		if err != nil {
			return nil, mhgerrors.Extraction("parse chapter list", seriesURL, err)
		}
		doc.Find("body").AppendSelection(hidden.Find("body").Children())
	}

	var chapters []string
	seen := make(map[string]bool)
	doc.Find("div.chapter-list li a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if !seen[abs] {
			seen[abs] = true
			chapters = append(chapters, abs)
		}
	})

	return chapters, nil
}

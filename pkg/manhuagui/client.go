package manhuagui

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/publicsuffix"

	"mhgscraper/pkg/config"
	mhgerrors "mhgscraper/pkg/errors"
	"mhgscraper/pkg/logger"
	"mhgscraper/pkg/ratelimit"
)

const (
	htmlAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	htmlAcceptEncoding = "br, gzip, deflate"

	// diagnosticLimit caps how much of a response body is echoed into errors
	diagnosticLimit = 512
)

// Client talks to the site and its image host
type Client struct {
	httpClient *http.Client
	site       config.SiteConfig
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a client for site. timeout of zero leaves requests
// bounded only by their context. limiter may be nil.
func NewClient(site config.SiteConfig, timeout time.Duration, limiter ratelimit.Limiter, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		site:    site,
		limiter: limiter,
		logger:  log,
	}, nil
}

// Site returns the site settings the client was built with
func (c *Client) Site() config.SiteConfig {
	return c.site
}

// FetchImage downloads one page image. referer must be the chapter page URL;
// the image host refuses requests without it.
func (c *Client) FetchImage(ctx context.Context, imageURL, referer string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, mhgerrors.Transport("fetch image", imageURL, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, mhgerrors.Transport("fetch image", imageURL, err)
	}
	req.Header.Set("Referer", referer)
	req.Header.Set("User-Agent", c.site.ImageUserAgent)

	resp, err := c.do(req)
	if err != nil {
		return nil, mhgerrors.Transport("fetch image", imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, mhgerrors.TransportStatus("fetch image", imageURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mhgerrors.Transport("fetch image", imageURL, fmt.Errorf("failed to read body: %w", err))
	}
	return data, nil
}

// FetchHTML downloads a page with the fixed desktop-browser header set and
// returns the decoded body. Failures carry an "out: ... error: ..." diagnostic
// holding whatever body was received.
func (c *Client) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", mhgerrors.Transport("fetch html", pageURL, err)
	}

	req.Header.Set("Cookie", c.site.Cookie)
	req.Header.Set("Accept", htmlAccept)
	req.Header.Set("Referer", c.site.BaseURL)
	req.Header.Set("User-Agent", c.site.PageUserAgent)
	req.Header.Set("Accept-Language", c.site.AcceptLanguage)
	// Setting Accept-Encoding turns off transparent gzip in net/http, so the
	// body is decoded by hand below
	req.Header.Set("Accept-Encoding", htmlAcceptEncoding)

	resp, err := c.do(req)
	if err != nil {
		return "", mhgerrors.Transport("fetch html", pageURL, diagnostic("", err.Error()))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", mhgerrors.Transport("fetch html", pageURL, diagnostic("", err.Error()))
	}

	body, err := decodeBody(raw, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return "", mhgerrors.Transport("fetch html", pageURL, diagnostic("", err.Error()))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &mhgerrors.Error{
			Kind: mhgerrors.KindTransport,
			Op:   "fetch html",
			URL:  pageURL,
			Code: resp.StatusCode,
			Err:  diagnostic(string(body), fmt.Sprintf("unexpected status %d", resp.StatusCode)),
		}
	}

	return string(body), nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, err
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, float64(duration.Milliseconds()))
	return resp, nil
}

// decodeBody undoes Content-Encoding. Unknown encodings are returned as is.
func decodeBody(raw []byte, encoding string) ([]byte, error) {
	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "br":
		r = brotli.NewReader(bytes.NewReader(raw))
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip body: %w", err)
		}
		defer gz.Close()
		r = gz
	case "deflate":
		// Servers disagree on whether deflate means zlib-wrapped or raw
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			r = flate.NewReader(bytes.NewReader(raw))
		} else {
			defer zr.Close()
			r = zr
		}
	default:
		return raw, nil
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s body: %w", encoding, err)
	}
	return out, nil
}

func diagnostic(out, reason string) error {
	if len(out) > diagnosticLimit {
		out = out[:diagnosticLimit]
	}
	return fmt.Errorf("out: %s \n error: %s", out, reason)
}

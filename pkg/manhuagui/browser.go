package manhuagui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/net/publicsuffix"

	"mhgscraper/pkg/config"
	mhgerrors "mhgscraper/pkg/errors"
	"mhgscraper/pkg/logger"
	"mhgscraper/pkg/models"
)

// captureScript hooks SMH.imgData, re-runs the packed reader script and
// reports what the hook received together with the reader's image path
const captureScript = `(() => {
	const titleNode = document.querySelector('div.title');
	const out = { title: titleNode ? titleNode.textContent : '', manifest: null, filePath: '', error: '' };
	const script = [...document.querySelectorAll('script:not([src])')].filter(s => /window.+fromCharCode/.test(s.innerHTML))[0];
	if (!script) {
		out.error = 'reader script not found';
		return JSON.stringify(out);
	}
	if (typeof SMH === 'undefined') {
		out.error = 'SMH reader object not present';
		return JSON.stringify(out);
	}
	SMH.imgData = function (n) {
		out.manifest = n;
		return { preInit: function () {} };
	};
	const injected = document.createElement('script');
	injected.type = 'text/javascript';
	injected.innerHTML = script.innerHTML;
	document.body.append(injected);
	if (window.pVars && pVars.manga && pVars.manga.filePath) {
		out.filePath = pVars.manga.filePath;
	}
	return JSON.stringify(out);
})()`

// BrowserExtractor drives a headless Chrome through chromedp. The page's
// own code unpacks the manifest; the extractor only captures the result.
type BrowserExtractor struct {
	ctx     context.Context
	cancel  context.CancelFunc
	site    config.SiteConfig
	browser config.BrowserConfig
	cookies []*network.CookieParam
	logger  logger.Logger

	// chromedp runs one navigation at a time per tab
	mu sync.Mutex
}

// NewBrowserExtractor starts a browser allocator bound to parent. The
// browser process itself is launched lazily on the first action.
func NewBrowserExtractor(parent context.Context, site config.SiteConfig, browser config.BrowserConfig, log logger.Logger) (*BrowserExtractor, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	cookies, err := cookieParams(site.Cookie, site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare site cookies: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(site.ImageUserAgent),
		chromedp.Flag("headless", browser.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-gpu", true),
	)
	if browser.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(browser.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	return &BrowserExtractor{
		ctx:     browserCtx,
		cancel:  func() { cancelBrowser(); cancelAlloc() },
		site:    site,
		browser: browser,
		cookies: cookies,
		logger:  log,
	}, nil
}

// Init opens the site root once so the session picks up its cookies
func (b *BrowserExtractor) Init(ctx context.Context) error {
	if !b.browser.VisitFirst {
		return nil
	}
	return b.run(ctx, "visit site", b.site.BaseURL, b.navigate(b.site.BaseURL)...)
}

// Extract loads chapterURL and returns its title and image descriptors
func (b *BrowserExtractor) Extract(ctx context.Context, chapterURL string) (*models.Chapter, error) {
	var raw string
	tasks := append(b.navigate(chapterURL), chromedp.Evaluate(captureScript, &raw))

	if err := b.run(ctx, "extract chapter", chapterURL, tasks...); err != nil {
		return nil, err
	}

	return decodeCapture(raw, chapterURL, b.site.ImageHost)
}

// ListChapters loads a series page and returns its chapter URLs
func (b *BrowserExtractor) ListChapters(ctx context.Context, seriesURL string) ([]string, error) {
	var html string
	tasks := append(b.navigate(seriesURL), chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := b.run(ctx, "list chapters", seriesURL, tasks...); err != nil {
		return nil, err
	}
	return ParseChapterList(html, seriesURL)
}

// Close shuts the browser down
func (b *BrowserExtractor) Close() error {
	b.cancel()
	return nil
}

func (b *BrowserExtractor) navigate(target string) []chromedp.Action {
	var tasks []chromedp.Action
	if len(b.cookies) > 0 {
		tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetCookies(b.cookies).Do(ctx)
		}))
	}
	return append(tasks, chromedp.Navigate(target), chromedp.WaitReady("body"))
}

// run executes tasks on the browser tab, bounded by the configured timeout
// and cancelled together with ctx
func (b *BrowserExtractor) run(ctx context.Context, op, target string, tasks ...chromedp.Action) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	timeout := b.browser.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(b.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	err := chromedp.Run(runCtx, tasks...)
	b.logger.DebugWithFields("Browser action finished", map[string]interface{}{
		"op":       op,
		"url":      target,
		"duration": time.Since(start),
		"ok":       err == nil,
	})
	if err != nil {
		if ctx.Err() != nil {
			return mhgerrors.Transport(op, target, ctx.Err())
		}
		return mhgerrors.Extraction(op, target, err)
	}
	return nil
}

type capture struct {
	Title    string          `json:"title"`
	Manifest json.RawMessage `json:"manifest"`
	FilePath string          `json:"filePath"`
	Error    string          `json:"error"`
}

// decodeCapture turns the JSON reported by captureScript into a chapter.
// When the reader did not expose its image path, imageHost plus the
// manifest path is used, as in HTML mode.
func decodeCapture(raw, chapterURL, imageHost string) (*models.Chapter, error) {
	var c capture
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, mhgerrors.Extraction("extract chapter", chapterURL, fmt.Errorf("malformed capture: %w", err))
	}
	if c.Error != "" {
		return nil, mhgerrors.Extraction("extract chapter", chapterURL, errors.New(c.Error))
	}

	title, err := ParseTitle(c.Title, chapterURL)
	if err != nil {
		return nil, err
	}

	if len(c.Manifest) == 0 || string(c.Manifest) == "null" {
		return nil, mhgerrors.Extraction("extract chapter", chapterURL, errors.New("imgData was not called"))
	}
	manifest, err := ParseManifest(c.Manifest, chapterURL)
	if err != nil {
		return nil, err
	}

	filePath := c.FilePath
	if filePath == "" {
		filePath = strings.TrimRight(imageHost, "/") + manifest.Path
	}

	return buildChapter(chapterURL, title, manifest, filePath)
}

// cookieParams converts a Cookie header value into CDP cookies scoped to
// the registrable domain of baseURL
func cookieParams(header, baseURL string) ([]*network.CookieParam, error) {
	if strings.TrimSpace(header) == "" {
		return nil, nil
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	host := u.Hostname()
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// IP addresses and single-label hosts have no registrable domain
		domain = host
	}

	var params []*network.CookieParam
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		params = append(params, &network.CookieParam{
			Name:   name,
			Value:  value,
			Domain: domain,
			Path:   "/",
		})
	}
	return params, nil
}

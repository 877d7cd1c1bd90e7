package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"mhgscraper/internal/downloader"
	"mhgscraper/pkg/auth"
	"mhgscraper/pkg/config"
	"mhgscraper/pkg/ledger"
	"mhgscraper/pkg/logger"
	"mhgscraper/pkg/manhuagui"
	"mhgscraper/pkg/ratelimit"
	"mhgscraper/pkg/scraper"
	"mhgscraper/pkg/storage"
	"mhgscraper/pkg/ui"
	"mhgscraper/pkg/ui/tui"
)

var (
	// Download command flags
	concurrency   int
	downloadMode  string
	extractorMode string
	outputDir     string
	ledgerPath    string
	ledgerBackend string
	profileName   string
	cookieHeader  string
	useTUI        bool
	headless      bool
	rateRequests  int
	writeMetadata bool
	notify        bool
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download <series-url>",
	Short: "Download every chapter of a series",
	Long: `Download every chapter listed on a manhuagui series page.

Chapters run one after another in page order. Images inside a chapter are
fetched concurrently up to --concurrency. Chapters already recorded in the
ledger are skipped, so an interrupted run can simply be restarted.

Images are written to <output>/<series>/<chapter>/<file>.`,
	Example: `  # Download a series with default settings
  mhgscraper download https://www.manhuagui.com/comic/1234/

  # Fewer parallel images, plain HTML extraction, sqlite ledger
  mhgscraper download https://www.manhuagui.com/comic/1234/ --concurrency 4 --extractor html --ledger-backend sqlite --ledger ledger.db

  # Use a stored cookie profile and the full-screen dashboard
  mhgscraper download https://www.manhuagui.com/comic/1234/ --profile main --tui`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		series := strings.TrimSpace(args[0])
		return runDownload(cmd, series, func(ctx context.Context, s *scraper.Scraper) (*scraper.Report, error) {
			return s.DownloadAll(ctx, series)
		})
	},
}

// chapterCmd represents the chapter command
var chapterCmd = &cobra.Command{
	Use:   "chapter <chapter-url>...",
	Short: "Download individual chapters",
	Long: `Download the given chapter pages in the order listed.

Accepts the same flags as download. The first failing chapter stops the run.`,
	Example: `  mhgscraper chapter https://www.manhuagui.com/comic/1234/5678.html https://www.manhuagui.com/comic/1234/5679.html`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := make([]string, 0, len(args))
		for _, a := range args {
			urls = append(urls, strings.TrimSpace(a))
		}
		return runDownload(cmd, urls[0], func(ctx context.Context, s *scraper.Scraper) (*scraper.Report, error) {
			return s.DownloadChapters(ctx, urls)
		})
	},
}

// chaptersCmd represents the chapters command
var chaptersCmd = &cobra.Command{
	Use:   "chapters <series-url>",
	Short: "Print the chapter list of a series",
	Long: `Resolve the chapter list of a series page and print one URL per line.

Chapters already recorded in the ledger are marked with a check.`,
	Args: cobra.ExactArgs(1),
	RunE: runChapters,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(chapterCmd)
	rootCmd.AddCommand(chaptersCmd)

	for _, c := range []*cobra.Command{downloadCmd, chapterCmd} {
		c.Flags().IntVar(&concurrency, "concurrency", 10, "maximum images in flight per chapter")
		c.Flags().StringVar(&downloadMode, "mode", "chunked", "dispatch mode (chunked, window)")
		c.Flags().StringVarP(&outputDir, "output", "o", "out", "output root directory")
		c.Flags().BoolVar(&useTUI, "tui", false, "use the full-screen dashboard")
		c.Flags().IntVar(&rateRequests, "rate", 0, "image requests per rate period (0 disables)")
		c.Flags().BoolVar(&writeMetadata, "metadata", false, "write info.json next to each chapter")
		c.Flags().BoolVar(&notify, "notifications", false, "notify when the run finishes")
	}

	for _, c := range []*cobra.Command{downloadCmd, chapterCmd, chaptersCmd} {
		c.Flags().StringVar(&extractorMode, "extractor", "browser", "manifest extractor (browser, html)")
		c.Flags().StringVar(&ledgerPath, "ledger", "db.json", "ledger path")
		c.Flags().StringVar(&ledgerBackend, "ledger-backend", "json", "ledger backend (json, sqlite)")
		c.Flags().StringVarP(&profileName, "profile", "p", "", "stored cookie profile")
		c.Flags().StringVar(&cookieHeader, "cookie", "", "cookie header sent to the site")
		c.Flags().BoolVar(&headless, "headless", true, "run the browser without a window")
	}
}

// exitError carries a failure that has already been reported to the user
type exitError struct{ err error }

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// commandFlags collects the flags the user set explicitly, keyed the way
// config.MergeCommandLineFlags expects
func commandFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := func(name string, v interface{}) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			flags[name] = v
		}
	}

	set("concurrency", concurrency)
	set("mode", downloadMode)
	set("rate", rateRequests)
	set("output", outputDir)
	set("metadata", writeMetadata)
	set("ledger", ledgerPath)
	set("ledger-backend", ledgerBackend)
	set("extractor", extractorMode)
	set("headless", headless)
	set("profile", profileName)
	set("cookie", cookieHeader)
	set("notifications", notify)
	if f := cmd.Flags().Lookup("tui"); f != nil && f.Changed {
		if useTUI {
			flags["ui"] = "tui"
		} else {
			flags["ui"] = "bar"
		}
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	return flags
}

// loadConfig merges every config source and initializes the global logger
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := commandFlags(cmd)

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

// loadSiteConfig is loadConfig plus the stored cookie profile
func loadSiteConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if f := cmd.Flags().Lookup("cookie"); f != nil && f.Changed {
		return cfg, nil
	}
	if err := applyProfile(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyProfile replaces the configured cookie with a stored profile's.
// A named profile that cannot be found is an error; with no name the
// configured cookie stays unless the environment or default profile has one.
func applyProfile(cfg *config.Config) error {
	dir, err := auth.ConfigDir()
	if err != nil {
		if cfg.Site.Profile != "" {
			return fmt.Errorf("failed to locate profile store: %w", err)
		}
		return nil
	}

	manager, err := auth.NewManager(dir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	cookie, ok, err := manager.ResolveCookie(cfg.Site.Profile)
	if err != nil {
		ui.PrintInfo("Stored profiles", "Use 'mhgscraper auth list' to see them")
		return fmt.Errorf("profile %q: %w", cfg.Site.Profile, err)
	}
	if ok {
		cfg.Site.Cookie = cookie
		logger.WithField("profile", cfg.Site.Profile).Debug("Using stored cookie")
	}
	return nil
}

// siteExtractor is what the download commands need from either extractor
type siteExtractor interface {
	scraper.Extractor
	scraper.ChapterLister
}

// session holds the collaborators built from one configuration
type session struct {
	cfg        *config.Config
	log        logger.Logger
	storage    *storage.Manager
	ledger     ledger.Store
	extractor  siteExtractor
	downloader *downloader.BatchDownloader
	closers    []func() error
}

func newSession(ctx context.Context, cfg *config.Config) (*session, error) {
	log := logger.GetLogger()
	s := &session{cfg: cfg, log: log}

	client, err := manhuagui.NewClient(cfg.Site, cfg.Download.Timeout, ratelimit.New(cfg.RateLimit), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create site client: %w", err)
	}

	s.storage, err = storage.NewManager(cfg.Output.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare output directory: %w", err)
	}

	s.ledger, err = ledger.Open(cfg.Ledger, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	s.closers = append(s.closers, s.ledger.Close)

	switch strings.ToLower(cfg.Extractor.Mode) {
	case "html":
		s.extractor = manhuagui.NewHTMLExtractor(client, cfg.Site.ImageHost, log)
	default:
		browser, err := manhuagui.NewBrowserExtractor(ctx, cfg.Site, cfg.Browser, log)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
		s.closers = append(s.closers, browser.Close)
		if err := browser.Init(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open %s: %w", cfg.Site.BaseURL, err)
		}
		s.extractor = browser
	}

	s.downloader = downloader.NewBatchDownloader(client, s.storage, downloader.Mode(strings.ToLower(cfg.Download.Mode)), log)

	logger.LogComponentStart(log, "session", map[string]interface{}{
		"extractor":   cfg.Extractor.Mode,
		"mode":        string(s.downloader.Mode()),
		"concurrency": cfg.Download.Concurrency,
		"output":      s.storage.Root(),
		"ledger":      cfg.Ledger.Path,
	})

	return s, nil
}

// Close releases resources in reverse order of acquisition
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.WithError(err).Warn("Failed to release resource")
		}
	}
	s.closers = nil
}

func (s *session) options() scraper.Options {
	opts := scraper.Options{
		Extractor:   s.extractor,
		Lister:      s.extractor,
		Downloader:  s.downloader,
		Ledger:      s.ledger,
		Concurrency: s.cfg.Download.Concurrency,
		Logger:      s.log,
	}
	if s.cfg.Output.WriteMetadata {
		opts.Metadata = s.storage
	}
	return opts
}

type runFunc func(ctx context.Context, s *scraper.Scraper) (*scraper.Report, error)

func runDownload(cmd *cobra.Command, label string, run runFunc) error {
	cfg, err := loadSiteConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	opts := sess.options()
	notifier := ui.NewNotifier(cfg.Notifications)

	var report *scraper.Report
	if strings.EqualFold(cfg.UI.Mode, "tui") {
		report, err = runWithTUI(ctx, cancel, cfg, label, opts, run)
	} else {
		ui.PrintInfo("Target", label)
		opts.Progress = ui.NewChapterBars(os.Stderr)
		opts.Observer = ui.NewConsoleObserver(os.Stdout, verbose)

		var s *scraper.Scraper
		s, err = scraper.New(opts)
		if err != nil {
			return err
		}
		report, err = run(ctx, s)
		ui.PrintReport(os.Stdout, report)
	}

	notifier.RunFinished(label, report, err)
	if err != nil {
		sess.log.WithError(err).WithField("target", label).Error("Run failed")
		return &exitError{err: err}
	}
	return nil
}

// runWithTUI drives the run from a goroutine while the dashboard owns the
// terminal. Quitting the dashboard early cancels the run.
func runWithTUI(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, label string, opts scraper.Options, run runFunc) (*scraper.Report, error) {
	// Console logs would tear the alternate screen
	if quietLog, err := logger.NewWithWriter(&cfg.Logging, io.Discard); err == nil {
		quietLog = logger.WithRunID(quietLog)
		logger.SetLogger(quietLog)
		opts.Logger = quietLog
	}

	terminal := tui.NewTUI(label, cancel)
	opts.Progress = terminal.Progress()
	opts.Observer = terminal

	s, err := scraper.New(opts)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		report *scraper.Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := run(ctx, s)
		terminal.Finished(report, err)
		done <- outcome{report, err}
	}()

	tuiErr := terminal.Start()
	cancel()
	result := <-done

	if tuiErr != nil {
		return result.report, errors.Join(result.err, fmt.Errorf("dashboard failed: %w", tuiErr))
	}
	ui.PrintReport(os.Stdout, result.report)
	return result.report, result.err
}

func runChapters(cmd *cobra.Command, args []string) error {
	series := strings.TrimSpace(args[0])

	cfg, err := loadSiteConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	urls, err := sess.extractor.ListChapters(ctx, series)
	if err != nil {
		return fmt.Errorf("failed to list chapters: %w", err)
	}

	done := 0
	for _, u := range urls {
		mark := " "
		if sess.ledger.IsComplete(u) {
			mark = ui.Green("✓")
			done++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, u)
	}
	ui.PrintInfo("Chapters", fmt.Sprintf("%d (%d downloaded)", len(urls), done))
	return nil
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultImageUserAgent is sent on every image fetch
	DefaultImageUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_14_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/76.0.3809.100 Safari/537.36"
	// DefaultPageUserAgent is sent on raw HTML page fetches
	DefaultPageUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_14_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/13.0.2 Safari/605.1.15"
	// DefaultCookie pins the site's region so chapter pages are served in full
	DefaultCookie = "_ga=GA1.2.1772023635.1570682783; _gat=1; _gid=GA1.2.872753816.1570682783; country=TW"

	envPrefix = "MHG_"
)

// Config holds all configuration options for the manga downloader
type Config struct {
	Site          SiteConfig         `yaml:"site" json:"site"`
	Download      DownloadConfig     `yaml:"download" json:"download"`
	RateLimit     RateLimitConfig    `yaml:"rate_limit" json:"rate_limit"`
	Output        OutputConfig       `yaml:"output" json:"output"`
	Ledger        LedgerConfig       `yaml:"ledger" json:"ledger"`
	Browser       BrowserConfig      `yaml:"browser" json:"browser"`
	Extractor     ExtractorConfig    `yaml:"extractor" json:"extractor"`
	UI            UIConfig           `yaml:"ui" json:"ui"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
}

// SiteConfig describes the target site and the headers sent to it
type SiteConfig struct {
	BaseURL        string `yaml:"base_url" json:"base_url"`
	ImageHost      string `yaml:"image_host" json:"image_host"`
	ImageUserAgent string `yaml:"image_user_agent" json:"image_user_agent"`
	PageUserAgent  string `yaml:"page_user_agent" json:"page_user_agent"`
	Cookie         string `yaml:"cookie" json:"cookie"`
	AcceptLanguage string `yaml:"accept_language" json:"accept_language"`
	Profile        string `yaml:"profile" json:"profile"`
}

// DownloadConfig controls the batch downloader
type DownloadConfig struct {
	Concurrency int `yaml:"concurrency" json:"concurrency"`
	// Mode is "chunked" (join after every Concurrency dispatches) or "window" (sliding permits)
	Mode    string        `yaml:"mode" json:"mode"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig paces image fetches. Requests == 0 disables pacing.
type RateLimitConfig struct {
	Requests int           `yaml:"requests" json:"requests"`
	Period   time.Duration `yaml:"period" json:"period"`
	Strategy string        `yaml:"strategy" json:"strategy"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	Root          string `yaml:"root" json:"root"`
	WriteMetadata bool   `yaml:"write_metadata" json:"write_metadata"`
}

// LedgerConfig selects where completed chapters are recorded
type LedgerConfig struct {
	Path    string `yaml:"path" json:"path"`
	Backend string `yaml:"backend" json:"backend"`
}

// BrowserConfig configures the headless browser used for extraction
type BrowserConfig struct {
	Headless   bool          `yaml:"headless" json:"headless"`
	ExecPath   string        `yaml:"exec_path" json:"exec_path"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	VisitFirst bool          `yaml:"visit_first" json:"visit_first"`
}

// ExtractorConfig selects how chapter manifests are recovered
type ExtractorConfig struct {
	Mode string `yaml:"mode" json:"mode"`
}

// UIConfig selects the progress display
type UIConfig struct {
	Mode string `yaml:"mode" json:"mode"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Type    string `yaml:"type" json:"type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with the site's working defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:        "https://www.manhuagui.com/",
			ImageHost:      "https://i.hamreus.com",
			ImageUserAgent: DefaultImageUserAgent,
			PageUserAgent:  DefaultPageUserAgent,
			Cookie:         DefaultCookie,
			AcceptLanguage: "en-us",
		},
		Download: DownloadConfig{
			Concurrency: 10,
			Mode:        "chunked",
			Timeout:     0,
		},
		RateLimit: RateLimitConfig{
			Requests: 0,
			Period:   time.Minute,
			Strategy: "window",
		},
		Output: OutputConfig{
			Root: "out",
		},
		Ledger: LedgerConfig{
			Path:    "db.json",
			Backend: "json",
		},
		Browser: BrowserConfig{
			Headless:   true,
			Timeout:    60 * time.Second,
			VisitFirst: true,
		},
		Extractor: ExtractorConfig{
			Mode: "browser",
		},
		UI: UIConfig{
			Mode: "bar",
		},
		Notifications: NotificationConfig{
			Enabled: false,
			Type:    "terminal",
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// LoadFromEnv overrides values with MHG_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(envPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	setString("BASE_URL", &c.Site.BaseURL)
	setString("IMAGE_HOST", &c.Site.ImageHost)
	setString("USER_AGENT", &c.Site.ImageUserAgent)
	setString("COOKIE", &c.Site.Cookie)
	setString("PROFILE", &c.Site.Profile)

	setInt("CONCURRENCY", &c.Download.Concurrency)
	setString("DOWNLOAD_MODE", &c.Download.Mode)
	setDuration("DOWNLOAD_TIMEOUT", &c.Download.Timeout)

	setInt("RATE_LIMIT", &c.RateLimit.Requests)
	setDuration("RATE_PERIOD", &c.RateLimit.Period)

	setString("OUTPUT_DIR", &c.Output.Root)
	setBool("WRITE_METADATA", &c.Output.WriteMetadata)

	setString("LEDGER_PATH", &c.Ledger.Path)
	setString("LEDGER_BACKEND", &c.Ledger.Backend)

	setBool("HEADLESS", &c.Browser.Headless)
	setString("CHROME_PATH", &c.Browser.ExecPath)

	setString("EXTRACTOR", &c.Extractor.Mode)
	setString("UI", &c.UI.Mode)
	setBool("NOTIFICATIONS_ENABLED", &c.Notifications.Enabled)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".mhgscraper.yaml",
		".mhgscraper.yml",
		filepath.Join(home, ".config", "mhgscraper", "config.yaml"),
		filepath.Join(home, ".config", "mhgscraper", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if _, err := url.ParseRequestURI(c.Site.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid base URL %q", c.Site.BaseURL))
	}
	if _, err := url.ParseRequestURI(c.Site.ImageHost); err != nil {
		errs = append(errs, fmt.Errorf("invalid image host %q", c.Site.ImageHost))
	}
	if c.Site.ImageUserAgent == "" {
		errs = append(errs, errors.New("image user agent is required"))
	}

	if c.Download.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	if !oneOf(c.Download.Mode, "window", "chunked") {
		errs = append(errs, fmt.Errorf("invalid download mode %q", c.Download.Mode))
	}
	if c.Download.Timeout < 0 {
		errs = append(errs, errors.New("download timeout cannot be negative"))
	}

	if c.RateLimit.Requests < 0 {
		errs = append(errs, errors.New("rate limit requests cannot be negative"))
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Period <= 0 {
		errs = append(errs, errors.New("rate limit period must be positive"))
	}
	if !oneOf(c.RateLimit.Strategy, "window", "bucket") {
		errs = append(errs, fmt.Errorf("invalid rate limit strategy %q", c.RateLimit.Strategy))
	}

	if c.Output.Root == "" {
		errs = append(errs, errors.New("output root is required"))
	}

	if c.Ledger.Path == "" {
		errs = append(errs, errors.New("ledger path is required"))
	}
	if !oneOf(c.Ledger.Backend, "json", "sqlite") {
		errs = append(errs, fmt.Errorf("invalid ledger backend %q", c.Ledger.Backend))
	}

	if c.Browser.Timeout <= 0 {
		errs = append(errs, errors.New("browser timeout must be positive"))
	}
	if !oneOf(c.Extractor.Mode, "browser", "html") {
		errs = append(errs, fmt.Errorf("invalid extractor mode %q", c.Extractor.Mode))
	}
	if !oneOf(c.UI.Mode, "bar", "tui", "none") {
		errs = append(errs, fmt.Errorf("invalid ui mode %q", c.UI.Mode))
	}
	if !oneOf(c.Notifications.Type, "terminal", "desktop", "none") {
		errs = append(errs, fmt.Errorf("invalid notification type %q", c.Notifications.Type))
	}
	if !oneOf(c.Logging.Level, "debug", "info", "warn", "error", "disabled") {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags applies explicitly set command line flags.
// Keys are flag names; only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Download.Concurrency = v
	}
	if v, ok := flags["mode"].(string); ok && v != "" {
		c.Download.Mode = v
	}
	if v, ok := flags["rate"].(int); ok {
		c.RateLimit.Requests = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Root = v
	}
	if v, ok := flags["metadata"].(bool); ok {
		c.Output.WriteMetadata = v
	}
	if v, ok := flags["ledger"].(string); ok && v != "" {
		c.Ledger.Path = v
	}
	if v, ok := flags["ledger-backend"].(string); ok && v != "" {
		c.Ledger.Backend = v
	}
	if v, ok := flags["extractor"].(string); ok && v != "" {
		c.Extractor.Mode = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = v
	}
	if v, ok := flags["profile"].(string); ok && v != "" {
		c.Site.Profile = v
	}
	if v, ok := flags["cookie"].(string); ok && v != "" {
		c.Site.Cookie = v
	}
	if v, ok := flags["ui"].(string); ok && v != "" {
		c.UI.Mode = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment (.env included) > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".mhgscraper.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

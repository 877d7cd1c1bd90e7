package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Download.Concurrency != 10 {
		t.Errorf("Expected default concurrency to be 10, got %d", cfg.Download.Concurrency)
	}
	if cfg.Download.Mode != "chunked" {
		t.Errorf("Expected default download mode to be chunked, got %s", cfg.Download.Mode)
	}
	if cfg.Output.Root != "out" {
		t.Errorf("Expected default output root to be out, got %s", cfg.Output.Root)
	}
	if cfg.Ledger.Path != "db.json" {
		t.Errorf("Expected default ledger path to be db.json, got %s", cfg.Ledger.Path)
	}
	if cfg.Site.ImageUserAgent != DefaultImageUserAgent {
		t.Errorf("Unexpected default image user agent %q", cfg.Site.ImageUserAgent)
	}
	if !strings.Contains(cfg.Site.Cookie, "country=TW") {
		t.Errorf("Expected default cookie to pin country=TW, got %q", cfg.Site.Cookie)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MHG_CONCURRENCY", "4")
	t.Setenv("MHG_DOWNLOAD_MODE", "window")
	t.Setenv("MHG_OUTPUT_DIR", "/tmp/manga")
	t.Setenv("MHG_LEDGER_PATH", "/tmp/ledger.json")
	t.Setenv("MHG_EXTRACTOR", "html")
	t.Setenv("MHG_HEADLESS", "false")
	t.Setenv("MHG_RATE_PERIOD", "30s")
	t.Setenv("MHG_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 4, cfg.Download.Concurrency)
	assert.Equal(t, "window", cfg.Download.Mode)
	assert.Equal(t, "/tmp/manga", cfg.Output.Root)
	assert.Equal(t, "/tmp/ledger.json", cfg.Ledger.Path)
	assert.Equal(t, "html", cfg.Extractor.Mode)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Period)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("MHG_CONCURRENCY", "ten")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MHG_CONCURRENCY")
	assert.Equal(t, 10, cfg.Download.Concurrency)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
download:
  concurrency: 3
  mode: window
output:
  root: ./comics
ledger:
  backend: sqlite
  path: ./ledger.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 3, cfg.Download.Concurrency)
	assert.Equal(t, "window", cfg.Download.Mode)
	assert.Equal(t, "./comics", cfg.Output.Root)
	assert.Equal(t, "sqlite", cfg.Ledger.Backend)
	// Untouched sections keep defaults
	assert.Equal(t, "https://i.hamreus.com", cfg.Site.ImageHost)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download: [unclosed"), 0644))

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero concurrency", func(c *Config) { c.Download.Concurrency = 0 }, "concurrency must be positive"},
		{"bad mode", func(c *Config) { c.Download.Mode = "parallel" }, "invalid download mode"},
		{"bad backend", func(c *Config) { c.Ledger.Backend = "redis" }, "invalid ledger backend"},
		{"empty ledger path", func(c *Config) { c.Ledger.Path = "" }, "ledger path is required"},
		{"bad extractor", func(c *Config) { c.Extractor.Mode = "regex" }, "invalid extractor mode"},
		{"bad base url", func(c *Config) { c.Site.BaseURL = "not a url" }, "invalid base URL"},
		{"rate without period", func(c *Config) {
			c.RateLimit.Requests = 10
			c.RateLimit.Period = 0
		}, "rate limit period must be positive"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Download.Concurrency = -1
	cfg.Output.Root = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency must be positive")
	assert.Contains(t, err.Error(), "output root is required")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"concurrency": 5,
		"mode":        "window",
		"output":      "/data/manga",
		"extractor":   "html",
		"headless":    false,
		"profile":     "main",
	})

	assert.Equal(t, 5, cfg.Download.Concurrency)
	assert.Equal(t, "window", cfg.Download.Mode)
	assert.Equal(t, "/data/manga", cfg.Output.Root)
	assert.Equal(t, "html", cfg.Extractor.Mode)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "main", cfg.Site.Profile)
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  concurrency: 3\noutput:\n  root: from-file\n"), 0644))

	t.Setenv("MHG_OUTPUT_DIR", "from-env")

	cfg, err := Load(path, map[string]interface{}{"concurrency": 7})
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Download.Concurrency, "flags override file")
	assert.Equal(t, "from-env", cfg.Output.Root, "env overrides file")
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MHG_DOWNLOAD_MODE", "sideways")

	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Download.Concurrency = 6
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 6, loaded.Download.Concurrency)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

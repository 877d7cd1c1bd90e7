package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"mhgscraper/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"disabled", &config.LoggingConfig{Level: "disabled"}, false},
		{"invalid level", &config.LoggingConfig{Level: "loud"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"trace", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, got, tt.expected)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: "warn"}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	l.Info("hidden message")
	l.Warn("visible message")

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Errorf("info record should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "visible message") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestFieldsAreWritten(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: "debug"}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	l.WithField("chapter", "第01回").DebugWithFields("Image dispatched", map[string]interface{}{
		"index": 3,
	})

	out := buf.String()
	for _, want := range []string{"Image dispatched", "chapter", "第01回", "index", "3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestFileOutputIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	l, err := NewWithWriter(&config.LoggingConfig{Level: "info", File: path}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}

	l.InfoWithFields("Chapter completed", map[string]interface{}{"pages": 12})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"pages":12`) || !strings.Contains(string(data), `"app":"mhgscraper"`) {
		t.Errorf("unexpected file contents: %s", data)
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("a", 1)
	child.WithField("b", 2).Info("grandchild")
	child.Info("child")

	msgs := tl.GetMessages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if _, ok := msgs[1].Fields["b"]; ok {
		t.Errorf("child logger picked up grandchild field: %v", msgs[1].Fields)
	}
	if msgs[0].Fields["a"] != 1 || msgs[0].Fields["b"] != 2 {
		t.Errorf("grandchild fields = %v", msgs[0].Fields)
	}
}

func TestTestLoggerCapture(t *testing.T) {
	tl := NewTestLogger()
	tl.WithError(errors.New("status 403")).Error("fetch failed")
	tl.Debug("noise")

	if !tl.HasMessage("fetch failed") {
		t.Error("expected captured error message")
	}
	errs := tl.GetMessagesByLevel("ERROR")
	if len(errs) != 1 || errs[0].Fields["error"] != "status 403" {
		t.Errorf("unexpected error records: %+v", errs)
	}

	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear should drop all records")
	}
}

func TestWithRunID(t *testing.T) {
	tl := NewTestLogger()
	WithRunID(tl).Info("start")

	msgs := tl.GetMessages()
	id, ok := msgs[0].Fields["run_id"].(string)
	if !ok || len(id) != 36 {
		t.Errorf("expected uuid run_id, got %v", msgs[0].Fields["run_id"])
	}
}

func TestLogChapter(t *testing.T) {
	tl := NewTestLogger()
	LogChapter(tl, "completed", "https://www.manhuagui.com/comic/1/2.html", "x 第01回", 5, nil)
	LogChapter(tl, "failed", "https://www.manhuagui.com/comic/1/3.html", "x 第02回", 0, errors.New("boom"))

	if len(tl.GetMessagesByLevel("INFO")) != 1 || len(tl.GetMessagesByLevel("ERROR")) != 1 {
		t.Errorf("unexpected records: %+v", tl.GetMessages())
	}
}

func TestGlobalLogger(t *testing.T) {
	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	WithField("k", "v").Warn("through global")
	if !tl.HasMessage("through global") {
		t.Error("global helpers should use the logger set by SetLogger")
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithFields(map[string]interface{}{"x": 1}).Error("ignored")
	if l.GetZerolog() == nil {
		t.Error("nop logger should still expose a zerolog instance")
	}
}

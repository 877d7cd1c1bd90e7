package logger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// LogRequest logs the outcome of an HTTP fetch at a level matching its status
func LogRequest(l Logger, method, url string, statusCode int, durationMs float64) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": durationMs,
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("HTTP request completed", fields)
	case statusCode >= 400 && statusCode < 500:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.ErrorWithFields("HTTP request failed", fields)
	}
}

// LogChapter records a chapter lifecycle event
func LogChapter(l Logger, event, url, title string, pages int, err error) {
	cl := l.WithFields(map[string]interface{}{
		"chapter_url": url,
		"title":       title,
		"pages":       pages,
		"event":       event,
	})

	if err != nil {
		cl.WithError(err).Error("Chapter failed")
		return
	}
	cl.Info("Chapter " + event)
}

// LogBatchProgress logs how far a batch has been dispatched
func LogBatchProgress(l Logger, title string, dispatched, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(dispatched) / float64(total) * 100
	}

	l.DebugWithFields("Batch progress", map[string]interface{}{
		"title":      title,
		"dispatched": dispatched,
		"total":      total,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, settings map[string]interface{}) {
	cl := l.WithField("component", component)
	if len(settings) > 0 {
		cl = cl.WithFields(settings)
	}
	cl.Debug("Component started")
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}

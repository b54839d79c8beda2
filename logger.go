// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package hwc

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called while the compositor goroutine and HAL
// notification goroutines are logging.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for hwc and all its sub-packages.
// By default, hwc produces no log output.
//
// Pass nil to restore the default silent behavior.
//
// Log levels used by hwc:
//   - [slog.LevelDebug]: per-frame diagnostics (layer decisions, fences)
//   - [slog.LevelInfo]: lifecycle events (probe result, variant, hotplug)
//   - [slog.LevelWarn]: recoverable failures (transient commit failure)
//   - [slog.LevelError]: failures escalated to fatal
//
// Example:
//
//	hwc.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger used by hwc.
// Sub-packages call this to share one logger configuration without
// introducing import cycles.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

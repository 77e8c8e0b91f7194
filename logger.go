package rhi

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/rhi/driver"
)

// nopHandler drops every record. Enabled reports false, so disabled
// log calls never format their arguments.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// defaultLogger is handed to renderers created without WithLogger.
var defaultLogger atomic.Pointer[slog.Logger]

func init() {
	defaultLogger.Store(slog.New(nopHandler{}))
}

// SetLogger sets the logger that renderers created afterwards use when
// they are not given one with WithLogger. Existing renderers keep the
// logger they were created with. Nil restores the silent default.
//
// Levels:
//   - [slog.LevelDebug]: per-frame bookkeeping (pool creation, disposal drains, submissions)
//   - [slog.LevelInfo]: renderer and device lifecycle
//   - [slog.LevelWarn]: recovered failures (fragmented descriptor pools, release errors)
//
// Example:
//
//	rhi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	defaultLogger.Store(l)
}

// Logger returns the logger set by SetLogger. It is safe for concurrent use.
func Logger() *slog.Logger {
	return defaultLogger.Load()
}

// bindLogger selects the logger of a new renderer and installs it on the
// device so both log through the same handler.
func (o *options) bindLogger(dev driver.Device) *slog.Logger {
	l := o.logger
	if l == nil {
		l = Logger()
	}
	dev.SetLogger(l)
	return l
}

package volren

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/volren/volren/internal/gpucompute"
	"github.com/volren/volren/internal/softrender"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
	gpucompute.SetLogger(l)
	softrender.SetLogger(l)
}

// SetLogger configures the logger for volren and all its sub-packages.
// By default, volren produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by volren:
//   - [slog.LevelDebug]: internal diagnostics (binding uploads, step counts,
//     cache hits/misses)
//   - [slog.LevelInfo]: important lifecycle events (adapter selected,
//     backend switch)
//   - [slog.LevelWarn]: non-fatal issues (CPU fallback, allocation retry)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	gpucompute.SetLogger(l)
	softrender.SetLogger(l)
}

// Logger returns the current logger used by volren.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// Package logger provides structured logging setup for ClaimDesk.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/ClaimDesk/internal/config"
)

// level is shared by every logger built by New.
var level = new(slog.LevelVar)

// New creates a *slog.Logger from the given Logging config.
// Output is JSON to stdout with a "service" attribute on every record and
// the request and session ids taken from the context.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	return newWithWriter(cfg, os.Stdout)
}

func newWithWriter(cfg config.Logging, w io.Writer) (*slog.Logger, Closer) {
	level.Set(parseLevel(cfg.Level))

	var (
		handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
		closer  Closer       = nopCloser{}
	)
	if cfg.Async {
		size := cfg.BufferSize
		if size <= 0 {
			size = 1024
		}
		ah := NewAsyncHandler(handler, size, 1)
		handler, closer = ah, ah
	}

	return slog.New(&contextHandler{inner: handler}).With("service", cfg.Service), closer
}

// SetLevel changes the level of all loggers created by New.
func SetLevel(s string) {
	level.Set(parseLevel(s))
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package logger provides structured logging setup for Warden.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/Warden/internal/config"
)

// Async queue sizing. Two workers keep up with decision-path log volume;
// the queue absorbs bursts from concurrent Decide calls.
const (
	asyncQueueSize = 1024
	asyncWorkers   = 2
)

// Control owns the lifecycle of the configured log pipeline: Close
// flushes the async queue on shutdown, Dropped reports backpressure
// drops for the health endpoint. Both are no-ops in synchronous mode.
type Control struct {
	async *AsyncHandler
}

// Close flushes and stops the async workers.
func (c *Control) Close() {
	if c != nil && c.async != nil {
		c.async.Close()
	}
}

// Dropped returns the number of log records dropped under backpressure.
func (c *Control) Dropped() int64 {
	if c == nil || c.async == nil {
		return 0
	}
	return c.async.Dropped()
}

// New creates a *slog.Logger from the given Logging config. Output is
// JSON to stdout with a "service" attribute on every record, and records
// logged through the *Context slog functions carry the request ID from
// their context. When cfg.Async is set the pipeline is buffered through
// an AsyncHandler.
func New(cfg config.Logging) (*slog.Logger, *Control) {
	level := parseLevel(cfg.Level)

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	ctl := &Control{}
	if cfg.Async {
		ah := NewAsyncHandler(handler, asyncQueueSize, asyncWorkers)
		handler = ah
		ctl.async = ah
	}

	// Outermost so the request ID is captured before the record crosses
	// the async queue and loses its context.
	handler = withRequestID(handler)

	return slog.New(handler).With("service", cfg.Service), ctl
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

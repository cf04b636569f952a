// Package logging holds the process-wide structured logger.
//
// The logger is a *slog.Logger backed by a charmbracelet/log handler writing
// to stderr, so stdout stays free for protocol traffic.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
)

var (
	handler *log.Logger
	logger  *slog.Logger
)

func init() {
	handler = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "mathtutor",
		Level:           log.Level(parseLogLevel(os.Getenv("MATHTUTOR_DEBUG"))),
	})
	logger = slog.New(handler)
}

// Logger returns the global logger instance.
func Logger() *slog.Logger {
	return logger
}

// SetLogLevel sets the global log level for the entire process.
func SetLogLevel(level slog.Level) {
	handler.SetLevel(log.Level(level))
}

// Level returns the current global log level.
func Level() slog.Level {
	return slog.Level(handler.GetLevel())
}

// SetOutput redirects log output.
func SetOutput(w io.Writer) {
	handler.SetOutput(w)
}

// SetFormat selects "text" (the default), "json" or "logfmt" output.
func SetFormat(format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		handler.SetFormatter(log.TextFormatter)
	case "json":
		handler.SetFormatter(log.JSONFormatter)
	case "logfmt":
		handler.SetFormatter(log.LogfmtFormatter)
	default:
		return errors.Newf("unknown log format %q", format)
	}
	return nil
}

// ParseLevel converts a level name ("debug", "info", "warn", "error") or a
// MATHTUTOR_DEBUG style digit into a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "error":
		return slog.LevelError, nil
	case "1", "warn", "warning":
		return slog.LevelWarn, nil
	case "2", "info":
		return slog.LevelInfo, nil
	case "3", "debug":
		return slog.LevelDebug, nil
	default:
		return slog.LevelWarn, errors.Newf("unknown log level %q", s)
	}
}

// parseLogLevel converts MATHTUTOR_DEBUG environment variable values to slog levels.
// Mapping: 0=Error, 1=Warn, 2=Info, 3=Debug
// Default: Warn if not set or invalid
func parseLogLevel(envVal string) slog.Level {
	switch envVal {
	case "0":
		return slog.LevelError
	case "1":
		return slog.LevelWarn
	case "2":
		return slog.LevelInfo
	case "3":
		return slog.LevelDebug
	default:
		return slog.LevelWarn
	}
}

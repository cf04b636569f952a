package llm

import (
	"log/slog"

	"github.com/ArianneAlonso/tutor-math-mcp/internal/logging"
)

// SetLogLevel sets the log level for every provider in the process.
//
// Providers log each request and tool call at slog.LevelDebug. The level
// can also be set with the MATHTUTOR_DEBUG environment variable:
//
//	MATHTUTOR_DEBUG=0  # Error level
//	MATHTUTOR_DEBUG=1  # Warn level (default)
//	MATHTUTOR_DEBUG=2  # Info level
//	MATHTUTOR_DEBUG=3  # Debug level
func SetLogLevel(level slog.Level) {
	logging.SetLogLevel(level)
}

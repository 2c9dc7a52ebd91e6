package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger builds the process-wide slog logger. Every record carries
// the service name plus any extra default attributes, so api and worker
// records stay distinguishable in a shared log stream.
func NewJSONLogger(service, level string, attrs ...slog.Attr) *slog.Logger {
	return newJSONLogger(os.Stdout, service, level, attrs...)
}

func newJSONLogger(w io.Writer, service, level string, attrs ...slog.Attr) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	defaults := append([]slog.Attr{slog.String("service", service)}, attrs...)
	return slog.New(handler.WithAttrs(defaults))
}

// parseLevel maps the LOG_LEVEL config value onto a slog level. Unknown
// values fall back to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

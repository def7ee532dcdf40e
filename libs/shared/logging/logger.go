package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs a JSON slog logger as the process default and tags every
// record with the service name.
func Init(service string) *slog.Logger {
	return InitWithWriter(os.Stdout, service, os.Getenv("LOG_LEVEL"))
}

// InitWithWriter is Init with an explicit sink and level, used by tests.
func InitWithWriter(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	logger := slog.New(handler)
	if service != "" {
		logger = logger.With("service", service)
	}
	slog.SetDefault(logger)
	return logger
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

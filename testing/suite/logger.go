package suite

import (
	"io"
	"log/slog"
)

// NopLogger - a logger for unit tests that do not need a container.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

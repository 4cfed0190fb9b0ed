package logging

import (
	"log/slog"
	"os"
)

// Init installs the default slog logger. The CLI only shows errors unless
// LOG_LEVEL says otherwise.
func Init() {
	InitWithDefault(slog.LevelError)
}

// InitWithDefault is Init with a different fallback level, for the relay.
func InitWithDefault(fallback slog.Level) {
	level := ParseLevel(os.Getenv("LOG_LEVEL"), fallback)

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
}

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values yield
// fallback.
func ParseLevel(s string, fallback slog.Level) slog.Level {
	switch s {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return fallback
}

package logger

import (
	"io"
	"log/slog"

	"github.com/alkime/micclip/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogger configures structured JSON logging into a rotating file.
// The TUI owns stdout so nothing is logged there.
func SetupLogger(cfg *config.Config) *slog.Logger {
	w := &lumberjack.Logger{
		Filename:   cfg.LogPath(),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
	}

	return SetupLoggerTo(cfg, w)
}

// SetupLoggerTo is SetupLogger with an explicit destination.
func SetupLoggerTo(cfg *config.Config, w io.Writer) *slog.Logger {
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: Level(cfg),
	})

	logger := slog.New(handler)

	// Set as default logger
	slog.SetDefault(logger)

	return logger
}

// Level picks the log level: development or LOG_LEVEL=debug means debug.
func Level(cfg *config.Config) slog.Level {
	logLevel := slog.LevelInfo
	if cfg.Env == config.EnvDevelopment {
		logLevel = slog.LevelDebug
	}

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	return logLevel
}

package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", s)
}

// InitLogger builds the process logger from the logging section, writing to
// w, and installs it as the slog default.
func InitLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler).With("service", "paceload")
	slog.SetDefault(logger)
	return logger
}

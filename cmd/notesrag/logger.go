package main

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger builds the process logger: colored text for local runs, JSON in prod or on request.
func newLogger(w io.Writer, mode, level, format string) *slog.Logger {
	lvl := parseLevel(level)

	var handler slog.Handler
	if format == "json" || (format == "" && mode == "prod") {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: true,
			Level:     lvl,
		})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
		})
	}
	return slog.New(handler)
}

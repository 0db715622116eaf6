package telemetry

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps LOG_LEVEL onto a slog level. Unknown values fall back to
// info and report ok=false.
func ParseLevel(v string) (lvl slog.Level, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "info", "":
		return slog.LevelInfo, true
	default:
		return slog.LevelInfo, false
	}
}

// SetupLogging installs the default logger writing to w. format is text or
// json (anything else is text).
func SetupLogging(w io.Writer, level, format string) *slog.Logger {
	lvl, known := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		format = "text"
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	if !known {
		logger.Warn("unknown LOG_LEVEL, using info", slog.String("value", level))
	}
	logger.Debug("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
	return logger
}

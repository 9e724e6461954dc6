package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// level backs every handler installed by SetupLogger so SetLevel can change
// verbosity without rebuilding the logger.
var level = new(slog.LevelVar)

// ParseLevel maps "debug", "info", "warn"/"warning" and "error" (case-insensitive)
// to a slog level. Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// SetupLogger installs the default slog logger. format "json" selects the JSON
// handler; anything else the text handler. Source locations are only added when
// the initial level is debug.
func SetupLogger(format, lvl string) {
	slog.SetDefault(slog.New(newHandler(os.Stdout, format, lvl)))
	slog.Info("logger initialised", "format", format, "level", level.Level().String())
}

func newHandler(w io.Writer, format, lvl string) slog.Handler {
	level.Set(ParseLevel(lvl))
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level.Level() == slog.LevelDebug,
	}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SetLevel changes the level of the installed logger. It is applied on config reload.
func SetLevel(lvl string) {
	old := level.Level()
	level.Set(ParseLevel(lvl))
	if old != level.Level() {
		slog.Info("log level changed", "from", old.String(), "to", level.Level().String())
	}
}

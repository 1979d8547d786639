package glreporter

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// SetupLogging installs the process default slog logger at the given level:
// a text handler when stderr is a terminal, JSON otherwise. The reporter
// logs through slog either way; this helper only picks the rendering.
func SetupLogging(level slog.Level) {
	setupLogging(os.Stderr, os.Stderr.Fd(), level)
}

func setupLogging(w io.Writer, fd uintptr, level slog.Level) {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// ParseLevel maps a config log level string to a slog.Level. Unknown values
// fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Package logx builds the process-wide zerolog logger.
//
// Components receive a zerolog.Logger (usually derived with .With()) instead
// of reaching for a global, so tests can pass a zerolog.Nop().
package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Config struct {
	// Level is one of trace, debug, info, warn, error. Empty means info.
	Level string
	// Console enables the human-readable console writer. When false the
	// logger emits JSON lines, which is what you want under systemd/journald.
	Console bool
}

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

func New(cfg Config) zerolog.Logger {
	var w io.Writer = os.Stderr
	if cfg.Console {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: consoleTimeFormat}
	}
	return zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// ParseLevel maps a config string to a zerolog level, defaulting to info on
// anything unrecognized. Unlike zerolog.ParseLevel it never fails; a bad level
// in the config file should not take the process down.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "", "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

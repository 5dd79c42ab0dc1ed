// Package logging configures the global zerolog logger shared by the client packages.
//
//	logging.Setup(logging.Options{Level: "debug", Format: "text"})
//	log.Info().Str("route", "/(tabs)").Msg("redirect")
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls how logging is configured.
type Options struct {
	Level  string    // "debug", "info", "warn", "error", "disabled" (default: "info")
	Format string    // "text" or "json" (default: "text")
	Output io.Writer // default: os.Stderr
}

// ParseLevel converts a level name to a zerolog.Level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	}
	return zerolog.InfoLevel, fmt.Errorf("unknown log level %q (valid: debug, info, warn, error, disabled)", level)
}

// New builds a logger without touching the global one.
func New(opts Options) (zerolog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if !strings.EqualFold(opts.Format, "json") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// Setup replaces the global zerolog logger. Call early in main.
func Setup(opts Options) error {
	logger, err := New(opts)
	if err != nil {
		return err
	}
	log.Logger = logger
	return nil
}

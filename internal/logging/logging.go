// Package logging configures zerolog for the process.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the log level and format.
type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // console or json
}

// Setup configures zerolog for the process, writing to stderr.
func Setup(cfg Config) zerolog.Logger {
	return SetupWithWriter(cfg, os.Stderr)
}

// SetupWithWriter configures zerolog writing to out.
func SetupWithWriter(cfg Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(Writer(cfg, out)).With().Timestamp().Logger().Level(level)
	log.Logger = logger
	return logger
}

// Writer wraps out in the console writer unless the format is json.
func Writer(cfg Config, out io.Writer) io.Writer {
	if cfg.Format == "json" {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
}

// FromContext returns the logger attached to ctx with zerolog's
// WithContext, or fallback when ctx carries none.
func FromContext(ctx context.Context, fallback *zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return fallback
}

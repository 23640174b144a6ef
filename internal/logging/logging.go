// Package logging builds the zerolog logger used across the service, with
// console output for interactive use and JSON for deployments.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a configured logger. Unknown levels fall back to info.
func New(level string, jsonFormat bool) zerolog.Logger {
	return NewWithOutput(level, jsonFormat, os.Stderr)
}

// NewWithOutput is New with an explicit output writer, for tests.
func NewWithOutput(level string, jsonFormat bool, out io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if !jsonFormat {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "voxnote").
		Logger()
}

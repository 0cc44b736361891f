// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger at level writing JSON lines to stderr, or
// human-readable lines when console is set. An unknown level falls back to
// info and is reported through the returned error.
func New(level string, console bool) (zerolog.Logger, error) {
	return NewWriter(os.Stderr, level, console)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, level string, console bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := w
	if console {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), err
}

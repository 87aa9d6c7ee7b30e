// Package logger builds the console loggers used across lexigraph.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Options contains configuration for creating a logger.
type Options struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string

	// Verbose forces debug level; Quiet forces warn level.
	Verbose bool
	Quiet   bool

	// Writer defaults to stderr.
	Writer io.Writer
}

// New creates a console logger with timestamps.
func New(opts Options) *log.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           resolveLevel(opts),
	})
}

// Nop returns a logger that discards everything.
func Nop() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

func resolveLevel(opts Options) log.Level {
	switch {
	case opts.Verbose:
		return log.DebugLevel
	case opts.Quiet:
		return log.WarnLevel
	}

	switch strings.ToLower(strings.TrimSpace(opts.Level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

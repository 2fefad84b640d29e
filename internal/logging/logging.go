// Package logging builds the per-run logger from the command-line verbosity.
package logging

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Level maps the -v counter to a log level: 0 warn, 1 info, 2 or more debug.
func Level(verbosity int) log.Level {
	switch {
	case verbosity <= 0:
		return log.WarnLevel
	case verbosity == 1:
		return log.InfoLevel
	default:
		return log.DebugLevel
	}
}

// New returns a logger writing to w (stderr when nil). format is "text" or
// "json"; anything else falls back to text.
func New(verbosity int, format string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := log.New()
	l.SetOutput(w)
	l.SetLevel(Level(verbosity))
	if strings.EqualFold(format, "json") {
		l.SetFormatter(&log.JSONFormatter{DisableTimestamp: true})
	} else {
		l.SetFormatter(&log.TextFormatter{DisableTimestamp: true, DisableColors: true})
	}
	return l
}

// Discard returns a logger that drops everything, for library callers and
// tests that do not care about progress output.
func Discard() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

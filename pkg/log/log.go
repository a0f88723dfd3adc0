// Package log provides the logrus loggers used across midi2wav.
package log

import (
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

// DebugEnv enables debug logging when set to a true value.
const DebugEnv = "MIDI2WAV_DEBUG"

// GetLogger returns a new logger writing to stderr. The level is info, or
// debug when DebugEnv is set.
func GetLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if debug, err := strconv.ParseBool(os.Getenv(DebugEnv)); err == nil && debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// WithLevel returns a logger at the named level. An empty or invalid name
// keeps the GetLogger default.
func WithLevel(name string) *logrus.Logger {
	l := GetLogger()
	if name == "" {
		return l
	}
	if lvl, err := logrus.ParseLevel(name); err == nil {
		l.SetLevel(lvl)
	}
	return l
}

// Discard returns a logger that drops everything, for tests and quiet modes.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

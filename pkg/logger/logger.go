// Package logger builds the zerolog logger shared by the pipeline stages.
package logger

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a debug-level console logger in development and an info-level
// JSON logger otherwise.
func New(env string, w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if env == "development" {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()

	if env == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true})
	}
	return logger
}

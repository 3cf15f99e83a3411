// Package obs contains observability utilities such as logging.
package obs

import (
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds the service logger. Output is JSON on stdout with
// timestamps; LOG_LEVEL overrides the default info level.
func NewLogger(service string) zerolog.Logger {
	level := zerolog.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if parsed, err := zerolog.ParseLevel(v); err == nil {
			level = parsed
		}
	}

	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

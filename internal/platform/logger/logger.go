// Package logger builds the service-tagged zerolog logger shared by the
// tracker service and its CLI.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

const levelEnv = "STUDYTRACK_LOG_LEVEL"

// New returns a stdout logger tagged with serviceName. The level is read
// from STUDYTRACK_LOG_LEVEL when set (zerolog level strings such as
// "debug" or "warn"); unset or unparseable values default to info.
func New(serviceName string) zerolog.Logger {
	level := zerolog.InfoLevel
	if raw := os.Getenv(levelEnv); raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil && parsed != zerolog.NoLevel {
			level = parsed
		}
	}
	return zerolog.New(os.Stdout).Level(level).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

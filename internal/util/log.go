package util

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger at the requested level; unknown levels
// fall back to info.
func NewLogger(level string) zerolog.Logger {
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(parseLevel(level))
}

// NewConsoleLogger is NewLogger with human-readable output for dev runs.
func NewConsoleLogger(level string) zerolog.Logger {
	w := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(level))
}

// ForEnv picks console output in dev and structured JSON everywhere else.
func ForEnv(env, level string) zerolog.Logger {
	if strings.EqualFold(env, "dev") {
		return NewConsoleLogger(level)
	}
	return NewLogger(level)
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

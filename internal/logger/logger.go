package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the process-wide root logger. Component loggers derive
// from it via GetForComponent.
var Logger zerolog.Logger

// Initialize configures the root logger. Unknown levels fall back to
// info so a typo in LOG_LEVEL never silences the process.
func Initialize(logLevel string) {
	zerolog.TimeFieldFormat = time.RFC3339

	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
	}).With().Timestamp().Caller().Logger()

	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = Logger
}

// GetForComponent returns a child logger tagged with a component field,
// e.g. "vault", "adapter.gamma", "rotation-manager".
func GetForComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

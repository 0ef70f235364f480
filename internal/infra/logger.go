package infra

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages depend on the infra
// surface rather than on the third-party module directly.
type Logger = zerolog.Logger

// NewLogger builds the service logger: structured JSON at info level,
// switching to a human-readable console writer at debug level in
// development.
func NewLogger(appEnv string) Logger {
	if appEnv == "development" {
		out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(out).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()
}

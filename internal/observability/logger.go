package observability

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/genderhealth/care-portal/internal/sysutil"
)

// NewLogger sets the global level from level and returns the base logger
// every request logger derives from. pretty switches to the console writer
// for local development.
func NewLogger(w io.Writer, level string, pretty bool, service, version string) zerolog.Logger {
	sysutil.SetLogLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	return zerolog.New(w).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// Package obslog builds component-scoped zerolog loggers.
//
// This is a library meant to be embedded by a host that already owns
// its own logging configuration, so each component gets its own child
// logger instead of reaching for a process-wide singleton.
package obslog

import (
	"os"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

// New returns a logger with a static "component" field, writing to
// stderr through a console writer.
func New(component string) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// Nop returns a logger that discards everything, for tests and for
// hosts that want the core to stay silent.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

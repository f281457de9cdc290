package infra

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// NewLogger builds the service logger for api and worker. Development gets
// debug level on a console writer; every other environment logs JSON at info.
func NewLogger(appEnv string) zerolog.Logger {
	return newServiceLogger(os.Stdout, appEnv, filepath.Base(os.Args[0]))
}

func newServiceLogger(out io.Writer, appEnv, service string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("env", appEnv).
		Logger()
}

// NewCLILogger writes to stderr so stdout stays free for command output. A
// terminal gets the human-readable console writer, anything else gets JSON.
func NewCLILogger(verbose bool) zerolog.Logger {
	return newCLILogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), verbose)
}

func newCLILogger(out io.Writer, tty, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if tty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// NopLogger returns a logger that discards everything.
func NopLogger() *Logger {
	l := zerolog.Nop()
	return &l
}

// Logger is the logger type shared across packages.
type Logger = zerolog.Logger

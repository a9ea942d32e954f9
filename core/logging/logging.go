// Package logging provides tagged structured logging for the core packages.
// Output is zerolog JSON, or a console writer when stdout is a terminal.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

var base = newBase()

func newBase() zerolog.Logger {
	var out io.Writer = os.Stdout
	if isInteractive() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02T15:04:05.000Z"}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// isInteractive checks if the output is going to a terminal
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// SetLevel sets the global log level
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// SetOutput redirects all loggers created afterwards, for embedding shells
// that own their own log sink.
func SetOutput(w io.Writer) {
	base = zerolog.New(w).With().Timestamp().Logger()
}

// Logger is a tagged logger instance
type Logger struct {
	l zerolog.Logger
}

// New creates a new logger instance with a tag
func New(tag string) Logger {
	return Logger{l: base.With().Str("tag", tag).Logger()}
}

// Debug logs at DEBUG level
func (l Logger) Debug(message string) {
	l.l.Debug().Msg(message)
}

// Debugf logs at DEBUG level with formatting
func (l Logger) Debugf(format string, args ...any) {
	l.l.Debug().Msgf(format, args...)
}

// Info logs at INFO level
func (l Logger) Info(message string) {
	l.l.Info().Msg(message)
}

// Infof logs at INFO level with formatting
func (l Logger) Infof(format string, args ...any) {
	l.l.Info().Msgf(format, args...)
}

// Warn logs at WARN level
func (l Logger) Warn(message string) {
	l.l.Warn().Msg(message)
}

// Warnf logs at WARN level with formatting
func (l Logger) Warnf(format string, args ...any) {
	l.l.Warn().Msgf(format, args...)
}

// Error logs at ERROR level
func (l Logger) Error(message string) {
	l.l.Error().Msg(message)
}

// Errorf logs at ERROR level with formatting
func (l Logger) Errorf(format string, args ...any) {
	l.l.Error().Msgf(format, args...)
}

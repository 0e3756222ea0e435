// Package logging wraps zerolog behind a small Infof/Warnf/Errorf surface
// so components can take a logger as an embedded field without the rest
// of the engine importing zerolog directly.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logger handed to every component that needs one.
// Component-scoped fields (run_id, tool, symbol) are attached with With.
type Logger struct {
	z zerolog.Logger
}

// New builds a Logger writing to w in a console-in-dev, json-in-prod
// split: when w is a terminal-like writer callers typically pass
// zerolog.ConsoleWriter{Out: os.Stdout}; production wiring passes
// os.Stdout directly for JSON lines.
func New(w io.Writer, component string) Logger {
	if w == nil {
		w = os.Stdout
	}
	z := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	return Logger{z: z}
}

// NewConsole is the constructor for human-readable console output;
// cmd/sentinel builds its process logger with it unconditionally.
func NewConsole(component string) Logger {
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return New(cw, component)
}

// With returns a child Logger carrying an additional string field, such as
// a run_id.
func (l Logger) With(key, value string) Logger {
	return Logger{z: l.z.With().Str(key, value).Logger()}
}

func (l Logger) Infof(format string, args ...interface{})  { l.z.Info().Msgf(format, args...) }
func (l Logger) Warnf(format string, args ...interface{})  { l.z.Warn().Msgf(format, args...) }
func (l Logger) Errorf(format string, args ...interface{}) { l.z.Error().Msgf(format, args...) }
func (l Logger) Debugf(format string, args ...interface{}) { l.z.Debug().Msgf(format, args...) }

// Err attaches an error value to an error-level event instead of formatting
// it into the message, preserving zerolog's structured err field.
func (l Logger) Err(err error, msg string) {
	l.z.Error().Err(err).Msg(msg)
}

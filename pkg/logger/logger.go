// Package logger provides structured logging for the ledger service. It is a
// thin wrapper around zerolog exposing a field-chaining API so call sites do
// not depend on the backend directly.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// LoggingConfig controls logger construction.
type LoggingConfig struct {
	Level  string
	Format string // "json" (default) or "console"
	Output string // "stdout" (default) or "stderr"
}

// Logger wraps a zerolog logger with a component name and bound fields.
type Logger struct {
	zl zerolog.Logger
}

// New builds a logger from configuration.
func New(component string, cfg LoggingConfig) *Logger {
	out := os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}

	var zl zerolog.Logger
	if strings.EqualFold(cfg.Format, "console") {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: out})
	} else {
		zl = zerolog.New(out)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zl = zl.Level(level).With().Timestamp().Str("component", component).Logger()
	return &Logger{zl: zl}
}

// NewDefault returns a JSON logger at info level for the given component.
func NewDefault(component string) *Logger {
	return New(component, LoggingConfig{})
}

// WithField returns a logger with an additional bound field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithError returns a logger with the error bound as a field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zl: l.zl.With().AnErr("error", err).Logger()}
}

func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zl.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zl.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zl.Error().Msg(msg) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.zl.Debug().Msgf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.zl.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.zl.Warn().Msgf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.zl.Error().Msgf(format, args...) }

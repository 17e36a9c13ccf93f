// Package logger wraps zerolog into the small call-site contract the rest
// of this module relies on (Infof/Warnf/Info/Errorf), with every entry
// carrying the cycle correlation id once one is bound via WithCycle.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var base zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	base = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// SetOutput redirects the process-wide base logger, used by tests to
// capture output and by main() to point at a file in production.
func SetOutput(w io.Writer) {
	base = zerolog.New(w).With().Timestamp().Logger()
}

// Logger is the component-scoped wrapper callers hold onto.
type Logger struct {
	z zerolog.Logger
}

// Named returns a Logger tagged with a component field, mirroring how the
// teacher's logger package is invoked as package-level logger.Infof calls
// scoped to the caller's file.
func Named(component string) *Logger {
	return &Logger{z: base.With().Str("component", component).Logger()}
}

type cycleIDKey struct{}

// WithCycle attaches a cycle correlation id to ctx for downstream loggers.
func WithCycle(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, cycleID)
}

// CycleID extracts the correlation id bound by WithCycle, empty if absent.
func CycleID(ctx context.Context) string {
	v, _ := ctx.Value(cycleIDKey{}).(string)
	return v
}

// ForCycle returns a child logger with cycle_id bound as a field.
func (l *Logger) ForCycle(ctx context.Context) *Logger {
	id := CycleID(ctx)
	if id == "" {
		return l
	}
	return &Logger{z: l.z.With().Str("cycle_id", id).Logger()}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.z.Info().Msgf(format, args...)
}

func (l *Logger) Info(msg string) {
	l.z.Info().Msg(msg)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.z.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.z.Error().Msgf(format, args...)
}

func (l *Logger) Err(err error, msg string) {
	l.z.Error().Err(err).Msg(msg)
}

// Fields returns a zerolog event builder for structured one-off logs,
// e.g. logger.Named("risk").Fields().Str("reason", r).Msg("rejected").
func (l *Logger) Fields() *zerolog.Event {
	return l.z.Info()
}

// Package logging provides the structured logger used throughout the
// decoding engine and its surrounding tooling.
package logging

import (
	"go.uber.org/zap"
)

// Logger is the logging contract used across the engine. It is kept
// narrow and interface-based, as in the teacher library, but backed by
// a real structured-logging library instead of a hand-rolled wrapper
// around the standard log package.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	// With returns a derived logger that always includes the given fields.
	With(fields ...zap.Field) Logger
}

// zapLogger adapts *zap.Logger to the Logger interface.
type zapLogger struct {
	l *zap.Logger
}

// NewProduction creates a Logger suitable for production use (JSON
// encoding, info level and above).
func NewProduction() (Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &zapLogger{l: l}, nil
}

// NewDevelopment creates a Logger suitable for interactive use (console
// encoding, debug level and above).
func NewDevelopment() (Logger, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &zapLogger{l: l}, nil
}

func (z *zapLogger) Debug(msg string, fields ...zap.Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...zap.Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...zap.Field)  { z.l.Warn(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...zap.Field) { z.l.Error(msg, fields...) }
func (z *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{l: z.l.With(fields...)}
}

// NoOp is a Logger that discards everything, used as the default for
// core packages that are not handed a logger explicitly.
type NoOp struct{}

func (NoOp) Debug(string, ...zap.Field) {}
func (NoOp) Info(string, ...zap.Field)  {}
func (NoOp) Warn(string, ...zap.Field)  {}
func (NoOp) Error(string, ...zap.Field) {}
func (n NoOp) With(...zap.Field) Logger { return n }

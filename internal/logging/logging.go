// Package logging provides the structured logger shared by every
// component, in the key-value call shape erigon's own log package uses
// (log.Info(msg, "key", value, ...)), backed by go.uber.org/zap.
package logging

import (
	"go.uber.org/zap"
)

// Logger wraps a zap.SugaredLogger with an erigon-style keyvals call shape.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a production console logger at the given level ("debug",
// "info", "warn", "error"). An invalid level falls back to "info".
func New(level string) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "ts"
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	return &Logger{s: l.Sugar()}
}

// Nop returns a logger that discards everything, for tests.
func Nop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func (l *Logger) Debug(msg string, keyvals ...interface{}) { l.s.Debugw(msg, keyvals...) }
func (l *Logger) Info(msg string, keyvals ...interface{})  { l.s.Infow(msg, keyvals...) }
func (l *Logger) Warn(msg string, keyvals ...interface{})  { l.s.Warnw(msg, keyvals...) }
func (l *Logger) Error(msg string, keyvals ...interface{}) { l.s.Errorw(msg, keyvals...) }

// With returns a child logger carrying the given keyvals on every line.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{s: l.s.With(keyvals...)}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error { return l.s.Sync() }

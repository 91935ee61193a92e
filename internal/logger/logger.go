// Package logger wraps zap construction behind a small init helper so
// the log level can be set from configuration.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Logger carries the shared zap logger for the application.
type Logger struct {
	// Log is the configured zap logger; valid after Init.
	Log *zap.Logger
}

// New returns a Logger with a no-op zap instance. Call Init before use.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init builds the production zap logger at the given level
// ("Debug", "Info", "Warn", "Error").
func (l *Logger) Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	l.Log = logger
	return nil
}

// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a *zap.Logger to the Logger interface
//
// Example:
//
//	zl, _ := zap.NewProduction()
//	client := cvprac.NewClient(cvprac.WithLogger(cvprac.NewZapLogger(zl)))
type ZapLogger struct {
	logger *zap.SugaredLogger
}

// NewZapLogger wraps an existing zap logger
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger.Sugar()}
}

// Debug logs a debug message with structured key-value pairs
func (z *ZapLogger) Debug(_ context.Context, msg string, keysAndValues ...any) {
	z.logger.Debugw(msg, keysAndValues...)
}

// Info logs an informational message with structured key-value pairs
func (z *ZapLogger) Info(_ context.Context, msg string, keysAndValues ...any) {
	z.logger.Infow(msg, keysAndValues...)
}

// Warn logs a warning message with structured key-value pairs
func (z *ZapLogger) Warn(_ context.Context, msg string, keysAndValues ...any) {
	z.logger.Warnw(msg, keysAndValues...)
}

// Error logs an error message with structured key-value pairs
func (z *ZapLogger) Error(_ context.Context, msg string, keysAndValues ...any) {
	z.logger.Errorw(msg, keysAndValues...)
}

// Sync flushes buffered log entries
func (z *ZapLogger) Sync() error {
	return z.logger.Sync()
}

// zapLevel maps a LogLevel onto the zap level scale
func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	case LogLevelNone:
		return zapcore.FatalLevel + 1
	default:
		return zapcore.InfoLevel
	}
}

// newFileLogger builds a JSON-lines zap logger appending to path
func newFileLogger(path string, level LogLevel) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return NewZapLogger(logger.Named("cvprac")), nil
}

// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"unicode/utf8"
)

// MaxLogValueLength limits the length of log values to prevent log injection
// and excessive log file growth. Values longer than this are truncated.
const MaxLogValueLength = 1024

// Logger interface for pluggable logging support
//
// Implementations should use structured logging with key-value pairs.
// The go-cvprac library provides three implementations:
//   - DefaultLogger: Wraps Go's standard log package with configurable log level
//   - ZapLogger: Adapts a *zap.Logger
//   - NoOpLogger: Zero-overhead logging when disabled (default)
//
// Example custom logger integration:
//
//	type SlogAdapter struct {
//	    logger *slog.Logger
//	}
//
//	func (s *SlogAdapter) Debug(ctx context.Context, msg string, keysAndValues ...any) {
//	    s.logger.DebugContext(ctx, msg, keysAndValues...)
//	}
//	// ... implement other methods
//
//	client := cvprac.NewClient(cvprac.WithLogger(&SlogAdapter{logger: slog.Default()}))
type Logger interface {
	Debug(ctx context.Context, msg string, keysAndValues ...any)
	Info(ctx context.Context, msg string, keysAndValues ...any)
	Warn(ctx context.Context, msg string, keysAndValues ...any)
	Error(ctx context.Context, msg string, keysAndValues ...any)
}

// LogLevel represents the severity threshold for logging
type LogLevel int

const (
	// LogLevelDebug enables all log levels (most verbose)
	LogLevelDebug LogLevel = iota

	// LogLevelInfo enables Info, Warn, and Error logs
	LogLevelInfo

	// LogLevelWarn enables Warn and Error logs
	LogLevelWarn

	// LogLevelError enables only Error logs
	LogLevelError

	// LogLevelNone disables all logging
	LogLevelNone
)

// String returns the string representation of a LogLevel
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// ParseLogLevel converts DEBUG, INFO, WARNING (or WARN) and ERROR to a LogLevel.
// Matching is case-insensitive; anything else yields LogLevelInfo.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return LogLevelDebug
	case "INFO":
		return LogLevelInfo
	case "WARNING", "WARN":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogSinkType selects where NewLogger sends log output
type LogSinkType int

const (
	// LogSinkStdout writes to standard output (the default)
	LogSinkStdout LogSinkType = iota

	// LogSinkFile appends JSON lines to a file
	LogSinkFile

	// LogSinkSyslog writes to the local syslog daemon
	LogSinkSyslog

	// LogSinkNone discards all output
	LogSinkNone
)

// LogSink describes a log destination
type LogSink struct {
	Type LogSinkType
	Path string
}

// SinkStdout returns a sink writing to standard output
func SinkStdout() LogSink { return LogSink{Type: LogSinkStdout} }

// SinkFile returns a sink appending to the file at path
func SinkFile(path string) LogSink { return LogSink{Type: LogSinkFile, Path: path} }

// SinkSyslog returns a sink writing to syslog
func SinkSyslog() LogSink { return LogSink{Type: LogSinkSyslog} }

// SinkNone returns a sink discarding all output
func SinkNone() LogSink { return LogSink{Type: LogSinkNone} }

// NewLogger builds a Logger for the given sink and level name
//
// Invalid level names silently map to INFO.
//
// Example:
//
//	logger, err := cvprac.NewLogger(cvprac.SinkFile("/var/log/cvprac.log"), "DEBUG")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := cvprac.NewClient(cvprac.WithLogger(logger))
func NewLogger(sink LogSink, level string) (Logger, error) {
	lvl := ParseLogLevel(level)
	switch sink.Type {
	case LogSinkNone:
		return &NoOpLogger{}, nil
	case LogSinkFile:
		if strings.TrimSpace(sink.Path) == "" {
			return nil, fmt.Errorf("log file path cannot be empty")
		}
		return newFileLogger(sink.Path, lvl)
	case LogSinkSyslog:
		w, err := newSyslogWriter()
		if err != nil {
			return nil, fmt.Errorf("failed to open syslog: %w", err)
		}
		return &DefaultLogger{level: lvl, sys: w}, nil
	default:
		return NewDefaultLoggerWithWriter(lvl, os.Stdout), nil
	}
}

// DefaultLogger wraps Go's standard log package with configurable log level
//
// Log output format: [LEVEL] message key1=value1 key2=value2
type DefaultLogger struct {
	level LogLevel
	out   *log.Logger
	sys   severityWriter
}

// severityWriter receives formatted lines together with their severity.
// *syslog.Writer satisfies it.
type severityWriter interface {
	Debug(m string) error
	Info(m string) error
	Warning(m string) error
	Err(m string) error
}

// NewDefaultLogger creates a DefaultLogger writing through the standard logger
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	return &DefaultLogger{level: level}
}

// NewDefaultLoggerWithWriter creates a DefaultLogger writing to w
func NewDefaultLoggerWithWriter(level LogLevel, w io.Writer) *DefaultLogger {
	return &DefaultLogger{level: level, out: log.New(w, "cvprac ", log.LstdFlags)}
}

// Debug logs a debug message with structured key-value pairs
func (l *DefaultLogger) Debug(_ context.Context, msg string, keysAndValues ...any) {
	if l.level <= LogLevelDebug {
		l.log("DEBUG", msg, keysAndValues...)
	}
}

// Info logs an informational message with structured key-value pairs
func (l *DefaultLogger) Info(_ context.Context, msg string, keysAndValues ...any) {
	if l.level <= LogLevelInfo {
		l.log("INFO", msg, keysAndValues...)
	}
}

// Warn logs a warning message with structured key-value pairs
func (l *DefaultLogger) Warn(_ context.Context, msg string, keysAndValues ...any) {
	if l.level <= LogLevelWarn {
		l.log("WARN", msg, keysAndValues...)
	}
}

// Error logs an error message with structured key-value pairs
func (l *DefaultLogger) Error(_ context.Context, msg string, keysAndValues ...any) {
	if l.level <= LogLevelError {
		l.log("ERROR", msg, keysAndValues...)
	}
}

// sanitizeLogValue sanitizes a log value to prevent log injection attacks
// and limit log size. Handles control characters, ANSI escape sequences,
// Unicode attacks (RTL override, zero-width), and excessive length.
//
// Example attack prevented:
//
//	Input: "user\n[ERROR] Fake attack message"
//	Output: "user [ERROR] Fake attack message"
func sanitizeLogValue(val any) string {
	str := fmt.Sprintf("%v", val)

	if len(str) > MaxLogValueLength {
		str = str[:MaxLogValueLength] + "...[TRUNCATED]"
	}

	var builder strings.Builder
	builder.Grow(len(str))

	for i := 0; i < len(str); i++ {
		r := rune(str[i])

		if r >= 0x80 {
			decoded, size := utf8.DecodeRuneInString(str[i:])
			if decoded == utf8.RuneError {
				builder.WriteRune('.')
				// must advance even on error or the loop never ends
				if size == 0 {
					size = 1
				}
				i += size - 1
				continue
			}

			switch decoded {
			case 0x200B, 0x200C, 0x200D, 0xFEFF: // zero-width
			case 0x202E: // RTL override
				builder.WriteRune(' ')
			default:
				builder.WriteString(str[i : i+size])
			}
			i += size - 1
			continue
		}

		switch r {
		case '\n', '\r', '\t', 0x0C:
			builder.WriteRune(' ')
		case 0x1B, 0x07, 0x08:
			builder.WriteRune('.')
		default:
			if r < 32 || r == 127 {
				builder.WriteRune('.')
			} else {
				builder.WriteRune(r)
			}
		}
	}

	return builder.String()
}

// log formats and outputs a log message with structured key-value pairs
//
// Keys and values are sanitized; the message comes from library code and is not.
func (l *DefaultLogger) log(level, msg string, keysAndValues ...any) {
	estimatedSize := len(level) + len(msg) + 10 + (len(keysAndValues) * 25)
	var builder strings.Builder
	builder.Grow(estimatedSize)

	builder.WriteString("[")
	builder.WriteString(level)
	builder.WriteString("] ")
	builder.WriteString(msg)

	for i := 0; i < len(keysAndValues); i += 2 {
		builder.WriteString(" ")
		builder.WriteString(sanitizeLogValue(keysAndValues[i]))

		if i+1 < len(keysAndValues) {
			builder.WriteString("=")
			builder.WriteString(sanitizeLogValue(keysAndValues[i+1]))
		} else {
			builder.WriteString("=<MISSING>")
		}
	}

	switch {
	case l.sys != nil:
		l.writeSeverity(level, builder.String())
	case l.out != nil:
		l.out.Println(builder.String())
	default:
		log.Println(builder.String())
	}
}

// writeSeverity hands line to the severity writer at the priority matching level
func (l *DefaultLogger) writeSeverity(level, line string) {
	var err error
	switch level {
	case "DEBUG":
		err = l.sys.Debug(line)
	case "WARN":
		err = l.sys.Warning(line)
	case "ERROR":
		err = l.sys.Err(line)
	default:
		err = l.sys.Info(line)
	}
	if err != nil {
		log.Println(line)
	}
}

// NoOpLogger is a no-operation logger that discards all log messages
//
// This is the default logger used by go-cvprac when no custom logger
// is configured.
type NoOpLogger struct{}

// Debug discards the log message
func (n *NoOpLogger) Debug(_ context.Context, _ string, _ ...any) {}

// Info discards the log message
func (n *NoOpLogger) Info(_ context.Context, _ string, _ ...any) {}

// Warn discards the log message
func (n *NoOpLogger) Warn(_ context.Context, _ string, _ ...any) {}

// Error discards the log message
func (n *NoOpLogger) Error(_ context.Context, _ string, _ ...any) {}

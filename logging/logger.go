// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a ComponentLogger that stamps component,
// session and invocation identifiers on every entry plus helpers for model
// calls and timed operations.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
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
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a case-insensitive level name to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger defines the minimal logging interface used across stylemesh.
// Arguments are slog-style alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// Config configures construction of a slog backed logger.
type Config struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns a baseline JSON info level configuration.
func DefaultConfig() *Config {
	return &Config{Level: LogLevelInfo, Format: "json", Output: os.Stdout}
}

// NewSlog builds a *slog.Logger from a config (or defaults if nil).
func NewSlog(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ComponentLogger decorates a Logger with fixed contextual attributes. It is
// cheap to copy via the With* methods, which never mutate the receiver.
type ComponentLogger struct {
	base         Logger
	component    string
	sessionID    string
	invocationID string
	attrs        []any
}

// NewComponentLogger wraps base (NoOpLogger when nil) for the named component.
func NewComponentLogger(base Logger, component string) *ComponentLogger {
	if base == nil {
		base = NoOpLogger{}
	}

	return &ComponentLogger{base: base, component: component}
}

func (l *ComponentLogger) clone() *ComponentLogger {
	nl := *l
	nl.attrs = append([]any(nil), l.attrs...)

	return &nl
}

// With returns a copy carrying the extra key/value pairs.
func (l *ComponentLogger) With(args ...any) *ComponentLogger {
	nl := l.clone()
	nl.attrs = append(nl.attrs, args...)

	return nl
}

// WithSession returns a copy bound to session and invocation identifiers.
func (l *ComponentLogger) WithSession(sid, iid string) *ComponentLogger {
	nl := l.clone()
	nl.sessionID = sid
	nl.invocationID = iid

	return nl
}

func (l *ComponentLogger) decorate(args []any) []any {
	out := make([]any, 0, len(args)+len(l.attrs)+6)
	if l.component != "" {
		out = append(out, "component", l.component)
	}

	if l.sessionID != "" {
		out = append(out, "session_id", l.sessionID)
	}

	if l.invocationID != "" {
		out = append(out, "invocation_id", l.invocationID)
	}

	out = append(out, l.attrs...)

	return append(out, args...)
}

// Debug logs at debug level.
func (l *ComponentLogger) Debug(msg string, args ...any) { l.base.Debug(msg, l.decorate(args)...) }

// Info logs at info level.
func (l *ComponentLogger) Info(msg string, args ...any) { l.base.Info(msg, l.decorate(args)...) }

// Warn logs at warn level.
func (l *ComponentLogger) Warn(msg string, args ...any) { l.base.Warn(msg, l.decorate(args)...) }

// Error logs at error level.
func (l *ComponentLogger) Error(msg string, args ...any) { l.base.Error(msg, l.decorate(args)...) }

// LogLLMCall records model call latency and outcome.
func (l *ComponentLogger) LogLLMCall(model string, dur time.Duration, err error) {
	if err != nil {
		l.Error("llm.call.failed", "model", model, "duration", dur, "error", err.Error())
		return
	}

	l.Info("llm.call.completed", "model", model, "duration", dur)
}

// StartTimer returns a closure that logs the elapsed duration when invoked.
func (l *ComponentLogger) StartTimer(op string) func() {
	start := time.Now()
	return func() { l.Info("operation.completed", "operation", op, "duration", time.Since(start)) }
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// Package logger provides logging implementations for taskpilot.
//
// Every component logs through the small Logger interface. ConsoleLogger
// writes human-readable, optionally colored lines; Registry hands out
// per-(conversation, module) file loggers backed by zap. Multi fans a message
// out to several loggers and Nop discards everything.
package logger

import (
	"strings"
	"time"
)

// Logger is the logging capability every component depends on
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// timestamp returns the current time formatted as HH:MM:SS
func timestamp() string {
	return time.Now().Format("15:04:05")
}

type nopLogger struct{}

func (nopLogger) LogTrace(string) {}
func (nopLogger) LogDebug(string) {}
func (nopLogger) LogInfo(string)  {}
func (nopLogger) LogWarn(string)  {}
func (nopLogger) LogError(string) {}

// Nop returns a Logger that discards every message
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns l, or a Nop logger when l is nil
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

type multiLogger []Logger

// Multi returns a Logger that forwards every message to each non-nil logger
// in order
func Multi(loggers ...Logger) Logger {
	var out multiLogger
	for _, l := range loggers {
		if l != nil {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return Nop()
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (m multiLogger) LogTrace(message string) {
	for _, l := range m {
		l.LogTrace(message)
	}
}

func (m multiLogger) LogDebug(message string) {
	for _, l := range m {
		l.LogDebug(message)
	}
}

func (m multiLogger) LogInfo(message string) {
	for _, l := range m {
		l.LogInfo(message)
	}
}

func (m multiLogger) LogWarn(message string) {
	for _, l := range m {
		l.LogWarn(message)
	}
}

func (m multiLogger) LogError(message string) {
	for _, l := range m {
		l.LogError(message)
	}
}

package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrRegistryClosed is returned by Open after Close
var ErrRegistryClosed = errors.New("logger registry closed")

type registryKey struct {
	conversation string
	module       string
}

// Registry hands out one file logger per (conversation, module) pair.
// Loggers are opened on first use and live until Close; nothing is evicted
// while the process runs. The zero value is not usable; call NewRegistry.
type Registry struct {
	dir     string
	level   string
	mu      sync.Mutex
	entries map[registryKey]*ZapLogger
	closed  bool
}

// NewRegistry creates a registry writing under dir. Files are created lazily
// at <dir>/<conversation>/<module>.log.
func NewRegistry(dir string, level string) *Registry {
	return &Registry{
		dir:     dir,
		level:   normalizeLogLevel(level),
		entries: make(map[registryKey]*ZapLogger),
	}
}

// Open returns the logger for the pair, creating it on first use
func (r *Registry) Open(conversationID, module string) (*ZapLogger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	k := registryKey{conversation: sanitizeName(conversationID), module: sanitizeName(module)}
	if l, ok := r.entries[k]; ok {
		return l, nil
	}

	dir := filepath.Join(r.dir, k.conversation)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, k.module+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := newZapLogger(f, r.level).With(
		zap.String("conversation", conversationID),
		zap.String("module", module),
	)
	r.entries[k] = l
	return l, nil
}

// Len returns the number of open loggers
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close flushes and closes every logger. Later Open calls fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	for k, l := range r.entries {
		err = multierr.Append(err, l.close())
		delete(r.entries, k)
	}
	return err
}

// sanitizeName keeps path components safe: anything outside [A-Za-z0-9._-]
// becomes '_'
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}

// ZapLogger adapts a zap JSON logger to the Logger interface. zap has no
// trace level; trace messages are written at debug with trace=true and only
// when the configured level is trace.
type ZapLogger struct {
	z     *zap.Logger
	trace bool
	file  *os.File
}

func newZapLogger(f *os.File, level string) *ZapLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(f),
		zap.NewAtomicLevelAt(zapLevel(level)),
	)
	return &ZapLogger{
		z:     zap.New(core),
		trace: level == "trace",
		file:  f,
	}
}

func zapLevel(level string) zapcore.Level {
	switch level {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// With returns a child logger carrying extra fields. The child shares the
// parent's file.
func (l *ZapLogger) With(fields ...zap.Field) *ZapLogger {
	return &ZapLogger{z: l.z.With(fields...), trace: l.trace, file: l.file}
}

func (l *ZapLogger) LogTrace(message string) {
	if l.trace {
		l.z.Debug(message, zap.Bool("trace", true))
	}
}

func (l *ZapLogger) LogDebug(message string) { l.z.Debug(message) }
func (l *ZapLogger) LogInfo(message string)  { l.z.Info(message) }
func (l *ZapLogger) LogWarn(message string)  { l.z.Warn(message) }
func (l *ZapLogger) LogError(message string) { l.z.Error(message) }

func (l *ZapLogger) close() error {
	// only the close error is reported
	_ = l.z.Sync()
	return l.file.Close()
}

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

var (
	mu        sync.RWMutex
	rootLevel = new(slog.LevelVar)
	root      *slog.Logger
)

// replaceLevel renders the custom TRACE and FATAL levels by name.
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// NewHandler returns a JSON or text handler writing to w with custom level names.
func NewHandler(w io.Writer, level slog.Leveler, jsonFormat bool) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevel,
	}
	if jsonFormat {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Init configures the process-wide logger. Text output goes to stderr unless
// jsonFormat is set, in which case JSON goes to stdout.
func Init(level slog.Level, jsonFormat bool) *slog.Logger {
	rootLevel.Set(level)

	var w io.Writer = os.Stderr
	if jsonFormat {
		w = os.Stdout
	}

	logger := slog.New(NewHandler(w, rootLevel, jsonFormat))

	mu.Lock()
	root = logger
	mu.Unlock()

	slog.SetDefault(logger)
	return logger
}

// SetLevel changes the level of the logger created by Init.
func SetLevel(level slog.Level) {
	rootLevel.Set(level)
}

// ParseLevel maps a textual level to a slog level. Unknown values map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ForService creates a new logger instance with the 'service' attribute added.
// Before Init it derives from slog.Default().
func ForService(serviceName string) *slog.Logger {
	mu.RLock()
	base := root
	mu.RUnlock()
	if base == nil {
		base = slog.Default()
	}
	return base.With("service", serviceName)
}

// Discard returns a logger that drops everything. Useful for tests and as a
// fallback when no logger is injected.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// Trace logs a trace message using the custom Trace level.
func Trace(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelTrace, msg, args...)
}

// FileConfig controls log file rotation.
type FileConfig struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileConfig returns the rotation defaults.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// NewFileLogger creates a new slog.Logger instance configured to write JSON logs
// to the specified file path using lumberjack for rotation.
// It includes a 'service' attribute in all logs.
// It returns the logger, a function to close the underlying log writer, and an error if setup fails.
func NewFileLogger(filePath, serviceName string, level slog.Leveler, cfg FileConfig) (*slog.Logger, func() error, error) {
	// lumberjack doesn't create directories
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	defaults := DefaultFileConfig()
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = defaults.MaxSizeMB
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = defaults.MaxBackups
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = defaults.MaxAgeDays
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	logger := slog.New(NewHandler(logWriter, level, true)).With("service", serviceName)

	return logger, logWriter.Close, nil
}

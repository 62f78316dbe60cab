// Package logger writes structured logs to a file so CLI output stays clean.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var (
	slogLogger   *slog.Logger
	levelVar     = new(slog.LevelVar)
	logFile      *os.File
	mu           sync.Mutex
	once         sync.Once
	initDone     bool
	currentLevel = LevelInfo
)

// DefaultLogPath is used when Init is never called.
const DefaultLogPath = "/tmp/para-debug.log"

// SetLevel sets the minimum log level to output.
func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = level
	levelVar.Set(level.toSlogLevel())
}

// SetDebug enables debug level logging.
func SetDebug(enabled bool) {
	if enabled {
		SetLevel(LevelDebug)
	} else {
		SetLevel(LevelInfo)
	}
}

// Init initializes the logger with a custom path. If not called, the
// default path is used on the first log call.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if initDone {
		return nil
	}
	return initLocked(path)
}

func initLocked(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", path, err)
	}
	logFile = f

	// PARA_LOG_LEVEL overrides the programmatic level.
	switch strings.ToLower(os.Getenv("PARA_LOG_LEVEL")) {
	case "debug":
		currentLevel = LevelDebug
	case "warn":
		currentLevel = LevelWarn
	case "error":
		currentLevel = LevelError
	}
	levelVar.Set(currentLevel.toSlogLevel())

	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: levelVar})
	slogLogger = slog.New(handler)
	initDone = true
	return nil
}

func ensureInit() {
	if !initDone {
		once.Do(func() {
			if err := initLocked(DefaultLogPath); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
		})
	}
}

func logWithLevel(level slog.Level, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()

	if slogLogger == nil {
		return
	}
	if !slogLogger.Enabled(context.Background(), level) {
		return
	}
	slogLogger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

// Debug writes a debug message to the log file.
func Debug(format string, args ...interface{}) {
	logWithLevel(slog.LevelDebug, format, args...)
}

// Info writes an info message to the log file.
func Info(format string, args ...interface{}) {
	logWithLevel(slog.LevelInfo, format, args...)
}

// Warn writes a warning message to the log file.
func Warn(format string, args ...interface{}) {
	logWithLevel(slog.LevelWarn, format, args...)
}

// Error writes an error message to the log file.
func Error(format string, args ...interface{}) {
	logWithLevel(slog.LevelError, format, args...)
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	slogLogger = nil
}

// Reset resets the logger state, allowing reinitialization in tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	initDone = false
	once = sync.Once{}
	slogLogger = nil
	currentLevel = LevelInfo
	levelVar = new(slog.LevelVar)
}

// ComponentLogger returns a slog.Logger with the component attribute
// pre-attached.
//
//	log := logger.ComponentLogger("integrate")
//	log.Info("strategy selected", "strategy", s)
func ComponentLogger(component string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()

	if slogLogger == nil {
		return slog.Default()
	}
	return slogLogger.With(slog.String("component", component))
}

// WithSession returns a slog.Logger with the session ID pre-attached.
func WithSession(sessionID string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()

	if slogLogger == nil {
		return slog.Default()
	}
	return slogLogger.With(slog.String("session", sessionID))
}

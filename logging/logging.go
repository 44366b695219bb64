package logging

import (
	"fmt"
	"log"
)

type LogLevel int

const (
	LogLevelNone  LogLevel = 0
	LogLevelError LogLevel = 1
	LogLevelWarn  LogLevel = 2
	LogLevelInfo  LogLevel = 3
	LogLevelDebug LogLevel = 4
)

// Logger is the logging interface used by link components. It exists
// so tests can substitute a silent implementation.
type Logger interface {
	Printf(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
	DebugFrame(direction string, data []byte)
}

// LeveledLogger wraps a standard logger with log level filtering
type LeveledLogger struct {
	logger   *log.Logger
	logLevel LogLevel
}

// NewLeveledLogger creates a new leveled logger
func NewLeveledLogger(logger *log.Logger, level LogLevel) *LeveledLogger {
	return &LeveledLogger{
		logger:   logger,
		logLevel: level,
	}
}

// Debug logs a message at DEBUG level
func (l *LeveledLogger) Debug(format string, v ...interface{}) {
	if l.logLevel >= LogLevelDebug {
		l.logger.Printf("[DEBUG] "+format, v...)
	}
}

// Info logs a message at INFO level
func (l *LeveledLogger) Info(format string, v ...interface{}) {
	if l.logLevel >= LogLevelInfo {
		l.logger.Printf("[INFO] "+format, v...)
	}
}

// Warn logs a message at WARN level
func (l *LeveledLogger) Warn(format string, v ...interface{}) {
	if l.logLevel >= LogLevelWarn {
		l.logger.Printf("[WARN] "+format, v...)
	}
}

// Error logs a message at ERROR level
func (l *LeveledLogger) Error(format string, v ...interface{}) {
	if l.logLevel >= LogLevelError {
		l.logger.Printf("[ERROR] "+format, v...)
	}
}

// Printf provides compatibility with standard logger - logs at INFO level
func (l *LeveledLogger) Printf(format string, v ...interface{}) {
	l.Info(format, v...)
}

// Fatalf logs a fatal error and exits
func (l *LeveledLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatalf("[FATAL] "+format, v...)
}

// SetLevel changes the log level
func (l *LeveledLogger) SetLevel(level LogLevel) {
	l.logLevel = level
}

// GetLevel returns the current log level
func (l *LeveledLogger) GetLevel() LogLevel {
	return l.logLevel
}

// DebugFrame logs raw wire bytes at DEBUG level with formatting
func (l *LeveledLogger) DebugFrame(direction string, data []byte) {
	if l.logLevel >= LogLevelDebug {
		dataStr := ""
		for _, b := range data {
			dataStr += fmt.Sprintf("%02X ", b)
		}
		l.logger.Printf("[DEBUG] UART %s: Len=%d Data=[%s]", direction, len(data), dataStr)
	}
}

// Ensure LeveledLogger implements Logger at compile time
var _ Logger = (*LeveledLogger)(nil)

// Nop is a Logger that discards everything. Used in tests.
type Nop struct{}

func (Nop) Printf(format string, v ...interface{})    {}
func (Nop) Debug(format string, v ...interface{})     {}
func (Nop) Info(format string, v ...interface{})      {}
func (Nop) Warn(format string, v ...interface{})      {}
func (Nop) Error(format string, v ...interface{})     {}
func (Nop) DebugFrame(direction string, data []byte)  {}

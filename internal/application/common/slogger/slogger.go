// Package slogger provides structured JSON logging with correlation IDs.
// A process-wide default logger keeps call sites terse; tests can swap the
// output to capture log lines.
package slogger

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fields represents structured logging fields.
type Fields map[string]interface{}

// Log levels in increasing severity.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

var levelRank = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Logger writes structured JSON log entries.
type Logger struct {
	mu        sync.Mutex
	out       io.Writer
	level     string
	component string
}

// logEntry is the serialized log line layout.
type logEntry struct {
	Timestamp     string                 `json:"timestamp"`
	Level         string                 `json:"level"`
	Message       string                 `json:"message"`
	Component     string                 `json:"component,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// New creates a logger writing to out at the given minimum level.
func New(out io.Writer, level string) *Logger {
	if _, ok := levelRank[level]; !ok {
		level = LevelInfo
	}
	return &Logger{out: out, level: level}
}

// WithComponent returns a logger tagged with a component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{out: l.out, level: l.level, component: component}
}

func (l *Logger) log(ctx context.Context, level, message, errText string, fields Fields) {
	if levelRank[level] < levelRank[l.level] {
		return
	}

	entry := logEntry{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Level:         level,
		Message:       message,
		Component:     l.component,
		CorrelationID: correlationIDFromContext(ctx),
		Error:         errText,
	}
	if len(fields) > 0 {
		entry.Metadata = fields
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(data)
}

// Debug logs a debug message with context.
func (l *Logger) Debug(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, LevelDebug, msg, "", fields)
}

// Info logs an info message with context.
func (l *Logger) Info(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, LevelInfo, msg, "", fields)
}

// Warn logs a warning message with context.
func (l *Logger) Warn(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, LevelWarn, msg, "", fields)
}

// Error logs an error message with context.
func (l *Logger) Error(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, LevelError, msg, "", fields)
}

// ErrorWithError logs an error message with an error object and context.
func (l *Logger) ErrorWithError(ctx context.Context, err error, msg string, fields Fields) {
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	l.log(ctx, LevelError, msg, errText, fields)
}

// Default logger management.

var (
	defaultLogger *Logger      //nolint:gochecknoglobals // Singleton logging infrastructure.
	defaultMu     sync.RWMutex //nolint:gochecknoglobals // Guards defaultLogger.
)

func getDefault() *Logger {
	defaultMu.RLock()
	logger := defaultLogger
	defaultMu.RUnlock()
	if logger != nil {
		return logger
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(os.Stdout, LevelInfo)
	}
	return defaultLogger
}

// SetGlobalLogger replaces the process-wide logger (used at startup and in
// tests).
func SetGlobalLogger(logger *Logger) {
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
}

// Debug logs a debug message with context using the default logger.
func Debug(ctx context.Context, msg string, fields Fields) {
	getDefault().Debug(ctx, msg, fields)
}

// Info logs an info message with context using the default logger.
func Info(ctx context.Context, msg string, fields Fields) {
	getDefault().Info(ctx, msg, fields)
}

// Warn logs a warning message with context using the default logger.
func Warn(ctx context.Context, msg string, fields Fields) {
	getDefault().Warn(ctx, msg, fields)
}

// Error logs an error message with context using the default logger.
func Error(ctx context.Context, msg string, fields Fields) {
	getDefault().Error(ctx, msg, fields)
}

// ErrorWithError logs an error message with an error object and context.
func ErrorWithError(ctx context.Context, err error, msg string, fields Fields) {
	getDefault().ErrorWithError(ctx, err, msg, fields)
}

// InfoNoCtx logs an info message without context.
func InfoNoCtx(msg string, fields Fields) {
	getDefault().Info(context.Background(), msg, fields)
}

// WarnNoCtx logs a warning message without context.
func WarnNoCtx(msg string, fields Fields) {
	getDefault().Warn(context.Background(), msg, fields)
}

// ErrorNoCtx logs an error message without context.
func ErrorNoCtx(msg string, fields Fields) {
	getDefault().Error(context.Background(), msg, fields)
}

// Correlation ID propagation.

type correlationKey struct{}

// WithCorrelationID attaches a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// NewCorrelationID generates a fresh correlation ID.
func NewCorrelationID() string {
	return uuid.NewString()
}

func correlationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

// Package logging provides structured JSON logging for the edit history
// engine, grounded on the teacher's cmd/entire/cli/logging package: a
// package-level slog.Logger writing to a buffered log file with a stderr
// fallback, context-carried attributes, and an environment-variable level
// override.
package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevelEnvVar controls log level when set; SetLogLevelGetter's callback
// is consulted only when this is unset.
const LogLevelEnvVar = "EDITHIST_LOG_LEVEL"

// LogFileName is the log file written under the history root.
const LogFileName = "edithist.log"

var (
	logger *slog.Logger

	logFile      *os.File
	logBufWriter *bufio.Writer

	mu sync.RWMutex

	logLevelGetter func() string
)

// SetLogLevelGetter registers a callback consulted for the log level when
// EDITHIST_LOG_LEVEL is unset, letting settings.json supply a level without
// this package importing the config package.
func SetLogLevelGetter(getter func() string) {
	mu.Lock()
	defer mu.Unlock()
	logLevelGetter = getter
}

// Init opens historyRoot/edithist.log for buffered JSON logging. If the
// file cannot be created, logging falls back to stderr rather than
// failing the caller.
func Init(historyRoot string) error {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	levelStr := os.Getenv(LogLevelEnvVar)
	if levelStr == "" && logLevelGetter != nil {
		levelStr = logLevelGetter()
	}
	level := parseLogLevel(levelStr)
	if levelStr != "" && !isValidLogLevel(levelStr) {
		fmt.Fprintf(os.Stderr, "[edithist] warning: invalid log level %q, defaulting to INFO\n", levelStr)
	}

	if err := os.MkdirAll(historyRoot, 0o750); err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}

	path := filepath.Join(historyRoot, LogFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}

	logFile = f
	logBufWriter = bufio.NewWriterSize(f, 8192)
	logger = createLogger(logBufWriter, level)
	return nil
}

// Close flushes and closes the log file, if one is open. Safe to call
// multiple times.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

func closeLocked() {
	if logBufWriter != nil {
		_ = logBufWriter.Flush()
		logBufWriter = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func createLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isValidLogLevel(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR", "":
		return true
	default:
		return false
	}
}

// Debug logs at DEBUG level with context values extracted automatically.
func Debug(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelDebug, msg, attrs...) }

// Info logs at INFO level with context values extracted automatically.
func Info(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelInfo, msg, attrs...) }

// Warn logs at WARN level with context values extracted automatically.
func Warn(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelWarn, msg, attrs...) }

// Error logs at ERROR level with context values extracted automatically.
func Error(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelError, msg, attrs...) }

// LogDuration logs msg with a duration_ms attribute computed from start,
// meant for use with defer at the top of an operation.
func LogDuration(ctx context.Context, level slog.Level, msg string, start time.Time, attrs ...any) {
	allAttrs := make([]any, 0, len(attrs)+1)
	allAttrs = append(allAttrs, slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	allAttrs = append(allAttrs, attrs...)
	log(ctx, level, msg, allAttrs...)
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	l := getLogger()

	var allAttrs []any
	for _, a := range attrsFromContext(ctx) {
		allAttrs = append(allAttrs, a)
	}
	allAttrs = append(allAttrs, attrs...)

	l.Log(nil, level, msg, allAttrs...) //nolint:staticcheck // context values already extracted into attrs
}

func attrsFromContext(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if v := ConversationIDFromContext(ctx); v != "" {
		attrs = append(attrs, slog.String("conversation_id", v))
	}
	if v := EditIDFromContext(ctx); v != "" {
		attrs = append(attrs, slog.String("edit_id", v))
	}
	if v := ComponentFromContext(ctx); v != "" {
		attrs = append(attrs, slog.String("component", v))
	}
	return attrs
}

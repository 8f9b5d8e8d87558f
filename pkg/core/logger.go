package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// DefaultLogger implements Logger by writing to stdout
type DefaultLogger struct{}

func (dl *DefaultLogger) Printf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// NewDefaultLogger creates a new default logger
func NewDefaultLogger() Logger {
	return &DefaultLogger{}
}

// SlogLogger adapts a structured slog.Logger to the Printf-style Logger.
// Messages are emitted at the configured level with trailing newlines trimmed.
type SlogLogger struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogLogger wraps logger, emitting at info level
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger, level: slog.LevelInfo}
}

// WithLevel returns a copy that emits at level
func (sl *SlogLogger) WithLevel(level slog.Level) *SlogLogger {
	return &SlogLogger{logger: sl.logger, level: level}
}

func (sl *SlogLogger) Printf(format string, args ...interface{}) {
	message := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	sl.logger.Log(context.Background(), sl.level, message)
}

// NewDiscardLogger returns a logger that drops everything
func NewDiscardLogger() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

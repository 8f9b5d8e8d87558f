package server

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// ConsoleMessage represents a console message with timestamp
type ConsoleMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "info", "warning", "error"
}

// WebLogger implements core.Logger by sending messages to a console channel
type WebLogger struct {
	renderID    string
	consoleChan chan<- ConsoleMessage
	server      *slog.Logger
}

// NewWebLogger creates a new web logger for a specific render
func NewWebLogger(renderID string, consoleChan chan<- ConsoleMessage) core.Logger {
	return &WebLogger{
		renderID:    renderID,
		consoleChan: consoleChan,
		server:      slog.Default().With("render", renderID),
	}
}

// messageLevel classifies engine and compositor messages for the console
func messageLevel(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "failed") || strings.Contains(lower, "error"):
		return "error"
	case strings.Contains(lower, "skipped") || strings.Contains(lower, "disabled") || strings.Contains(lower, "cancelled"):
		return "warning"
	default:
		return "info"
	}
}

// Printf implements core.Logger interface
func (wl *WebLogger) Printf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	level := messageLevel(message)

	// Also write to the server log
	wl.server.Info(strings.TrimRight(message, "\n"), "level", level)

	// Send to web console if channel is available (non-blocking)
	if wl.consoleChan != nil {
		select {
		case wl.consoleChan <- ConsoleMessage{
			Message:   message,
			Timestamp: time.Now(),
			Level:     level,
		}:
		default:
			// Channel full, skip (don't block)
		}
	}
}

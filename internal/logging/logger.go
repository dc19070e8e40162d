package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/rish2jain/Incident-Commander-sub002/internal/platform/correlation"
	"github.com/sytallax/prettylog"
)

// InitLogger initializes the global logger with the specified level and format.
// level: "debug", "info", "warn", "error" (defaults to "info")
// format: "json", "pretty" or "text" (defaults to "text")
//
// Every handler is wrapped with the correlation handler so log lines carry
// the correlation_id of the context they were emitted under.
func InitLogger(level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "pretty":
		// Human-friendly colored output for local development.
		handler = prettylog.NewHandler(opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(correlation.NewHandler(handler)))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithIncident returns a logger carrying an incident_id field.
func WithIncident(incidentID string) *slog.Logger {
	return slog.Default().With("incident_id", incidentID)
}

// WithConnection returns a logger carrying a connection_id field.
func WithConnection(connectionID string) *slog.Logger {
	return slog.Default().With("connection_id", connectionID)
}

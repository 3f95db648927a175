// Package telemetry wires the runtime's ambient logging, tracing, and
// metrics: a structured slog.Logger, an optional OTLP tracer, and a set of
// Prometheus collectors exposed at /metrics.
package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogConfig controls the shared structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Format is json or text. Defaults to json.
	Format string
	// Output is stdout, stderr, or a file path. Defaults to stdout.
	Output string
}

// NewLogger builds the process-wide *slog.Logger. Every other package in
// this module takes a *slog.Logger directly rather than a wrapper type, so
// this returns one instead of introducing a parallel Logger type.
func NewLogger(cfg LogConfig) (*slog.Logger, error) {
	level := parseLevel(cfg.Level)

	var w io.Writer
	switch {
	case cfg.Output == "" || cfg.Output == "stdout":
		w = os.Stdout
	case cfg.Output == "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		w = f
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler), nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

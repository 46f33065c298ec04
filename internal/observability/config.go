// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging for the liveedit CLI and its long-running modes.
package observability

import (
	"log/slog"
	"time"
)

// AppMode identifies the application execution mode.
type AppMode string

const (
	// ModeCLI is a one-shot command.
	ModeCLI AppMode = "cli"
	// ModeWatch is the long-running re-analysis loop.
	ModeWatch AppMode = "watch"
	// ModeMCP serves analysis tools to an MCP client over stdio.
	ModeMCP AppMode = "mcp"
	// ModeLSP serves rude edit diagnostics to an editor over stdio.
	ModeLSP AppMode = "lsp"
)

const (
	serviceName = "liveedit"

	defaultShutdownTimeout = 5 * time.Second
)

// Config describes the telemetry of one liveedit process.
type Config struct {
	// Version is reported as service.version and on every log record.
	Version string

	// Mode identifies how the binary was launched.
	Mode AppMode

	// Exporter is the collector receiving traces and metrics. A zero
	// Exporter keeps every provider a no-op.
	Exporter Exporter

	// SampleRatio is the fraction of analyses traced; zero traces all of them.
	SampleRatio float64

	// VerboseSpans keeps per-document and front end spans.
	VerboseSpans bool

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON switches stderr logs to JSON.
	LogJSON bool

	// ShutdownTimeout bounds the final flush of pending telemetry.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config for zero-config startup.
func DefaultConfig() Config {
	return Config{
		Mode:            ModeCLI,
		LogLevel:        slog.LevelInfo,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

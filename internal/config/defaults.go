package config

import "time"

// Default values for liveedit settings.
const (
	DefaultAnalysisWorkers             = 0
	DefaultAnalysisStrictNonLeaf       = false
	DefaultAnalysisSimilarityThreshold = 0.0
	DefaultAnalysisMaxDiagnostics      = 0

	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = LogFormatText

	DefaultTelemetrySampleRatio     = 0.1
	DefaultTelemetryMetricsAddr     = ":9464"
	DefaultTelemetryShutdownTimeout = 5 * time.Second
)

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Package config loads liveedit settings from file, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Sumatoshi-tech/liveedit/internal/observability"
	"github.com/Sumatoshi-tech/liveedit/pkg/engine"
	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
)

// Sentinel validation errors.
var (
	ErrInvalidConfig     = errors.New("invalid config")
	ErrInvalidCapability = errors.New("invalid capability")
	ErrInvalidLogLevel   = errors.New("invalid log level")
)

// Config is the top-level configuration struct for liveedit.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AnalysisConfig holds engine knobs.
type AnalysisConfig struct {
	Workers             int      `mapstructure:"workers"              validate:"gte=0,lte=1024"`
	StrictNonLeaf       bool     `mapstructure:"strict_non_leaf"`
	Capabilities        []string `mapstructure:"capabilities"`
	RulesFile           string   `mapstructure:"rules_file"`
	SimilarityThreshold float64  `mapstructure:"similarity_threshold" validate:"gte=0,lte=1"`
	MaxDiagnostics      int      `mapstructure:"max_diagnostics"      validate:"gte=0"`
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// TelemetryConfig holds OpenTelemetry and scrape endpoint settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint" validate:"omitempty,hostname_port"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	// OTLPHeaders uses the OTEL_EXPORTER_OTLP_HEADERS format, which is also
	// read from that variable.
	OTLPHeaders     string        `mapstructure:"otlp_headers"`
	SampleRatio     float64       `mapstructure:"sample_ratio"     validate:"gte=0,lte=1"`
	VerboseSpans    bool          `mapstructure:"verbose_spans"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and the names that only other packages can parse.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	_, err = c.CapabilitySet()
	if err != nil {
		return err
	}

	if _, ok := observability.ParseLevel(c.Logging.Level); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	if _, err = observability.ParseHeaders(c.Telemetry.OTLPHeaders); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// CapabilitySet parses the configured capability names. An empty list grants
// every capability.
func (c *Config) CapabilitySet() (rudeedit.Capabilities, error) {
	if len(c.Analysis.Capabilities) == 0 {
		return rudeedit.DefaultCapabilities, nil
	}

	caps, err := rudeedit.ParseCapabilities(c.Analysis.Capabilities)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidCapability, err)
	}

	return caps, nil
}

// Rules loads the configured rule table. Without a rules file it returns nil
// and the engine falls back to its default table.
func (c *Config) Rules() (*rudeedit.Table, error) {
	if c.Analysis.RulesFile == "" {
		return nil, nil //nolint:nilnil // nil table selects the default.
	}

	file, err := os.Open(c.Analysis.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer file.Close()

	table, err := rudeedit.LoadTable(file)
	if err != nil {
		return nil, fmt.Errorf("load rules file %s: %w", c.Analysis.RulesFile, err)
	}

	return table, nil
}

// EngineOptions maps the analysis section onto engine options. Logger,
// tracer and metrics are left for the caller.
func (c *Config) EngineOptions() (engine.Options, error) {
	rules, err := c.Rules()
	if err != nil {
		return engine.Options{}, err
	}

	return engine.Options{
		Workers:             c.Analysis.Workers,
		StrictNonLeaf:       c.Analysis.StrictNonLeaf,
		Rules:               rules,
		SimilarityThreshold: c.Analysis.SimilarityThreshold,
		MaxDiagnostics:      c.Analysis.MaxDiagnostics,
	}, nil
}

// Observability maps logging and telemetry onto an observability config.
func (c *Config) Observability(mode observability.AppMode, version string) observability.Config {
	cfg := observability.DefaultConfig()
	cfg.Mode = mode
	cfg.Version = version
	cfg.SampleRatio = c.Telemetry.SampleRatio
	cfg.VerboseSpans = c.Telemetry.VerboseSpans
	cfg.LogJSON = c.Logging.Format == LogFormatJSON

	if c.Telemetry.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = c.Telemetry.ShutdownTimeout
	}

	// Validate has already rejected malformed headers.
	headers, _ := observability.ParseHeaders(c.Telemetry.OTLPHeaders)

	cfg.Exporter = observability.Exporter{
		Endpoint: c.Telemetry.OTLPEndpoint,
		Insecure: c.Telemetry.OTLPInsecure,
		Headers:  headers,
	}

	level, ok := observability.ParseLevel(c.Logging.Level)
	if !ok {
		level = slog.LevelInfo
	}

	cfg.LogLevel = level

	return cfg
}

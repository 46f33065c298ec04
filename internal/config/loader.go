package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".liveedit"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for liveedit settings.
const envPrefix = "LIVEEDIT"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// envOTLPHeaders is the standard OpenTelemetry exporter headers variable.
const envOTLPHeaders = "OTEL_EXPORTER_OTLP_HEADERS"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	err := viperCfg.BindEnv("telemetry.otlp_headers", envPrefix+"_TELEMETRY_OTLP_HEADERS", envOTLPHeaders)
	if err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("analysis.workers", DefaultAnalysisWorkers)
	viperCfg.SetDefault("analysis.strict_non_leaf", DefaultAnalysisStrictNonLeaf)
	viperCfg.SetDefault("analysis.capabilities", []string{})
	viperCfg.SetDefault("analysis.rules_file", "")
	viperCfg.SetDefault("analysis.similarity_threshold", DefaultAnalysisSimilarityThreshold)
	viperCfg.SetDefault("analysis.max_diagnostics", DefaultAnalysisMaxDiagnostics)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.format", DefaultLoggingFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultTelemetrySampleRatio)
	viperCfg.SetDefault("telemetry.verbose_spans", false)
	viperCfg.SetDefault("telemetry.shutdown_timeout", DefaultTelemetryShutdownTimeout)
	viperCfg.SetDefault("telemetry.metrics_addr", DefaultTelemetryMetricsAddr)
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/liveedit/internal/config"
	"github.com/Sumatoshi-tech/liveedit/internal/observability"
	"github.com/Sumatoshi-tech/liveedit/pkg/activestmt"
	"github.com/Sumatoshi-tech/liveedit/pkg/engine"
	"github.com/Sumatoshi-tech/liveedit/pkg/version"
)

// app is the state shared by the analysis commands.
type app struct {
	cfg          *config.Config
	providers    observability.Providers
	logger       *slog.Logger
	opts         engine.Options
	engine       *engine.Engine
	capabilities engine.Capabilities
}

// newApp loads the configuration and starts telemetry. capabilities, when
// non-empty, replaces the configured capability list.
func newApp(mode observability.AppMode, capabilities []string) (*app, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	if len(capabilities) > 0 {
		cfg.Analysis.Capabilities = capabilities

		err = cfg.Validate()
		if err != nil {
			return nil, err
		}
	}

	caps, err := cfg.CapabilitySet()
	if err != nil {
		return nil, err
	}

	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}

	obsCfg := cfg.Observability(mode, version.Version)

	switch {
	case verbose:
		obsCfg.LogLevel = slog.LevelDebug
	case quiet:
		obsCfg.LogLevel = slog.LevelError
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	a := &app{
		cfg:          cfg,
		providers:    providers,
		logger:       providers.Logger,
		opts:         opts,
		capabilities: caps,
	}

	err = a.useMeter(providers.Meter)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// useMeter rebuilds the engine so that its analysis metrics go to mt.
func (a *app) useMeter(mt metric.Meter) error {
	metrics, err := observability.NewAnalysisMetrics(mt)
	if err != nil {
		return fmt.Errorf("create analysis metrics: %w", err)
	}

	opts := a.opts
	opts.Logger = a.logger
	opts.Tracer = a.providers.Tracer
	opts.Metrics = metrics

	a.engine = engine.New(opts)

	return nil
}

func (a *app) request(docs []engine.Document, active []activestmt.Statement) engine.Request {
	return engine.Request{
		Documents:        engine.WithTreeSymbols(docs),
		ActiveStatements: active,
		Capabilities:     a.capabilities,
	}
}

func (a *app) close(ctx context.Context) {
	err := a.providers.Shutdown(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "telemetry shutdown failed", "error", err)
	}
}

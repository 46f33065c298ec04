package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/liveedit/internal/mcp"
	"github.com/Sumatoshi-tech/liveedit/internal/observability"
	"github.com/Sumatoshi-tech/liveedit/pkg/version"
)

func mcpCmd() *cobra.Command {
	var capabilities []string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start an MCP server exposing live-edit analysis tools",
		Long: `Start a Model Context Protocol server on stdio. AI agents can call the
liveedit_analyze, liveedit_parse and liveedit_rules tools.

Logs go to stderr; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			return runMCP(ctx, capabilities)
		},
	}

	cmd.Flags().StringSliceVar(&capabilities, "capabilities", nil, "default host capabilities (default from config)")

	return cmd
}

func runMCP(ctx context.Context, capabilities []string) error {
	a, err := newApp(observability.ModeMCP, capabilities)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	red, err := observability.NewREDMetrics(a.providers.Meter)
	if err != nil {
		return fmt.Errorf("create tool metrics: %w", err)
	}

	srv := mcp.NewServer(mcp.ServerDeps{
		Engine:       a.engine,
		Rules:        a.opts.Rules,
		Capabilities: a.capabilities,
		Version:      version.Version,
		Logger:       a.logger,
		Metrics:      red,
		Tracer:       a.providers.Tracer,
	})

	a.logger.InfoContext(ctx, "mcp server starting", "tools", srv.ListToolNames())

	return srv.Run(ctx)
}

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/liveedit/internal/lsp"
	"github.com/Sumatoshi-tech/liveedit/internal/observability"
	"github.com/Sumatoshi-tech/liveedit/pkg/version"
)

func lspCmd() *cobra.Command {
	var capabilities []string

	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start a language server that reports rude edits while editing",
		Long: `Start a Language Server Protocol server on stdio. The text of a document
when it is opened is treated as the version loaded in the running program;
every change is analysed against it and rude edits are published as
diagnostics.

Commands:
  liveedit.acceptBaseline URI        adopt the current text as the baseline
  liveedit.setActiveLines URI LINE.. mark baseline lines as active statements`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			return runLSP(ctx, capabilities)
		},
	}

	cmd.Flags().StringSliceVar(&capabilities, "capabilities", nil, "host capabilities (default from config)")

	return cmd
}

func runLSP(ctx context.Context, capabilities []string) error {
	a, err := newApp(observability.ModeLSP, capabilities)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	srv := lsp.NewServer(ctx, lsp.Deps{
		Engine:       a.engine,
		Capabilities: a.capabilities,
		Version:      version.Version,
		Logger:       a.logger,
	})

	a.logger.InfoContext(ctx, "lsp server starting")

	return srv.Run()
}

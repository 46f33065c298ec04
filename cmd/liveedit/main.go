// Package main provides the liveedit CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/liveedit/pkg/version"
)

var (
	cfgFile string //nolint:gochecknoglobals // CLI flag variable
	verbose bool   //nolint:gochecknoglobals // CLI flag variable
	quiet   bool   //nolint:gochecknoglobals // CLI flag variable
	noColor bool   //nolint:gochecknoglobals // CLI flag variable
)

func main() {
	err := rootCmd().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liveedit",
		Short: "Live-edit analysis of source changes against a running program",
		Long: `liveedit compares the old and new version of source documents and decides
which edits can be applied to a paused program, which are rude and why, and
where each active statement lands in the new code.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.liveedit.yaml or $HOME/.liveedit.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "log errors only")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(analyzeCmd())
	cmd.AddCommand(diffCmd())
	cmd.AddCommand(lspCmd())
	cmd.AddCommand(mcpCmd())
	cmd.AddCommand(rulesCmd())
	cmd.AddCommand(showCmd())
	cmd.AddCommand(watchCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "liveedit %s\n", version.String())
		},
	}
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/liveedit/internal/render"
	"github.com/Sumatoshi-tech/liveedit/pkg/snapshot"
)

func showCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show SNAPSHOT",
		Short: "Print a result snapshot written by analyze --snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.OutOrStdout(), args[0], format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", render.FormatText, "output format (text, summary, json, html)")

	return cmd
}

func runShow(out io.Writer, path, format string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	result, err := snapshot.Decode(file)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", path, err)
	}

	return render.NewPrinter(out, noColor).Result(result, format)
}

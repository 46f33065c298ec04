package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/liveedit/internal/observability"
	"github.com/Sumatoshi-tech/liveedit/internal/render"
	"github.com/Sumatoshi-tech/liveedit/pkg/engine"
	"github.com/Sumatoshi-tech/liveedit/pkg/snapshot"
)

// ErrBlockedEdits is returned by analyze --strict when a document is blocked or failed.
var ErrBlockedEdits = errors.New("edits cannot be applied to the running program")

type analyzeFlags struct {
	active       string
	format       string
	snapshot     string
	maxSource    string
	capabilities []string
	rev          string
	strict       bool
}

func analyzeCmd() *cobra.Command {
	var flags analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze OLD NEW [OLD NEW ...]",
		Short: "Analyse edits between old and new documents",
		Long: `Analyse the edits between each OLD and NEW document pair and report rude
edits, semantic edits, remapped active statements and line shifts.

Inputs are Python or Go sources, tree documents (.json, .yaml) or
s-expressions (.sx). With --rev, each FILE is compared with its version
committed at REV in the enclosing git repository.

Examples:
  liveedit analyze old/worker.py worker.py
  liveedit analyze --active frames.yaml old/jobs.go jobs.go
  liveedit analyze -f summary --snapshot run.lesn a.sx b.sx
  liveedit analyze --rev HEAD worker.py jobs.py`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.active, "active", "", "YAML file with the active statements of the old documents")
	cmd.Flags().StringVarP(&flags.format, "format", "f", render.FormatText, "output format (text, summary, json, html)")
	cmd.Flags().StringVar(&flags.snapshot, "snapshot", "", "write a compressed result snapshot to this file")
	cmd.Flags().StringVar(&flags.maxSource, "max-source", defaultMaxSource, "maximum size of one input file")
	cmd.Flags().StringSliceVar(&flags.capabilities, "capabilities", nil, "host capabilities (default from config)")
	cmd.Flags().StringVar(&flags.rev, "rev", "", "git revision holding the old documents")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "exit with an error when any document is blocked")

	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, args []string, flags analyzeFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(observability.ModeCLI, flags.capabilities)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	ld, err := newLoader(flags.maxSource)
	if err != nil {
		return err
	}

	var docs []engine.Document

	if flags.rev != "" {
		docs, err = ld.revisionDocuments(ctx, flags.rev, args)
	} else {
		docs, _, err = ld.documents(ctx, args)
	}

	if err != nil {
		return err
	}

	active, err := loadActive(flags.active, docs)
	if err != nil {
		return err
	}

	result, analyzeErr := a.engine.Analyze(ctx, a.request(docs, active))
	if result == nil {
		return fmt.Errorf("analyze: %w", analyzeErr)
	}

	if analyzeErr != nil {
		a.logger.WarnContext(ctx, "analysis finished with failed documents", "error", analyzeErr)
	}

	err = render.NewPrinter(out, noColor).Result(result, flags.format)
	if err != nil {
		return err
	}

	if flags.snapshot != "" {
		err = writeSnapshot(ctx, a, flags.snapshot, result)
		if err != nil {
			return err
		}
	}

	if flags.strict && (result.Blocked() || analyzeErr != nil) {
		return ErrBlockedEdits
	}

	return nil
}

func writeSnapshot(ctx context.Context, a *app, path string, result *engine.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	err = snapshot.Encode(file, result)
	if err != nil {
		return errors.Join(err, file.Close())
	}

	info, err := file.Stat()
	if err != nil {
		return errors.Join(fmt.Errorf("stat snapshot: %w", err), file.Close())
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	a.logger.InfoContext(ctx, "snapshot written",
		"path", path, "size", humanize.IBytes(uint64(info.Size()))) //nolint:gosec // file sizes are non-negative.

	return nil
}

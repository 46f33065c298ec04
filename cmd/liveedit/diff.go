package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/liveedit/internal/render"
	"github.com/Sumatoshi-tech/liveedit/pkg/bodymatch"
	"github.com/Sumatoshi-tech/liveedit/pkg/declmatch"
	"github.com/Sumatoshi-tech/liveedit/pkg/symbols"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

// diffArgCount is the number of arguments expected by the diff command.
const diffArgCount = 2

func diffCmd() *cobra.Command {
	var maxSource string

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Show the declaration-level changes between two documents",
		Long: `Match the declarations of OLD and NEW and print every added, removed,
moved or changed declaration. Changed members show their body edit counts
and a line diff of their source.

Examples:
  liveedit diff old/worker.py worker.py
  liveedit diff before.sx after.sx`,
		Args: cobra.ExactArgs(diffArgCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], maxSource)
		},
	}

	cmd.Flags().StringVar(&maxSource, "max-source", defaultMaxSource, "maximum size of one input file")

	return cmd
}

func runDiff(ctx context.Context, out io.Writer, oldPath, newPath, maxSource string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ld, err := newLoader(maxSource)
	if err != nil {
		return err
	}

	oldSrc, err := ld.load(ctx, oldPath)
	if err != nil {
		return err
	}

	newSrc, err := ld.load(ctx, newPath)
	if err != nil {
		return err
	}

	changes, err := declarationChanges(oldSrc, newSrc)
	if err != nil {
		return err
	}

	return render.NewPrinter(out, noColor).Changes(changes)
}

// declarationChanges lists the changed declarations of two sources: deletions
// first, then inserts, moves and changed members in new document order.
func declarationChanges(oldSrc, newSrc *source) ([]render.Change, error) {
	decls, err := declmatch.Match(oldSrc.tree, newSrc.tree)
	if err != nil {
		return nil, err
	}

	cache := bodymatch.NewCache(oldSrc.tree, newSrc.tree)

	var changes []render.Change

	for _, deleted := range decls.Deleted {
		changes = append(changes, render.Change{
			Kind:    render.Removed,
			Label:   symbols.KeyOf(oldSrc.tree, deleted).String(),
			OldText: oldSrc.text(deleted),
		})
	}

	for _, inserted := range decls.Inserted {
		changes = append(changes, render.Change{
			Kind:    render.Added,
			Label:   symbols.KeyOf(newSrc.tree, inserted).String(),
			NewText: newSrc.text(inserted),
		})
	}

	for _, pair := range decls.Pairs {
		label := symbols.KeyOf(newSrc.tree, pair.New).String()

		switch {
		case !pair.Unchanged && pair.IsMember():
			script, err := cache.Script(pair.Old, pair.New)
			if err != nil {
				return nil, fmt.Errorf("body match of %s: %w", label, err)
			}

			changes = append(changes, render.Change{
				Kind:    render.Changed,
				Label:   label,
				OldText: oldSrc.text(pair.Old),
				NewText: newSrc.text(pair.New),
				Script:  script,
			})
		case !pair.Unchanged && !pair.New.Kind.IsTypeOrNamespace():
			changes = append(changes, render.Change{
				Kind:    render.Changed,
				Label:   label,
				OldText: oldSrc.text(pair.Old),
				NewText: newSrc.text(pair.New),
			})
		case pair.Moved:
			changes = append(changes, render.Change{Kind: render.Moved, Label: label})
		}
	}

	return changes, nil
}

// text returns the source text of n. Tree documents and s-expressions carry
// no source, so their nodes fall back to the normalized token text.
func (s *source) text(n *syntax.Node) string {
	span := n.Span
	if !s.code || span.IsEmpty() || span.EndOffset > len(s.content) {
		return n.Text() + "\n"
	}

	return string(s.content[span.StartOffset:span.EndOffset]) + "\n"
}

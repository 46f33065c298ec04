package render

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize/english"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/liveedit/pkg/treematch"
)

// ChangeKind tells how a declaration changed between two versions.
type ChangeKind uint8

// Declaration change kinds.
const (
	Changed ChangeKind = iota
	Added
	Removed
	Moved
)

var changeMarkers = [...]string{Changed: "~", Added: "+", Removed: "-", Moved: ">"}

// Change is one declaration of a declaration-level diff. Script is the body
// edit script of a changed member and may be nil.
type Change struct {
	Kind    ChangeKind
	Label   string
	OldText string
	NewText string
	Script  *treematch.Script
}

// Changes writes each change followed by a line diff of its source text.
func (p *Printer) Changes(changes []Change) error {
	for _, change := range changes {
		err := p.change(change)
		if err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(p.writer, english.Plural(len(changes), "changed declaration", ""))
	if err != nil {
		return fmt.Errorf("write diff footer: %w", err)
	}

	return nil
}

func (p *Printer) change(change Change) error {
	painter := p.muted

	switch change.Kind {
	case Added:
		painter = p.added
	case Removed:
		painter = p.removed
	default:
	}

	header := changeMarkers[change.Kind] + " " + change.Label
	if change.Script != nil {
		header += " (" + describeCounts(change.Script.Counts()) + ")"
	}

	_, err := painter.Fprintln(p.writer, header)
	if err != nil {
		return fmt.Errorf("write change header: %w", err)
	}

	if change.Kind == Moved {
		return nil
	}

	return p.SourceDiff(change.OldText, change.NewText)
}

// SourceDiff writes a line diff of two texts. Unchanged lines are indented,
// removed and added lines carry a - or + marker.
func (p *Printer) SourceDiff(oldText, newText string) error {
	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToRunes(oldText, newText)
	diffs := dmp.DiffMainRunes(src, dst, false)
	diffs = dmp.DiffCharsToLines(dmp.DiffCleanupSemanticLossless(diffs), lines)

	for _, diff := range diffs {
		marker, painter := " ", p.muted

		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			marker, painter = "+", p.added
		case diffmatchpatch.DiffDelete:
			marker, painter = "-", p.removed
		case diffmatchpatch.DiffEqual:
		}

		for _, line := range splitLines(diff.Text) {
			_, err := painter.Fprintf(p.writer, "%s%s %s\n", indent, marker, line)
			if err != nil {
				return fmt.Errorf("write diff line: %w", err)
			}
		}
	}

	return nil
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func describeCounts(counts treematch.Counts) string {
	parts := make([]string, 0, 4)

	for _, entry := range []struct {
		count int
		word  string
	}{
		{counts.Updates, "update"},
		{counts.Inserts, "insert"},
		{counts.Deletes, "delete"},
		{counts.Moves, "move"},
	} {
		if entry.count > 0 {
			parts = append(parts, english.Plural(entry.count, entry.word, ""))
		}
	}

	if len(parts) == 0 {
		return "layout only"
	}

	return strings.Join(parts, ", ")
}

package rudeedit

import (
	"slices"
	"strings"
)

// Bag collects diagnostics of one analysis. It replaces process-wide
// "already reported" flags: every latch lives in the bag that owns it.
type Bag struct {
	items   []Diagnostic
	max     int
	dropped int
	latches map[string]bool
}

// NewBag creates a bag holding at most maxItems diagnostics; 0 means unlimited.
func NewBag(maxItems int) *Bag {
	return &Bag{max: maxItems, latches: make(map[string]bool)}
}

// Add appends a diagnostic. A full bag refuses Informational diagnostics and
// returns false. Blocking diagnostics are never refused: one evicts the most
// recent Informational diagnostic, or the bag grows past its limit when it
// holds nothing else.
func (b *Bag) Add(d Diagnostic) bool {
	if b.max > 0 && len(b.items) >= b.max {
		if d.Severity != Blocking {
			b.dropped++

			return false
		}

		b.evictInformational()
	}

	b.items = append(b.items, d)

	return true
}

func (b *Bag) evictInformational() {
	for i := len(b.items) - 1; i >= 0; i-- {
		if b.items[i].Severity == Informational {
			b.items = slices.Delete(b.items, i, i+1)
			b.dropped++

			return
		}
	}
}

// Once reports true the first time it is called with a given latch name.
func (b *Bag) Once(latch string) bool {
	if b.latches[latch] {
		return false
	}

	b.latches[latch] = true

	return true
}

// Merge appends every diagnostic of other, growing the limit to fit.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}

	if b.max > 0 && len(b.items)+len(other.items) > b.max {
		b.max = len(b.items) + len(other.items)
	}

	b.items = append(b.items, other.items...)
	b.dropped += other.dropped
}

// Len returns the number of diagnostics.
func (b *Bag) Len() int {
	return len(b.items)
}

// Dropped returns how many diagnostics were refused because the bag was full.
func (b *Bag) Dropped() int {
	return b.dropped
}

// Items returns the diagnostics. The slice must not be modified.
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// HasBlocking reports whether any diagnostic is Blocking.
func (b *Bag) HasBlocking() bool {
	return slices.ContainsFunc(b.items, func(d Diagnostic) bool {
		return d.Severity == Blocking
	})
}

// Sort orders diagnostics by document, start, end, severity (blocking first),
// kind and arguments, so equal inputs always report in the same order.
func (b *Bag) Sort() {
	slices.SortStableFunc(b.items, Compare)
}

// Compare is the total order used by Sort.
func Compare(left, right Diagnostic) int {
	switch {
	case left.Document != right.Document:
		return strings.Compare(left.Document, right.Document)
	case left.Span.StartOffset != right.Span.StartOffset:
		return left.Span.StartOffset - right.Span.StartOffset
	case left.Span.EndOffset != right.Span.EndOffset:
		return left.Span.EndOffset - right.Span.EndOffset
	case left.Severity != right.Severity:
		return int(right.Severity) - int(left.Severity)
	case left.Kind != right.Kind:
		return strings.Compare(left.Kind.String(), right.Kind.String())
	default:
		return slices.Compare(left.Args, right.Args)
	}
}

// Dedup drops repeated diagnostics with equal kind, document, span and arguments.
func (b *Bag) Dedup() {
	seen := make(map[string]bool, len(b.items))
	kept := b.items[:0]

	for _, d := range b.items {
		key := d.key()
		if seen[key] {
			continue
		}

		seen[key] = true
		kept = append(kept, d)
	}

	b.items = kept
}

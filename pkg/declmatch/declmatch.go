// Package declmatch pairs namespace, type and member declarations between the
// old and new version of one document.
package declmatch

import (
	"fmt"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/treematch"
)

// Comparer restricts a match to declarations. Identity is kind, name and
// generic arity; modifiers are compared once declarations are paired.
type Comparer struct{}

// Label implements treematch.Comparer.
func (Comparer) Label(n *syntax.Node) (treematch.Label, bool) {
	if !n.Kind.IsDeclaration() {
		return treematch.Label{}, false
	}

	return treematch.Label{Kind: n.Kind, Name: n.Name, Arity: n.Arity}, true
}

// Descend implements treematch.Comparer: only containers of declarations are entered.
func (Comparer) Descend(n *syntax.Node) bool {
	return n.Kind.IsTypeOrNamespace()
}

// Pair is one matched declaration pair.
type Pair struct {
	Old *syntax.Node
	New *syntax.Node
	// Unchanged is set when the two subtrees are identical up to layout and trivia.
	Unchanged bool
	// Moved is set when the declaration changed container or order.
	Moved bool
}

// IsMember reports whether the pair is a member declaration.
func (p Pair) IsMember() bool {
	return p.New.Kind.IsMember()
}

// ModifiersChanged reports whether the defining modifiers differ.
func (p Pair) ModifiersChanged() bool {
	if len(p.Old.Modifiers) != len(p.New.Modifiers) {
		return true
	}

	for idx, modifier := range p.Old.Modifiers {
		if p.New.Modifiers[idx] != modifier {
			return true
		}
	}

	return false
}

// Result is the declaration-level correspondence of one document.
type Result struct {
	Match  *treematch.Match
	Script *treematch.Script
	// Pairs holds every matched declaration except the roots, in new document order.
	Pairs []Pair
	// Inserted holds the outermost inserted declarations in new document order.
	Inserted []*syntax.Node
	// Deleted holds the outermost deleted declarations in old document order.
	Deleted []*syntax.Node
}

// Match pairs the declarations of two document trees.
func Match(oldTree, newTree *syntax.Tree, opts ...treematch.Option) (*Result, error) {
	match, err := treematch.Compute(oldTree, oldTree.Root(), newTree, newTree.Root(), Comparer{}, opts...)
	if err != nil {
		return nil, fmt.Errorf("declaration match: %w", err)
	}

	script := match.EditScript()
	result := &Result{Match: match, Script: script}

	for _, pair := range match.Pairs() {
		if pair.New == match.NewRoot() {
			continue
		}

		result.Pairs = append(result.Pairs, Pair{
			Old:       pair.Old,
			New:       pair.New,
			Unchanged: oldTree.Fingerprint(pair.Old) == newTree.Fingerprint(pair.New),
			Moved:     script.IsMoved(pair.New),
		})
	}

	for _, edit := range script.Edits {
		switch edit.Kind {
		case treematch.EditInsert:
			if _, parentMatched := match.OldOf(match.NewParent(edit.New)); parentMatched {
				result.Inserted = append(result.Inserted, edit.New)
			}
		case treematch.EditDelete:
			if _, parentMatched := match.NewOf(match.OldParent(edit.Old)); parentMatched {
				result.Deleted = append(result.Deleted, edit.Old)
			}
		case treematch.EditUpdate, treematch.EditMove:
		}
	}

	return result, nil
}

// Members returns the matched member declarations in new document order.
func (r *Result) Members() []Pair {
	var members []Pair

	for _, pair := range r.Pairs {
		if pair.IsMember() {
			members = append(members, pair)
		}
	}

	return members
}

// Changed returns the matched members whose subtrees differ.
func (r *Result) Changed() []Pair {
	var changed []Pair

	for _, pair := range r.Members() {
		if !pair.Unchanged {
			changed = append(changed, pair)
		}
	}

	return changed
}

// IsEmpty reports whether the two documents declare the same things with equal content.
func (r *Result) IsEmpty() bool {
	return len(r.Inserted) == 0 && len(r.Deleted) == 0 && len(r.Changed()) == 0 && !r.anyMoved()
}

func (r *Result) anyMoved() bool {
	for _, pair := range r.Pairs {
		if pair.Moved {
			return true
		}
	}

	return false
}

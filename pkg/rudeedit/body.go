package rudeedit

import (
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/treematch"
)

// BodyInput is the statement-level view of one paired member.
type BodyInput struct {
	Document     string
	Script       *treematch.Script
	Table        *Table
	Capabilities Capabilities
	// ActiveOld holds the old statements that contain an active statement.
	ActiveOld []*syntax.Node
	// StateMachine is set when either version of the member is async or an iterator.
	StateMachine bool
}

// ClassifyBody evaluates every edit of a member's script against the rule table.
func ClassifyBody(input BodyInput, bag *Bag) {
	table := input.Table
	if table == nil {
		table = DefaultTable()
	}

	view := newBodyView(input)

	for _, edit := range input.Script.Edits {
		node, ctx := view.context(edit)

		rule, ok := table.Lookup(edit.Kind, node.Kind, ctx)
		if !ok || rule.Diagnostic == KindNone {
			continue
		}

		args := []string{node.Kind.String()}

		if rule.Requires != 0 {
			if input.Capabilities.Has(rule.Requires) {
				continue
			}

			args = append(args, rule.Requires.String())
		}

		bag.Add(New(rule.Diagnostic, rule.Severity, input.Document, node.Span, args...))
	}
}

type bodyView struct {
	match        *treematch.Match
	activeOld    map[*syntax.Node]bool
	activeNew    map[*syntax.Node]bool
	stateMachine bool
}

func newBodyView(input BodyInput) *bodyView {
	view := &bodyView{
		match:        input.Script.Match,
		activeOld:    make(map[*syntax.Node]bool, len(input.ActiveOld)),
		activeNew:    make(map[*syntax.Node]bool, len(input.ActiveOld)),
		stateMachine: input.StateMachine,
	}

	for _, stmt := range input.ActiveOld {
		view.activeOld[stmt] = true

		if counterpart, ok := view.match.NewOf(stmt); ok {
			view.activeNew[counterpart] = true
		}
	}

	return view
}

// context returns the node an edit is judged by and its structural context.
// Deletes are judged in the old tree, everything else in the new tree.
func (view *bodyView) context(edit treematch.Edit) (*syntax.Node, Context) {
	var ctx Context

	if view.stateMachine {
		ctx |= CtxInStateMachine
	}

	if edit.Kind == treematch.EditDelete {
		return edit.Old, ctx | view.sideContext(edit.Old, view.match.OldTree(), view.match.OldRoot(), view.activeOld)
	}

	ctx |= view.sideContext(edit.New, view.match.NewTree(), view.match.NewRoot(), view.activeNew)

	if edit.Old != nil && view.activeOld[edit.Old] {
		ctx |= CtxIsActiveStatement
	}

	return edit.New, ctx
}

func (view *bodyView) sideContext(
	n *syntax.Node, tree *syntax.Tree, root *syntax.Node, active map[*syntax.Node]bool,
) Context {
	var ctx Context

	if active[n] {
		ctx |= CtxIsActiveStatement
	}

	for stmt := range active {
		if tree.IsAncestor(n, stmt) {
			ctx |= CtxAroundActiveStatement

			break
		}
	}

	for current := tree.Parent(n); current != nil && current != tree.Parent(root); current = tree.Parent(current) {
		switch {
		case current.Kind.IsLoop():
			ctx |= CtxInLoop
		case current.Kind == syntax.KindLambda:
			ctx |= CtxInLambda
		case current.Kind.IsExceptionHandler():
			ctx |= CtxInExceptionHandler
		}
	}

	return ctx
}

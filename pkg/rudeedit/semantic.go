package rudeedit

import (
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/liveedit/pkg/symbols"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/treematch"
)

// SemanticInput is one member that passed the syntactic tier, together with
// the compilations of both program versions.
type SemanticInput struct {
	Document string
	Script   *treematch.Script
	Old      symbols.Compilation
	New      symbols.Compilation
}

// ClassifySemantics reports edits whose legality depends on symbol facts:
// static type changes, lambda capture changes and call re-binding.
func ClassifySemantics(input SemanticInput, bag *Bag) {
	if input.Old == nil || input.New == nil {
		return
	}

	member := displayName(input.Script.Match.NewRoot())

	for _, pair := range input.Script.Match.Pairs() {
		switch pair.New.Kind {
		case syntax.KindLambda:
			checkCaptures(input, member, pair, bag)
		case syntax.KindCall:
			checkCallTarget(input, pair, bag)
			checkType(input, pair, bag)
		case syntax.KindExpression, syntax.KindLocalDeclaration, syntax.KindParameter,
			syntax.KindAwait:
			checkType(input, pair, bag)
		default:
		}
	}
}

func checkType(input SemanticInput, pair treematch.Pair, bag *Bag) {
	oldType, oldOK := input.Old.TypeOf(pair.Old)
	newType, newOK := input.New.TypeOf(pair.New)

	if !oldOK || !newOK || oldType == newType {
		return
	}

	bag.Add(New(KindTypeChanged, Blocking, input.Document, pair.New.Span, nodeLabel(pair.New), oldType, newType))
}

func checkCaptures(input SemanticInput, member string, pair treematch.Pair, bag *Bag) {
	oldCaptures := input.Old.CapturedVariables(pair.Old)
	newCaptures := input.New.CapturedVariables(pair.New)

	if slices.Equal(oldCaptures, newCaptures) {
		return
	}

	bag.Add(New(KindCaptureChanged, Blocking, input.Document, pair.New.Span,
		member, strings.Join(oldCaptures, ", "), strings.Join(newCaptures, ", ")))
}

func checkCallTarget(input SemanticInput, pair treematch.Pair, bag *Bag) {
	oldTarget, oldOK := input.Old.CallTarget(pair.Old)
	newTarget, newOK := input.New.CallTarget(pair.New)

	if !oldOK || !newOK || oldTarget == newTarget {
		return
	}

	bag.Add(New(KindCallTargetChanged, Blocking, input.Document, pair.New.Span,
		nodeLabel(pair.New), newTarget.String(), oldTarget.String()))
}

func nodeLabel(n *syntax.Node) string {
	if n.Name != "" {
		return n.Name
	}

	if text := syntax.NormalizeToken(n.Token); text != "" {
		return text
	}

	return strings.ToLower(n.Kind.String())
}

// DeletionInput describes the declarations deleted from one document.
type DeletionInput struct {
	Document string
	OldTree  *syntax.Tree
	Deleted  []*syntax.Node
	Old      symbols.Compilation
	New      symbols.Compilation
}

// ClassifyDeletions flags deleted members that were the only implementation
// of a contract the new program still references.
func ClassifyDeletions(input DeletionInput, bag *Bag) {
	if input.Old == nil || input.New == nil {
		return
	}

	for _, deleted := range input.Deleted {
		deleted.VisitPreOrder(func(n *syntax.Node) {
			if !n.Kind.IsMember() {
				return
			}

			key := symbols.KeyOf(input.OldTree, n)

			symbol, ok := input.Old.Lookup(key)
			if !ok {
				return
			}

			for _, contract := range symbol.Contracts {
				if !input.New.IsReferenced(contract) || len(input.New.Implementations(contract)) > 0 {
					continue
				}

				bag.Add(New(KindMissingImplementation, Blocking, input.Document, n.Span, key.String(), contract.String()))
			}
		})
	}
}

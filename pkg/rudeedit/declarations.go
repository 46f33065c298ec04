package rudeedit

import (
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/liveedit/pkg/declmatch"
	"github.com/Sumatoshi-tech/liveedit/pkg/symbols"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

// stateMachineModifier is owned by the state-machine kind check, not by the
// modifier comparison.
const stateMachineModifier = "async"

// DeclarationInput is the declaration-level view of one document.
type DeclarationInput struct {
	Document     string
	Declarations *declmatch.Result
	Capabilities Capabilities
}

// ClassifyDeclarations reports rude edits visible at declaration level:
// signature and modifier changes of paired members, field type changes and
// reorders, deletions, and inserts the host capabilities do not allow.
func ClassifyDeclarations(input DeclarationInput, bag *Bag) {
	result := input.Declarations

	if !input.Capabilities.Has(CapBaseline) && !result.IsEmpty() {
		root := result.Match.NewRoot()
		bag.Add(New(KindCapabilityRequired, Blocking, input.Document, root.Span, "editing", "baseline"))

		return
	}

	for _, pair := range result.Pairs {
		if pair.Unchanged && !pair.Moved {
			continue
		}

		classifyPair(input.Document, pair, bag)
	}

	for _, deleted := range result.Deleted {
		bag.Add(New(KindDeclarationDeleted, Informational, input.Document, deleted.Span, displayName(deleted)))
	}

	for _, inserted := range result.Inserted {
		required := insertCapability(inserted)
		if input.Capabilities.Has(required) {
			continue
		}

		bag.Add(New(KindCapabilityRequired, Blocking, input.Document, inserted.Span,
			"adding "+displayName(inserted), required.String()))
	}
}

func classifyPair(document string, pair declmatch.Pair, bag *Bag) {
	name := displayName(pair.New)

	oldMods := definingModifiers(pair.Old)
	newMods := definingModifiers(pair.New)

	if !slices.Equal(oldMods, newMods) {
		bag.Add(New(KindModifiersChanged, Blocking, document, pair.New.Span,
			name, strings.Join(oldMods, " "), strings.Join(newMods, " ")))
	}

	switch pair.New.Kind {
	case syntax.KindMethod, syntax.KindConstructor, syntax.KindProperty, syntax.KindEvent:
		if signatureChanged(pair.Old, pair.New) {
			bag.Add(New(KindSignatureChanged, Blocking, document, pair.New.Span, name))
		}
	case syntax.KindField:
		oldType, newType := declaredType(pair.Old), declaredType(pair.New)
		if oldType != newType {
			bag.Add(New(KindTypeChanged, Blocking, document, pair.New.Span, name, oldType, newType))
		}

		if pair.Moved {
			bag.Add(New(KindMemberReordered, Informational, document, pair.New.Span, name))
		}
	default:
	}
}

func signatureChanged(oldMember, newMember *syntax.Node) bool {
	return !slices.Equal(symbols.ParameterTypes(oldMember), symbols.ParameterTypes(newMember)) ||
		symbols.ReturnType(oldMember) != symbols.ReturnType(newMember) ||
		(newMember.Kind == syntax.KindProperty && declaredType(oldMember) != declaredType(newMember))
}

func definingModifiers(n *syntax.Node) []string {
	return slices.DeleteFunc(slices.Clone(n.Modifiers), func(modifier string) bool {
		return modifier == stateMachineModifier
	})
}

// declaredType is the text written before the declared name in the node token.
func declaredType(n *syntax.Node) string {
	text := syntax.NormalizeToken(n.Token)

	before, _, found := strings.Cut(" "+text+" ", " "+n.Name+" ")
	if !found {
		return ""
	}

	return strings.TrimSpace(before)
}

func insertCapability(n *syntax.Node) Capabilities {
	switch n.Kind {
	case syntax.KindNamespace, syntax.KindType:
		return CapNewType
	case syntax.KindField:
		if n.HasModifier("static") {
			return CapAddStaticField
		}

		return CapAddInstanceField
	default:
		return CapAddMethod
	}
}

func displayName(n *syntax.Node) string {
	if n.Name != "" {
		return n.Name
	}

	return strings.ToLower(n.Kind.String())
}

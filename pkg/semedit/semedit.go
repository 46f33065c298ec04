// Package semedit turns a document's declaration pairing and per-member
// verdicts into the ordered list of apply operations.
package semedit

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/liveedit/pkg/declmatch"
	"github.com/Sumatoshi-tech/liveedit/pkg/statemachine"
	"github.com/Sumatoshi-tech/liveedit/pkg/symbols"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

// ErrUnknownKind is returned when decoding an unknown edit kind name.
var ErrUnknownKind = errors.New("unknown semantic edit kind")

// Kind is the apply operation of a semantic edit.
type Kind uint8

// Semantic edit kinds.
const (
	Insert Kind = iota
	Update
	Delete
	Move
)

var kindNames = [...]string{"insert", "update", "delete", "move"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	for idx, name := range kindNames {
		if name == string(text) {
			*k = Kind(idx)

			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrUnknownKind, text)
}

// Edit is one apply operation. Symbols are identified by key only and must be
// resolved against the compilation current at apply time.
type Edit struct {
	Kind      Kind        `json:"kind"                 msgpack:"kind"`
	Symbol    symbols.Key `json:"symbol"               msgpack:"symbol"`
	OldSymbol symbols.Key `json:"old_symbol,omitempty" msgpack:"old_symbol,omitempty"`
	// SyntaxMap is set for state machines and members owning an active statement.
	SyntaxMap              *statemachine.SyntaxMap `json:"-" msgpack:"-"`
	PreserveLocalVariables bool                    `json:"preserve_local_variables" msgpack:"preserve_local_variables"`
}

// Resolve looks the edited symbol up in comp. Deletes resolve their old symbol.
func (e Edit) Resolve(comp symbols.Compilation) (symbols.Symbol, bool) {
	key := e.Symbol
	if e.Kind == Delete {
		key = e.OldSymbol
	}

	return comp.Lookup(key)
}

func (e Edit) String() string {
	if e.OldSymbol != "" && e.OldSymbol != e.Symbol {
		return fmt.Sprintf("%s %s (was %s)", e.Kind, e.Symbol, e.OldSymbol)
	}

	return fmt.Sprintf("%s %s", e.Kind, e.Symbol)
}

// Verdict is the outcome of analysing one changed member.
type Verdict struct {
	// Blocked is set when the member has a Blocking diagnostic.
	Blocked bool
	// SyntaxMap is attached to the member's edit when set.
	SyntaxMap *statemachine.SyntaxMap
	// PreserveLocals is set when the member owns an active statement or is a live state machine.
	PreserveLocals bool
}

// Input is everything Build consumes for one document.
type Input struct {
	Declarations *declmatch.Result
	// Verdicts are keyed by the new member node.
	Verdicts map[*syntax.Node]Verdict
}

// Build emits inserts, updates and cross-container moves in new declaration
// order, followed by deletes in old declaration order. Reordering within the
// same container is not an apply operation.
func Build(input Input) []Edit {
	result := input.Declarations
	match := result.Match
	oldTree := match.OldTree()
	newTree := match.NewTree()

	inserted := make(map[*syntax.Node]bool, len(result.Inserted))
	for _, n := range result.Inserted {
		inserted[n] = true
	}

	pairs := make(map[*syntax.Node]declmatch.Pair, len(result.Pairs))
	for _, pair := range result.Pairs {
		pairs[pair.New] = pair
	}

	var edits []Edit

	for _, newNode := range match.NewNodes() {
		if inserted[newNode] {
			edits = append(edits, Edit{Kind: Insert, Symbol: symbols.KeyOf(newTree, newNode)})

			continue
		}

		pair, ok := pairs[newNode]
		if !ok {
			continue
		}

		edits = append(edits, pairEdits(input, pair, oldTree, newTree)...)
	}

	for _, oldNode := range result.Deleted {
		key := symbols.KeyOf(oldTree, oldNode)
		edits = append(edits, Edit{Kind: Delete, Symbol: key, OldSymbol: key})
	}

	return edits
}

// pairEdits emits a Move when the member changed container, followed by an
// Update when its content changed as well.
func pairEdits(input Input, pair declmatch.Pair, oldTree, newTree *syntax.Tree) []Edit {
	match := input.Declarations.Match
	verdict := input.Verdicts[pair.New]

	if verdict.Blocked {
		return nil
	}

	edit := Edit{
		Symbol:                 symbols.KeyOf(newTree, pair.New),
		OldSymbol:              symbols.KeyOf(oldTree, pair.Old),
		SyntaxMap:              verdict.SyntaxMap,
		PreserveLocalVariables: verdict.PreserveLocals,
	}

	var edits []Edit

	if counterpart, ok := match.OldOf(match.NewParent(pair.New)); !ok || counterpart != match.OldParent(pair.Old) {
		moved := edit
		moved.Kind = Move
		edits = append(edits, moved)
	}

	changed := !pair.Unchanged
	if pair.New.Kind.IsTypeOrNamespace() {
		changed = input.Declarations.Script.IsUpdated(pair.New)
	}

	if changed {
		edit.Kind = Update
		edits = append(edits, edit)
	}

	return edits
}

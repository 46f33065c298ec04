// Package activestmt relocates the statements a suspended process is executing
// from the old version of a member to the new one.
package activestmt

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/treematch"
)

// Sentinel errors for active statement tracking.
var (
	ErrOutsideMember = errors.New("active statement outside its member")
	ErrNoRegion      = errors.New("exception region not found")
	ErrUnknownFlags  = errors.New("unknown active statement flags")
	ErrUnknownStatus = errors.New("unknown active statement status")
)

// Flags describe the frame an active statement belongs to.
type Flags uint8

// Frame flags.
const (
	// Leaf marks the statement at the top of a paused call stack.
	Leaf Flags = 1 << iota
	// NonLeaf marks a caller frame further down the stack.
	NonLeaf
)

func (f Flags) String() string {
	if f&Leaf != 0 {
		return "leaf"
	}

	return "non-leaf"
}

// MarshalText encodes the flags by name.
func (f Flags) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText decodes "leaf" or "non-leaf".
func (f *Flags) UnmarshalText(text []byte) error {
	switch string(text) {
	case "leaf":
		*f = Leaf
	case "non-leaf", "nonleaf":
		*f = NonLeaf
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFlags, text)
	}

	return nil
}

// Statement is an active statement as reported by the runtime, in old coordinates.
type Statement struct {
	Ordinal          int           `json:"ordinal"                     yaml:"ordinal"`
	Document         string        `json:"document"                    yaml:"document"`
	Span             syntax.Span   `json:"span"                        yaml:"span"`
	Flags            Flags         `json:"flags"                       yaml:"flags"`
	ExceptionRegions []syntax.Span `json:"exception_regions,omitempty" yaml:"exception_regions,omitempty"`
}

// IsLeaf reports whether the statement is the top frame of a paused stack.
func (s Statement) IsLeaf() bool {
	return s.Flags&Leaf != 0
}

// Status tells how an active statement was relocated.
type Status uint8

// Relocation outcomes.
const (
	// Exact means the statement survived unchanged.
	Exact Status = iota
	// Updated means the statement survived with different content.
	Updated
	// Reparented means the statement survived under a different container.
	Reparented
	// Unresolved means the statement was deleted; the span is a best effort.
	Unresolved
)

var statusNames = [...]string{"exact", "updated", "reparented", "unresolved"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}

	return fmt.Sprintf("Status(%d)", uint8(s))
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for idx, name := range statusNames {
		if name == string(text) {
			*s = Status(idx)

			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrUnknownStatus, text)
}

// Remapped is an active statement in new coordinates. The old Statement is never modified.
type Remapped struct {
	Ordinal          int           `json:"ordinal"                     msgpack:"ordinal"`
	Document         string        `json:"document"                    msgpack:"document"`
	Span             syntax.Span   `json:"span"                        msgpack:"span"`
	ExceptionRegions []syntax.Span `json:"exception_regions,omitempty" msgpack:"exception_regions,omitempty"`
	Status           Status        `json:"status"                      msgpack:"status"`
}

// Input is one member's active statements together with its body script.
type Input struct {
	Document   string
	Script     *treematch.Script
	Statements []Statement
	// StrictNonLeaf reports deleted non-leaf statements as Blocking.
	StrictNonLeaf bool
}

// Locate returns the innermost statement of member whose span contains span.
// Blocks are only returned when no more specific statement contains span.
func Locate(tree *syntax.Tree, member *syntax.Node, span syntax.Span) *syntax.Node {
	found := tree.Innermost(member, span, func(n *syntax.Node) bool {
		return n.Kind.IsStatement() && n.Kind != syntax.KindBlock
	})
	if found != nil {
		return found
	}

	return tree.Innermost(member, span, func(n *syntax.Node) bool {
		return n.Kind == syntax.KindBlock
	})
}

// AtLine returns the span of the outermost statement of tree that starts on
// line. Hosts that report paused frames by line number use it to build a
// Statement.
func AtLine(tree *syntax.Tree, line int) (syntax.Span, bool) {
	var (
		found syntax.Span
		ok    bool
	)

	tree.Root().VisitPreOrder(func(n *syntax.Node) {
		if ok || n.Span.StartLine != line || !n.Kind.IsStatement() || n.Kind == syntax.KindBlock {
			return
		}

		found, ok = n.Span, true
	})

	return found, ok
}

// Track relocates the active statements of one changed member. Diagnostics
// for statements that cannot be relocated safely are added to bag.
func Track(input Input, bag *rudeedit.Bag) ([]Remapped, error) {
	tracker := &tracker{input: input, match: input.Script.Match, bag: bag}
	remapped := make([]Remapped, 0, len(input.Statements))

	for _, stmt := range input.Statements {
		result, err := tracker.track(stmt)
		if err != nil {
			return nil, err
		}

		remapped = append(remapped, result)
	}

	return remapped, nil
}

type tracker struct {
	input Input
	match *treematch.Match
	bag   *rudeedit.Bag
}

func (tr *tracker) memberName() string {
	root := tr.match.NewRoot()
	if root.Name != "" {
		return root.Name
	}

	return root.Kind.String()
}

func (tr *tracker) track(stmt Statement) (Remapped, error) {
	oldTree := tr.match.OldTree()

	node := Locate(oldTree, tr.match.OldRoot(), stmt.Span)
	if node == nil {
		return Remapped{}, fmt.Errorf("%w: statement %d at %s", ErrOutsideMember, stmt.Ordinal, stmt.Span)
	}

	result := Remapped{Ordinal: stmt.Ordinal, Document: stmt.Document}

	counterpart, ok := tr.match.NewOf(node)
	if !ok {
		result.Status = Unresolved
		result.Span = tr.bestEffortSpan(node)
		tr.reportDeleted(stmt, result.Span)
	} else {
		result.Span = mapSpan(stmt.Span, node.Span, counterpart.Span)
		result.Status = tr.status(node, counterpart)

		if result.Status == Updated && stmt.IsLeaf() {
			tr.bag.Add(rudeedit.New(rudeedit.KindActiveStatementUpdated, rudeedit.Blocking,
				tr.input.Document, counterpart.Span, tr.memberName()))
		}
	}

	regions, err := tr.regions(stmt)
	if err != nil {
		return Remapped{}, err
	}

	result.ExceptionRegions = regions

	return result, nil
}

func (tr *tracker) status(oldNode, newNode *syntax.Node) Status {
	switch {
	case tr.input.Script.IsUpdated(newNode):
		return Updated
	case tr.reparented(oldNode, newNode):
		return Reparented
	default:
		return Exact
	}
}

func (tr *tracker) reparented(oldNode, newNode *syntax.Node) bool {
	oldParent := tr.match.OldParent(oldNode)
	if oldParent == nil {
		return false
	}

	counterpart, ok := tr.match.NewOf(oldParent)

	return !ok || counterpart != tr.match.NewParent(newNode)
}

func (tr *tracker) reportDeleted(stmt Statement, span syntax.Span) {
	severity := rudeedit.Informational
	if stmt.IsLeaf() || tr.input.StrictNonLeaf {
		severity = rudeedit.Blocking
	}

	tr.bag.Add(rudeedit.New(rudeedit.KindActiveStatementDeleted, severity, tr.input.Document, span, tr.memberName()))
}

// bestEffortSpan is the span of the new counterpart of the nearest surviving ancestor.
func (tr *tracker) bestEffortSpan(node *syntax.Node) syntax.Span {
	for current := tr.match.OldParent(node); current != nil; current = tr.match.OldParent(current) {
		if counterpart, ok := tr.match.NewOf(current); ok {
			return counterpart.Span
		}
	}

	return tr.match.NewRoot().Span
}

func (tr *tracker) regions(stmt Statement) ([]syntax.Span, error) {
	if len(stmt.ExceptionRegions) == 0 {
		return nil, nil
	}

	oldTree := tr.match.OldTree()
	mapped := make([]syntax.Span, 0, len(stmt.ExceptionRegions))

	for _, region := range stmt.ExceptionRegions {
		regionNode := oldTree.Innermost(tr.match.OldRoot(), region, func(n *syntax.Node) bool {
			return n.Kind.IsExceptionRegion()
		})
		if regionNode == nil {
			return nil, fmt.Errorf("%w: statement %d region %s", ErrNoRegion, stmt.Ordinal, region)
		}

		counterpart, ok := tr.match.NewOf(regionNode)
		if !ok || isEmptyRegion(counterpart) {
			anchor := regionNode.Span
			if ok {
				anchor = counterpart.Span
			}

			tr.bag.Add(rudeedit.New(rudeedit.KindExceptionRegionDeleted, rudeedit.Blocking,
				tr.input.Document, anchor, regionNode.Kind.String()))

			continue
		}

		mapped = append(mapped, mapSpan(region, regionNode.Span, counterpart.Span))
	}

	return mapped, nil
}

func isEmptyRegion(region *syntax.Node) bool {
	if region.Span.IsEmpty() {
		return true
	}

	statements := region.Find(func(n *syntax.Node) bool {
		return n != region && n.Kind.IsStatement() && n.Kind != syntax.KindBlock
	})

	return len(statements) == 0
}

// mapSpan carries a span recorded inside oldNode over to newNode. When the two
// nodes have the same shape the relative position is kept, otherwise the whole
// new node is used.
func mapSpan(span, oldNode, newNode syntax.Span) syntax.Span {
	if span == oldNode {
		return newNode
	}

	if oldNode.SameShape(newNode) {
		return span.Shift(oldNode, newNode)
	}

	return newNode
}

// Unchanged relocates the statements of a member whose old and new subtrees
// are identical up to layout and trivia. Each span follows the node at the same
// structural position in the new member.
func Unchanged(oldTree *syntax.Tree, oldMember, newMember *syntax.Node, stmts []Statement) []Remapped {
	remapped := make([]Remapped, 0, len(stmts))

	for _, stmt := range stmts {
		result := Remapped{
			Ordinal:  stmt.Ordinal,
			Document: stmt.Document,
			Span:     follow(oldTree, oldMember, newMember, stmt.Span),
			Status:   Exact,
		}

		for _, region := range stmt.ExceptionRegions {
			result.ExceptionRegions = append(result.ExceptionRegions, follow(oldTree, oldMember, newMember, region))
		}

		remapped = append(remapped, result)
	}

	return remapped
}

func follow(oldTree *syntax.Tree, oldMember, newMember *syntax.Node, span syntax.Span) syntax.Span {
	oldNode := oldTree.Innermost(oldMember, span, func(*syntax.Node) bool { return true })
	if oldNode == nil {
		return mapSpan(span, oldMember.Span, newMember.Span)
	}

	var path []int

	for current := oldNode; current != oldMember; current = oldTree.Parent(current) {
		path = append(path, significantIndex(oldTree.Parent(current), current))
	}

	newNode := newMember

	for idx := len(path) - 1; idx >= 0; idx-- {
		next := significantChild(newNode, path[idx])
		if next == nil {
			return mapSpan(span, oldMember.Span, newMember.Span)
		}

		newNode = next
	}

	return mapSpan(span, oldNode.Span, newNode.Span)
}

func significantIndex(parent, child *syntax.Node) int {
	position := 0

	for _, sibling := range parent.Children {
		if sibling == child {
			return position
		}

		if !sibling.Kind.IsTrivia() {
			position++
		}
	}

	return -1
}

func significantChild(parent *syntax.Node, position int) *syntax.Node {
	for _, child := range parent.Children {
		if child.Kind.IsTrivia() {
			continue
		}

		if position == 0 {
			return child
		}

		position--
	}

	return nil
}

// Orphaned reports the statements of a deleted member. They stay unresolved,
// anchored at fallback.
func Orphaned(input Input, member string, fallback syntax.Span, bag *rudeedit.Bag) []Remapped {
	remapped := make([]Remapped, 0, len(input.Statements))

	for _, stmt := range input.Statements {
		severity := rudeedit.Informational
		if stmt.IsLeaf() || input.StrictNonLeaf {
			severity = rudeedit.Blocking
		}

		bag.Add(rudeedit.New(rudeedit.KindActiveStatementDeleted, severity, input.Document, fallback, member))

		remapped = append(remapped, Remapped{
			Ordinal:  stmt.Ordinal,
			Document: stmt.Document,
			Span:     fallback,
			Status:   Unresolved,
		})
	}

	return remapped
}

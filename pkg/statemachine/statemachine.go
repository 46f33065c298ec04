// Package statemachine describes resumable (async and iterator) members and
// maps positions between the old and new version of such a member.
package statemachine

import (
	"fmt"
	"strconv"

	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/treematch"
)

// Kind is the flavour of state machine a member compiles to.
type Kind uint8

// State machine kinds.
const (
	None Kind = iota
	Async
	Iterator
)

func (k Kind) String() string {
	switch k {
	case Async:
		return "async"
	case Iterator:
		return "iterator"
	default:
		return "none"
	}
}

// Descriptor lists the suspension points of a member in source order.
type Descriptor struct {
	Kind             Kind
	SuspensionPoints []*syntax.Node
}

// Describe inspects a member. Suspension points inside lambdas belong to the
// lambda, not to the member.
func Describe(member *syntax.Node) Descriptor {
	var desc Descriptor

	iterator := false
	stack := []*syntax.Node{member}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if current != member && current.Kind == syntax.KindLambda {
			continue
		}

		if current.Kind.IsSuspensionPoint() {
			desc.SuspensionPoints = append(desc.SuspensionPoints, current)
		}

		if current.Kind == syntax.KindYieldReturn || current.Kind == syntax.KindYieldBreak {
			iterator = true
		}

		for idx := len(current.Children) - 1; idx >= 0; idx-- {
			stack = append(stack, current.Children[idx])
		}
	}

	switch {
	case member.HasModifier("async"):
		desc.Kind = Async
	case iterator:
		desc.Kind = Iterator
	}

	return desc
}

// SyntaxMap maps nodes of the new member to their old counterparts.
type SyntaxMap struct {
	match *treematch.Match
}

// Old returns the old counterpart of a new node.
func (m *SyntaxMap) Old(newNode *syntax.Node) (*syntax.Node, bool) {
	return m.match.OldOf(newNode)
}

// Func returns the map as a plain function.
func (m *SyntaxMap) Func() func(*syntax.Node) (*syntax.Node, bool) {
	return m.Old
}

// Len returns the number of mapped nodes.
func (m *SyntaxMap) Len() int {
	return m.match.Len()
}

// Input is one member's body script with both descriptors.
type Input struct {
	Document     string
	Script       *treematch.Script
	Old          Descriptor
	New          Descriptor
	Capabilities rudeedit.Capabilities
	// ActiveOld holds the old statements of the member that are active.
	ActiveOld []*syntax.Node
}

// Live reports whether the member has a suspended instance.
func (in Input) Live() bool {
	return len(in.ActiveOld) > 0
}

// Map builds the syntax map of a member and reports the state machine changes
// that a suspended instance cannot survive.
func Map(input Input, bag *rudeedit.Bag) *SyntaxMap {
	mapper := &mapper{input: input, match: input.Script.Match, bag: bag}

	if input.Live() {
		mapper.checkKind()
		mapper.checkCapability()
		mapper.checkSuspensionPoints()
		mapper.checkLocals()
	}

	return &SyntaxMap{match: input.Script.Match}
}

type mapper struct {
	input Input
	match *treematch.Match
	bag   *rudeedit.Bag
}

func (mp *mapper) member() *syntax.Node {
	return mp.match.NewRoot()
}

func (mp *mapper) name() string {
	if name := mp.member().Name; name != "" {
		return name
	}

	return mp.member().Kind.String()
}

func (mp *mapper) checkKind() {
	if mp.input.Old.Kind == mp.input.New.Kind {
		return
	}

	mp.bag.Add(rudeedit.New(rudeedit.KindStateMachineKindChanged, rudeedit.Blocking, mp.input.Document,
		mp.member().Span, mp.name(), mp.input.Old.Kind.String(), mp.input.New.Kind.String()))
}

func (mp *mapper) checkCapability() {
	var required rudeedit.Capabilities

	switch mp.input.Old.Kind {
	case Async:
		required = rudeedit.CapEditSuspendedAsync
	case Iterator:
		required = rudeedit.CapEditSuspendedIterator
	default:
		return
	}

	if mp.input.Capabilities.Has(required) || mp.input.Script.IsEmpty() {
		return
	}

	mp.bag.Add(rudeedit.New(rudeedit.KindCapabilityRequired, rudeedit.Blocking, mp.input.Document,
		mp.member().Span, "editing suspended "+mp.name(), required.String()))
}

// checkSuspensionPoints pairs suspension points by ordinal and requires every
// pair to be matched by the body script.
func (mp *mapper) checkSuspensionPoints() {
	oldPoints := mp.input.Old.SuspensionPoints
	newPoints := mp.input.New.SuspensionPoints

	for idx := range max(len(oldPoints), len(newPoints)) {
		reason, anchor := mp.pairProblem(idx, oldPoints, newPoints)
		if reason == "" {
			continue
		}

		if mp.bag.Once("suspension-point:" + mp.input.Document + ":" + mp.member().Span.String()) {
			mp.bag.Add(rudeedit.New(rudeedit.KindSuspensionPointChanged, rudeedit.Blocking, mp.input.Document,
				anchor, mp.name(), reason))
		}

		return
	}
}

func (mp *mapper) pairProblem(idx int, oldPoints, newPoints []*syntax.Node) (string, syntax.Span) {
	ordinal := strconv.Itoa(idx + 1)

	switch {
	case idx >= len(newPoints):
		return "suspension point " + ordinal + " was removed", oldPoints[idx].Span
	case idx >= len(oldPoints):
		return "suspension point " + ordinal + " was added", newPoints[idx].Span
	}

	counterpart, ok := mp.match.NewOf(oldPoints[idx])

	switch {
	case !ok:
		return "suspension point " + ordinal + " has no counterpart", newPoints[idx].Span
	case counterpart != newPoints[idx]:
		if _, matched := mp.match.OldOf(newPoints[idx]); !matched {
			return "a suspension point was inserted before suspension point " + ordinal, newPoints[idx].Span
		}

		return fmt.Sprintf("suspension point %s moved to position %d", ordinal, mp.position(counterpart)), counterpart.Span
	default:
		return "", syntax.Span{}
	}
}

func (mp *mapper) position(newNode *syntax.Node) int {
	for idx, point := range mp.input.New.SuspensionPoints {
		if point == newNode {
			return idx + 1
		}
	}

	return 0
}

// checkLocals reports inserted locals of a state machine that are declared
// ahead of an active statement in an enclosing block: the resumed frame has no
// slot holding their value.
func (mp *mapper) checkLocals() {
	if mp.input.Old.Kind == None && mp.input.New.Kind == None {
		return
	}

	newTree := mp.match.NewTree()

	var activeNew []*syntax.Node

	for _, stmt := range mp.input.ActiveOld {
		if counterpart, ok := mp.match.NewOf(stmt); ok {
			activeNew = append(activeNew, counterpart)
		}
	}

	for _, edit := range mp.input.Script.Edits {
		if edit.Kind != treematch.EditInsert || edit.New.Kind != syntax.KindLocalDeclaration {
			continue
		}

		block := newTree.Parent(edit.New)

		for _, active := range activeNew {
			if !newTree.IsAncestor(block, active) || !edit.New.Span.Before(active.Span) {
				continue
			}

			mp.bag.Add(rudeedit.New(rudeedit.KindLocalStateLost, rudeedit.Blocking, mp.input.Document,
				edit.New.Span, edit.New.Name))

			break
		}
	}
}

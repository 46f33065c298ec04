package treematch

import (
	"strings"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

// EditKind is the kind of one edit script entry.
type EditKind uint8

// Edit kinds.
const (
	EditInsert EditKind = iota
	EditDelete
	EditUpdate
	EditMove
)

var editKindNames = [...]string{
	EditInsert: "Insert",
	EditDelete: "Delete",
	EditUpdate: "Update",
	EditMove:   "Move",
}

func (k EditKind) String() string {
	if int(k) < len(editKindNames) {
		return editKindNames[k]
	}

	return "EditKind(?)"
}

// Edit is one entry of an edit script. Insert carries only New, Delete only
// Old, Update and Move carry both.
type Edit struct {
	Kind EditKind
	Old  *syntax.Node
	New  *syntax.Node
}

func (e Edit) String() string {
	switch e.Kind {
	case EditInsert:
		return "Insert " + e.New.String()
	case EditDelete:
		return "Delete " + e.Old.String()
	default:
		return e.Kind.String() + " " + e.Old.String() + " -> " + e.New.String()
	}
}

// Script is the ordered list of edits implied by a match.
type Script struct {
	Match *Match
	Edits []Edit

	updated map[*syntax.Node]bool
	moved   map[*syntax.Node]bool
}

// Counts tallies the edits of a script by kind.
type Counts struct {
	Inserts int
	Deletes int
	Updates int
	Moves   int
}

// EditScript derives the edit script of the match. Deletes come first in old
// document order, followed by the inserts, updates and moves of every new node
// in new document order. A matched pair is an Update when its own content
// (ignoring children) differs and a Move when it changed participating parent
// or its rank among the matched siblings of its parent pair changed.
func (m *Match) EditScript() *Script {
	script := &Script{
		Match:   m,
		updated: make(map[*syntax.Node]bool),
		moved:   make(map[*syntax.Node]bool),
	}

	for _, oldNode := range m.oldSide.nodes {
		if !m.oldMatched(oldNode) {
			script.Edits = append(script.Edits, Edit{Kind: EditDelete, Old: oldNode})
		}
	}

	oldRanks := m.siblingRanks(m.oldSide, m.oldToNew, m.newSide)
	newRanks := m.siblingRanks(m.newSide, m.newToOld, m.oldSide)

	for _, newNode := range m.newSide.nodes {
		oldNode, ok := m.newToOld[newNode]
		if !ok {
			script.Edits = append(script.Edits, Edit{Kind: EditInsert, New: newNode})

			continue
		}

		if m.oldSide.tree.LocalFingerprint(oldNode) != m.newSide.tree.LocalFingerprint(newNode) {
			script.Edits = append(script.Edits, Edit{Kind: EditUpdate, Old: oldNode, New: newNode})
			script.updated[newNode] = true
		}

		if m.isMove(oldNode, newNode, oldRanks, newRanks) {
			script.Edits = append(script.Edits, Edit{Kind: EditMove, Old: oldNode, New: newNode})
			script.moved[newNode] = true
		}
	}

	return script
}

func (m *Match) isMove(oldNode, newNode *syntax.Node, oldRanks, newRanks map[*syntax.Node]int) bool {
	if newNode == m.newSide.root {
		return false
	}

	oldParent := m.oldSide.parent[oldNode]
	newParent := m.newSide.parent[newNode]

	if counterpart, ok := m.newToOld[newParent]; !ok || counterpart != oldParent {
		return true
	}

	return oldRanks[oldNode] != newRanks[newNode]
}

// siblingRanks numbers, under every parent, the children that stayed under the
// counterpart of that parent. Children that moved in or out are not ranked.
func (m *Match) siblingRanks(
	own *side, toOther map[*syntax.Node]*syntax.Node, other *side,
) map[*syntax.Node]int {
	ranks := make(map[*syntax.Node]int)

	for _, parent := range own.nodes {
		otherParent, ok := toOther[parent]
		if !ok {
			continue
		}

		rank := 0

		for _, child := range own.children[parent] {
			counterpart, matched := toOther[child]
			if !matched || other.parent[counterpart] != otherParent {
				continue
			}

			ranks[child] = rank
			rank++
		}
	}

	return ranks
}

// IsEmpty reports whether the script has no edits.
func (s *Script) IsEmpty() bool {
	return len(s.Edits) == 0
}

// IsUpdated reports whether the new node carries an Update edit.
func (s *Script) IsUpdated(newNode *syntax.Node) bool {
	return s.updated[newNode]
}

// IsMoved reports whether the new node carries a Move edit.
func (s *Script) IsMoved(newNode *syntax.Node) bool {
	return s.moved[newNode]
}

// SubtreeChanged reports whether any edit touches the subtree rooted at the
// old node or at its new counterpart.
func (s *Script) SubtreeChanged(oldNode *syntax.Node) bool {
	oldTree := s.Match.oldSide.tree
	newTree := s.Match.newSide.tree
	counterpart, paired := s.Match.NewOf(oldNode)

	for _, edit := range s.Edits {
		if edit.Old != nil && (edit.Old == oldNode || oldTree.IsAncestor(oldNode, edit.Old)) {
			return true
		}

		if paired && edit.New != nil && (edit.New == counterpart || newTree.IsAncestor(counterpart, edit.New)) {
			return true
		}
	}

	return false
}

// Counts tallies the edits by kind.
func (s *Script) Counts() Counts {
	var counts Counts

	for _, edit := range s.Edits {
		switch edit.Kind {
		case EditInsert:
			counts.Inserts++
		case EditDelete:
			counts.Deletes++
		case EditUpdate:
			counts.Updates++
		case EditMove:
			counts.Moves++
		}
	}

	return counts
}

// String renders one edit per line. The rendering is stable for equal inputs.
func (s *Script) String() string {
	var buf strings.Builder

	for _, edit := range s.Edits {
		buf.WriteString(edit.String())
		buf.WriteByte('\n')
	}

	return buf.String()
}

// Package treematch computes a structural correspondence between two syntax
// trees and derives the edit script implied by it.
//
// Matching is deterministic: given the same two trees and comparer the
// resulting Match and Script are identical across runs.
package treematch

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

// Sentinel errors for matching.
var (
	ErrBijection    = errors.New("match violates bijection")
	ErrForeignNode  = errors.New("node does not belong to the matched trees")
	ErrRootMismatch = errors.New("match roots are not comparable")
)

// Label identifies which nodes may be paired: only nodes with equal labels are candidates.
type Label struct {
	Kind  syntax.Kind
	Name  string
	Arity int
}

// Comparer decides which nodes take part in a match and how they are labeled.
type Comparer interface {
	// Label returns the label of n; ok=false excludes n and its subtree.
	Label(n *syntax.Node) (label Label, ok bool)
	// Descend reports whether the children of n take part in the match.
	Descend(n *syntax.Node) bool
}

// Pair is one matched old/new node pair.
type Pair struct {
	Old *syntax.Node
	New *syntax.Node
}

// Match is a partial bijection between the participating nodes of an old and a new subtree.
type Match struct {
	oldSide  *side
	newSide  *side
	oldToNew map[*syntax.Node]*syntax.Node
	newToOld map[*syntax.Node]*syntax.Node
}

// OldTree returns the tree the old side belongs to.
func (m *Match) OldTree() *syntax.Tree {
	return m.oldSide.tree
}

// NewTree returns the tree the new side belongs to.
func (m *Match) NewTree() *syntax.Tree {
	return m.newSide.tree
}

// OldRoot returns the root of the matched old subtree.
func (m *Match) OldRoot() *syntax.Node {
	return m.oldSide.root
}

// NewRoot returns the root of the matched new subtree.
func (m *Match) NewRoot() *syntax.Node {
	return m.newSide.root
}

// NewOf returns the new counterpart of an old node.
func (m *Match) NewOf(oldNode *syntax.Node) (*syntax.Node, bool) {
	newNode, ok := m.oldToNew[oldNode]

	return newNode, ok
}

// OldOf returns the old counterpart of a new node.
func (m *Match) OldOf(newNode *syntax.Node) (*syntax.Node, bool) {
	oldNode, ok := m.newToOld[newNode]

	return oldNode, ok
}

// Len returns the number of matched pairs.
func (m *Match) Len() int {
	return len(m.oldToNew)
}

// OldParticipates reports whether an old node takes part in the match.
func (m *Match) OldParticipates(n *syntax.Node) bool {
	return m.oldSide.participates(n)
}

// NewParticipates reports whether a new node takes part in the match.
func (m *Match) NewParticipates(n *syntax.Node) bool {
	return m.newSide.participates(n)
}

// OldNodes returns the participating old nodes in document order.
func (m *Match) OldNodes() []*syntax.Node {
	return m.oldSide.nodes
}

// NewNodes returns the participating new nodes in document order.
func (m *Match) NewNodes() []*syntax.Node {
	return m.newSide.nodes
}

// OldParent returns the participating parent of an old node.
func (m *Match) OldParent(n *syntax.Node) *syntax.Node {
	return m.oldSide.parent[n]
}

// NewParent returns the participating parent of a new node.
func (m *Match) NewParent(n *syntax.Node) *syntax.Node {
	return m.newSide.parent[n]
}

// Pairs returns all matched pairs in new document order.
func (m *Match) Pairs() []Pair {
	pairs := make([]Pair, 0, len(m.newToOld))

	for _, newNode := range m.newSide.nodes {
		if oldNode, ok := m.newToOld[newNode]; ok {
			pairs = append(pairs, Pair{Old: oldNode, New: newNode})
		}
	}

	return pairs
}

// Validate checks the bijection invariant: every old node maps to at most one
// new node and vice versa, and every pair belongs to the matched subtrees.
func (m *Match) Validate() error {
	if len(m.oldToNew) != len(m.newToOld) {
		return fmt.Errorf("%w: %d old pairs, %d new pairs", ErrBijection, len(m.oldToNew), len(m.newToOld))
	}

	for oldNode, newNode := range m.oldToNew {
		back, ok := m.newToOld[newNode]
		if !ok || back != oldNode {
			return fmt.Errorf("%w: %s -> %s is not symmetric", ErrBijection, oldNode, newNode)
		}

		if !m.oldSide.participates(oldNode) || !m.newSide.participates(newNode) {
			return fmt.Errorf("%w: %s -> %s", ErrForeignNode, oldNode, newNode)
		}
	}

	return nil
}

func (m *Match) add(oldNode, newNode *syntax.Node) {
	m.oldToNew[oldNode] = newNode
	m.newToOld[newNode] = oldNode
}

func (m *Match) oldMatched(n *syntax.Node) bool {
	_, ok := m.oldToNew[n]

	return ok
}

func (m *Match) newMatched(n *syntax.Node) bool {
	_, ok := m.newToOld[n]

	return ok
}

// side holds the participating nodes of one subtree, as selected by the comparer.
type side struct {
	tree     *syntax.Tree
	root     *syntax.Node
	nodes    []*syntax.Node
	labels   map[*syntax.Node]Label
	children map[*syntax.Node][]*syntax.Node
	parent   map[*syntax.Node]*syntax.Node
	ordinal  map[*syntax.Node]int
	digests  map[*syntax.Node][]uint64
}

func newSide(tree *syntax.Tree, root *syntax.Node, cmp Comparer) (*side, error) {
	if !tree.Contains(root) {
		return nil, fmt.Errorf("%w: root %s", ErrForeignNode, root)
	}

	rootLabel, ok := cmp.Label(root)
	if !ok {
		return nil, fmt.Errorf("%w: root %s has no label", ErrRootMismatch, root)
	}

	collected := &side{
		tree:     tree,
		root:     root,
		labels:   map[*syntax.Node]Label{root: rootLabel},
		children: make(map[*syntax.Node][]*syntax.Node),
		parent:   make(map[*syntax.Node]*syntax.Node),
		ordinal:  make(map[*syntax.Node]int),
		digests:  make(map[*syntax.Node][]uint64),
	}

	stack := []*syntax.Node{root}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		collected.ordinal[current] = len(collected.nodes)
		collected.nodes = append(collected.nodes, current)

		if !cmp.Descend(current) {
			continue
		}

		var kids []*syntax.Node

		for _, child := range current.Children {
			if child.Kind.IsTrivia() {
				continue
			}

			label, labeled := cmp.Label(child)
			if !labeled {
				continue
			}

			collected.labels[child] = label
			collected.parent[child] = current
			kids = append(kids, child)
		}

		collected.children[current] = kids

		for idx := len(kids) - 1; idx >= 0; idx-- {
			stack = append(stack, kids[idx])
		}
	}

	return collected, nil
}

func (s *side) participates(n *syntax.Node) bool {
	_, ok := s.ordinal[n]

	return ok
}

// descendants returns the participating proper descendants of n in document order.
func (s *side) descendants(n *syntax.Node) []*syntax.Node {
	start := s.ordinal[n]

	var found []*syntax.Node

	for idx := start + 1; idx < len(s.nodes); idx++ {
		candidate := s.nodes[idx]
		if !s.isUnder(candidate, n) {
			break
		}

		found = append(found, candidate)
	}

	return found
}

func (s *side) isUnder(n, ancestor *syntax.Node) bool {
	for current := s.parent[n]; current != nil; current = s.parent[current] {
		if current == ancestor {
			return true
		}
	}

	return false
}

// descendantFingerprints returns the fingerprints of all participating
// descendants of n, cached per node.
func (s *side) descendantFingerprints(n *syntax.Node) []uint64 {
	if cached, ok := s.digests[n]; ok {
		return cached
	}

	descendants := s.descendants(n)
	fingerprints := make([]uint64, 0, len(descendants))

	for _, descendant := range descendants {
		fingerprints = append(fingerprints, s.tree.Fingerprint(descendant))
	}

	s.digests[n] = fingerprints

	return fingerprints
}

package syntax

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Sentinel errors for tree construction.
var (
	ErrNilRoot       = errors.New("tree root is nil")
	ErrMalformedTree = errors.New("malformed syntax tree")
	ErrUnknownKind   = errors.New("unknown node kind")
)

// Tree is an immutable index over one syntax tree: parent links, document
// order, subtree sizes and content fingerprints. It is built once per tree
// and shared read-only by every stage of an analysis.
type Tree struct {
	root        *Node
	nodes       []*Node
	parent      map[*Node]*Node
	ordinal     map[*Node]int
	size        map[*Node]int
	fingerprint map[*Node]uint64
	local       map[*Node]uint64
}

// NewTree indexes the tree rooted at root. A node reachable twice, or a nil
// child, is reported as ErrMalformedTree.
func NewTree(root *Node) (*Tree, error) {
	if root == nil {
		return nil, ErrNilRoot
	}

	tree := &Tree{
		root:        root,
		parent:      make(map[*Node]*Node),
		ordinal:     make(map[*Node]int),
		size:        make(map[*Node]int),
		fingerprint: make(map[*Node]uint64),
		local:       make(map[*Node]uint64),
	}

	indexErr := tree.indexNodes()
	if indexErr != nil {
		return nil, indexErr
	}

	root.VisitPostOrder(tree.computeFingerprint)

	return tree, nil
}

// MustTree is NewTree for trees known to be well formed (fixtures, tests).
func MustTree(root *Node) *Tree {
	tree, err := NewTree(root)
	if err != nil {
		panic(err)
	}

	return tree
}

func (tree *Tree) indexNodes() error {
	stack := []*Node{tree.root}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := tree.ordinal[current]; seen {
			return fmt.Errorf("%w: node %s reachable twice", ErrMalformedTree, current)
		}

		tree.ordinal[current] = len(tree.nodes)
		tree.nodes = append(tree.nodes, current)

		for idx := len(current.Children) - 1; idx >= 0; idx-- {
			child := current.Children[idx]
			if child == nil {
				return fmt.Errorf("%w: nil child %d of %s", ErrMalformedTree, idx, current)
			}

			tree.parent[child] = current
			stack = append(stack, child)
		}
	}

	return nil
}

const fingerprintWordSize = 8

func (tree *Tree) computeFingerprint(current *Node) {
	if current.Kind.IsTrivia() {
		return
	}

	localHash := localFingerprint(current)
	tree.local[current] = localHash

	digest := xxhash.New()

	var word [fingerprintWordSize]byte

	binary.LittleEndian.PutUint64(word[:], localHash)
	_, _ = digest.Write(word[:])

	size := 1

	for _, child := range current.Children {
		if child.Kind.IsTrivia() {
			continue
		}

		binary.LittleEndian.PutUint64(word[:], tree.fingerprint[child])
		_, _ = digest.Write(word[:])

		size += tree.size[child]
	}

	tree.fingerprint[current] = digest.Sum64()
	tree.size[current] = size
}

func localFingerprint(current *Node) uint64 {
	digest := xxhash.New()

	_, _ = digest.WriteString(current.Kind.String())
	_, _ = digest.WriteString("\x00")
	_, _ = digest.WriteString(current.Name)
	_, _ = digest.WriteString("\x00")
	_, _ = digest.WriteString(strconv.Itoa(current.Arity))

	for _, modifier := range current.Modifiers {
		_, _ = digest.WriteString("\x00")
		_, _ = digest.WriteString(modifier)
	}

	_, _ = digest.WriteString("\x01")
	_, _ = digest.WriteString(NormalizeToken(current.Token))

	return digest.Sum64()
}

// Root returns the tree root.
func (tree *Tree) Root() *Node {
	return tree.root
}

// Nodes returns every node in document (pre-)order. The slice must not be modified.
func (tree *Tree) Nodes() []*Node {
	return tree.nodes
}

// Contains reports whether n belongs to this tree.
func (tree *Tree) Contains(n *Node) bool {
	_, ok := tree.ordinal[n]

	return ok
}

// Parent returns the parent of n, or nil for the root and foreign nodes.
func (tree *Tree) Parent(n *Node) *Node {
	return tree.parent[n]
}

// Ordinal returns the document-order position of n.
func (tree *Tree) Ordinal(n *Node) int {
	ordinal, ok := tree.ordinal[n]
	if !ok {
		return -1
	}

	return ordinal
}

// Size returns the number of non-trivia nodes in the subtree rooted at n.
func (tree *Tree) Size(n *Node) int {
	return tree.size[n]
}

// Fingerprint returns the content hash of the subtree rooted at n (trivia excluded).
func (tree *Tree) Fingerprint(n *Node) uint64 {
	return tree.fingerprint[n]
}

// LocalFingerprint returns the content hash of n alone, ignoring its children.
func (tree *Tree) LocalFingerprint(n *Node) uint64 {
	return tree.local[n]
}

// Ancestors returns the ancestors of n, nearest first.
func (tree *Tree) Ancestors(n *Node) []*Node {
	var ancestors []*Node

	for current := tree.parent[n]; current != nil; current = tree.parent[current] {
		ancestors = append(ancestors, current)
	}

	return ancestors
}

// IsAncestor reports whether ancestor is a proper ancestor of n.
func (tree *Tree) IsAncestor(ancestor, n *Node) bool {
	for current := tree.parent[n]; current != nil; current = tree.parent[current] {
		if current == ancestor {
			return true
		}
	}

	return false
}

// Innermost returns the deepest node whose span contains span and that satisfies
// accept, searching the subtree rooted at from. It returns nil when nothing matches.
func (tree *Tree) Innermost(from *Node, span Span, accept func(*Node) bool) *Node {
	var best *Node

	current := from

	for current != nil {
		if !current.Span.Contains(span) {
			break
		}

		if accept(current) {
			best = current
		}

		current = childContaining(current, span)
	}

	return best
}

func childContaining(parent *Node, span Span) *Node {
	for _, child := range parent.Children {
		if child.Kind.IsTrivia() {
			continue
		}

		if child.Span.Contains(span) {
			return child
		}
	}

	return nil
}

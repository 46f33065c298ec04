// Package syntax provides the immutable syntax node model consumed by the
// live-edit analysis engine, together with a per-tree index of parents,
// document order and content fingerprints.
package syntax

import (
	"slices"
	"strconv"
	"strings"
)

// Node is an immutable syntax node.
//
// Fields:
//
//	Kind: node kind from the closed Kind enumeration.
//	Name: declared name for identity-bearing nodes (declarations, locals, parameters).
//	Arity: generic arity for declarations.
//	Modifiers: defining modifiers (e.g. "static", "async"), kept sorted by builders.
//	Token: literal or statement text owned by this node, excluding children.
//	Span: source range of the whole node.
//	Children: child nodes (ordered).
//
// Trees handed to the engine are never mutated; all analysis state lives in
// side tables keyed by node pointer.
type Node struct {
	Kind      Kind     `json:"kind"                yaml:"kind"`
	Name      string   `json:"name,omitempty"      yaml:"name,omitempty"`
	Arity     int      `json:"arity,omitempty"     yaml:"arity,omitempty"`
	Modifiers []string `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	Token     string   `json:"token,omitempty"     yaml:"token,omitempty"`
	Span      Span     `json:"span"                yaml:"span"`
	Children  []*Node  `json:"children,omitempty"  yaml:"children,omitempty"`
}

// Builder provides a fluent interface for building Node instances.
type Builder struct {
	node *Node
}

// NewBuilder creates a new Builder for a node of the given kind.
func NewBuilder(kind Kind) *Builder {
	return &Builder{node: &Node{Kind: kind}}
}

// WithName sets the declared name.
func (builder *Builder) WithName(name string) *Builder {
	builder.node.Name = name

	return builder
}

// WithArity sets the generic arity.
func (builder *Builder) WithArity(arity int) *Builder {
	builder.node.Arity = arity

	return builder
}

// WithModifiers sets the defining modifiers; they are stored sorted and de-duplicated.
func (builder *Builder) WithModifiers(modifiers ...string) *Builder {
	mods := slices.Clone(modifiers)
	slices.Sort(mods)
	builder.node.Modifiers = slices.Compact(mods)

	return builder
}

// WithToken sets the node's own text.
func (builder *Builder) WithToken(token string) *Builder {
	builder.node.Token = token

	return builder
}

// WithSpan sets the source range.
func (builder *Builder) WithSpan(span Span) *Builder {
	builder.node.Span = span

	return builder
}

// WithChildren appends child nodes.
func (builder *Builder) WithChildren(children ...*Node) *Builder {
	builder.node.Children = append(builder.node.Children, children...)

	return builder
}

// Build returns the constructed node.
func (builder *Builder) Build() *Node {
	return builder.node
}

// HasModifier reports whether the node carries the given modifier.
func (targetNode *Node) HasModifier(modifier string) bool {
	return slices.Contains(targetNode.Modifiers, modifier)
}

// VisitPreOrder calls fn for every node in document order.
func (targetNode *Node) VisitPreOrder(fn func(*Node)) {
	if targetNode == nil {
		return
	}

	stack := []*Node{targetNode}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		fn(current)

		for idx := len(current.Children) - 1; idx >= 0; idx-- {
			stack = append(stack, current.Children[idx])
		}
	}
}

type postOrderFrame struct {
	node     *Node
	childIdx int
}

// VisitPostOrder calls fn for every node after all of its children.
func (targetNode *Node) VisitPostOrder(fn func(*Node)) {
	if targetNode == nil {
		return
	}

	stack := []postOrderFrame{{node: targetNode}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]

		if top.childIdx < len(top.node.Children) {
			child := top.node.Children[top.childIdx]
			top.childIdx++

			stack = append(stack, postOrderFrame{node: child})

			continue
		}

		fn(top.node)

		stack = stack[:len(stack)-1]
	}
}

// Find returns all nodes in document order that satisfy predicate.
func (targetNode *Node) Find(predicate func(*Node) bool) []*Node {
	var found []*Node

	targetNode.VisitPreOrder(func(candidate *Node) {
		if predicate(candidate) {
			found = append(found, candidate)
		}
	})

	return found
}

// Text returns the normalized text of the subtree: own tokens of every non-trivia
// node in document order, whitespace collapsed.
func (targetNode *Node) Text() string {
	var buf strings.Builder

	targetNode.VisitPreOrder(func(current *Node) {
		if current.Kind.IsTrivia() || current.Token == "" {
			return
		}

		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}

		buf.WriteString(NormalizeToken(current.Token))
	})

	return buf.String()
}

// NormalizeToken collapses runs of whitespace so layout-only edits compare equal.
func NormalizeToken(token string) string {
	return strings.Join(strings.Fields(token), " ")
}

func (targetNode *Node) String() string {
	if targetNode == nil {
		return "<nil>"
	}

	var buf strings.Builder

	buf.WriteString(targetNode.Kind.String())

	if targetNode.Name != "" {
		buf.WriteByte(':')
		buf.WriteString(targetNode.Name)

		if targetNode.Arity > 0 {
			buf.WriteByte('/')
			buf.WriteString(strconv.Itoa(targetNode.Arity))
		}
	}

	buf.WriteByte('@')
	buf.WriteString(targetNode.Span.String())

	return buf.String()
}

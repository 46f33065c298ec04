package frontend

import (
	"fmt"
	"slices"
	"strings"

	"fortio.org/safecast"
	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

// converter holds the state shared by the language specific conversions.
type converter struct {
	src []byte
	err error
}

func toInt[T safecast.Integer](c *converter, v T) int {
	converted, err := safecast.Conv[int](v)
	if err != nil && c.err == nil {
		c.err = fmt.Errorf("position overflow: %w", err)
	}

	return converted
}

func (c *converter) span(n sitter.Node) syntax.Span {
	start, end := n.StartPoint(), n.EndPoint()

	return syntax.Span{
		StartOffset: toInt(c, n.StartByte()),
		EndOffset:   toInt(c, n.EndByte()),
		StartLine:   toInt(c, start.Row) + 1,
		StartCol:    toInt(c, start.Column) + 1,
		EndLine:     toInt(c, end.Row) + 1,
		EndCol:      toInt(c, end.Column) + 1,
	}
}

func (c *converter) text(n sitter.Node) string {
	if n.IsNull() {
		return ""
	}

	start, end := toInt(c, n.StartByte()), toInt(c, n.EndByte())
	if start > end || end > len(c.src) {
		return ""
	}

	return string(c.src[start:end])
}

// header is the text of n before body, without the trailing ':' or '{'.
func (c *converter) header(n, body sitter.Node) string {
	if body.IsNull() {
		return syntax.NormalizeToken(c.text(n))
	}

	start, end := toInt(c, n.StartByte()), toInt(c, body.StartByte())
	if start > end || end > len(c.src) {
		return ""
	}

	text := strings.TrimSpace(string(c.src[start:end]))
	text = strings.TrimSuffix(strings.TrimSuffix(text, ":"), "{")

	return syntax.NormalizeToken(text)
}

func (c *converter) field(n sitter.Node, name string) string {
	return syntax.NormalizeToken(c.text(n.ChildByFieldName(name)))
}

// arity counts the named children of the given field, e.g. type parameters.
func (c *converter) arity(n sitter.Node, field string) int {
	params := n.ChildByFieldName(field)
	if params.IsNull() {
		return 0
	}

	return toInt(c, params.NamedChildCount())
}

func namedChildren(n sitter.Node) []sitter.Node {
	children := make([]sitter.Node, 0, n.NamedChildCount())

	for idx := range n.NamedChildCount() {
		children = append(children, n.NamedChild(idx))
	}

	return children
}

func sameNode(a, b sitter.Node) bool {
	return !a.IsNull() && !b.IsNull() && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() &&
		a.Type() == b.Type()
}

func (c *converter) node(kind syntax.Kind, n sitter.Node) *syntax.Builder {
	return syntax.NewBuilder(kind).WithSpan(c.span(n))
}

func (c *converter) comment(n sitter.Node) *syntax.Node {
	return c.node(syntax.KindComment, n).WithToken(syntax.NormalizeToken(c.text(n))).Build()
}

// expressionKinds names the tree-sitter node types that become expression nodes.
type expressionKinds struct {
	call   string
	await  string
	lambda []string
	// stop lists node types whose subtrees are converted elsewhere.
	stop []string
}

// expressions collects the calls, awaits and lambdas under n in document
// order. Lambdas are converted by lambda; their bodies are not searched here.
func (c *converter) expressions(n sitter.Node, kinds expressionKinds, lambda func(sitter.Node) *syntax.Node) []*syntax.Node {
	var found []*syntax.Node

	for _, child := range namedChildren(n) {
		found = append(found, c.expression(child, kinds, lambda)...)
	}

	return found
}

func (c *converter) expression(n sitter.Node, kinds expressionKinds, lambda func(sitter.Node) *syntax.Node) []*syntax.Node {
	typ := n.Type()

	switch {
	case slices.Contains(kinds.stop, typ):
		return nil
	case slices.Contains(kinds.lambda, typ):
		return []*syntax.Node{lambda(n)}
	case typ == kinds.call:
		return []*syntax.Node{c.node(syntax.KindCall, n).
			WithName(calleeName(c, n.ChildByFieldName("function"))).
			WithToken(syntax.NormalizeToken(c.text(n))).
			WithChildren(c.expressions(n, kinds, lambda)...).
			Build()}
	case typ == kinds.await && kinds.await != "":
		return []*syntax.Node{c.node(syntax.KindAwait, n).
			WithToken(syntax.NormalizeToken(c.text(n))).
			WithChildren(c.expressions(n, kinds, lambda)...).
			Build()}
	default:
		return c.expressions(n, kinds, lambda)
	}
}

// calleeName is the last identifier of a call's function expression.
func calleeName(c *converter, fn sitter.Node) string {
	if fn.IsNull() {
		return ""
	}

	for _, name := range []string{"attribute", "field", "name"} {
		if child := fn.ChildByFieldName(name); !child.IsNull() {
			return c.text(child)
		}
	}

	text := c.text(fn)
	if idx := strings.LastIndexAny(text, ".)]"); idx >= 0 {
		text = text[idx+1:]
	}

	return strings.TrimSpace(text)
}

// declaredToken renders a typed declaration in type-first form, which is
// how declared types are read back from tokens.
func declaredToken(typ, name, rest string) string {
	return syntax.NormalizeToken(strings.Join([]string{typ, name, rest}, " "))
}

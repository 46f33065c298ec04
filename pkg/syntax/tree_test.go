package syntax_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

func leaf(kind syntax.Kind, token string, start, end int) *syntax.Node {
	return syntax.NewBuilder(kind).
		WithToken(token).
		WithSpan(syntax.Span{StartOffset: start, EndOffset: end, StartLine: 1, StartCol: start + 1, EndLine: 1, EndCol: end + 1}).
		Build()
}

func TestNewTree_IndexesParentsAndOrder(t *testing.T) {
	t.Parallel()

	first := leaf(syntax.KindExpressionStatement, "a();", 1, 5)
	second := leaf(syntax.KindExpressionStatement, "b();", 6, 10)
	block := syntax.NewBuilder(syntax.KindBlock).
		WithSpan(syntax.Span{StartOffset: 0, EndOffset: 11}).
		WithChildren(first, second).
		Build()

	tree, err := syntax.NewTree(block)
	require.NoError(t, err)

	assert.Equal(t, []*syntax.Node{block, first, second}, tree.Nodes())
	assert.Same(t, block, tree.Parent(second))
	assert.Nil(t, tree.Parent(block))
	assert.Equal(t, 2, tree.Ordinal(second))
	assert.Equal(t, -1, tree.Ordinal(leaf(syntax.KindBlock, "", 0, 0)))
	assert.Equal(t, 3, tree.Size(block))
	assert.True(t, tree.IsAncestor(block, first))
	assert.False(t, tree.IsAncestor(first, block))
	assert.Equal(t, []*syntax.Node{block}, tree.Ancestors(first))
}

func TestNewTree_RejectsMalformedTrees(t *testing.T) {
	t.Parallel()

	_, err := syntax.NewTree(nil)
	require.ErrorIs(t, err, syntax.ErrNilRoot)

	shared := leaf(syntax.KindExpressionStatement, "a();", 0, 4)
	twice := syntax.NewBuilder(syntax.KindBlock).WithChildren(shared, shared).Build()

	_, err = syntax.NewTree(twice)
	require.ErrorIs(t, err, syntax.ErrMalformedTree)

	withNil := syntax.NewBuilder(syntax.KindBlock).WithChildren(nil).Build()

	_, err = syntax.NewTree(withNil)
	require.ErrorIs(t, err, syntax.ErrMalformedTree)
}

func TestFingerprint_IgnoresTriviaAndLayout(t *testing.T) {
	t.Parallel()

	plain := syntax.NewBuilder(syntax.KindBlock).
		WithChildren(leaf(syntax.KindExpressionStatement, "a( 1 );", 0, 7)).
		Build()
	decorated := syntax.NewBuilder(syntax.KindBlock).
		WithChildren(
			leaf(syntax.KindComment, "// hello", 0, 8),
			leaf(syntax.KindExpressionStatement, "a(  1\n );", 9, 18),
		).
		Build()
	changed := syntax.NewBuilder(syntax.KindBlock).
		WithChildren(leaf(syntax.KindExpressionStatement, "a( 2 );", 0, 7)).
		Build()

	plainTree := syntax.MustTree(plain)
	decoratedTree := syntax.MustTree(decorated)
	changedTree := syntax.MustTree(changed)

	assert.Equal(t, plainTree.Fingerprint(plain), decoratedTree.Fingerprint(decorated))
	assert.NotEqual(t, plainTree.Fingerprint(plain), changedTree.Fingerprint(changed))
	assert.Equal(t, plainTree.LocalFingerprint(plain), changedTree.LocalFingerprint(changed))
	assert.Equal(t, 2, decoratedTree.Size(decorated))
}

func TestInnermost_ReturnsDeepestAcceptedNode(t *testing.T) {
	t.Parallel()

	inner := leaf(syntax.KindExpressionStatement, "a();", 10, 14)
	loop := syntax.NewBuilder(syntax.KindWhile).
		WithSpan(syntax.Span{StartOffset: 5, EndOffset: 20}).
		WithChildren(inner).
		Build()
	body := syntax.NewBuilder(syntax.KindBlock).
		WithSpan(syntax.Span{StartOffset: 0, EndOffset: 30}).
		WithChildren(loop).
		Build()

	tree := syntax.MustTree(body)

	found := tree.Innermost(body, syntax.Span{StartOffset: 11, EndOffset: 12}, func(n *syntax.Node) bool {
		return n.Kind.IsStatement()
	})
	assert.Same(t, inner, found)

	found = tree.Innermost(body, syntax.Span{StartOffset: 15, EndOffset: 16}, func(n *syntax.Node) bool {
		return n.Kind.IsStatement()
	})
	assert.Same(t, loop, found)

	assert.Nil(t, tree.Innermost(body, syntax.Span{StartOffset: 25, EndOffset: 40}, func(*syntax.Node) bool {
		return true
	}))
}

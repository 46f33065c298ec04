package activestmt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/liveedit/pkg/activestmt"
	"github.com/Sumatoshi-tech/liveedit/pkg/bodymatch"
	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax/sexpr"
)

type fixture struct {
	oldTree *syntax.Tree
	newTree *syntax.Tree
	input   activestmt.Input
}

func newFixture(t *testing.T, oldSrc, newSrc string) *fixture {
	t.Helper()

	oldTree := syntax.MustTree(sexpr.MustParse(oldSrc))
	newTree := syntax.MustTree(sexpr.MustParse(newSrc))

	script, err := bodymatch.Match(oldTree, oldTree.Root(), newTree, newTree.Root())
	require.NoError(t, err)

	return &fixture{
		oldTree: oldTree,
		newTree: newTree,
		input:   activestmt.Input{Document: "a.cs", Script: script},
	}
}

func spanOf(t *testing.T, tree *syntax.Tree, token string) syntax.Span {
	t.Helper()

	found := tree.Root().Find(func(n *syntax.Node) bool { return n.Token == token })
	require.Len(t, found, 1, token)

	return found[0].Span
}

func (f *fixture) track(t *testing.T, stmts ...activestmt.Statement) ([]activestmt.Remapped, *rudeedit.Bag) {
	t.Helper()

	f.input.Statements = stmts
	bag := rudeedit.NewBag(0)

	remapped, err := activestmt.Track(f.input, bag)
	require.NoError(t, err)
	require.Len(t, remapped, len(stmts))

	return remapped, bag
}

func TestTrack_LoopConditionEditKeepsLeafInPlace(t *testing.T) {
	t.Parallel()

	fx := newFixture(t,
		`(Method:f (Block (While "i < 10" (Block (ExpressionStatement "step(i);")))))`,
		`(Method:f (Block (While "i < 20" (Block (ExpressionStatement "step(i);")))))`)

	span := spanOf(t, fx.oldTree, "step(i);")

	remapped, bag := fx.track(t, activestmt.Statement{Ordinal: 0, Document: "a.cs", Span: span, Flags: activestmt.Leaf})

	assert.Zero(t, bag.Len())
	assert.Equal(t, activestmt.Exact, remapped[0].Status)
	assert.Equal(t, span, remapped[0].Span)
}

func TestTrack_DeletedLeafBlocks(t *testing.T) {
	t.Parallel()

	fx := newFixture(t,
		`(Method:f (Block (ExpressionStatement "a();") (If "x" (Block (ExpressionStatement "b();"))) (Return "1")))`,
		`(Method:f (Block (ExpressionStatement "a();") (Return "1")))`)

	remapped, bag := fx.track(t, activestmt.Statement{
		Ordinal: 3, Document: "a.cs", Span: spanOf(t, fx.oldTree, "b();"), Flags: activestmt.Leaf,
	})

	require.Equal(t, 1, bag.Len())
	assert.Equal(t, rudeedit.KindActiveStatementDeleted, bag.Items()[0].Kind)
	assert.Equal(t, rudeedit.Blocking, bag.Items()[0].Severity)
	assert.Equal(t, activestmt.Unresolved, remapped[0].Status)
	assert.Equal(t, fx.newTree.Root().Children[0].Span, remapped[0].Span)
}

func TestTrack_DeletedNonLeaf(t *testing.T) {
	t.Parallel()

	oldSrc := `(Method:f (Block (ExpressionStatement "a();") (ExpressionStatement "callee();")))`
	newSrc := `(Method:f (Block (ExpressionStatement "a();")))`

	lenient := newFixture(t, oldSrc, newSrc)
	stmt := activestmt.Statement{Span: spanOf(t, lenient.oldTree, "callee();"), Flags: activestmt.NonLeaf}

	_, bag := lenient.track(t, stmt)
	require.Equal(t, 1, bag.Len())
	assert.Equal(t, rudeedit.Informational, bag.Items()[0].Severity)

	strict := newFixture(t, oldSrc, newSrc)
	strict.input.StrictNonLeaf = true

	_, bag = strict.track(t, stmt)
	require.Equal(t, 1, bag.Len())
	assert.Equal(t, rudeedit.Blocking, bag.Items()[0].Severity)
}

func TestTrack_UpdatedStatement(t *testing.T) {
	t.Parallel()

	fx := newFixture(t,
		`(Method:f (Block (ExpressionStatement "work(1);") (Return "1")))`,
		`(Method:f (Block (ExpressionStatement "work(2);") (Return "1")))`)

	span := spanOf(t, fx.oldTree, "work(1);")

	remapped, bag := fx.track(t, activestmt.Statement{Span: span, Flags: activestmt.Leaf})
	require.Equal(t, 1, bag.Len())
	assert.Equal(t, rudeedit.KindActiveStatementUpdated, bag.Items()[0].Kind)
	assert.Equal(t, activestmt.Updated, remapped[0].Status)

	remapped, bag = fx.track(t, activestmt.Statement{Span: span, Flags: activestmt.NonLeaf})
	assert.Zero(t, bag.Len())
	assert.Equal(t, spanOf(t, fx.newTree, "work(2);"), remapped[0].Span)
}

func TestTrack_ShiftedStatementFollowsNewPosition(t *testing.T) {
	t.Parallel()

	fx := newFixture(t,
		`(Method:f (Block (ExpressionStatement "work();")))`,
		`(Method:f (Block (ExpressionStatement "setup();") (ExpressionStatement "work();")))`)

	remapped, bag := fx.track(t, activestmt.Statement{Span: spanOf(t, fx.oldTree, "work();"), Flags: activestmt.Leaf})

	assert.Zero(t, bag.Len())
	assert.Equal(t, spanOf(t, fx.newTree, "work();"), remapped[0].Span)
	assert.Equal(t, activestmt.Exact, remapped[0].Status)
}

func TestTrack_ExceptionRegions(t *testing.T) {
	t.Parallel()

	oldSrc := `
(Method:f (Block
  (Try "try"
    (Block (ExpressionStatement "work();"))
    (Catch "catch" (Block (ExpressionStatement "log();"))))))`

	kept := newFixture(t, oldSrc, oldSrc)
	trySpan := kept.oldTree.Root().Children[0].Children[0].Span
	stmt := activestmt.Statement{
		Span:             spanOf(t, kept.oldTree, "work();"),
		Flags:            activestmt.Leaf,
		ExceptionRegions: []syntax.Span{trySpan},
	}

	remapped, bag := kept.track(t, stmt)
	assert.Zero(t, bag.Len())
	assert.Equal(t, []syntax.Span{trySpan}, remapped[0].ExceptionRegions)

	removed := newFixture(t, oldSrc, `(Method:f (Block (ExpressionStatement "work();")))`)

	remapped, bag = removed.track(t, stmt)
	assert.Contains(t, kinds(bag), rudeedit.KindExceptionRegionDeleted)
	assert.Empty(t, remapped[0].ExceptionRegions)
}

func TestTrack_OutsideMemberIsAnError(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, `(Method:f (Block))`, `(Method:f (Block))`)
	fx.input.Statements = []activestmt.Statement{{Span: syntax.Span{StartOffset: 500, EndOffset: 510}}}

	_, err := activestmt.Track(fx.input, rudeedit.NewBag(0))
	require.ErrorIs(t, err, activestmt.ErrOutsideMember)
}

func TestUnchanged_FollowsLayoutOnlyEdits(t *testing.T) {
	t.Parallel()

	oldTree := syntax.MustTree(sexpr.MustParse(`(Method:f (Block (ExpressionStatement "a();") (Return "1")))`))
	newTree := syntax.MustTree(sexpr.MustParse("\n\n(Method:f\n  (Block\n    (Comment \"// note\")\n    (ExpressionStatement \"a();\")\n    (Return \"1\")))"))

	stmt := activestmt.Statement{Ordinal: 1, Span: spanOf(t, oldTree, "1"), Flags: activestmt.Leaf}

	remapped := activestmt.Unchanged(oldTree, oldTree.Root(), newTree.Root(), []activestmt.Statement{stmt})

	require.Len(t, remapped, 1)
	assert.Equal(t, spanOf(t, newTree, "1"), remapped[0].Span)
	assert.Equal(t, activestmt.Exact, remapped[0].Status)

	same := activestmt.Unchanged(oldTree, oldTree.Root(), oldTree.Root(), []activestmt.Statement{stmt})
	assert.Equal(t, stmt.Span, same[0].Span)
}

func TestOrphaned(t *testing.T) {
	t.Parallel()

	bag := rudeedit.NewBag(0)
	fallback := syntax.Span{StartOffset: 1, EndOffset: 2}

	remapped := activestmt.Orphaned(activestmt.Input{
		Document:   "a.cs",
		Statements: []activestmt.Statement{{Flags: activestmt.Leaf}, {Flags: activestmt.NonLeaf}},
	}, "f", fallback, bag)

	require.Len(t, remapped, 2)
	assert.Equal(t, activestmt.Unresolved, remapped[1].Status)
	assert.Equal(t, fallback, remapped[0].Span)
	assert.Equal(t, rudeedit.Blocking, bag.Items()[0].Severity)
	assert.Equal(t, rudeedit.Informational, bag.Items()[1].Severity)
}

func TestFlags_Text(t *testing.T) {
	t.Parallel()

	var flags activestmt.Flags

	require.NoError(t, flags.UnmarshalText([]byte("non-leaf")))
	assert.Equal(t, activestmt.NonLeaf, flags)
	require.ErrorIs(t, flags.UnmarshalText([]byte("middle")), activestmt.ErrUnknownFlags)
}

func kinds(bag *rudeedit.Bag) []rudeedit.Kind {
	var found []rudeedit.Kind

	for _, d := range bag.Items() {
		found = append(found, d.Kind)
	}

	return found
}

func TestAtLine(t *testing.T) {
	t.Parallel()

	tree := syntax.MustTree(sexpr.MustParse(`(Method:run
  (ParameterList)
  (Block
    (If "x"
      (Block (ExpressionStatement "a();")))
    (ExpressionStatement "b();")))`))

	span, ok := activestmt.AtLine(tree, 4)
	require.True(t, ok)
	assert.Equal(t, 4, span.StartLine)
	assert.Equal(t, 5, span.EndLine)

	span, ok = activestmt.AtLine(tree, 6)
	require.True(t, ok)
	assert.Equal(t, spanOf(t, tree, "b();"), span)

	_, ok = activestmt.AtLine(tree, 3)
	assert.False(t, ok)
}

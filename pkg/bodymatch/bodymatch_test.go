package bodymatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/liveedit/pkg/bodymatch"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax/sexpr"
	"github.com/Sumatoshi-tech/liveedit/pkg/treematch"
)

func TestCache_SharesOneScriptPerMember(t *testing.T) {
	t.Parallel()

	oldTree := syntax.MustTree(sexpr.MustParse(`(Method:f (Block (ExpressionStatement "a();")))`))
	newTree := syntax.MustTree(sexpr.MustParse(`(Method:f (Block (ExpressionStatement "a(1);")))`))

	cache := bodymatch.NewCache(oldTree, newTree)

	first, err := cache.Script(oldTree.Root(), newTree.Root())
	require.NoError(t, err)

	second, err := cache.Script(oldTree.Root(), newTree.Root())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Computed())
	assert.Equal(t, 1, first.Counts().Updates)
}

func TestMatch_LocalsPairByName(t *testing.T) {
	t.Parallel()

	oldTree := syntax.MustTree(sexpr.MustParse(`
(Method:f (Block
  (LocalDeclaration:a "var a = compute(1, 2, 3)")
  (LocalDeclaration:b "var b = 0")))`))
	newTree := syntax.MustTree(sexpr.MustParse(`
(Method:f (Block
  (LocalDeclaration:a "var a = other()")
  (LocalDeclaration:b "var b = compute(1, 2, 3)")))`))

	script, err := bodymatch.Match(oldTree, oldTree.Root(), newTree, newTree.Root())
	require.NoError(t, err)

	for _, edit := range script.Edits {
		require.Equal(t, treematch.EditUpdate, edit.Kind, script.String())
		assert.Equal(t, edit.Old.Name, edit.New.Name)
	}

	assert.Equal(t, 2, script.Counts().Updates)
}

func TestMatch_CommentsDoNotParticipate(t *testing.T) {
	t.Parallel()

	oldTree := syntax.MustTree(sexpr.MustParse(`(Method:f (Block (Return "x")))`))
	newTree := syntax.MustTree(sexpr.MustParse(`(Method:f (Comment "// doc") (Block (Comment "// why") (Return "x")))`))

	script, err := bodymatch.Match(oldTree, oldTree.Root(), newTree, newTree.Root())
	require.NoError(t, err)

	assert.True(t, script.IsEmpty(), script.String())
}

package declmatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/liveedit/pkg/declmatch"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax/sexpr"
)

func match(t *testing.T, oldSrc, newSrc string) *declmatch.Result {
	t.Helper()

	result, err := declmatch.Match(
		syntax.MustTree(sexpr.MustParse(oldSrc)),
		syntax.MustTree(sexpr.MustParse(newSrc)),
	)
	require.NoError(t, err)

	return result
}

const unit = `
(CompilationUnit
  (Namespace:App
    (Type:C "class C"
      (Field:count "int count")
      (Method:f
        (ParameterList (Parameter:x "int x"))
        (Block (Return "x + 1")))
      (Method:g
        (ParameterList)
        (Block (ExpressionStatement "f(1);"))))))`

func TestMatch_UntouchedDocumentTakesFastPath(t *testing.T) {
	t.Parallel()

	result := match(t, unit, unit)

	assert.True(t, result.IsEmpty())
	assert.Len(t, result.Members(), 3)
	assert.Empty(t, result.Changed())

	for _, pair := range result.Pairs {
		assert.True(t, pair.Unchanged, pair.New.String())
	}
}

func TestMatch_SignatureChangeKeepsPairing(t *testing.T) {
	t.Parallel()

	edited := `
(CompilationUnit
  (Namespace:App
    (Type:C "class C"
      (Field:count "int count")
      (Method:f
        (ParameterList (Parameter:x "int x") (Parameter:y "int y"))
        (Block (Return "x + 1")))
      (Method:g
        (ParameterList)
        (Block (ExpressionStatement "f(1);"))))))`

	result := match(t, unit, edited)

	changed := result.Changed()
	require.Len(t, changed, 1)
	assert.Equal(t, "f", changed[0].New.Name)
	assert.Same(t, changed[0].Old, mustFind(t, result.Match.OldRoot(), "f"))
	assert.Empty(t, result.Inserted)
	assert.Empty(t, result.Deleted)
}

func TestMatch_InsertedAndDeletedMembers(t *testing.T) {
	t.Parallel()

	edited := `
(CompilationUnit
  (Namespace:App
    (Type:C "class C"
      (Field:count "int count")
      (Method:f
        (ParameterList (Parameter:x "int x"))
        (Block (Return "x + 1")))
      (Method:h
        (ParameterList)
        (Block)))
    (Type:D "class D"
      (Method:run (ParameterList) (Block)))))`

	result := match(t, unit, edited)

	require.Len(t, result.Deleted, 1)
	assert.Equal(t, "g", result.Deleted[0].Name)

	require.Len(t, result.Inserted, 2)
	assert.Equal(t, "h", result.Inserted[0].Name)
	assert.Equal(t, "D", result.Inserted[1].Name)
}

func TestMatch_ReorderedMembersAreMoved(t *testing.T) {
	t.Parallel()

	reordered := `
(CompilationUnit
  (Namespace:App
    (Type:C "class C"
      (Field:count "int count")
      (Method:g
        (ParameterList)
        (Block (ExpressionStatement "f(1);")))
      (Method:f
        (ParameterList (Parameter:x "int x"))
        (Block (Return "x + 1"))))))`

	result := match(t, unit, reordered)

	assert.Empty(t, result.Changed())

	moved := 0

	for _, pair := range result.Members() {
		if pair.Moved {
			moved++
		}
	}

	assert.Equal(t, 2, moved)
}

func TestPair_ModifiersChanged(t *testing.T) {
	t.Parallel()

	result := match(t,
		`(CompilationUnit (Method:f {public} (Block)))`,
		`(CompilationUnit (Method:f {public static} (Block)))`)

	members := result.Members()
	require.Len(t, members, 1)
	assert.True(t, members[0].ModifiersChanged())
	assert.False(t, members[0].Unchanged)
}

func mustFind(t *testing.T, root *syntax.Node, name string) *syntax.Node {
	t.Helper()

	found := root.Find(func(n *syntax.Node) bool { return n.Kind == syntax.KindMethod && n.Name == name })
	require.Len(t, found, 1)

	return found[0]
}

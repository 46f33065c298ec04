package symbols_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/liveedit/pkg/symbols"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax/sexpr"
)

const source = `
(CompilationUnit
  (Namespace:App
    (Type:Box/1 "class Box<T>"
      (Field:count "int count")
      (Method:f
        (ParameterList (Parameter:x "int x") (Parameter:name "string name"))
        (ReturnType "int")
        (Block
          (LocalDeclaration:total "int total = 0")
          (LocalDeclaration:scale "var scale = 2")
          (ExpressionStatement "run(() => total * scale);"
            (Lambda "() => total * scale"))
          (ExpressionStatement "g();" (Call:g "g()"))))
      (Method:g (ParameterList) (Block)))))`

func load(t *testing.T) (*syntax.Tree, *symbols.Table) {
	t.Helper()

	tree := syntax.MustTree(sexpr.MustParse(source))

	return tree, symbols.FromTree(tree)
}

func find(t *testing.T, tree *syntax.Tree, kind syntax.Kind, name string) *syntax.Node {
	t.Helper()

	found := tree.Root().Find(func(n *syntax.Node) bool { return n.Kind == kind && n.Name == name })
	require.NotEmpty(t, found)

	return found[0]
}

func TestKeyOf(t *testing.T) {
	t.Parallel()

	tree, _ := load(t)

	assert.Equal(t, symbols.Key("M:App.Box`1.f(int,string)"), symbols.KeyOf(tree, find(t, tree, syntax.KindMethod, "f")))
	assert.Equal(t, symbols.Key("M:App.Box`1.g()"), symbols.KeyOf(tree, find(t, tree, syntax.KindMethod, "g")))
	assert.Equal(t, symbols.Key("F:App.Box`1.count"), symbols.KeyOf(tree, find(t, tree, syntax.KindField, "count")))
	assert.Equal(t, symbols.Key("T:App.Box`1"), symbols.KeyOf(tree, find(t, tree, syntax.KindType, "Box")))
	assert.Equal(t, "M", symbols.Key("M:App.f()").Prefix())
}

func TestSignatureParts(t *testing.T) {
	t.Parallel()

	tree, _ := load(t)
	method := find(t, tree, syntax.KindMethod, "f")

	assert.Equal(t, []string{"int", "string"}, symbols.ParameterTypes(method))
	assert.Equal(t, "int", symbols.ReturnType(method))
	assert.Empty(t, symbols.ReturnType(find(t, tree, syntax.KindMethod, "g")))
}

func TestTable_Facts(t *testing.T) {
	t.Parallel()

	tree, table := load(t)

	gKey := symbols.Key("M:App.Box`1.g()")

	symbol, ok := table.Lookup(gKey)
	require.True(t, ok)
	assert.Equal(t, syntax.KindMethod, symbol.Kind)

	target, ok := table.CallTarget(find(t, tree, syntax.KindCall, "g"))
	require.True(t, ok)
	assert.Equal(t, gKey, target)
	assert.True(t, table.IsReferenced(gKey))
	assert.False(t, table.IsReferenced("M:App.Box`1.f(int,string)"))

	lambda := tree.Root().Find(func(n *syntax.Node) bool { return n.Kind == syntax.KindLambda })[0]
	assert.Equal(t, []string{"scale", "total"}, table.CapturedVariables(lambda))

	typ, ok := table.TypeOf(find(t, tree, syntax.KindLocalDeclaration, "total"))
	require.True(t, ok)
	assert.Equal(t, "int", typ)

	_, ok = table.TypeOf(find(t, tree, syntax.KindLocalDeclaration, "scale"))
	assert.False(t, ok)

	table.SetType(find(t, tree, syntax.KindLocalDeclaration, "scale"), "long")
	typ, _ = table.TypeOf(find(t, tree, syntax.KindLocalDeclaration, "scale"))
	assert.Equal(t, "long", typ)
}

func TestTable_Implementations(t *testing.T) {
	t.Parallel()

	_, table := load(t)

	contract := symbols.Key("M:App.IRunner.Run()")
	impl := symbols.Key("M:App.Box`1.g()")

	table.AddImplementation(contract, impl)
	table.AddImplementation(contract, impl)

	assert.Equal(t, []symbols.Key{impl}, table.Implementations(contract))

	symbol, _ := table.Lookup(impl)
	assert.Equal(t, []symbols.Key{contract}, symbol.Contracts)

	assert.False(t, table.IsReferenced(contract))
	table.AddReference(contract)
	assert.True(t, table.IsReferenced(contract))
}

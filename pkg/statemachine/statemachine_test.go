package statemachine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/liveedit/pkg/bodymatch"
	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
	"github.com/Sumatoshi-tech/liveedit/pkg/statemachine"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax/sexpr"
)

const iterator = `
(Method:items
  (Block
    (YieldReturn "yield return 1;")
    (YieldReturn "yield return 2;")))`

func mapMember(t *testing.T, oldSrc, newSrc, activeToken string, caps rudeedit.Capabilities) (*statemachine.SyntaxMap, *rudeedit.Bag) {
	t.Helper()

	oldTree := syntax.MustTree(sexpr.MustParse(oldSrc))
	newTree := syntax.MustTree(sexpr.MustParse(newSrc))

	script, err := bodymatch.Match(oldTree, oldTree.Root(), newTree, newTree.Root())
	require.NoError(t, err)

	var active []*syntax.Node
	if activeToken != "" {
		active = oldTree.Root().Find(func(n *syntax.Node) bool { return n.Token == activeToken })
		require.Len(t, active, 1)
	}

	bag := rudeedit.NewBag(0)
	syntaxMap := statemachine.Map(statemachine.Input{
		Document:     "a.cs",
		Script:       script,
		Old:          statemachine.Describe(oldTree.Root()),
		New:          statemachine.Describe(newTree.Root()),
		Capabilities: caps,
		ActiveOld:    active,
	}, bag)

	return syntaxMap, bag
}

func kinds(bag *rudeedit.Bag) []rudeedit.Kind {
	var found []rudeedit.Kind

	for _, d := range bag.Items() {
		found = append(found, d.Kind)
	}

	return found
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	desc := statemachine.Describe(sexpr.MustParse(iterator))
	assert.Equal(t, statemachine.Iterator, desc.Kind)
	assert.Len(t, desc.SuspensionPoints, 2)

	async := statemachine.Describe(sexpr.MustParse(`
(Method:load {async}
  (Block
    (LocalDeclaration:data "var data = await fetch()" (Await "await fetch()"))
    (ExpressionStatement "run(async () => await other());" (Lambda "async () => await other()" (Await "await other()")))))`))
	assert.Equal(t, statemachine.Async, async.Kind)
	require.Len(t, async.SuspensionPoints, 1)
	assert.Equal(t, "await fetch()", async.SuspensionPoints[0].Token)

	plain := statemachine.Describe(sexpr.MustParse(`(Method:f (Block (Return "1")))`))
	assert.Equal(t, statemachine.None, plain.Kind)
	assert.Empty(t, plain.SuspensionPoints)
}

func TestMap_InsertedYieldWhileSuspendedBlocks(t *testing.T) {
	t.Parallel()

	edited := `
(Method:items
  (Block
    (YieldReturn "yield return 1;")
    (YieldReturn "yield return 5;")
    (YieldReturn "yield return 2;")))`

	_, bag := mapMember(t, iterator, edited, "yield return 1;", rudeedit.DefaultCapabilities)

	require.Equal(t, []rudeedit.Kind{rudeedit.KindSuspensionPointChanged}, kinds(bag))
	assert.Equal(t, rudeedit.Blocking, bag.Items()[0].Severity)
	assert.Equal(t, "a suspension point was inserted before suspension point 2", bag.Items()[0].Args[1])
}

func TestMap_InsertedYieldWithoutLiveInstanceIsAllowed(t *testing.T) {
	t.Parallel()

	edited := `
(Method:items
  (Block
    (YieldReturn "yield return 1;")
    (YieldReturn "yield return 5;")
    (YieldReturn "yield return 2;")))`

	syntaxMap, bag := mapMember(t, iterator, edited, "", rudeedit.DefaultCapabilities)

	assert.Zero(t, bag.Len())
	assert.Equal(t, 4, syntaxMap.Len())
}

func TestMap_SyntaxMapFunction(t *testing.T) {
	t.Parallel()

	oldTree := syntax.MustTree(sexpr.MustParse(iterator))
	newTree := syntax.MustTree(sexpr.MustParse(`
(Method:items
  (Block
    (ExpressionStatement "log();")
    (YieldReturn "yield return 1;")
    (YieldReturn "yield return 2;")))`))

	script, err := bodymatch.Match(oldTree, oldTree.Root(), newTree, newTree.Root())
	require.NoError(t, err)

	syntaxMap := statemachine.Map(statemachine.Input{Script: script}, rudeedit.NewBag(0))
	lookup := syntaxMap.Func()

	block := newTree.Root().Children[0]

	_, ok := lookup(block.Children[0])
	assert.False(t, ok)

	old, ok := lookup(block.Children[2])
	require.True(t, ok)
	assert.Equal(t, "yield return 2;", old.Token)
}

func TestMap_KindChangeWhileLive(t *testing.T) {
	t.Parallel()

	_, bag := mapMember(t,
		`(Method:f (Block (ExpressionStatement "a();") (Return "1")))`,
		`(Method:f {async} (Block (ExpressionStatement "a();") (Return "1")))`,
		"a();", rudeedit.DefaultCapabilities)

	require.Equal(t, []rudeedit.Kind{rudeedit.KindStateMachineKindChanged}, kinds(bag))
	assert.Equal(t, []string{"f", "none", "async"}, bag.Items()[0].Args)
}

func TestMap_HostWithoutSuspendedIteratorEdits(t *testing.T) {
	t.Parallel()

	edited := `
(Method:items
  (Block
    (YieldReturn "yield return 1;")
    (YieldReturn "yield return 20;")))`

	_, bag := mapMember(t, iterator, edited, "yield return 1;", rudeedit.CapBaseline)

	require.Equal(t, []rudeedit.Kind{rudeedit.KindCapabilityRequired}, kinds(bag))
	assert.Equal(t, "edit-suspended-iterator", bag.Items()[0].Args[1])
}

func TestMap_LocalInsertedBeforeActiveStatement(t *testing.T) {
	t.Parallel()

	oldSrc := `
(Method:run {async}
  (Block
    (ExpressionStatement "start();")
    (ExpressionStatement "await tick();" (Await "await tick()"))
    (ExpressionStatement "finish();")))`
	newSrc := `
(Method:run {async}
  (Block
    (LocalDeclaration:started "var started = now()")
    (ExpressionStatement "start();")
    (ExpressionStatement "await tick();" (Await "await tick()"))
    (LocalDeclaration:elapsed "var elapsed = now() - started")
    (ExpressionStatement "finish();")))`

	_, bag := mapMember(t, oldSrc, newSrc, "await tick();", rudeedit.DefaultCapabilities)

	require.Equal(t, []rudeedit.Kind{rudeedit.KindLocalStateLost}, kinds(bag))
	assert.Equal(t, []string{"started"}, bag.Items()[0].Args)
}

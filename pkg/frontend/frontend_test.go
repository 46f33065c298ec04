package frontend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/liveedit/pkg/frontend"
	"github.com/Sumatoshi-tech/liveedit/pkg/statemachine"
	"github.com/Sumatoshi-tech/liveedit/pkg/symbols"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

const pythonSource = `class Worker(Base):
    """Runs jobs."""
    limit: int = 10

    def __init__(self, name: str):
        self.name = name

    async def run(self, n):
        i = 0
        while i < n:
            await tick(i)
            i += 1
        return i

    def items(self):
        yield 1
        yield 2

    @staticmethod
    def build(value):
        return Worker(str(value))
`

const goSource = `package jobs

// Limit caps the queue.
const Limit = 10

type Worker struct {
	Name  string
	count int
}

func (w *Worker) Run(n int) (int, error) {
	i := 0
	for i < n {
		tick(i)
		i++
	}

	return i, nil
}

func New[T any](name string) *Worker {
	return &Worker{Name: name}
}
`

func declarations(tree *syntax.Tree) map[symbols.Key]syntax.Kind {
	found := make(map[symbols.Key]syntax.Kind)

	for _, n := range tree.Nodes() {
		if n.Kind.IsDeclaration() && n.Kind != syntax.KindCompilationUnit {
			found[symbols.KeyOf(tree, n)] = n.Kind
		}
	}

	return found
}

func member(t *testing.T, tree *syntax.Tree, name string) *syntax.Node {
	t.Helper()

	found := tree.Root().Find(func(n *syntax.Node) bool { return n.Kind.IsMember() && n.Name == name })
	require.Len(t, found, 1, name)

	return found[0]
}

func TestParse_Python(t *testing.T) {
	t.Parallel()

	tree, err := frontend.NewParser().Parse(context.Background(), frontend.Python, []byte(pythonSource))
	require.NoError(t, err)

	decls := declarations(tree)
	assert.Equal(t, syntax.KindType, decls["T:Worker"])
	assert.Equal(t, syntax.KindField, decls["F:Worker.limit"])
	assert.Equal(t, syntax.KindConstructor, decls["M:Worker.__init__(str)"])

	run := member(t, tree, "run")
	assert.True(t, run.HasModifier("async"))
	assert.Equal(t, statemachine.Async, statemachine.Describe(run).Kind)
	assert.Len(t, statemachine.Describe(run).SuspensionPoints, 1)

	items := member(t, tree, "items")
	assert.Equal(t, statemachine.Iterator, statemachine.Describe(items).Kind)

	build := member(t, tree, "build")
	assert.True(t, build.HasModifier("static"))
	assert.Len(t, symbols.ParameterTypes(build), 1)

	loops := run.Find(func(n *syntax.Node) bool { return n.Kind == syntax.KindWhile })
	require.Len(t, loops, 1)
	assert.Equal(t, "while i < n", loops[0].Token)
	assert.Equal(t, 10, loops[0].Span.StartLine)

	locals := run.Find(func(n *syntax.Node) bool { return n.Kind == syntax.KindLocalDeclaration })
	require.Len(t, locals, 1)
	assert.Equal(t, "i", locals[0].Name)
}

func TestParse_Go(t *testing.T) {
	t.Parallel()

	tree, err := frontend.NewParser().Parse(context.Background(), frontend.Go, []byte(goSource))
	require.NoError(t, err)

	decls := declarations(tree)
	assert.Equal(t, syntax.KindNamespace, decls["N:jobs"])
	assert.Equal(t, syntax.KindField, decls["F:jobs.Limit"])
	assert.Equal(t, syntax.KindType, decls["T:jobs.Worker"])
	assert.Equal(t, syntax.KindField, decls["F:jobs.Worker.count"])

	run := member(t, tree, "Worker.Run")
	assert.True(t, run.HasModifier("pointer-receiver"))
	assert.Equal(t, []string{"int"}, symbols.ParameterTypes(run))
	assert.Equal(t, "(int, error)", symbols.ReturnType(run))

	loops := run.Find(func(n *syntax.Node) bool { return n.Kind == syntax.KindWhile })
	require.Len(t, loops, 1)

	calls := run.Find(func(n *syntax.Node) bool { return n.Kind == syntax.KindCall })
	require.Len(t, calls, 1)
	assert.Equal(t, "tick", calls[0].Name)

	assert.Equal(t, 1, member(t, tree, "New").Arity)
}

func TestParse_LayoutOnlyChangeKeepsFingerprint(t *testing.T) {
	t.Parallel()

	parser := frontend.NewParser()

	before, err := parser.Parse(context.Background(), frontend.Python, []byte("def f(x):\n    return x\n"))
	require.NoError(t, err)

	after, err := parser.Parse(context.Background(), frontend.Python,
		[]byte("# helper\n\n\ndef f(x):\n    # identity\n    return   x\n"))
	require.NoError(t, err)

	assert.Equal(t, before.Fingerprint(member(t, before, "f")), after.Fingerprint(member(t, after, "f")))
}

func TestDetect(t *testing.T) {
	t.Parallel()

	lang, err := frontend.Detect("jobs/worker.py", nil)
	require.NoError(t, err)
	assert.Equal(t, frontend.Python, lang)

	lang, err = frontend.Detect("worker.go", nil)
	require.NoError(t, err)
	assert.Equal(t, frontend.Go, lang)

	_, err = frontend.Detect("worker.rb", nil)
	require.ErrorIs(t, err, frontend.ErrUnsupportedLanguage)

	assert.ElementsMatch(t, []frontend.Language{frontend.Python, frontend.Go}, frontend.Languages())
}

func TestParseLanguage(t *testing.T) {
	t.Parallel()

	lang, err := frontend.ParseLanguage("python")
	require.NoError(t, err)
	assert.Equal(t, frontend.Python, lang)

	lang, err = frontend.ParseLanguage("GO")
	require.NoError(t, err)
	assert.Equal(t, frontend.Go, lang)

	_, err = frontend.ParseLanguage("cobol")
	require.ErrorIs(t, err, frontend.ErrUnsupportedLanguage)
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/Sumatoshi-tech/liveedit/internal/observability"
	"github.com/Sumatoshi-tech/liveedit/internal/render"
	"github.com/Sumatoshi-tech/liveedit/pkg/activestmt"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

const oldProgram = `(CompilationUnit
  (Namespace:App
    (Type:Worker "class Worker"
      (Method:run
        (ParameterList)
        (Block
          (ExpressionStatement "a();")
          (ExpressionStatement "b();"))))))
`

const updatedProgram = `(CompilationUnit
  (Namespace:App
    (Type:Worker "class Worker"
      (Method:run
        (ParameterList)
        (Block
          (ExpressionStatement "a();")
          (ExpressionStatement "c();"))))))
`

const resignedProgram = `(CompilationUnit
  (Namespace:App
    (Type:Worker "class Worker"
      (Method:run
        (ParameterList (Parameter:n "int n"))
        (Block
          (ExpressionStatement "a();")
          (ExpressionStatement "b();"))))))
`

const activeAtLineSeven = `statements:
  - ordinal: 1
    line: 7
    flags: non-leaf
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfg := writeFile(t, t.TempDir(), "liveedit.yaml", "logging:\n  level: error\n")

	var buf bytes.Buffer

	cmd := rootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--config", cfg, "--no-color"}, args...))

	err := cmd.ExecuteContext(context.Background())

	return buf.String(), err
}

//nolint:paralleltest // commands share the package flag variables.
func TestAnalyze_ReportsReadyEdits(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.sx", oldProgram)
	newPath := writeFile(t, dir, "new.sx", updatedProgram)

	out, err := execute(t, "analyze", oldPath, newPath)
	require.NoError(t, err)

	assert.Contains(t, out, newPath+" [edits-ready]")
	assert.Contains(t, out, "Worker.run")
	assert.Contains(t, out, "update")
	assert.Contains(t, out, "1 document, 0 blocked, 0 failed, 1 edit")
}

//nolint:paralleltest // commands share the package flag variables.
func TestAnalyze_SnapshotAndShow(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.sx", oldProgram)
	newPath := writeFile(t, dir, "new.sx", updatedProgram)
	activePath := writeFile(t, dir, "active.yaml", activeAtLineSeven)
	snapPath := filepath.Join(dir, "run.lesn")

	out, err := execute(t, "analyze", "--active", activePath, "--snapshot", snapPath, "-f", render.FormatJSON,
		oldPath, newPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"active_statements"`)

	info, err := os.Stat(snapPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	shown, err := execute(t, "show", "-f", render.FormatSummary, snapPath)
	require.NoError(t, err)
	assert.Contains(t, shown, "edits-ready")
	assert.Contains(t, shown, "1 document")
}

//nolint:paralleltest // commands share the package flag variables.
func TestAnalyze_StrictFailsOnBlockedDocument(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.sx", oldProgram)
	newPath := writeFile(t, dir, "new.sx", resignedProgram)

	out, err := execute(t, "analyze", "--strict", oldPath, newPath)
	require.ErrorIs(t, err, ErrBlockedEdits)
	assert.Contains(t, out, "[blocked]")
	assert.Contains(t, out, "signature-changed")

	_, err = execute(t, "analyze", oldPath, newPath)
	require.NoError(t, err)
}

//nolint:paralleltest // commands share the package flag variables.
func TestAnalyze_ResolvesSymbolsFromTrees(t *testing.T) {
	counter := `(CompilationUnit
  (Namespace:App
    (Type:Worker "class Worker"
      (Method:run
        (ParameterList)
        (Block
          (LocalDeclaration:v "%s v = 0;")
          (Return "v"))))))
`

	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.sx", strings.ReplaceAll(counter, "%s", "int"))
	newPath := writeFile(t, dir, "new.sx", strings.ReplaceAll(counter, "%s", "long"))

	out, err := execute(t, "analyze", oldPath, newPath)
	require.NoError(t, err)
	assert.Contains(t, out, "[blocked]")
	assert.Contains(t, out, "type-changed")
}

//nolint:paralleltest // commands share the package flag variables.
func TestAnalyze_InputErrors(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.sx", oldProgram)
	newPath := writeFile(t, dir, "new.sx", updatedProgram)
	brokenPath := writeFile(t, dir, "broken.sx", "(CompilationUnit")

	_, err := execute(t, "analyze", oldPath, newPath, oldPath)
	require.ErrorIs(t, err, ErrOddArguments)

	_, err = execute(t, "analyze", "--max-source", "16B", oldPath, newPath)
	require.ErrorIs(t, err, ErrSourceTooLarge)

	_, err = execute(t, "analyze", oldPath, brokenPath)
	require.ErrorContains(t, err, "parse error in")

	_, err = execute(t, "analyze", "--capabilities", "teleport", oldPath, newPath)
	require.Error(t, err)
}

// commitFile creates a repository in dir holding one commit of name.
func commitFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)
	t.Cleanup(repo.Free)

	path := writeFile(t, dir, name, content)

	index, err := repo.Index()
	require.NoError(t, err)

	defer index.Free()

	require.NoError(t, index.AddByPath(name))
	require.NoError(t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(t, err)

	tree, err := repo.LookupTree(treeID)
	require.NoError(t, err)

	defer tree.Free()

	sig := &git2go.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()}

	_, err = repo.CreateCommit("HEAD", sig, sig, "baseline", tree)
	require.NoError(t, err)

	return path
}

//nolint:paralleltest // commands share the package flag variables.
func TestAnalyze_AgainstGitRevision(t *testing.T) {
	dir := t.TempDir()
	path := commitFile(t, dir, "worker.sx", oldProgram)
	writeFile(t, dir, "worker.sx", updatedProgram)

	out, err := execute(t, "analyze", "--rev", "HEAD", path)
	require.NoError(t, err)
	assert.Contains(t, out, "[edits-ready]")
	assert.Contains(t, out, "1 edit")

	_, err = execute(t, "analyze", "--rev", "HEAD~3", path)
	require.Error(t, err)
}

//nolint:paralleltest // commands share the package flag variables.
func TestDiff_ShowsChangedMember(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.sx", oldProgram)
	newPath := writeFile(t, dir, "new.sx", updatedProgram)

	out, err := execute(t, "diff", oldPath, newPath)
	require.NoError(t, err)

	assert.Contains(t, out, "~ M:")
	assert.Contains(t, out, "(1 update)")
	assert.Contains(t, out, "- a(); b();")
	assert.Contains(t, out, "+ a(); c();")
	assert.Contains(t, out, "1 changed declaration")
}

//nolint:paralleltest // commands share the package flag variables.
func TestRules_ExportValidates(t *testing.T) {
	exported, err := execute(t, "rules", "--export")
	require.NoError(t, err)

	path := writeFile(t, t.TempDir(), "rules.yaml", exported)

	out, err := execute(t, "rules", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "allow")

	bad := writeFile(t, t.TempDir(), "bad.yaml", "rules:\n  - edit: teleport\n    node: Block\n")

	_, err = execute(t, "rules", "--file", bad)
	require.Error(t, err)
}

//nolint:paralleltest // commands share the package flag variables.
func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "liveedit "))
}

func TestLoadActive_ResolvesLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ld, err := newLoader(defaultMaxSource)
	require.NoError(t, err)

	docs, _, err := ld.documents(context.Background(), []string{
		writeFile(t, dir, "old.sx", oldProgram),
		writeFile(t, dir, "new.sx", updatedProgram),
	})
	require.NoError(t, err)

	stmts, err := loadActive(writeFile(t, dir, "active.yaml", activeAtLineSeven), docs)
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	assert.Equal(t, docs[0].Path, stmts[0].Document)
	assert.Equal(t, 7, stmts[0].Span.StartLine)
	assert.False(t, stmts[0].IsLeaf())

	_, err = loadActive(writeFile(t, dir, "missing.yaml", "statements:\n  - line: 99\n"), docs)
	require.ErrorIs(t, err, ErrNoStatementAtLine)
}

func TestAdvanceStatements(t *testing.T) {
	t.Parallel()

	oldSpan := syntax.Span{StartOffset: 10, EndOffset: 14, StartLine: 2, StartCol: 1, EndLine: 2, EndCol: 5}
	newSpan := syntax.Span{StartOffset: 20, EndOffset: 24, StartLine: 4, StartCol: 1, EndLine: 4, EndCol: 5}

	stmts := []activestmt.Statement{
		{Ordinal: 1, Document: "a.sx", Span: oldSpan, Flags: activestmt.NonLeaf},
		{Ordinal: 2, Document: "b.sx", Span: oldSpan, Flags: activestmt.Leaf},
	}

	next := advanceStatements(stmts, []activestmt.Remapped{{Ordinal: 1, Document: "a.sx", Span: newSpan}})

	assert.Equal(t, newSpan, next[0].Span)
	assert.Equal(t, activestmt.NonLeaf, next[0].Flags)
	assert.Equal(t, oldSpan, next[1].Span)
	assert.Equal(t, oldSpan, stmts[0].Span)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

//nolint:paralleltest // newApp reads the package flag variables.
func TestWatcher_ReanalysesAndAdvances(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "worker.sx", oldProgram)
	activePath := writeFile(t, dir, "active.yaml", activeAtLineSeven)

	cfgFile = writeFile(t, dir, "liveedit.yaml", "logging:\n  level: error\n")
	t.Cleanup(func() { cfgFile = "" })

	a, err := newApp(observability.ModeWatch, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.close(context.Background()) })

	var out syncBuffer

	w, err := newWatcher(context.Background(), a, &out, []string{path}, watchFlags{
		active:    activePath,
		format:    render.FormatSummary,
		maxSource: defaultMaxSource,
		advance:   true,
	})
	require.NoError(t, err)
	require.NoError(t, w.ready(context.Background()))
	assert.Equal(t, []string{dir}, w.dirs())

	w.red, err = observability.NewREDMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	baseline := w.baseline[path]

	require.NoError(t, os.WriteFile(path, []byte(updatedProgram), 0o600))

	events := make(chan fsnotify.Event, 2)
	errs := make(chan error)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- w.loop(ctx, events, errs, 10*time.Millisecond) }()

	events <- fsnotify.Event{Name: filepath.Join(dir, "other.sx"), Op: fsnotify.Write}
	events <- fsnotify.Event{Name: path, Op: fsnotify.Write}

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "edits-ready")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.NotSame(t, baseline, w.baseline[path])
	require.Len(t, w.active, 1)
	assert.Equal(t, 7, w.active[0].Span.StartLine)
}

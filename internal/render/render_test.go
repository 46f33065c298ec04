package render_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/liveedit/internal/render"
	"github.com/Sumatoshi-tech/liveedit/pkg/activestmt"
	"github.com/Sumatoshi-tech/liveedit/pkg/engine"
	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
	"github.com/Sumatoshi-tech/liveedit/pkg/semedit"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/treematch"
)

func span(line int) syntax.Span {
	return syntax.Span{StartOffset: line * 10, EndOffset: line*10 + 5, StartLine: line, StartCol: 1, EndLine: line, EndCol: 6}
}

func fixtureResult() *engine.Result {
	return &engine.Result{
		ID: "analysis-1",
		Documents: []engine.DocumentResult{
			{
				Document: "worker.py",
				State:    engine.Blocked,
				Diagnostics: []rudeedit.Diagnostic{
					rudeedit.New(rudeedit.KindSignatureChanged, rudeedit.Blocking, "worker.py", span(3), "Worker.run"),
					rudeedit.New(rudeedit.KindDeclarationDeleted, rudeedit.Informational, "worker.py", span(9), "gone"),
				},
				Dropped: 2,
			},
			{
				Document: "jobs.go",
				State:    engine.EditsReady,
				Edits: []semedit.Edit{
					{Kind: semedit.Update, Symbol: "M:jobs.Worker.Run(int)", PreserveLocalVariables: true},
					{Kind: semedit.Move, Symbol: "T:jobs.Queue", OldSymbol: "T:jobs.Pending"},
				},
				ActiveStatements: []activestmt.Remapped{
					{Ordinal: 1, Document: "jobs.go", Span: span(12), Status: activestmt.Updated},
				},
				LineShifts: []engine.LineShift{{OldSpan: span(20), NewSpan: span(22), Delta: 2}},
			},
		},
	}
}

func TestPrinter_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	err := render.NewPrinter(&buf, true).Result(fixtureResult(), render.FormatText)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "worker.py [blocked]")
	assert.Contains(t, out, "changing the signature of 'Worker.run' requires restarting the program")
	assert.Contains(t, out, "signature-changed")
	assert.Contains(t, out, "dropped")
	assert.Contains(t, out, "jobs.go [edits-ready]")
	assert.Contains(t, out, "M:jobs.Worker.Run(int)")
	assert.Contains(t, out, "T:jobs.Pending")
	assert.Contains(t, out, "updated")
	assert.Contains(t, out, "20:1-20:6 moved 2 lines down")
	assert.Contains(t, out, "2 documents, 1 blocked, 0 failed, 2 edits")
	assert.NotContains(t, out, "\x1b[")
}

func TestPrinter_Summary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	err := render.NewPrinter(&buf, true).Result(fixtureResult(), render.FormatSummary)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "DOCUMENT")
	assert.Contains(t, out, "worker.py")
	assert.Contains(t, out, "edits-ready")
	assert.Contains(t, out, "2 documents")
}

func TestPrinter_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	err := render.NewPrinter(&buf, true).Result(fixtureResult(), render.FormatJSON)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "documents")
	assert.NotContains(t, decoded, "id")
}

func TestPrinter_HTML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, render.NewPrinter(&buf, true).Result(fixtureResult(), render.FormatHTML))

	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "Live-edit analysis")
	assert.Contains(t, out, "worker.py [blocked]")
	assert.Contains(t, out, "signature-changed")
}

func TestPrinter_UnknownFormat(t *testing.T) {
	t.Parallel()

	err := render.NewPrinter(&bytes.Buffer{}, true).Result(fixtureResult(), "xml")
	require.ErrorIs(t, err, render.ErrUnknownFormat)
}

func TestPrinter_Changes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	err := render.NewPrinter(&buf, true).Changes([]render.Change{
		{
			Kind:    render.Changed,
			Label:   "M:Worker.run()",
			OldText: "def run(self):\n    a()\n    b()\n",
			NewText: "def run(self):\n    a()\n    c()\n",
			Script:  &treematch.Script{Edits: []treematch.Edit{{Kind: treematch.EditUpdate}}},
		},
		{Kind: render.Added, Label: "M:Worker.stop()", NewText: "def stop(self):\n    pass\n"},
		{Kind: render.Moved, Label: "F:Worker.limit"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "~ M:Worker.run() (1 update)")
	assert.Contains(t, out, "    def run(self):")
	assert.Contains(t, out, "  -     b()")
	assert.Contains(t, out, "  +     c()")
	assert.Contains(t, out, "+ M:Worker.stop()")
	assert.Contains(t, out, "  + def stop(self):")
	assert.Contains(t, out, "> F:Worker.limit")
	assert.Contains(t, out, "3 changed declarations")
}

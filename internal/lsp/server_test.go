package lsp

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/Sumatoshi-tech/liveedit/pkg/engine"
	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

const (
	testURI = "file:///src/jobs.go"

	baselineGo = `package jobs

func Run(n int) int {
	a := n
	return a
}
`

	extendedGo = `package jobs

func Run(n int) int {
	a := n
	return a
}

func Extra() int {
	return 0
}
`
)

// recorder collects the diagnostics published by the server.
type recorder struct {
	mu        sync.Mutex
	published []*protocol.PublishDiagnosticsParams
}

func (r *recorder) context() *glsp.Context {
	return &glsp.Context{
		Notify: func(method string, params any) {
			if method != "textDocument/publishDiagnostics" {
				return
			}

			r.mu.Lock()
			defer r.mu.Unlock()

			r.published = append(r.published, params.(*protocol.PublishDiagnosticsParams))
		},
	}
}

func (r *recorder) last(t *testing.T) []protocol.Diagnostic {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	require.NotEmpty(t, r.published)

	return r.published[len(r.published)-1].Diagnostics
}

func newTestServer(caps rudeedit.Capabilities) *Server {
	return NewServer(context.Background(), Deps{
		Engine:       engine.New(engine.Options{Workers: 1}),
		Capabilities: caps,
		Version:      "test",
	})
}

func open(t *testing.T, srv *Server, rec *recorder, text string) {
	t.Helper()

	require.NoError(t, srv.didOpen(rec.context(), &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: testURI, LanguageID: "go", Version: 1, Text: text},
	}))
}

func change(t *testing.T, srv *Server, rec *recorder, text string) {
	t.Helper()

	params := &protocol.DidChangeTextDocumentParams{
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: text}},
	}
	params.TextDocument.URI = testURI

	require.NoError(t, srv.didChange(rec.context(), params))
}

func TestDocumentStore(t *testing.T) {
	t.Parallel()

	store := NewDocumentStore()

	_, ok := store.get(testURI)
	assert.False(t, ok)

	store.set(testURI, &document{text: "initial"})
	assert.True(t, store.update(testURI, func(doc *document) { doc.text = "updated" }))
	assert.False(t, store.update("file:///other.go", func(*document) {}))

	doc, ok := store.get(testURI)
	require.True(t, ok)
	assert.Equal(t, "updated", doc.text)
	assert.Equal(t, 1, store.Len())

	store.Delete(testURI)
	assert.Equal(t, 0, store.Len())
}

func TestServer_OpenChangePublishesRudeEdits(t *testing.T) {
	t.Parallel()

	srv := newTestServer(rudeedit.CapBaseline)

	var rec recorder

	open(t, srv, &rec, baselineGo)
	assert.Empty(t, rec.last(t))

	change(t, srv, &rec, extendedGo)

	diagnostics := rec.last(t)
	require.NotEmpty(t, diagnostics)
	require.NotNil(t, diagnostics[0].Severity)
	assert.Equal(t, protocol.DiagnosticSeverityError, *diagnostics[0].Severity)
	assert.Equal(t, rudeedit.KindCapabilityRequired.String(), diagnostics[0].Code.Value)
	assert.Contains(t, diagnostics[0].Message, "add-method")

	line := diagnostics[0].Range.Start.Line

	hover, err := srv.hover(rec.context(), &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
			Position:     protocol.Position{Line: line},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, hover)

	markup, ok := hover.Contents.(protocol.MarkupContent)
	require.True(t, ok)
	assert.Contains(t, markup.Value, "capability-required")
}

func TestServer_AcceptBaselineClearsDiagnostics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(rudeedit.CapBaseline)

	var rec recorder

	open(t, srv, &rec, baselineGo)
	change(t, srv, &rec, extendedGo)
	require.NotEmpty(t, rec.last(t))

	_, err := srv.executeCommand(rec.context(), &protocol.ExecuteCommandParams{
		Command:   CommandAcceptBaseline,
		Arguments: []any{testURI},
	})
	require.NoError(t, err)
	assert.Empty(t, rec.last(t))

	require.NoError(t, srv.didSave(rec.context(), &protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	}))
	assert.Empty(t, rec.last(t))
}

func TestServer_SetActiveLines(t *testing.T) {
	t.Parallel()

	srv := newTestServer(0)

	var rec recorder

	open(t, srv, &rec, baselineGo)

	_, err := srv.executeCommand(rec.context(), &protocol.ExecuteCommandParams{
		Command:   CommandSetActiveLines,
		Arguments: []any{testURI, float64(4)},
	})
	require.NoError(t, err)

	doc, ok := srv.store.get(testURI)
	require.True(t, ok)
	assert.Equal(t, []int{4}, doc.active)
	require.NotNil(t, doc.result)
	assert.Len(t, doc.result.ActiveStatements, 1)

	_, err = srv.executeCommand(rec.context(), &protocol.ExecuteCommandParams{
		Command:   CommandSetActiveLines,
		Arguments: []any{testURI, "four"},
	})
	require.ErrorIs(t, err, ErrBadArguments)

	_, err = srv.executeCommand(rec.context(), &protocol.ExecuteCommandParams{
		Command:   "liveedit.unknown",
		Arguments: []any{testURI},
	})
	require.ErrorIs(t, err, ErrUnknownCommand)

	_, err = srv.executeCommand(rec.context(), &protocol.ExecuteCommandParams{
		Command:   CommandAcceptBaseline,
		Arguments: []any{"file:///missing.go"},
	})
	require.ErrorIs(t, err, ErrUnknownDocument)
}

func TestServer_CloseClearsDiagnostics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(rudeedit.CapBaseline)

	var rec recorder

	open(t, srv, &rec, baselineGo)
	change(t, srv, &rec, extendedGo)
	require.NotEmpty(t, rec.last(t))

	require.NoError(t, srv.didClose(rec.context(), &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	}))
	assert.Empty(t, rec.last(t))
	assert.Equal(t, 0, srv.store.Len())
}

func TestServer_IgnoresUnsupportedLanguages(t *testing.T) {
	t.Parallel()

	srv := newTestServer(0)

	var rec recorder

	require.NoError(t, srv.didOpen(rec.context(), &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///notes.txt", LanguageID: "plaintext", Text: "hello"},
	}))
	assert.Equal(t, 0, srv.store.Len())
}

func TestInitialize_AdvertisesCommands(t *testing.T) {
	t.Parallel()

	result, err := newTestServer(0).initialize(nil, &protocol.InitializeParams{})
	require.NoError(t, err)

	initResult, ok := result.(protocol.InitializeResult)
	require.True(t, ok)
	assert.Equal(t, "test", *initResult.ServerInfo.Version)
	assert.Equal(t, []string{CommandAcceptBaseline, CommandSetActiveLines},
		initResult.Capabilities.ExecuteCommandProvider.Commands)
}

func TestParseFailure(t *testing.T) {
	t.Parallel()

	diag := parseFailure(errors.New("unexpected token"))

	require.NotNil(t, diag.Severity)
	assert.Equal(t, protocol.DiagnosticSeverityError, *diag.Severity)
	assert.Equal(t, "parse error: unexpected token", diag.Message)
}

func TestToRange(t *testing.T) {
	t.Parallel()

	got := toRange(syntax.Span{StartLine: 3, StartCol: 2, EndLine: 4, EndCol: 1})

	assert.Equal(t, protocol.Position{Line: 2, Character: 1}, got.Start)
	assert.Equal(t, protocol.Position{Line: 3, Character: 0}, got.End)
	assert.Equal(t, "/src/jobs.go", uriPath(testURI))
	assert.Equal(t, "untitled:1", uriPath("untitled:1"))
}

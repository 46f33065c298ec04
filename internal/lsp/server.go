// Package lsp provides a Language Server Protocol server that reports rude
// edits while a document is edited. The text a document had when it was
// opened is the baseline loaded in the running program; every change is
// analysed against it and published as diagnostics.
package lsp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/Sumatoshi-tech/liveedit/pkg/activestmt"
	"github.com/Sumatoshi-tech/liveedit/pkg/engine"
	"github.com/Sumatoshi-tech/liveedit/pkg/frontend"
	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

const (
	serverName       = "liveedit"
	diagnosticSource = "liveedit"

	// CommandAcceptBaseline makes the current text of a document its baseline.
	CommandAcceptBaseline = "liveedit.acceptBaseline"
	// CommandSetActiveLines marks baseline lines as active statements.
	CommandSetActiveLines = "liveedit.setActiveLines"
)

// Sentinel errors for command arguments.
var (
	ErrUnknownCommand    = errors.New("unknown command")
	ErrBadArguments      = errors.New("bad command arguments")
	ErrUnknownDocument   = errors.New("document is not open")
	ErrNoStatementAtLine = errors.New("no statement starts on line")
)

// document is an open document with its baseline.
type document struct {
	language frontend.Language
	path     string
	baseline *syntax.Tree
	text     string
	active   []int
	result   *engine.DocumentResult
}

// DocumentStore is a thread-safe store for open documents keyed by URI.
type DocumentStore struct {
	documents map[string]*document
	mu        sync.RWMutex
}

// NewDocumentStore creates a new empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]*document),
	}
}

func (ds *DocumentStore) set(uri string, doc *document) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.documents[uri] = doc
}

// update applies fn to the document under the store lock.
func (ds *DocumentStore) update(uri string, fn func(doc *document)) bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	doc, ok := ds.documents[uri]
	if ok {
		fn(doc)
	}

	return ok
}

func (ds *DocumentStore) get(uri string) (document, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	doc, ok := ds.documents[uri]
	if !ok {
		return document{}, false
	}

	return *doc, true
}

// Delete removes the document with the given URI.
func (ds *DocumentStore) Delete(uri string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	delete(ds.documents, uri)
}

// Len returns the number of open documents.
func (ds *DocumentStore) Len() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return len(ds.documents)
}

// Deps holds the dependencies of the server.
type Deps struct {
	Engine       *engine.Engine
	Capabilities rudeedit.Capabilities
	Version      string
	Logger       *slog.Logger
}

// Server implements the live-edit LSP server.
type Server struct {
	store   *DocumentStore
	handler protocol.Handler
	engine  *engine.Engine
	parser  *frontend.Parser
	caps    rudeedit.Capabilities
	version string
	logger  *slog.Logger
	ctx     context.Context //nolint:containedctx // glsp handlers carry no context.
}

// NewServer creates a new LSP server with default handlers.
func NewServer(ctx context.Context, deps Deps) *Server {
	srv := &Server{
		store:   NewDocumentStore(),
		engine:  deps.Engine,
		parser:  frontend.NewParser(),
		caps:    deps.Capabilities,
		version: deps.Version,
		logger:  deps.Logger,
		ctx:     ctx,
	}

	if srv.engine == nil {
		srv.engine = engine.New(engine.Options{Logger: deps.Logger})
	}

	if srv.logger == nil {
		srv.logger = slog.Default()
	}

	srv.handler = protocol.Handler{
		Initialize:              srv.initialize,
		Initialized:             srv.initialized,
		Shutdown:                srv.shutdown,
		SetTrace:                srv.setTrace,
		TextDocumentDidOpen:     srv.didOpen,
		TextDocumentDidChange:   srv.didChange,
		TextDocumentDidSave:     srv.didSave,
		TextDocumentDidClose:    srv.didClose,
		TextDocumentHover:       srv.hover,
		WorkspaceExecuteCommand: srv.executeCommand,
	}

	return srv
}

// Run starts the LSP server on stdio.
func (srv *Server) Run() error {
	lspServer := server.NewServer(&srv.handler, serverName, false)

	err := lspServer.RunStdio()
	if err != nil {
		return fmt.Errorf("lsp server: %w", err)
	}

	return nil
}

func (srv *Server) initialize(_ *glsp.Context, _ *protocol.InitializeParams) (any, error) {
	capabilities := srv.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = protocol.TextDocumentSyncKindFull
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: []string{CommandAcceptBaseline, CommandSetActiveLines},
	}

	version := srv.version
	if version == "" {
		version = "dev"
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &version,
		},
	}, nil
}

func (srv *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	return nil
}

func (srv *Server) shutdown(_ *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)

	return nil
}

func (srv *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)

	return nil
}

func (srv *Server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text
	path := uriPath(uri)

	lang, err := frontend.ParseLanguage(params.TextDocument.LanguageID)
	if err != nil {
		lang, err = frontend.Detect(path, []byte(text))
	}

	if err != nil {
		srv.logger.Debug("ignoring document", "uri", uri, "error", err)

		return nil
	}

	baseline, err := srv.parser.Parse(srv.ctx, lang, []byte(text))
	if err != nil {
		srv.publish(ctx, uri, []protocol.Diagnostic{parseFailure(err)})

		return nil
	}

	srv.store.set(uri, &document{language: lang, path: path, baseline: baseline, text: text})
	srv.publish(ctx, uri, []protocol.Diagnostic{})

	return nil
}

func (srv *Server) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	for _, change := range params.ContentChanges {
		text, ok := changeText(change)
		if !ok {
			continue
		}

		if srv.store.update(uri, func(doc *document) { doc.text = text }) {
			srv.analyze(ctx, uri)
		}
	}

	return nil
}

// changeText returns the full text carried by a content change.
func changeText(change any) (string, bool) {
	switch typed := change.(type) {
	case protocol.TextDocumentContentChangeEventWhole:
		return typed.Text, true
	case protocol.TextDocumentContentChangeEvent:
		return typed.Text, typed.Range == nil
	default:
		return "", false
	}
}

func (srv *Server) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := params.TextDocument.URI

	if _, ok := srv.store.get(uri); ok {
		srv.analyze(ctx, uri)
	}

	return nil
}

func (srv *Server) didClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	srv.store.Delete(uri)
	srv.publish(ctx, uri, []protocol.Diagnostic{})

	return nil
}

// analyze compares the current text of a document with its baseline and
// publishes the rude edits found.
func (srv *Server) analyze(ctx *glsp.Context, uri string) {
	doc, ok := srv.store.get(uri)
	if !ok {
		return
	}

	current, err := srv.parser.Parse(srv.ctx, doc.language, []byte(doc.text))
	if err != nil {
		srv.publish(ctx, uri, []protocol.Diagnostic{parseFailure(err)})

		return
	}

	active, err := activeStatements(doc)
	if err != nil {
		srv.logger.Warn("active statements dropped", "uri", uri, "error", err)
	}

	result, err := srv.engine.Analyze(srv.ctx, engine.Request{
		Documents:        engine.WithTreeSymbols([]engine.Document{{Path: doc.path, Old: doc.baseline, New: current}}),
		ActiveStatements: active,
		Capabilities:     srv.caps,
	})
	if result == nil {
		srv.logger.Warn("analysis canceled", "uri", uri, "error", err)

		return
	}

	docResult := result.Documents[0]
	srv.store.update(uri, func(stored *document) { stored.result = &docResult })

	diagnostics := make([]protocol.Diagnostic, 0, len(docResult.Diagnostics)+1)

	if docResult.State == engine.Failed {
		diagnostics = append(diagnostics, failure(docResult.Failure))
	}

	for _, diag := range docResult.Diagnostics {
		diagnostics = append(diagnostics, convert(diag))
	}

	srv.publish(ctx, uri, diagnostics)
}

func activeStatements(doc document) ([]activestmt.Statement, error) {
	stmts := make([]activestmt.Statement, 0, len(doc.active))

	for _, line := range doc.active {
		span, ok := activestmt.AtLine(doc.baseline, line)
		if !ok {
			return stmts, fmt.Errorf("%w %d", ErrNoStatementAtLine, line)
		}

		stmts = append(stmts, activestmt.Statement{
			Ordinal:  len(stmts) + 1,
			Document: doc.path,
			Span:     span,
			Flags:    activestmt.NonLeaf,
		})
	}

	return stmts, nil
}

func (srv *Server) hover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := srv.store.get(params.TextDocument.URI)
	if !ok || doc.result == nil {
		return nil, nil //nolint:nilnil // LSP expects a nil hover when there is nothing to show.
	}

	line := int(params.Position.Line) + 1

	var lines []string

	for _, diag := range doc.result.Diagnostics {
		if diag.Span.StartLine <= line && line <= diag.Span.EndLine {
			lines = append(lines, fmt.Sprintf("**%s** `%s`: %s", diag.Severity, diag.Kind, diag.Message()))
		}
	}

	for _, stmt := range doc.result.ActiveStatements {
		if stmt.Span.StartLine <= line && line <= stmt.Span.EndLine {
			lines = append(lines, fmt.Sprintf("active statement #%d (%s)", stmt.Ordinal, stmt.Status))
		}
	}

	if len(lines) == 0 {
		return nil, nil //nolint:nilnil // LSP expects a nil hover when there is nothing to show.
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: strings.Join(lines, "\n\n"),
		},
	}, nil
}

func (srv *Server) executeCommand(ctx *glsp.Context, params *protocol.ExecuteCommandParams) (any, error) {
	if len(params.Arguments) == 0 {
		return nil, fmt.Errorf("%w: %s needs a document URI", ErrBadArguments, params.Command)
	}

	uri, ok := params.Arguments[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s needs a document URI", ErrBadArguments, params.Command)
	}

	switch params.Command {
	case CommandAcceptBaseline:
		return nil, srv.acceptBaseline(ctx, uri)
	case CommandSetActiveLines:
		lines, err := lineArguments(params.Arguments[1:])
		if err != nil {
			return nil, err
		}

		if !srv.store.update(uri, func(doc *document) { doc.active = lines }) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
		}

		srv.analyze(ctx, uri)

		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, params.Command)
	}
}

// acceptBaseline adopts the current text as the loaded version. Active
// lines are cleared since they referred to the old baseline.
func (srv *Server) acceptBaseline(ctx *glsp.Context, uri string) error {
	doc, ok := srv.store.get(uri)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}

	baseline, err := srv.parser.Parse(srv.ctx, doc.language, []byte(doc.text))
	if err != nil {
		return fmt.Errorf("parse %s: %w", uri, err)
	}

	srv.store.update(uri, func(stored *document) {
		stored.baseline = baseline
		stored.active = nil
		stored.result = nil
	})
	srv.publish(ctx, uri, []protocol.Diagnostic{})

	return nil
}

func lineArguments(args []any) ([]int, error) {
	lines := make([]int, 0, len(args))

	for _, arg := range args {
		number, ok := arg.(float64)
		if !ok || number < 1 {
			return nil, fmt.Errorf("%w: line %v", ErrBadArguments, arg)
		}

		lines = append(lines, int(number))
	}

	sort.Ints(lines)

	return lines, nil
}

func (srv *Server) publish(ctx *glsp.Context, uri string, diagnostics []protocol.Diagnostic) {
	ctx.Notify("textDocument/publishDiagnostics", &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func convert(diag rudeedit.Diagnostic) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityInformation
	if diag.Severity == rudeedit.Blocking {
		severity = protocol.DiagnosticSeverityError
	}

	source := diagnosticSource

	return protocol.Diagnostic{
		Range:    toRange(diag.Span),
		Severity: &severity,
		Code:     &protocol.IntegerOrString{Value: diag.Kind.String()},
		Source:   &source,
		Message:  diag.Message(),
	}
}

func parseFailure(err error) protocol.Diagnostic {
	return failure("parse error: " + err.Error())
}

func failure(message string) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	source := diagnosticSource

	return protocol.Diagnostic{
		Severity: &severity,
		Source:   &source,
		Message:  message,
	}
}

// toRange converts a 1-based span into a 0-based LSP range.
func toRange(span syntax.Span) protocol.Range {
	return protocol.Range{
		Start: position(span.StartLine, span.StartCol),
		End:   position(span.EndLine, span.EndCol),
	}
}

func position(line, col int) protocol.Position {
	return protocol.Position{
		Line:      protocol.UInteger(max(line-1, 0)),
		Character: protocol.UInteger(max(col-1, 0)),
	}
}

// uriPath returns the file path of a file URI, or the URI itself.
func uriPath(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Scheme != "file" {
		return uri
	}

	return parsed.Path
}

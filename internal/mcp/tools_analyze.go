package mcp

import (
	"context"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/liveedit/pkg/activestmt"
	"github.com/Sumatoshi-tech/liveedit/pkg/engine"
	"github.com/Sumatoshi-tech/liveedit/pkg/frontend"
	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax/treedoc"
)

// defaultDocument names the analysed document when the caller gives no path.
const defaultDocument = "input"

// ErrNoStatementAtLine is returned when an active line holds no statement.
var ErrNoStatementAtLine = errors.New("no statement starts on line")

// AnalyzeInput is the input of the analyze tool.
type AnalyzeInput struct {
	OldCode      string   `json:"old_code"               jsonschema:"Source loaded in the running program"`
	NewCode      string   `json:"new_code"               jsonschema:"Edited source"`
	Language     string   `json:"language"               jsonschema:"Language identifier (go or python)"`
	Path         string   `json:"path,omitempty"         jsonschema:"Document name used in the result"`
	ActiveLines  []int    `json:"active_lines,omitempty" jsonschema:"Old-source lines of non-leaf active statements"`
	LeafLine     int      `json:"leaf_line,omitempty"    jsonschema:"Old-source line of the leaf active statement"`
	Capabilities []string `json:"capabilities,omitempty" jsonschema:"Host capabilities (default: server setting)"`
}

// ParseInput is the input of the parse tool.
type ParseInput struct {
	Code     string `json:"code"           jsonschema:"Source code to parse"`
	Language string `json:"language"       jsonschema:"Language identifier (go or python)"`
	Path     string `json:"path,omitempty" jsonschema:"Path recorded in the tree document"`
}

func (ts *toolset) analyze(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input AnalyzeInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	doc, err := ts.document(ctx, input)
	if err != nil {
		return errorResult(err)
	}

	active, err := activeStatements(doc, input)
	if err != nil {
		return errorResult(err)
	}

	caps := ts.capabilities
	if len(input.Capabilities) > 0 {
		caps, err = rudeedit.ParseCapabilities(input.Capabilities)
		if err != nil {
			return errorResult(err)
		}
	}

	result, err := ts.engine.Analyze(ctx, engine.Request{
		Documents:        engine.WithTreeSymbols([]engine.Document{doc}),
		ActiveStatements: active,
		Capabilities:     caps,
	})
	if result == nil {
		return errorResult(fmt.Errorf("analyze: %w", err))
	}

	return jsonResult(result.Documents[0])
}

func (ts *toolset) document(ctx context.Context, input AnalyzeInput) (engine.Document, error) {
	for _, code := range []string{input.OldCode, input.NewCode} {
		err := validateCodeInput(code)
		if err != nil {
			return engine.Document{}, err
		}
	}

	lang, err := language(input.Language)
	if err != nil {
		return engine.Document{}, err
	}

	oldTree, err := ts.parser.Parse(ctx, lang, []byte(input.OldCode))
	if err != nil {
		return engine.Document{}, fmt.Errorf("parse old code: %w", err)
	}

	newTree, err := ts.parser.Parse(ctx, lang, []byte(input.NewCode))
	if err != nil {
		return engine.Document{}, fmt.Errorf("parse new code: %w", err)
	}

	path := input.Path
	if path == "" {
		path = defaultDocument
	}

	return engine.Document{Path: path, Old: oldTree, New: newTree}, nil
}

// activeStatements resolves the requested lines in the old tree. Ordinals
// follow the order of the lines, with the leaf statement last.
func activeStatements(doc engine.Document, input AnalyzeInput) ([]activestmt.Statement, error) {
	stmts := make([]activestmt.Statement, 0, len(input.ActiveLines)+1)

	add := func(line int, flags activestmt.Flags) error {
		span, ok := activestmt.AtLine(doc.Old, line)
		if !ok {
			return fmt.Errorf("%w %d", ErrNoStatementAtLine, line)
		}

		stmts = append(stmts, activestmt.Statement{
			Ordinal:  len(stmts) + 1,
			Document: doc.Path,
			Span:     span,
			Flags:    flags,
		})

		return nil
	}

	for _, line := range input.ActiveLines {
		err := add(line, activestmt.NonLeaf)
		if err != nil {
			return nil, err
		}
	}

	if input.LeafLine > 0 {
		err := add(input.LeafLine, activestmt.Leaf)
		if err != nil {
			return nil, err
		}
	}

	return stmts, nil
}

func (ts *toolset) parse(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input ParseInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateCodeInput(input.Code)
	if err != nil {
		return errorResult(err)
	}

	lang, err := language(input.Language)
	if err != nil {
		return errorResult(err)
	}

	root, err := ts.parser.ParseNode(ctx, lang, []byte(input.Code))
	if err != nil {
		return errorResult(fmt.Errorf("parse: %w", err))
	}

	return jsonResult(&treedoc.Document{
		Version:  treedoc.Version,
		Language: string(lang),
		Path:     input.Path,
		Root:     root,
	})
}

func language(name string) (frontend.Language, error) {
	if name == "" {
		return "", ErrEmptyLanguage
	}

	return frontend.ParseLanguage(name)
}

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/liveedit/internal/gitbase"
	"github.com/Sumatoshi-tech/liveedit/pkg/activestmt"
	"github.com/Sumatoshi-tech/liveedit/pkg/engine"
	"github.com/Sumatoshi-tech/liveedit/pkg/frontend"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax/sexpr"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax/treedoc"
)

// defaultMaxSource bounds the size of one input file.
const defaultMaxSource = "16MiB"

const sexprExt = ".sx"

// Sentinel errors for input loading.
var (
	ErrSourceTooLarge    = errors.New("source file too large")
	ErrNoStatementAtLine = errors.New("no statement starts at line")
	ErrOddArguments      = errors.New("arguments must come in OLD NEW pairs")
)

// source is one loaded input file.
type source struct {
	path    string
	content []byte
	tree    *syntax.Tree
	// code is set when content is program source that spans index into.
	code bool
}

// loader reads input files as source code, tree documents or s-expressions.
type loader struct {
	parser  *frontend.Parser
	maxSize uint64
}

func newLoader(maxSource string) (*loader, error) {
	maxSize, err := humanize.ParseBytes(maxSource)
	if err != nil {
		return nil, fmt.Errorf("invalid --max-source value %q: %w", maxSource, err)
	}

	return &loader{parser: frontend.NewParser(), maxSize: maxSize}, nil
}

func (l *loader) load(ctx context.Context, path string) (*source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if size := uint64(info.Size()); size > l.maxSize { //nolint:gosec // file sizes are non-negative.
		return nil, fmt.Errorf("%w: %s is %s, limit %s",
			ErrSourceTooLarge, path, humanize.IBytes(size), humanize.IBytes(l.maxSize))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	src := &source{path: path, content: content}

	src.tree, err = l.parse(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	return src, nil
}

// loadRevision reads path as it was committed at rev.
func (l *loader) loadRevision(ctx context.Context, repo *gitbase.Repository, rev, path string) (*source, error) {
	content, err := repo.Contents(rev, path)
	if err != nil {
		return nil, err
	}

	if size := uint64(len(content)); size > l.maxSize {
		return nil, fmt.Errorf("%w: %s at %s is %s, limit %s",
			ErrSourceTooLarge, path, rev, humanize.IBytes(size), humanize.IBytes(l.maxSize))
	}

	src := &source{path: path, content: content}

	src.tree, err = l.parse(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s at %s: %w", path, rev, err)
	}

	return src, nil
}

func (l *loader) parse(ctx context.Context, src *source) (*syntax.Tree, error) {
	if _, err := treedoc.FormatOf(src.path); err == nil {
		return treedoc.DecodeTree(bytes.NewReader(src.content))
	}

	if strings.HasSuffix(strings.ToLower(src.path), sexprExt) {
		root, err := sexpr.Parse(string(src.content))
		if err != nil {
			return nil, err
		}

		return syntax.NewTree(root)
	}

	src.code = true

	return l.parser.ParseFile(ctx, src.path, src.content)
}

// documents loads OLD NEW argument pairs. Each document is named after its
// new file.
func (l *loader) documents(ctx context.Context, args []string) ([]engine.Document, []*source, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, nil, fmt.Errorf("%w: got %d", ErrOddArguments, len(args))
	}

	docs := make([]engine.Document, 0, len(args)/2)
	sources := make([]*source, 0, len(args))

	for idx := 0; idx < len(args); idx += 2 {
		oldSrc, err := l.load(ctx, args[idx])
		if err != nil {
			return nil, nil, err
		}

		newSrc, err := l.load(ctx, args[idx+1])
		if err != nil {
			return nil, nil, err
		}

		docs = append(docs, engine.Document{Path: newSrc.path, Old: oldSrc.tree, New: newSrc.tree})
		sources = append(sources, oldSrc, newSrc)
	}

	return docs, sources, nil
}

// revisionDocuments loads each path as the new version of a document whose
// old version is the one committed at rev.
func (l *loader) revisionDocuments(ctx context.Context, rev string, paths []string) ([]engine.Document, error) {
	repo, err := gitbase.Discover(filepath.Dir(paths[0]))
	if err != nil {
		return nil, err
	}
	defer repo.Free()

	docs := make([]engine.Document, 0, len(paths))

	for _, path := range paths {
		oldSrc, err := l.loadRevision(ctx, repo, rev, path)
		if err != nil {
			return nil, err
		}

		newSrc, err := l.load(ctx, path)
		if err != nil {
			return nil, err
		}

		docs = append(docs, engine.Document{Path: newSrc.path, Old: oldSrc.tree, New: newSrc.tree})
	}

	return docs, nil
}

// activeFile is the YAML layout of an active statement file. An entry may
// give a line instead of a span; it then names the outermost statement
// starting on that line of the old document.
type activeFile struct {
	Statements []activeEntry `yaml:"statements"`
}

type activeEntry struct {
	Ordinal          int              `yaml:"ordinal"`
	Document         string           `yaml:"document"`
	Line             int              `yaml:"line"`
	Span             *syntax.Span     `yaml:"span"`
	Flags            activestmt.Flags `yaml:"flags"`
	ExceptionRegions []syntax.Span    `yaml:"exception_regions"`
}

// loadActive reads the active statements of path. Entries without a document
// refer to the only analysed document.
func loadActive(path string, docs []engine.Document) ([]activestmt.Statement, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read active statements: %w", err)
	}

	var file activeFile

	err = yaml.Unmarshal(raw, &file)
	if err != nil {
		return nil, fmt.Errorf("decode active statements %s: %w", path, err)
	}

	stmts := make([]activestmt.Statement, 0, len(file.Statements))

	for idx, entry := range file.Statements {
		stmt, err := entry.resolve(idx, docs)
		if err != nil {
			return nil, fmt.Errorf("active statement %d: %w", idx+1, err)
		}

		stmts = append(stmts, stmt)
	}

	return stmts, nil
}

func (entry activeEntry) resolve(idx int, docs []engine.Document) (activestmt.Statement, error) {
	stmt := activestmt.Statement{
		Ordinal:          entry.Ordinal,
		Document:         entry.Document,
		Flags:            entry.Flags,
		ExceptionRegions: entry.ExceptionRegions,
	}

	if stmt.Ordinal == 0 {
		stmt.Ordinal = idx + 1
	}

	if stmt.Flags == 0 {
		stmt.Flags = activestmt.Leaf
	}

	if stmt.Document == "" && len(docs) == 1 {
		stmt.Document = docs[0].Path
	}

	if entry.Span != nil {
		stmt.Span = *entry.Span

		return stmt, nil
	}

	for _, doc := range docs {
		if doc.Path != stmt.Document {
			continue
		}

		span, ok := activestmt.AtLine(doc.Old, entry.Line)
		if !ok {
			return stmt, fmt.Errorf("%w %d of %s", ErrNoStatementAtLine, entry.Line, doc.Path)
		}

		stmt.Span = span

		return stmt, nil
	}

	return stmt, fmt.Errorf("%w %d: unknown document %q", ErrNoStatementAtLine, entry.Line, stmt.Document)
}

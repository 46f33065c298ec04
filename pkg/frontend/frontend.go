// Package frontend builds syntax trees from Python and Go source with
// tree-sitter. It is the reference front end used by the CLI; the engine
// itself accepts trees from any producer.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	golang "github.com/alexaandru/go-sitter-forest/go"
	"github.com/alexaandru/go-sitter-forest/python"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

// Sentinel errors for parsing.
var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrNoRootNode          = errors.New("parser returned no root node")
	errPoolType            = errors.New("unexpected parser pool type")
)

// Language is a source language the front end can parse.
type Language string

// Supported languages, named as enry names them.
const (
	Python Language = "Python"
	Go     Language = "Go"
)

type grammar struct {
	language func() unsafe.Pointer
	convert  func(c *converter, root sitter.Node) *syntax.Node
}

var grammars = map[Language]grammar{
	Python: {language: python.GetLanguage, convert: convertPython},
	Go:     {language: golang.GetLanguage, convert: convertGo},
}

// Languages returns the supported languages.
func Languages() []Language {
	return []Language{Go, Python}
}

// Detect picks the language of a file from its name and, when the name is
// ambiguous, its content.
func Detect(path string, content []byte) (Language, error) {
	lang := Language(enry.GetLanguage(filepath.Base(path), content))
	if _, ok := grammars[lang]; !ok {
		return "", fmt.Errorf("%w: %s (%q)", ErrUnsupportedLanguage, path, lang)
	}

	return lang, nil
}

// ParseLanguage maps a case-insensitive language name such as "go" or
// "python" to a supported Language.
func ParseLanguage(name string) (Language, error) {
	for _, lang := range Languages() {
		if strings.EqualFold(string(lang), name) {
			return lang, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, name)
}

// Parser parses source files into syntax trees. It keeps one pool of
// tree-sitter parsers per language and is safe for concurrent use.
type Parser struct {
	mu    sync.Mutex
	pools map[Language]*sync.Pool
}

// NewParser creates a parser.
func NewParser() *Parser {
	return &Parser{pools: make(map[Language]*sync.Pool)}
}

func (p *Parser) pool(lang Language) (*sync.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pool, ok := p.pools[lang]; ok {
		return pool, nil
	}

	gram, ok := grammars[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}

	tsLang := sitter.NewLanguage(gram.language())
	pool := &sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(tsLang)

			return tsParser
		},
	}

	p.pools[lang] = pool

	return pool, nil
}

// ParseFile detects the language of path and parses content.
func (p *Parser) ParseFile(ctx context.Context, path string, content []byte) (*syntax.Tree, error) {
	lang, err := Detect(path, content)
	if err != nil {
		return nil, err
	}

	return p.Parse(ctx, lang, content)
}

// Parse converts content of the given language into an indexed syntax tree.
func (p *Parser) Parse(ctx context.Context, lang Language, content []byte) (*syntax.Tree, error) {
	root, err := p.ParseNode(ctx, lang, content)
	if err != nil {
		return nil, err
	}

	tree, err := syntax.NewTree(root)
	if err != nil {
		return nil, fmt.Errorf("index %s tree: %w", lang, err)
	}

	return tree, nil
}

// ParseNode converts content into a syntax node without indexing it.
func (p *Parser) ParseNode(ctx context.Context, lang Language, content []byte) (*syntax.Node, error) {
	pool, err := p.pool(lang)
	if err != nil {
		return nil, err
	}

	tsParser, ok := pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer pool.Put(tsParser)

	tsTree, err := tsParser.ParseString(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", lang, err)
	}
	defer tsTree.Close()

	root := tsTree.RootNode()
	if root.IsNull() {
		return nil, ErrNoRootNode
	}

	conv := &converter{src: content}
	node := grammars[lang].convert(conv, root)

	if conv.err != nil {
		return nil, fmt.Errorf("convert %s: %w", lang, conv.err)
	}

	return node, nil
}

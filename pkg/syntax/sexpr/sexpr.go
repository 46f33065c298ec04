// Package sexpr reads syntax trees written in a compact s-expression notation.
//
// Grammar:
//
//	node     := '(' head item* ')'
//	head     := Kind [ ':' name [ '/' arity ] ]
//	item     := '{' modifier* '}' | string | node
//	string   := '"' characters with \" and \\ escapes '"'
//
// Several strings inside one node are joined with a single space into the node
// token. A ';' starts a comment that runs to the end of the line and is layout only.
// Every node span covers the text from its '(' to its ')' inclusive, so two
// notations differing only in layout yield equal trees at different positions.
package sexpr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

// Sentinel errors for s-expression parsing.
var (
	ErrSyntax       = errors.New("sexpr syntax error")
	ErrTrailingData = errors.New("sexpr trailing data after root node")
)

// Parse reads exactly one root node from src.
func Parse(src string) (*syntax.Node, error) {
	reader := &reader{src: src, lines: lineStarts(src)}

	reader.skipLayout()

	root, err := reader.node()
	if err != nil {
		return nil, err
	}

	reader.skipLayout()

	if reader.pos < len(reader.src) {
		return nil, fmt.Errorf("%w at %s", ErrTrailingData, reader.where(reader.pos))
	}

	return root, nil
}

// MustParse is Parse for fixtures known to be valid.
func MustParse(src string) *syntax.Node {
	root, err := Parse(src)
	if err != nil {
		panic(err)
	}

	return root
}

type reader struct {
	src   string
	lines []int
	pos   int
}

func lineStarts(src string) []int {
	starts := []int{0}

	for idx := range len(src) {
		if src[idx] == '\n' {
			starts = append(starts, idx+1)
		}
	}

	return starts
}

// location converts a byte offset into 1-based line and column.
func (r *reader) location(offset int) (line, col int) {
	low, high := 0, len(r.lines)-1

	for low < high {
		mid := (low + high + 1) / 2
		if r.lines[mid] <= offset {
			low = mid
		} else {
			high = mid - 1
		}
	}

	return low + 1, offset - r.lines[low] + 1
}

func (r *reader) where(offset int) string {
	line, col := r.location(offset)

	return fmt.Sprintf("%d:%d", line, col)
}

func (r *reader) span(start, end int) syntax.Span {
	startLine, startCol := r.location(start)
	endLine, endCol := r.location(end)

	return syntax.Span{
		StartOffset: start,
		EndOffset:   end,
		StartLine:   startLine,
		StartCol:    startCol,
		EndLine:     endLine,
		EndCol:      endCol,
	}
}

func (r *reader) skipLayout() {
	for r.pos < len(r.src) {
		switch r.src[r.pos] {
		case ' ', '\t', '\n', '\r':
			r.pos++
		case ';':
			for r.pos < len(r.src) && r.src[r.pos] != '\n' {
				r.pos++
			}
		default:
			return
		}
	}
}

func (r *reader) expect(char byte) error {
	if r.pos >= len(r.src) || r.src[r.pos] != char {
		return fmt.Errorf("%w: expected %q at %s", ErrSyntax, char, r.where(r.pos))
	}

	r.pos++

	return nil
}

func (r *reader) node() (*syntax.Node, error) {
	start := r.pos

	openErr := r.expect('(')
	if openErr != nil {
		return nil, openErr
	}

	builder, headErr := r.head()
	if headErr != nil {
		return nil, headErr
	}

	var tokens []string

	for {
		r.skipLayout()

		if r.pos >= len(r.src) {
			return nil, fmt.Errorf("%w: unterminated node opened at %s", ErrSyntax, r.where(start))
		}

		switch r.src[r.pos] {
		case ')':
			r.pos++

			return builder.
				WithToken(strings.Join(tokens, " ")).
				WithSpan(r.span(start, r.pos)).
				Build(), nil
		case '(':
			child, childErr := r.node()
			if childErr != nil {
				return nil, childErr
			}

			builder.WithChildren(child)
		case '{':
			modifiers, modErr := r.modifiers()
			if modErr != nil {
				return nil, modErr
			}

			builder.WithModifiers(modifiers...)
		case '"':
			token, strErr := r.quoted()
			if strErr != nil {
				return nil, strErr
			}

			tokens = append(tokens, token)
		default:
			return nil, fmt.Errorf("%w: unexpected %q at %s", ErrSyntax, r.src[r.pos], r.where(r.pos))
		}
	}
}

func (r *reader) head() (*syntax.Builder, error) {
	word := r.word()

	kindName, rest, hasName := strings.Cut(word, ":")

	kind, ok := syntax.ParseKind(kindName)
	if !ok {
		return nil, fmt.Errorf("%w: %w %q at %s", ErrSyntax, syntax.ErrUnknownKind, kindName, r.where(r.pos-len(word)))
	}

	builder := syntax.NewBuilder(kind)

	if !hasName {
		return builder, nil
	}

	name, arityText, hasArity := strings.Cut(rest, "/")
	builder.WithName(name)

	if hasArity {
		arity, err := strconv.Atoi(arityText)
		if err != nil || arity < 0 {
			return nil, fmt.Errorf("%w: bad arity %q at %s", ErrSyntax, arityText, r.where(r.pos))
		}

		builder.WithArity(arity)
	}

	return builder, nil
}

func (r *reader) word() string {
	start := r.pos

	for r.pos < len(r.src) && !isDelimiter(r.src[r.pos]) {
		r.pos++
	}

	return r.src[start:r.pos]
}

func isDelimiter(char byte) bool {
	switch char {
	case ' ', '\t', '\n', '\r', '(', ')', '{', '}', '"', ';':
		return true
	default:
		return false
	}
}

func (r *reader) modifiers() ([]string, error) {
	start := r.pos
	r.pos++

	var modifiers []string

	for {
		r.skipLayout()

		if r.pos >= len(r.src) {
			return nil, fmt.Errorf("%w: unterminated modifier list at %s", ErrSyntax, r.where(start))
		}

		if r.src[r.pos] == '}' {
			r.pos++

			return modifiers, nil
		}

		modifier := r.word()
		if modifier == "" {
			return nil, fmt.Errorf("%w: unexpected %q in modifier list at %s", ErrSyntax, r.src[r.pos], r.where(r.pos))
		}

		modifiers = append(modifiers, modifier)
	}
}

func (r *reader) quoted() (string, error) {
	start := r.pos
	r.pos++

	var buf strings.Builder

	for r.pos < len(r.src) {
		char := r.src[r.pos]
		r.pos++

		switch char {
		case '"':
			return buf.String(), nil
		case '\\':
			if r.pos >= len(r.src) {
				return "", fmt.Errorf("%w: dangling escape at %s", ErrSyntax, r.where(r.pos))
			}

			buf.WriteByte(r.src[r.pos])
			r.pos++
		default:
			buf.WriteByte(char)
		}
	}

	return "", fmt.Errorf("%w: unterminated string at %s", ErrSyntax, r.where(start))
}

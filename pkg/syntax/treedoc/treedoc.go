// Package treedoc reads and writes syntax trees as JSON or YAML documents.
// Documents are checked against an embedded JSON schema before decoding, so a
// front end in any language can hand trees to the engine.
package treedoc

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

// Version is the document format version written by Encode.
const Version = 1

// Sentinel errors for tree documents.
var (
	ErrInvalidDocument = errors.New("invalid tree document")
	ErrUnknownFormat   = errors.New("unknown tree document format")
)

//go:embed treedoc.schema.json
var schema []byte

var schemaLoader = gojsonschema.NewBytesLoader(schema)

// Format selects the document encoding.
type Format string

// Document encodings.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the encoding from a file extension.
func FormatOf(path string) (Format, error) {
	lower := strings.ToLower(path)

	switch {
	case strings.HasSuffix(lower, ".json"):
		return FormatJSON, nil
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Document is a syntax tree with its provenance.
type Document struct {
	Version  int          `json:"version"            yaml:"version"`
	Language string       `json:"language,omitempty" yaml:"language,omitempty"`
	Path     string       `json:"path,omitempty"     yaml:"path,omitempty"`
	Root     *syntax.Node `json:"root"               yaml:"root"`
}

// Decode reads one document. JSON is read through the YAML decoder, which
// accepts it unchanged.
func Decode(reader io.Reader) (*Document, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read tree document: %w", err)
	}

	var generic any

	err = yaml.Unmarshal(raw, &generic)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(generic))
	if err != nil {
		return nil, fmt.Errorf("validate tree document: %w", err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			problems = append(problems, resultErr.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(problems, "; "))
	}

	var doc Document

	err = yaml.Unmarshal(raw, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if doc.Version == 0 {
		doc.Version = Version
	}

	return &doc, nil
}

// DecodeTree reads a document and indexes its root.
func DecodeTree(reader io.Reader) (*syntax.Tree, error) {
	doc, err := Decode(reader)
	if err != nil {
		return nil, err
	}

	tree, err := syntax.NewTree(doc.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return tree, nil
}

// Encode writes doc in the given format.
func Encode(writer io.Writer, doc *Document, format Format) error {
	out := *doc
	if out.Version == 0 {
		out.Version = Version
	}

	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")

		err := encoder.Encode(out)
		if err != nil {
			return fmt.Errorf("encode tree document: %w", err)
		}
	case FormatYAML:
		encoder := yaml.NewEncoder(writer)
		defer encoder.Close()

		err := encoder.Encode(out)
		if err != nil {
			return fmt.Errorf("encode tree document: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return nil
}

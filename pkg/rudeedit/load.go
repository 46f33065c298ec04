package rudeedit

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/treematch"
)

//go:embed rules.schema.json
var ruleSchema []byte

type tableDoc struct {
	ExtendsDefault bool      `yaml:"extends_default,omitempty"`
	Rules          []ruleDoc `yaml:"rules"`
}

type ruleDoc struct {
	Edit       string   `yaml:"edit"`
	Node       string   `yaml:"node"`
	When       []string `yaml:"when,omitempty"`
	Unless     []string `yaml:"unless,omitempty"`
	Diagnostic string   `yaml:"diagnostic,omitempty"`
	Severity   string   `yaml:"severity,omitempty"`
	Requires   []string `yaml:"requires,omitempty"`
}

// LoadTable reads a YAML rule table. The document is validated against the
// embedded schema before it is decoded. With extends_default set, the loaded
// rules take precedence over DefaultTable, which is appended after them.
func LoadTable(reader io.Reader) (*Table, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read rule table: %w", err)
	}

	var generic any

	err = yaml.Unmarshal(raw, &generic)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(ruleSchema),
		gojsonschema.NewGoLoader(generic),
	)
	if err != nil {
		return nil, fmt.Errorf("validate rule table: %w", err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			problems = append(problems, resultErr.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidTable, strings.Join(problems, "; "))
	}

	var doc tableDoc

	err = yaml.Unmarshal(raw, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}

	rules := make([]Rule, 0, len(doc.Rules))

	for idx, entry := range doc.Rules {
		rule, ruleErr := entry.rule()
		if ruleErr != nil {
			return nil, fmt.Errorf("%w: rule %d: %w", ErrInvalidTable, idx, ruleErr)
		}

		rules = append(rules, rule)
	}

	if doc.ExtendsDefault {
		rules = append(rules, DefaultTable().Rules()...)
	}

	return NewTable(rules), nil
}

func (entry ruleDoc) rule() (Rule, error) {
	var (
		rule Rule
		err  error
	)

	rule.Edit, err = parseEditKind(entry.Edit)
	if err != nil {
		return rule, err
	}

	node, ok := syntax.ParseKind(entry.Node)
	if !ok {
		return rule, fmt.Errorf("%w: %q", syntax.ErrUnknownKind, entry.Node)
	}

	rule.Node = node

	rule.When, err = ParseContext(entry.When)
	if err != nil {
		return rule, err
	}

	rule.Unless, err = ParseContext(entry.Unless)
	if err != nil {
		return rule, err
	}

	rule.Requires, err = ParseCapabilities(entry.Requires)
	if err != nil {
		return rule, err
	}

	if entry.Diagnostic != "" && entry.Diagnostic != "allow" {
		rule.Diagnostic, err = ParseKind(entry.Diagnostic)
		if err != nil {
			return rule, err
		}
	}

	if entry.Severity != "" {
		rule.Severity, err = ParseSeverity(entry.Severity)
		if err != nil {
			return rule, err
		}
	} else if rule.Diagnostic != KindNone {
		rule.Severity = Blocking
	}

	return rule, nil
}

func parseEditKind(name string) (treematch.EditKind, error) {
	for _, kind := range []treematch.EditKind{
		treematch.EditInsert, treematch.EditDelete, treematch.EditUpdate, treematch.EditMove,
	} {
		if strings.EqualFold(kind.String(), name) {
			return kind, nil
		}
	}

	return 0, fmt.Errorf("%w: unknown edit kind %q", ErrInvalidTable, name)
}

// WriteTable renders a table in the YAML format read by LoadTable.
func WriteTable(writer io.Writer, table *Table) error {
	doc := tableDoc{Rules: make([]ruleDoc, 0, table.Len())}

	for _, rule := range table.Rules() {
		entry := ruleDoc{
			Edit:     strings.ToLower(rule.Edit.String()),
			Node:     rule.Node.String(),
			When:     rule.When.Names(),
			Unless:   rule.Unless.Names(),
			Requires: rule.Requires.Names(),
		}

		if rule.Diagnostic == KindNone {
			entry.Diagnostic = "allow"
		} else {
			entry.Diagnostic = rule.Diagnostic.String()
			entry.Severity = rule.Severity.String()
		}

		doc.Rules = append(doc.Rules, entry)
	}

	encoder := yaml.NewEncoder(writer)
	defer encoder.Close()

	err := encoder.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode rule table: %w", err)
	}

	return nil
}

package rudeedit

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/treematch"
)

// Context is the set of structural facts about an edited node.
type Context uint8

// Context flags.
const (
	CtxInLoop Context = 1 << iota
	CtxInLambda
	CtxInExceptionHandler
	CtxAroundActiveStatement
	CtxInStateMachine
	CtxIsActiveStatement
)

var contextNames = []string{
	"in-loop",
	"in-lambda",
	"in-exception-handler",
	"around-active-statement",
	"in-state-machine",
	"is-active-statement",
}

// ParseContext builds a context set from flag names.
func ParseContext(names []string) (Context, error) {
	var ctx Context

	for _, name := range names {
		found := false

		for idx, known := range contextNames {
			if known == strings.ToLower(name) {
				ctx |= 1 << idx
				found = true

				break
			}
		}

		if !found {
			return 0, fmt.Errorf("%w: %q", ErrUnknownContext, name)
		}
	}

	return ctx, nil
}

// Names returns the flag names of the set.
func (c Context) Names() []string {
	var names []string

	for idx, name := range contextNames {
		if c&(1<<idx) != 0 {
			names = append(names, name)
		}
	}

	return names
}

func (c Context) String() string {
	return strings.Join(c.Names(), ",")
}

// Rule maps an (edit kind, node kind) pair, filtered by context, to a
// diagnostic. A rule with Diagnostic KindNone allows the edit outright. A rule
// with Requires reports only when the host lacks that capability.
type Rule struct {
	Edit       treematch.EditKind
	Node       syntax.Kind
	When       Context
	Unless     Context
	Diagnostic Kind
	Severity   Severity
	Requires   Capabilities
}

// Applies reports whether the rule covers the edit in the given context.
func (r Rule) Applies(edit treematch.EditKind, node syntax.Kind, ctx Context) bool {
	return r.Edit == edit && r.Node == node && ctx&r.When == r.When && ctx&r.Unless == 0
}

func (r Rule) String() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "%s %s", r.Edit, r.Node)

	if r.When != 0 {
		fmt.Fprintf(&buf, " when [%s]", r.When)
	}

	if r.Unless != 0 {
		fmt.Fprintf(&buf, " unless [%s]", r.Unless)
	}

	if r.Requires != 0 {
		fmt.Fprintf(&buf, " requires [%s]", r.Requires)
	}

	if r.Diagnostic == KindNone {
		buf.WriteString(" -> allow")
	} else {
		fmt.Fprintf(&buf, " -> %s %s", r.Severity, r.Diagnostic)
	}

	return buf.String()
}

// Table is an ordered rule list; the first applicable rule wins.
type Table struct {
	rules []Rule
	index map[ruleKey][]int
}

type ruleKey struct {
	edit treematch.EditKind
	node syntax.Kind
}

// NewTable indexes rules in the given order.
func NewTable(rules []Rule) *Table {
	table := &Table{rules: rules, index: make(map[ruleKey][]int)}

	for idx, rule := range rules {
		key := ruleKey{edit: rule.Edit, node: rule.Node}
		table.index[key] = append(table.index[key], idx)
	}

	return table
}

// Rules returns the rules in evaluation order.
func (t *Table) Rules() []Rule {
	return t.rules
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.rules)
}

// Lookup returns the first rule applicable to the edit.
func (t *Table) Lookup(edit treematch.EditKind, node syntax.Kind, ctx Context) (Rule, bool) {
	for _, idx := range t.index[ruleKey{edit: edit, node: node}] {
		if t.rules[idx].Applies(edit, node, ctx) {
			return t.rules[idx], true
		}
	}

	return Rule{}, false
}

var regionKinds = []syntax.Kind{
	syntax.KindTry, syntax.KindCatch, syntax.KindFinally, syntax.KindLock, syntax.KindUsing,
}

// DefaultTable returns the built-in body rules.
func DefaultTable() *Table {
	var rules []Rule

	for _, kind := range regionKinds {
		rules = append(rules,
			Rule{
				Edit: treematch.EditInsert, Node: kind, When: CtxAroundActiveStatement,
				Diagnostic: KindInsertAroundActiveStatement, Severity: Blocking,
			},
			Rule{
				Edit: treematch.EditDelete, Node: kind, When: CtxAroundActiveStatement,
				Diagnostic: KindDeleteAroundActiveStatement, Severity: Blocking,
			},
		)
	}

	for _, kind := range []syntax.Kind{syntax.KindForEach, syntax.KindLock, syntax.KindUsing} {
		rules = append(rules, Rule{
			Edit: treematch.EditUpdate, Node: kind, When: CtxAroundActiveStatement,
			Diagnostic: KindUpdateAroundActiveStatement, Severity: Blocking,
		})
	}

	for _, edit := range []treematch.EditKind{treematch.EditInsert, treematch.EditUpdate} {
		rules = append(rules, Rule{
			Edit: edit, Node: syntax.KindGoto,
			Diagnostic: KindUnsupportedConstruct, Severity: Informational,
		})
	}

	rules = append(rules, Rule{
		Edit: treematch.EditInsert, Node: syntax.KindLambda, Requires: CapAddMethod,
		Diagnostic: KindCapabilityRequired, Severity: Blocking,
	})

	return NewTable(rules)
}

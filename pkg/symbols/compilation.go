package symbols

import (
	"slices"
	"strings"
	"unicode"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

// Symbol is the resolved view of a declaration.
type Symbol struct {
	Key       Key
	Kind      syntax.Kind
	Contracts []Key
}

// Compilation resolves symbol facts for one version of the program. A fresh
// Compilation is supplied for every analysis; nothing obtained from it is
// retained across calls.
type Compilation interface {
	// Lookup resolves a declaration by key.
	Lookup(key Key) (Symbol, bool)
	// TypeOf returns the static type of an expression or declaration node.
	TypeOf(n *syntax.Node) (string, bool)
	// CapturedVariables returns the sorted outer variables captured by a lambda.
	CapturedVariables(lambda *syntax.Node) []string
	// CallTarget returns the member a call binds to.
	CallTarget(call *syntax.Node) (Key, bool)
	// Implementations returns the sorted members implementing a contract.
	Implementations(contract Key) []Key
	// IsReferenced reports whether anything refers to the declaration.
	IsReferenced(key Key) bool
}

// Table is an in-memory Compilation over one syntax tree plus explicit facts.
type Table struct {
	tree         *syntax.Tree
	symbols      map[Key]*Symbol
	keys         map[*syntax.Node]Key
	types        map[*syntax.Node]string
	callTargets  map[*syntax.Node]Key
	contractImpl map[Key][]Key
	references   map[Key]int
}

var _ Compilation = (*Table)(nil)

// inferredTypeMarkers are declared types that leave the real type to inference.
var inferredTypeMarkers = []string{"", "var", "let", "auto", ":="}

// FromTree builds a table holding every declaration of tree. Call targets are
// bound by callee name, preferring members of the caller's own type, and every
// bound target counts as referenced.
func FromTree(tree *syntax.Tree) *Table {
	table := &Table{
		tree:         tree,
		symbols:      make(map[Key]*Symbol),
		keys:         make(map[*syntax.Node]Key),
		types:        make(map[*syntax.Node]string),
		callTargets:  make(map[*syntax.Node]Key),
		contractImpl: make(map[Key][]Key),
		references:   make(map[Key]int),
	}

	byName := make(map[string][]*syntax.Node)

	for _, n := range tree.Nodes() {
		if !n.Kind.IsDeclaration() || n.Kind == syntax.KindCompilationUnit {
			continue
		}

		key := KeyOf(tree, n)
		table.keys[n] = key
		table.symbols[key] = &Symbol{Key: key, Kind: n.Kind}

		if n.Kind == syntax.KindMethod {
			byName[n.Name] = append(byName[n.Name], n)
		}
	}

	for _, n := range tree.Nodes() {
		if n.Kind != syntax.KindCall || n.Name == "" {
			continue
		}

		target := table.bindCall(n, byName[n.Name])
		if target == "" {
			continue
		}

		table.callTargets[n] = target
		table.references[target]++
	}

	return table
}

func (table *Table) bindCall(call *syntax.Node, candidates []*syntax.Node) Key {
	if len(candidates) == 0 {
		return ""
	}

	callerType := table.enclosing(call, syntax.KindType)

	var best Key

	for _, candidate := range candidates {
		key := table.keys[candidate]

		sameType := callerType != nil && table.tree.Parent(candidate) == callerType
		if sameType {
			return key
		}

		if best == "" || key < best {
			best = key
		}
	}

	return best
}

func (table *Table) enclosing(n *syntax.Node, kind syntax.Kind) *syntax.Node {
	for _, ancestor := range table.tree.Ancestors(n) {
		if ancestor.Kind == kind {
			return ancestor
		}
	}

	return nil
}

// KeyOf returns the key of a declaration node of the table's tree.
func (table *Table) KeyOf(decl *syntax.Node) (Key, bool) {
	key, ok := table.keys[decl]

	return key, ok
}

// SetType records the static type of a node.
func (table *Table) SetType(n *syntax.Node, typ string) {
	table.types[n] = typ
}

// SetCallTarget binds a call node to a member.
func (table *Table) SetCallTarget(call *syntax.Node, target Key) {
	if previous, ok := table.callTargets[call]; ok {
		table.references[previous]--
	}

	table.callTargets[call] = target
	table.references[target]++
}

// AddImplementation records that impl implements contract.
func (table *Table) AddImplementation(contract, impl Key) {
	if !slices.Contains(table.contractImpl[contract], impl) {
		table.contractImpl[contract] = append(table.contractImpl[contract], impl)
		slices.Sort(table.contractImpl[contract])
	}

	if symbol, ok := table.symbols[impl]; ok && !slices.Contains(symbol.Contracts, contract) {
		symbol.Contracts = append(symbol.Contracts, contract)
		slices.Sort(symbol.Contracts)
	}
}

// AddReference records a reference to key from outside the tree.
func (table *Table) AddReference(key Key) {
	table.references[key]++
}

// Lookup implements Compilation.
func (table *Table) Lookup(key Key) (Symbol, bool) {
	symbol, ok := table.symbols[key]
	if !ok {
		return Symbol{}, false
	}

	resolved := *symbol
	resolved.Contracts = slices.Clone(symbol.Contracts)

	return resolved, true
}

// TypeOf implements Compilation. Without a recorded fact, declarations report
// the type written before their name unless it is left to inference.
func (table *Table) TypeOf(n *syntax.Node) (string, bool) {
	if typ, ok := table.types[n]; ok {
		return typ, true
	}

	if n.Name == "" {
		return "", false
	}

	switch n.Kind {
	case syntax.KindLocalDeclaration, syntax.KindParameter, syntax.KindField, syntax.KindProperty:
	default:
		return "", false
	}

	text := syntax.NormalizeToken(n.Token)

	before, _, found := strings.Cut(" "+text+" ", " "+n.Name+" ")
	if !found {
		return "", false
	}

	declared := strings.TrimSpace(before)
	if slices.Contains(inferredTypeMarkers, declared) {
		return "", false
	}

	return declared, true
}

// CapturedVariables implements Compilation: locals and parameters of the
// enclosing member, declared outside the lambda, whose names occur in it.
func (table *Table) CapturedVariables(lambda *syntax.Node) []string {
	member := table.enclosingMember(lambda)
	if member == nil {
		return nil
	}

	outer := make(map[string]bool)

	member.VisitPreOrder(func(n *syntax.Node) {
		if n.Name == "" || (n.Kind != syntax.KindLocalDeclaration && n.Kind != syntax.KindParameter) {
			return
		}

		if n == lambda || table.tree.IsAncestor(lambda, n) {
			return
		}

		outer[n.Name] = true
	})

	var captured []string

	for _, word := range identifiers(lambda.Text()) {
		if outer[word] && !slices.Contains(captured, word) {
			captured = append(captured, word)
		}
	}

	slices.Sort(captured)

	return captured
}

func (table *Table) enclosingMember(n *syntax.Node) *syntax.Node {
	for _, ancestor := range table.tree.Ancestors(n) {
		if ancestor.Kind.IsMember() {
			return ancestor
		}
	}

	return nil
}

func identifiers(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// CallTarget implements Compilation.
func (table *Table) CallTarget(call *syntax.Node) (Key, bool) {
	key, ok := table.callTargets[call]

	return key, ok
}

// Implementations implements Compilation.
func (table *Table) Implementations(contract Key) []Key {
	return slices.Clone(table.contractImpl[contract])
}

// IsReferenced implements Compilation.
func (table *Table) IsReferenced(key Key) bool {
	return table.references[key] > 0
}

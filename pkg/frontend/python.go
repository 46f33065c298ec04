package frontend

import (
	"slices"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

var pythonExpressions = expressionKinds{
	call:   "call",
	await:  "await",
	lambda: []string{"lambda"},
	stop:   []string{"function_definition", "class_definition", "decorated_definition", "block"},
}

// pythonClauses are the children of compound statements converted as statements.
var pythonClauses = map[string]bool{
	"elif_clause":         true,
	"else_clause":         true,
	"except_clause":       true,
	"except_group_clause": true,
	"finally_clause":      true,
	"case_clause":         true,
}

type pythonConverter struct {
	*converter
}

func convertPython(c *converter, root sitter.Node) *syntax.Node {
	py := pythonConverter{converter: c}

	return c.node(syntax.KindCompilationUnit, root).WithChildren(py.declarations(root, false)...).Build()
}

// declarations converts the members of a module or class body. Statements
// that declare nothing are not part of the declaration tree.
func (py pythonConverter) declarations(body sitter.Node, inType bool) []*syntax.Node {
	var decls []*syntax.Node

	for _, child := range namedChildren(body) {
		if decl := py.declaration(child, nil, inType); decl != nil {
			decls = append(decls, decl)
		}
	}

	return decls
}

func (py pythonConverter) declaration(n sitter.Node, decorators []string, inType bool) *syntax.Node {
	switch n.Type() {
	case "comment":
		return py.comment(n)
	case "decorated_definition":
		for _, child := range namedChildren(n) {
			if child.Type() == "decorator" {
				decorators = append(decorators, strings.TrimPrefix(syntax.NormalizeToken(py.text(child)), "@"))
			}
		}

		definition := n.ChildByFieldName("definition")
		if definition.IsNull() {
			return nil
		}

		return py.declaration(definition, decorators, inType)
	case "class_definition":
		body := n.ChildByFieldName("body")

		return py.node(syntax.KindType, n).
			WithName(py.field(n, "name")).
			WithArity(py.arity(n, "type_parameters")).
			WithModifiers(decorators...).
			WithToken(py.header(n, body)).
			WithChildren(py.declarations(body, true)...).
			Build()
	case "function_definition":
		return py.function(n, decorators, inType)
	case "expression_statement":
		return py.attribute(n)
	default:
		return nil
	}
}

func (py pythonConverter) function(n sitter.Node, decorators []string, inType bool) *syntax.Node {
	name := py.field(n, "name")
	kind := syntax.KindMethod

	var modifiers []string

	for _, decorator := range decorators {
		switch decorator {
		case "staticmethod":
			modifiers = append(modifiers, "static")
		case "property":
			kind = syntax.KindProperty
		default:
			modifiers = append(modifiers, decorator)
		}
	}

	if inType && name == "__init__" {
		kind = syntax.KindConstructor
	}

	if isAsync(n) {
		modifiers = append(modifiers, "async")
	}

	bound := inType && !slices.Contains(modifiers, "static")
	children := []*syntax.Node{py.parameters(n.ChildByFieldName("parameters"), bound)}

	if ret := n.ChildByFieldName("return_type"); !ret.IsNull() {
		children = append(children, py.node(syntax.KindReturnType, ret).
			WithToken(syntax.NormalizeToken(py.text(ret))).
			Build())
	}

	children = append(children, py.block(n.ChildByFieldName("body")))

	return py.node(kind, n).
		WithName(name).
		WithArity(py.arity(n, "type_parameters")).
		WithModifiers(modifiers...).
		WithChildren(children...).
		Build()
}

func isAsync(n sitter.Node) bool {
	return n.ChildCount() > 0 && n.Child(0).Type() == "async"
}

// parameters converts a parameter list. The receiver of a bound method is
// implicit and left out.
func (py pythonConverter) parameters(n sitter.Node, bound bool) *syntax.Node {
	if n.IsNull() {
		return syntax.NewBuilder(syntax.KindParameterList).Build()
	}

	list := py.node(syntax.KindParameterList, n)

	for idx, child := range namedChildren(n) {
		var name, typ string

		switch child.Type() {
		case "identifier":
			if bound && idx == 0 {
				continue
			}

			name = py.text(child)
		case "typed_parameter":
			typ = py.field(child, "type")
			if first := child.NamedChild(0); !first.IsNull() {
				name = py.text(first)
			}
		case "default_parameter":
			name = py.field(child, "name")
		case "typed_default_parameter":
			name = py.field(child, "name")
			typ = py.field(child, "type")
		case "list_splat_pattern", "dictionary_splat_pattern":
			name = py.text(child)
		default:
			continue
		}

		list.WithChildren(py.node(syntax.KindParameter, child).
			WithName(name).
			WithToken(declaredToken(typ, name, "")).
			Build())
	}

	return list.Build()
}

// attribute converts a module or class level statement: docstrings become
// comments and simple assignments become static fields.
func (py pythonConverter) attribute(n sitter.Node) *syntax.Node {
	expr := n.NamedChild(0)
	if expr.IsNull() {
		return nil
	}

	switch expr.Type() {
	case "string":
		return py.comment(n)
	case "assignment":
		left := expr.ChildByFieldName("left")
		if left.IsNull() || left.Type() != "identifier" {
			return nil
		}

		name := py.text(left)
		rest := ""

		if right := expr.ChildByFieldName("right"); !right.IsNull() {
			rest = "= " + py.text(right)
		}

		return py.node(syntax.KindField, n).
			WithName(name).
			WithModifiers("static").
			WithToken(declaredToken(py.field(expr, "type"), name, rest)).
			Build()
	default:
		return nil
	}
}

func (py pythonConverter) block(n sitter.Node) *syntax.Node {
	if n.IsNull() {
		return syntax.NewBuilder(syntax.KindBlock).Build()
	}

	block := py.node(syntax.KindBlock, n)

	for _, child := range namedChildren(n) {
		if stmt := py.statement(child); stmt != nil {
			block.WithChildren(stmt)
		}
	}

	return block.Build()
}

func (py pythonConverter) statement(n sitter.Node) *syntax.Node {
	switch n.Type() {
	case "comment":
		return py.comment(n)
	case "expression_statement":
		return py.expressionStatement(n)
	case "if_statement":
		return py.compound(syntax.KindIf, n, "consequence")
	case "elif_clause":
		return py.compound(syntax.KindElse, n, "consequence")
	case "else_clause":
		return py.compound(syntax.KindElse, n, "body")
	case "while_statement":
		return py.compound(syntax.KindWhile, n, "body")
	case "for_statement":
		return py.compound(syntax.KindForEach, n, "body")
	case "try_statement":
		return py.compound(syntax.KindTry, n, "body")
	case "except_clause", "except_group_clause":
		return py.compound(syntax.KindCatch, n, "")
	case "finally_clause":
		return py.compound(syntax.KindFinally, n, "")
	case "with_statement":
		return py.compound(syntax.KindUsing, n, "body")
	case "match_statement":
		return py.compound(syntax.KindSwitch, n, "body")
	case "case_clause":
		return py.compound(syntax.KindCase, n, "consequence")
	case "return_statement":
		return py.simple(syntax.KindReturn, n)
	case "raise_statement":
		return py.simple(syntax.KindThrow, n)
	case "break_statement":
		return py.simple(syntax.KindBreak, n)
	case "continue_statement":
		return py.simple(syntax.KindContinue, n)
	case "function_definition":
		return py.localFunction(n)
	case "decorated_definition":
		definition := n.ChildByFieldName("definition")
		if !definition.IsNull() && definition.Type() == "function_definition" {
			return py.localFunction(definition)
		}

		return py.simple(syntax.KindExpressionStatement, n)
	default:
		return py.simple(syntax.KindExpressionStatement, n)
	}
}

func (py pythonConverter) simple(kind syntax.Kind, n sitter.Node) *syntax.Node {
	return py.node(kind, n).
		WithToken(syntax.NormalizeToken(py.text(n))).
		WithChildren(py.expressions(n, pythonExpressions, py.lambda)...).
		Build()
}

func (py pythonConverter) expressionStatement(n sitter.Node) *syntax.Node {
	if py.yields(n) {
		return py.simple(syntax.KindYieldReturn, n)
	}

	expr := n.NamedChild(0)
	if !expr.IsNull() && expr.Type() == "assignment" {
		if left := expr.ChildByFieldName("left"); !left.IsNull() && left.Type() == "identifier" {
			return py.node(syntax.KindLocalDeclaration, n).
				WithName(py.text(left)).
				WithToken(syntax.NormalizeToken(py.text(n))).
				WithChildren(py.expressions(n, pythonExpressions, py.lambda)...).
				Build()
		}
	}

	return py.simple(syntax.KindExpressionStatement, n)
}

// yields reports whether n contains a yield outside nested functions and lambdas.
func (py pythonConverter) yields(n sitter.Node) bool {
	for _, child := range namedChildren(n) {
		switch child.Type() {
		case "yield":
			return true
		case "lambda", "function_definition", "class_definition":
			continue
		}

		if py.yields(child) {
			return true
		}
	}

	return false
}

// compound converts a statement with a body. Header expressions come first,
// then the body block, then the clauses that continue the statement.
func (py pythonConverter) compound(kind syntax.Kind, n sitter.Node, bodyField string) *syntax.Node {
	body := bodyOf(n, bodyField)
	stmt := py.node(kind, n).WithToken(py.header(n, body))

	for _, child := range namedChildren(n) {
		switch {
		case sameNode(child, body):
			stmt.WithChildren(py.block(child))
		case pythonClauses[child.Type()]:
			stmt.WithChildren(py.statement(child))
		case child.Type() == "comment":
			stmt.WithChildren(py.comment(child))
		default:
			stmt.WithChildren(py.expression(child, pythonExpressions, py.lambda)...)
		}
	}

	return stmt.Build()
}

func bodyOf(n sitter.Node, field string) sitter.Node {
	if field != "" {
		if body := n.ChildByFieldName(field); !body.IsNull() {
			return body
		}
	}

	for _, child := range namedChildren(n) {
		if child.Type() == "block" {
			return child
		}
	}

	return sitter.Node{}
}

func (py pythonConverter) lambda(n sitter.Node) *syntax.Node {
	body := n.ChildByFieldName("body")
	lambda := py.node(syntax.KindLambda, n).WithToken(py.header(n, body))

	if !body.IsNull() {
		lambda.WithChildren(py.node(syntax.KindExpression, body).
			WithToken(syntax.NormalizeToken(py.text(body))).
			WithChildren(py.expression(body, pythonExpressions, py.lambda)...).
			Build())
	}

	return lambda.Build()
}

// localFunction converts a function nested in a body. It runs in its own
// frame, so it is a named lambda of the enclosing member.
func (py pythonConverter) localFunction(n sitter.Node) *syntax.Node {
	body := n.ChildByFieldName("body")

	return py.node(syntax.KindLambda, n).
		WithName(py.field(n, "name")).
		WithToken(py.header(n, body)).
		WithChildren(py.block(body)).
		Build()
}

package frontend

import (
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

var goExpressions = expressionKinds{
	call:   "call_expression",
	lambda: []string{"func_literal"},
	stop:   []string{"block"},
}

type goConverter struct {
	*converter
}

// convertGo maps a Go source file onto one namespace named after the
// package. Methods stay at package level and are named Receiver.method.
func convertGo(c *converter, root sitter.Node) *syntax.Node {
	g := goConverter{converter: c}
	pkg := g.node(syntax.KindNamespace, root)

	for _, child := range namedChildren(root) {
		switch child.Type() {
		case "package_clause":
			if name := child.NamedChild(0); !name.IsNull() {
				pkg.WithName(g.text(name))
			}
		case "comment":
			pkg.WithChildren(g.comment(child))
		case "function_declaration":
			pkg.WithChildren(g.function(child, "", nil))
		case "method_declaration":
			receiver, modifiers := g.receiver(child.ChildByFieldName("receiver"))
			pkg.WithChildren(g.function(child, receiver, modifiers))
		case "type_declaration":
			pkg.WithChildren(g.types(child)...)
		case "const_declaration":
			pkg.WithChildren(g.values(child, "const", "static")...)
		case "var_declaration":
			pkg.WithChildren(g.values(child, "static")...)
		default:
		}
	}

	return g.node(syntax.KindCompilationUnit, root).WithChildren(pkg.Build()).Build()
}

// receiver returns the receiver type name and the modifiers it implies.
func (g goConverter) receiver(list sitter.Node) (string, []string) {
	if list.IsNull() {
		return "", nil
	}

	param := list.NamedChild(0)
	if param.IsNull() {
		return "", nil
	}

	text := g.field(param, "type")

	var modifiers []string

	if strings.HasPrefix(text, "*") {
		modifiers = append(modifiers, "pointer-receiver")
		text = strings.TrimSpace(strings.TrimPrefix(text, "*"))
	}

	if idx := strings.IndexByte(text, '['); idx >= 0 {
		text = text[:idx]
	}

	return text, modifiers
}

func (g goConverter) function(n sitter.Node, receiver string, modifiers []string) *syntax.Node {
	name := g.field(n, "name")
	if receiver != "" {
		name = receiver + "." + name
	}

	children := []*syntax.Node{g.parameters(n.ChildByFieldName("parameters"))}

	if result := n.ChildByFieldName("result"); !result.IsNull() {
		children = append(children, g.node(syntax.KindReturnType, result).
			WithToken(syntax.NormalizeToken(g.text(result))).
			Build())
	}

	if body := n.ChildByFieldName("body"); !body.IsNull() {
		children = append(children, g.block(body))
	}

	return g.node(syntax.KindMethod, n).
		WithName(name).
		WithArity(g.arity(n, "type_parameters")).
		WithModifiers(modifiers...).
		WithChildren(children...).
		Build()
}

func (g goConverter) parameters(n sitter.Node) *syntax.Node {
	if n.IsNull() {
		return syntax.NewBuilder(syntax.KindParameterList).Build()
	}

	list := g.node(syntax.KindParameterList, n)

	for _, param := range namedChildren(n) {
		typ := g.field(param, "type")

		switch param.Type() {
		case "parameter_declaration":
			var names []sitter.Node

			for _, child := range namedChildren(param) {
				if child.Type() == "identifier" {
					names = append(names, child)
				}
			}

			if len(names) == 0 {
				list.WithChildren(g.node(syntax.KindParameter, param).WithToken(typ).Build())
			}

			for _, name := range names {
				list.WithChildren(g.node(syntax.KindParameter, name).
					WithName(g.text(name)).
					WithToken(declaredToken(typ, g.text(name), "")).
					Build())
			}
		case "variadic_parameter_declaration":
			name := g.field(param, "name")
			list.WithChildren(g.node(syntax.KindParameter, param).
				WithName(name).
				WithToken(declaredToken("..."+typ, name, "")).
				Build())
		default:
		}
	}

	return list.Build()
}

func (g goConverter) types(decl sitter.Node) []*syntax.Node {
	var types []*syntax.Node

	for _, spec := range namedChildren(decl) {
		switch spec.Type() {
		case "type_spec", "type_alias":
		case "comment":
			types = append(types, g.comment(spec))

			continue
		default:
			continue
		}

		typ := spec.ChildByFieldName("type")
		builder := g.node(syntax.KindType, spec).
			WithName(g.field(spec, "name")).
			WithArity(g.arity(spec, "type_parameters"))

		if spec.Type() == "type_alias" {
			builder.WithModifiers("alias")
		}

		switch {
		case typ.IsNull():
		case typ.Type() == "struct_type":
			builder.WithToken("struct").WithChildren(g.structFields(typ)...)
		case typ.Type() == "interface_type":
			builder.WithToken("interface").WithChildren(g.interfaceMethods(typ)...)
		default:
			builder.WithToken(syntax.NormalizeToken(g.text(typ)))
		}

		types = append(types, builder.Build())
	}

	return types
}

func (g goConverter) structFields(structType sitter.Node) []*syntax.Node {
	var fields []*syntax.Node

	for _, list := range namedChildren(structType) {
		for _, field := range namedChildren(list) {
			if field.Type() == "comment" {
				fields = append(fields, g.comment(field))

				continue
			}

			if field.Type() != "field_declaration" {
				continue
			}

			typ := g.field(field, "type")
			tag := g.field(field, "tag")

			var names []string

			for _, child := range namedChildren(field) {
				if child.Type() == "field_identifier" {
					names = append(names, g.text(child))
				}
			}

			if len(names) == 0 {
				names = append(names, strings.TrimPrefix(typ, "*"))
			}

			for _, name := range names {
				fields = append(fields, g.node(syntax.KindField, field).
					WithName(name).
					WithToken(declaredToken(typ, name, tag)).
					Build())
			}
		}
	}

	return fields
}

func (g goConverter) interfaceMethods(iface sitter.Node) []*syntax.Node {
	var methods []*syntax.Node

	for _, elem := range namedChildren(iface) {
		switch elem.Type() {
		case "method_elem", "method_spec":
			children := []*syntax.Node{g.parameters(elem.ChildByFieldName("parameters"))}

			if result := elem.ChildByFieldName("result"); !result.IsNull() {
				children = append(children, g.node(syntax.KindReturnType, result).
					WithToken(syntax.NormalizeToken(g.text(result))).
					Build())
			}

			methods = append(methods, g.node(syntax.KindMethod, elem).
				WithName(g.field(elem, "name")).
				WithModifiers("abstract").
				WithChildren(children...).
				Build())
		case "comment":
			methods = append(methods, g.comment(elem))
		default:
			text := syntax.NormalizeToken(g.text(elem))
			methods = append(methods, g.node(syntax.KindField, elem).
				WithName(text).
				WithModifiers("embedded").
				WithToken(text).
				Build())
		}
	}

	return methods
}

// values converts package level const and var specs into fields.
func (g goConverter) values(decl sitter.Node, modifiers ...string) []*syntax.Node {
	var fields []*syntax.Node

	var specs []sitter.Node

	for _, child := range namedChildren(decl) {
		if child.Type() == "var_spec_list" {
			specs = append(specs, namedChildren(child)...)

			continue
		}

		specs = append(specs, child)
	}

	for _, spec := range specs {
		if spec.Type() == "comment" {
			fields = append(fields, g.comment(spec))

			continue
		}

		if spec.Type() != "const_spec" && spec.Type() != "var_spec" {
			continue
		}

		typ := g.field(spec, "type")
		rest := ""

		if value := spec.ChildByFieldName("value"); !value.IsNull() {
			rest = "= " + g.text(value)
		}

		for _, child := range namedChildren(spec) {
			if child.Type() != "identifier" {
				continue
			}

			name := g.text(child)
			fields = append(fields, g.node(syntax.KindField, spec).
				WithName(name).
				WithModifiers(modifiers...).
				WithToken(declaredToken(typ, name, rest)).
				Build())
		}
	}

	return fields
}

func (g goConverter) block(n sitter.Node) *syntax.Node {
	block := g.node(syntax.KindBlock, n)
	block.WithChildren(g.statements(n)...)

	return block.Build()
}

// statements converts the statement children of n. A statement_list wrapper
// is flattened.
func (g goConverter) statements(n sitter.Node) []*syntax.Node {
	var stmts []*syntax.Node

	for _, child := range namedChildren(n) {
		if child.Type() == "statement_list" {
			stmts = append(stmts, g.statements(child)...)

			continue
		}

		if !isGoStatement(child.Type()) {
			continue
		}

		if stmt := g.statement(child); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}

	return stmts
}

func isGoStatement(typ string) bool {
	return typ == "block" || typ == "comment" ||
		strings.HasSuffix(typ, "_statement") || strings.HasSuffix(typ, "_declaration")
}

func (g goConverter) statement(n sitter.Node) *syntax.Node {
	switch n.Type() {
	case "comment":
		return g.comment(n)
	case "block":
		return g.block(n)
	case "empty_statement":
		return nil
	case "if_statement":
		return g.ifStatement(n)
	case "for_statement":
		return g.forStatement(n)
	case "expression_switch_statement", "type_switch_statement", "select_statement":
		return g.switchStatement(n)
	case "labeled_statement":
		label := g.field(n, "label")

		return g.node(syntax.KindLabeled, n).
			WithName(label).
			WithToken(label).
			WithChildren(g.statements(n)...).
			Build()
	case "return_statement":
		return g.simple(syntax.KindReturn, n)
	case "break_statement":
		return g.simple(syntax.KindBreak, n)
	case "continue_statement":
		return g.simple(syntax.KindContinue, n)
	case "goto_statement":
		return g.simple(syntax.KindGoto, n)
	case "short_var_declaration":
		return g.local(n, n.ChildByFieldName("left"))
	case "var_declaration", "const_declaration":
		return g.local(n, n)
	default:
		return g.simple(syntax.KindExpressionStatement, n)
	}
}

func (g goConverter) simple(kind syntax.Kind, n sitter.Node) *syntax.Node {
	return g.node(kind, n).
		WithToken(syntax.NormalizeToken(g.text(n))).
		WithChildren(g.expressions(n, goExpressions, g.lambda)...).
		Build()
}

// local converts a local declaration named after its first identifier under names.
func (g goConverter) local(n, names sitter.Node) *syntax.Node {
	builder := g.node(syntax.KindLocalDeclaration, n).
		WithToken(syntax.NormalizeToken(g.text(n))).
		WithChildren(g.expressions(n, goExpressions, g.lambda)...)

	if name := firstIdentifier(names); !name.IsNull() {
		builder.WithName(g.text(name))
	}

	return builder.Build()
}

func firstIdentifier(n sitter.Node) sitter.Node {
	if n.IsNull() {
		return sitter.Node{}
	}

	if n.Type() == "identifier" {
		return n
	}

	for _, child := range namedChildren(n) {
		if found := firstIdentifier(child); !found.IsNull() {
			return found
		}
	}

	return sitter.Node{}
}

func (g goConverter) ifStatement(n sitter.Node) *syntax.Node {
	consequence := n.ChildByFieldName("consequence")
	alternative := n.ChildByFieldName("alternative")
	stmt := g.node(syntax.KindIf, n).WithToken(g.header(n, consequence))

	for _, child := range namedChildren(n) {
		switch {
		case sameNode(child, consequence):
			stmt.WithChildren(g.block(child))
		case sameNode(child, alternative):
			var branch *syntax.Node
			if child.Type() == "if_statement" {
				branch = g.ifStatement(child)
			} else {
				branch = g.block(child)
			}

			stmt.WithChildren(g.node(syntax.KindElse, child).WithToken("else").WithChildren(branch).Build())
		case child.Type() == "comment":
			stmt.WithChildren(g.comment(child))
		default:
			stmt.WithChildren(g.expression(child, goExpressions, g.lambda)...)
		}
	}

	return stmt.Build()
}

func (g goConverter) forStatement(n sitter.Node) *syntax.Node {
	body := n.ChildByFieldName("body")
	kind := syntax.KindWhile

	for _, child := range namedChildren(n) {
		switch child.Type() {
		case "range_clause":
			kind = syntax.KindForEach
		case "for_clause":
			kind = syntax.KindFor
		}
	}

	stmt := g.node(kind, n).WithToken(g.header(n, body))

	for _, child := range namedChildren(n) {
		if sameNode(child, body) {
			stmt.WithChildren(g.block(child))

			continue
		}

		stmt.WithChildren(g.expression(child, goExpressions, g.lambda)...)
	}

	return stmt.Build()
}

func (g goConverter) switchStatement(n sitter.Node) *syntax.Node {
	var (
		cases  []*syntax.Node
		header []*syntax.Node
		first  sitter.Node
	)

	for _, child := range namedChildren(n) {
		switch child.Type() {
		case "expression_case", "default_case", "type_case", "communication_case":
			if first.IsNull() {
				first = child
			}

			cases = append(cases, g.caseClause(child))
		case "comment":
			cases = append(cases, g.comment(child))
		default:
			header = append(header, g.expression(child, goExpressions, g.lambda)...)
		}
	}

	return g.node(syntax.KindSwitch, n).
		WithToken(g.header(n, first)).
		WithChildren(header...).
		WithChildren(cases...).
		Build()
}

func (g goConverter) caseClause(n sitter.Node) *syntax.Node {
	var (
		labels []*syntax.Node
		first  sitter.Node
	)

	for _, child := range namedChildren(n) {
		if isGoStatement(child.Type()) || child.Type() == "statement_list" {
			if first.IsNull() {
				first = child
			}

			continue
		}

		labels = append(labels, g.expression(child, goExpressions, g.lambda)...)
	}

	token := g.header(n, first)
	if first.IsNull() {
		token = strings.TrimSuffix(token, ":")
	}

	return g.node(syntax.KindCase, n).
		WithToken(token).
		WithChildren(labels...).
		WithChildren(g.statements(n)...).
		Build()
}

func (g goConverter) lambda(n sitter.Node) *syntax.Node {
	body := n.ChildByFieldName("body")
	lambda := g.node(syntax.KindLambda, n).WithToken(g.header(n, body))

	if !body.IsNull() {
		lambda.WithChildren(g.block(body))
	}

	return lambda.Build()
}

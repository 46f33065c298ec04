// Package symbols provides resolvable symbol identity keys and the symbol
// resolution contract consumed by the semantic rude-edit tier.
//
// Analysis results never hold symbol handles. They carry a Key, which is
// re-resolved against whichever Compilation is current when it is applied.
package symbols

import (
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

// Key is the stable identity of a declaration, e.g. "M:App.C.f`1(int,string)".
type Key string

// Prefix returns the declaration category letter of the key.
func (k Key) Prefix() string {
	prefix, _, ok := strings.Cut(string(k), ":")
	if !ok {
		return ""
	}

	return prefix
}

func (k Key) String() string {
	return string(k)
}

func kindPrefix(kind syntax.Kind) string {
	switch kind {
	case syntax.KindNamespace:
		return "N"
	case syntax.KindType:
		return "T"
	case syntax.KindMethod, syntax.KindConstructor:
		return "M"
	case syntax.KindProperty:
		return "P"
	case syntax.KindField:
		return "F"
	case syntax.KindEvent:
		return "E"
	default:
		return "?"
	}
}

// KeyOf builds the key of a declaration node of tree. Methods and constructors
// include their parameter types so overloads get distinct keys.
func KeyOf(tree *syntax.Tree, decl *syntax.Node) Key {
	var buf strings.Builder

	buf.WriteString(kindPrefix(decl.Kind))
	buf.WriteByte(':')

	ancestors := tree.Ancestors(decl)

	for idx := len(ancestors) - 1; idx >= 0; idx-- {
		ancestor := ancestors[idx]
		if ancestor.Name == "" || (ancestor.Kind != syntax.KindNamespace && ancestor.Kind != syntax.KindType) {
			continue
		}

		writeSegment(&buf, ancestor)
		buf.WriteByte('.')
	}

	writeSegment(&buf, decl)

	if decl.Kind == syntax.KindMethod || decl.Kind == syntax.KindConstructor {
		buf.WriteByte('(')
		buf.WriteString(strings.Join(ParameterTypes(decl), ","))
		buf.WriteByte(')')
	}

	return Key(buf.String())
}

func writeSegment(buf *strings.Builder, decl *syntax.Node) {
	buf.WriteString(decl.Name)

	if decl.Arity > 0 {
		buf.WriteByte('`')
		buf.WriteString(strconv.Itoa(decl.Arity))
	}
}

// ParameterTypes returns the declared parameter types of a member in order.
// The type of a parameter is its token without the trailing parameter name.
func ParameterTypes(member *syntax.Node) []string {
	list := signaturePart(member, syntax.KindParameterList)
	if list == nil {
		return nil
	}

	var types []string

	for _, param := range list.Children {
		if param.Kind != syntax.KindParameter {
			continue
		}

		types = append(types, parameterType(param))
	}

	return types
}

func parameterType(param *syntax.Node) string {
	text := syntax.NormalizeToken(param.Token)

	if param.Name != "" && strings.HasSuffix(text, param.Name) {
		text = strings.TrimSpace(strings.TrimSuffix(text, param.Name))
	}

	if text == "" {
		return "?"
	}

	return text
}

// ReturnType returns the normalized return type of a member, or "" when none is declared.
func ReturnType(member *syntax.Node) string {
	ret := signaturePart(member, syntax.KindReturnType)
	if ret == nil {
		return ""
	}

	return ret.Text()
}

func signaturePart(member *syntax.Node, kind syntax.Kind) *syntax.Node {
	for _, child := range member.Children {
		if child.Kind == kind {
			return child
		}
	}

	return nil
}

package syntax

import (
	"fmt"
	"strings"
)

// Kind is the closed set of node kinds understood by the analysis engine.
type Kind uint16

// Node kinds. Declarations first, then signature parts, statements, expressions and trivia.
const (
	KindUnknown Kind = iota

	KindCompilationUnit
	KindNamespace
	KindType
	KindMethod
	KindConstructor
	KindProperty
	KindField
	KindEvent

	KindParameterList
	KindParameter
	KindReturnType

	KindBlock
	KindExpressionStatement
	KindLocalDeclaration
	KindIf
	KindElse
	KindWhile
	KindDo
	KindFor
	KindForEach
	KindSwitch
	KindCase
	KindTry
	KindCatch
	KindFinally
	KindLock
	KindUsing
	KindReturn
	KindThrow
	KindBreak
	KindContinue
	KindYieldReturn
	KindYieldBreak
	KindGoto
	KindLabeled

	KindAwait
	KindLambda
	KindCall
	KindExpression

	KindComment

	kindCount
)

var kindNames = [kindCount]string{
	KindUnknown:             "Unknown",
	KindCompilationUnit:     "CompilationUnit",
	KindNamespace:           "Namespace",
	KindType:                "Type",
	KindMethod:              "Method",
	KindConstructor:         "Constructor",
	KindProperty:            "Property",
	KindField:               "Field",
	KindEvent:               "Event",
	KindParameterList:       "ParameterList",
	KindParameter:           "Parameter",
	KindReturnType:          "ReturnType",
	KindBlock:               "Block",
	KindExpressionStatement: "ExpressionStatement",
	KindLocalDeclaration:    "LocalDeclaration",
	KindIf:                  "If",
	KindElse:                "Else",
	KindWhile:               "While",
	KindDo:                  "Do",
	KindFor:                 "For",
	KindForEach:             "ForEach",
	KindSwitch:              "Switch",
	KindCase:                "Case",
	KindTry:                 "Try",
	KindCatch:               "Catch",
	KindFinally:             "Finally",
	KindLock:                "Lock",
	KindUsing:               "Using",
	KindReturn:              "Return",
	KindThrow:               "Throw",
	KindBreak:               "Break",
	KindContinue:            "Continue",
	KindYieldReturn:         "YieldReturn",
	KindYieldBreak:          "YieldBreak",
	KindGoto:                "Goto",
	KindLabeled:             "Labeled",
	KindAwait:               "Await",
	KindLambda:              "Lambda",
	KindCall:                "Call",
	KindExpression:          "Expression",
	KindComment:             "Comment",
}

func (k Kind) String() string {
	if k >= kindCount {
		return kindNames[KindUnknown]
	}

	return kindNames[k]
}

// ParseKind maps a kind name (case-insensitive) back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for idx, kindName := range kindNames {
		if strings.EqualFold(kindName, name) {
			return Kind(idx), true
		}
	}

	return KindUnknown, false
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, ok := ParseKind(string(text))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, text)
	}

	*k = parsed

	return nil
}

// Kinds returns every defined kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, kindCount)

	for k := KindUnknown; k < kindCount; k++ {
		kinds = append(kinds, k)
	}

	return kinds
}

// IsDeclaration reports whether k is a namespace, type or member declaration.
func (k Kind) IsDeclaration() bool {
	return k >= KindCompilationUnit && k <= KindEvent
}

// IsTypeOrNamespace reports whether k can contain member declarations.
func (k Kind) IsTypeOrNamespace() bool {
	return k == KindCompilationUnit || k == KindNamespace || k == KindType
}

// IsMember reports whether k is a member declaration with its own body or initializer.
func (k Kind) IsMember() bool {
	return k >= KindMethod && k <= KindEvent
}

// IsSignature reports whether k is part of a member signature.
func (k Kind) IsSignature() bool {
	return k >= KindParameterList && k <= KindReturnType
}

// IsStatement reports whether k is a statement kind.
func (k Kind) IsStatement() bool {
	return k >= KindBlock && k <= KindLabeled
}

// IsTrivia reports whether k carries no semantics (comments).
func (k Kind) IsTrivia() bool {
	return k == KindComment
}

// IsLoop reports whether k is a looping construct.
func (k Kind) IsLoop() bool {
	switch k {
	case KindWhile, KindDo, KindFor, KindForEach:
		return true
	default:
		return false
	}
}

// IsExceptionRegion reports whether k opens an exception handling region.
func (k Kind) IsExceptionRegion() bool {
	switch k {
	case KindTry, KindCatch, KindFinally, KindLock, KindUsing:
		return true
	default:
		return false
	}
}

// IsExceptionHandler reports whether k is a catch or finally handler.
func (k Kind) IsExceptionHandler() bool {
	return k == KindCatch || k == KindFinally
}

// IsSuspensionPoint reports whether k can suspend a state machine.
func (k Kind) IsSuspensionPoint() bool {
	return k == KindAwait || k == KindYieldReturn
}

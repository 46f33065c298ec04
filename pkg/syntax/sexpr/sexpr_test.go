package sexpr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax/sexpr"
)

func TestParse_ReadsHeadModifiersTokensAndChildren(t *testing.T) {
	t.Parallel()

	root, err := sexpr.Parse(`(Method:f/1 {static async public}
  (ParameterList (Parameter:x "int x"))
  (Block
    (ExpressionStatement "call(\"a\");") ; trailing comment
  ))`)
	require.NoError(t, err)

	assert.Equal(t, syntax.KindMethod, root.Kind)
	assert.Equal(t, "f", root.Name)
	assert.Equal(t, 1, root.Arity)
	assert.Equal(t, []string{"async", "public", "static"}, root.Modifiers)
	require.Len(t, root.Children, 2)

	param := root.Children[0].Children[0]
	assert.Equal(t, "x", param.Name)
	assert.Equal(t, "int x", param.Token)

	stmt := root.Children[1].Children[0]
	assert.Equal(t, `call("a");`, stmt.Token)
	assert.Equal(t, 4, stmt.Span.StartLine)
	assert.Equal(t, 5, stmt.Span.StartCol)
	assert.Equal(t, 0, root.Span.StartOffset)
}

func TestParse_JoinsSeveralStrings(t *testing.T) {
	t.Parallel()

	root := sexpr.MustParse(`(If "x >" "0")`)

	assert.Equal(t, "x > 0", root.Token)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want error
	}{
		{name: "unknown kind", src: `(Widget)`, want: syntax.ErrUnknownKind},
		{name: "unterminated node", src: `(Block (Return)`, want: sexpr.ErrSyntax},
		{name: "unterminated string", src: `(Return "x)`, want: sexpr.ErrSyntax},
		{name: "bad arity", src: `(Method:f/x)`, want: sexpr.ErrSyntax},
		{name: "trailing data", src: `(Block) (Block)`, want: sexpr.ErrTrailingData},
		{name: "missing paren", src: `Block`, want: sexpr.ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := sexpr.Parse(tt.src)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse_LayoutOnlyChangesKeepFingerprint(t *testing.T) {
	t.Parallel()

	compact := sexpr.MustParse(`(Block (Return "x"))`)
	spread := sexpr.MustParse("\n\n(Block\n   ; note\n   (Return \"x\"))")

	compactTree := syntax.MustTree(compact)
	spreadTree := syntax.MustTree(spread)

	assert.Equal(t, compactTree.Fingerprint(compact), spreadTree.Fingerprint(spread))
	assert.NotEqual(t, compact.Span, spread.Span)
}

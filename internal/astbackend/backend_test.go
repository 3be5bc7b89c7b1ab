package astbackend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codesage/internal/types"
)

func TestSupports_KnownAndUnknownLanguages(t *testing.T) {
	require.True(t, Supports("go"))
	require.True(t, Supports("python"))
	require.True(t, Supports("ruby"))
	require.False(t, Supports("cobol"))
}

func TestParse_GoProducesNonEmptyTree(t *testing.T) {
	b := New()
	src := []byte("package main\n\nfunc Foo() {}\n")

	tree, err := b.Parse("go", src)
	require.NoError(t, err)
	require.NotNil(t, tree.Root)
	require.False(t, tree.HasErrors())
	require.Equal(t, types.ParserKindAST, tree.Backend)
	require.False(t, tree.Root.IsLeaf())
}

func TestParse_MalformedSourceNeverErrors(t *testing.T) {
	b := New()
	src := []byte("func ((( this is not valid go")

	tree, err := b.Parse("go", src)
	require.NoError(t, err)
	require.NotNil(t, tree.Root)
	// Malformed input surfaces as has_error node flags, not as a
	// returned error — the backend never fails a parse outright.
	require.True(t, tree.HasErrors())
}

func TestParse_UnsupportedLanguageReturnsBackendError(t *testing.T) {
	b := New()
	_, err := b.Parse("cobol", []byte("nothing"))
	require.Error(t, err)
}

func TestParse_EverySpanIndexesIntoSource(t *testing.T) {
	b := New()
	src := []byte("package main\n\nfunc Foo() {}\n")

	tree, err := b.Parse("go", src)
	require.NoError(t, err)

	tree.Root.Walk(func(n *types.Node) bool {
		require.LessOrEqual(t, n.Span.StartByte, n.Span.EndByte)
		require.LessOrEqual(t, int(n.Span.EndByte), len(src))
		return true
	})
}

func TestCompileAndRunQuery_GoFunctionName(t *testing.T) {
	b := New()
	src := []byte("package main\n\nfunc Foo() {}\n")

	tree, err := b.Parse("go", src)
	require.NoError(t, err)

	compiled, err := b.Compile("go", `(function_declaration name: (identifier) @name) @def`)
	require.NoError(t, err)

	captures, err := b.RunQuery(tree, compiled, src)
	require.NoError(t, err)
	require.NotEmpty(t, captures)

	var sawName bool
	for _, c := range captures {
		if c.Name == "name" {
			sawName = true
			require.Equal(t, "Foo", string(src[c.Span.StartByte:c.Span.EndByte]))
		}
	}
	require.True(t, sawName)
}

func TestCompile_InvalidQuerySyntaxErrors(t *testing.T) {
	b := New()
	_, err := b.Compile("go", `(this is not a valid query`)
	require.Error(t, err)
}

func TestRunQuery_CapturesOrderedByStartByteThenSpanLength(t *testing.T) {
	b := New()
	src := []byte("package main\n\nfunc Foo() {}\nfunc Bar() {}\n")

	tree, err := b.Parse("go", src)
	require.NoError(t, err)

	compiled, err := b.Compile("go", `(function_declaration name: (identifier) @name) @def`)
	require.NoError(t, err)

	captures, err := b.RunQuery(tree, compiled, src)
	require.NoError(t, err)
	for i := 1; i < len(captures); i++ {
		require.LessOrEqual(t, captures[i-1].Span.StartByte, captures[i].Span.StartByte)
	}
}

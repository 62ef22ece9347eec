package condition

import (
	"testing"

	"github.com/pjtatlow/terminus/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Label(t *testing.T) {
	node, err := Parse("primary")
	require.NoError(t, err)
	assert.Equal(t, KindLabel, node.Kind)
	assert.Equal(t, "primary", node.Label)
}

func TestParse_Field(t *testing.T) {
	node, err := Parse("table1.column1")
	require.NoError(t, err)
	assert.Equal(t, KindField, node.Kind)
	assert.Equal(t, "table1", node.Table)
	assert.Equal(t, "column1", node.Column)
}

func TestParse_Function(t *testing.T) {
	node, err := Parse("from(table1.column1)")
	require.NoError(t, err)
	assert.Equal(t, KindFunction, node.Kind)
	assert.Equal(t, "from", node.Func)
	require.Len(t, node.Args, 1)
	assert.Equal(t, KindField, node.Args[0].Kind)
}

func TestParse_NestedArgs(t *testing.T) {
	node, err := Parse(`in('a', 'b', 'c')`)
	require.NoError(t, err)
	require.Len(t, node.Args, 3)
	assert.Equal(t, "a", node.Args[0].Text)
	assert.Equal(t, "c", node.Args[2].Text)
}

func TestParse_Regex(t *testing.T) {
	node, err := Parse(`match(/^[A-Z]+$/i)`)
	require.NoError(t, err)
	require.Len(t, node.Args, 1)
	assert.Equal(t, KindRegex, node.Args[0].Kind)
	assert.Equal(t, "^[A-Z]+$", node.Args[0].Text)
	assert.Equal(t, "i", node.Args[0].Flags)
}

func TestParse_RegexEscapedSlash(t *testing.T) {
	node, err := Parse(`search(/a\/b/)`)
	require.NoError(t, err)
	assert.Equal(t, `a/b`, node.Args[0].Text)
}

func TestParse_TrailingGarbage(t *testing.T) {
	_, err := Parse("primary extra")
	require.Error(t, err)
	var cfgErr *errs.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestParse_UnterminatedString(t *testing.T) {
	_, err := Parse(`equals('abc)`)
	require.Error(t, err)
}

func TestString_RoundTrips(t *testing.T) {
	for _, expr := range []string{
		"primary",
		"table1.column1",
		"from(table1.column1)",
		"tree(column1)",
	} {
		node, err := Parse(expr)
		require.NoError(t, err)
		assert.Equal(t, expr, node.String())
	}
}

func TestIsStructural(t *testing.T) {
	cases := map[string]bool{
		"primary":               true,
		"unique":                true,
		"from(table1.column1)":  true,
		"tree(column1)":         true,
		"under(column1, 'foo')": true,
		"equals('foo')":         false,
		"text":                  false,
	}
	for expr, want := range cases {
		node, err := Parse(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, want, IsStructural(node), expr)
	}
}

type fakeResolver map[string]Predicate

func (f fakeResolver) ResolvePredicate(name string) (Predicate, bool) {
	p, ok := f[name]
	return p, ok
}

func TestCompile_Equals(t *testing.T) {
	node, err := Parse(`equals('foo')`)
	require.NoError(t, err)
	pred, err := Compile(node, nil)
	require.NoError(t, err)
	assert.True(t, pred("foo"))
	assert.False(t, pred("bar"))
}

func TestCompile_Match_IsFullMatch(t *testing.T) {
	node, err := Parse(`match(/[0-9]+/)`)
	require.NoError(t, err)
	pred, err := Compile(node, nil)
	require.NoError(t, err)
	assert.True(t, pred("12345"))
	assert.False(t, pred("12345x"))
	assert.False(t, pred("x12345"))
}

func TestCompile_Match_FullMatchRequiresBacktracking(t *testing.T) {
	// Leftmost-first alternation tries "a" before "ab" and would stop there,
	// leaving "b" unconsumed; a true full match must still accept "ab".
	node, err := Parse(`match(/a|ab/)`)
	require.NoError(t, err)
	pred, err := Compile(node, nil)
	require.NoError(t, err)
	assert.True(t, pred("ab"))
	assert.True(t, pred("a"))
	assert.False(t, pred("abc"))
}

func TestCompile_Search(t *testing.T) {
	node, err := Parse(`search(/[0-9]+/)`)
	require.NoError(t, err)
	pred, err := Compile(node, nil)
	require.NoError(t, err)
	assert.True(t, pred("abc123"))
	assert.False(t, pred("abcdef"))
}

func TestCompile_Exclude(t *testing.T) {
	node, err := Parse(`exclude(/[0-9]+/)`)
	require.NoError(t, err)
	pred, err := Compile(node, nil)
	require.NoError(t, err)
	assert.False(t, pred("abc123"))
	assert.True(t, pred("abcdef"))
}

func TestCompile_CaseInsensitiveFlag(t *testing.T) {
	node, err := Parse(`match(/foo/i)`)
	require.NoError(t, err)
	pred, err := Compile(node, nil)
	require.NoError(t, err)
	assert.True(t, pred("FOO"))
}

func TestCompile_In(t *testing.T) {
	node, err := Parse(`in('a', 'b', 'c')`)
	require.NoError(t, err)
	pred, err := Compile(node, nil)
	require.NoError(t, err)
	assert.True(t, pred("b"))
	assert.False(t, pred("d"))
}

func TestCompile_LabelResolvesFromAnotherDatatype(t *testing.T) {
	resolver := fakeResolver{
		"word": func(value string) bool { return value == "hello" },
	}
	node, err := Parse("word")
	require.NoError(t, err)
	pred, err := Compile(node, resolver)
	require.NoError(t, err)
	assert.True(t, pred("hello"))
	assert.False(t, pred("goodbye"))
}

func TestCompile_UndefinedLabel(t *testing.T) {
	node, err := Parse("nonexistent")
	require.NoError(t, err)
	_, err = Compile(node, fakeResolver{})
	require.Error(t, err)
	var cfgErr *errs.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestCompile_StructuralRejected(t *testing.T) {
	for _, expr := range []string{"primary", "unique", "from(table1.column1)", "tree(column1)"} {
		node, err := Parse(expr)
		require.NoError(t, err, expr)
		_, err = Compile(node, fakeResolver{})
		assert.Error(t, err, expr)
	}
}

func TestCompile_ArityMismatch(t *testing.T) {
	node, err := Parse(`equals('a', 'b')`)
	require.NoError(t, err)
	_, err = Compile(node, nil)
	require.Error(t, err)
}

func TestCompile_UnknownFunction(t *testing.T) {
	node, err := Parse(`frobnicate('a')`)
	require.NoError(t, err)
	_, err = Compile(node, nil)
	require.Error(t, err)
}

package emit

import (
	"go/parser"
	"go/token"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nihei9/genfuzz/grammar"
	"github.com/nihei9/genfuzz/model"
	"github.com/nihei9/genfuzz/runtime"
	"github.com/nihei9/genfuzz/size"
	"github.com/nihei9/genfuzz/spec"
	"github.com/nihei9/genfuzz/tree"
)

func compile(t *testing.T, src string) *grammar.Graph {
	t.Helper()
	root, err := spec.Parse(strings.NewReader(src))
	require.NoError(t, err)
	g, err := grammar.NewCompiler().Compile(root)
	require.NoError(t, err)
	return g
}

func TestGenProducesParseableGoSource(t *testing.T) {
	g := compile(t, `grammar g; s: A+ B; A: 'x'; B: 'y';`)
	r := rand.New(rand.NewSource(1))
	gen := runtime.NewGenerator(g, model.NewDefaultModel(r), r, size.New(10, 10))
	root, err := gen.Generate("s")
	require.NoError(t, err)

	out, err := Gen(root, Options{PackageName: "corpus", VarName: "Sample"})
	require.NoError(t, err)

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", out, parser.ParseComments)
	require.NoError(t, err)
	require.Equal(t, "corpus", f.Name.Name)

	src := string(out)
	require.Contains(t, src, "const Sample = ")
	require.Contains(t, src, root.Value())
	require.Contains(t, src, "var RuleNames = []string{")
	require.Contains(t, src, `"A"`)
	require.Contains(t, src, `"B"`)
}

func TestGenAppliesDefaultOptions(t *testing.T) {
	g := compile(t, `grammar g; s: A; A: 'x';`)
	r := rand.New(rand.NewSource(2))
	gen := runtime.NewGenerator(g, model.NewDefaultModel(r), r, size.New(5, 5))
	root, err := gen.Generate("s")
	require.NoError(t, err)

	out, err := Gen(root, Options{})
	require.NoError(t, err)

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", out, parser.ParseComments)
	require.NoError(t, err)
	require.Equal(t, "generated", f.Name.Name)
	require.Contains(t, string(out), "const Text = ")
}

func TestRuleNamesAreSortedAndDeduplicated(t *testing.T) {
	root := tree.NewUnparserRule("s")
	a1 := tree.NewUnlexerRule("B")
	a1.SetSrc("y")
	a2 := tree.NewUnlexerRule("A")
	a2.SetSrc("x")
	a3 := tree.NewUnlexerRule("A")
	a3.SetSrc("x")
	root.AddChildren(a1, a2, a3)

	require.Equal(t, []string{"A", "B"}, ruleNames(root))
}

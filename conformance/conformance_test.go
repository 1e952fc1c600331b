package conformance

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nihei9/genfuzz/codec"
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

func TestCheckPassesAGeneratedTree(t *testing.T) {
	g := compile(t, `grammar g; s: A+ B?; A: 'x'; B: 'y';`)
	r := rand.New(rand.NewSource(1))
	gen := runtime.NewGenerator(g, model.NewDefaultModel(r), r, size.New(10, 10))
	root, err := gen.Generate("s")
	require.NoError(t, err)

	res := New(g, codec.JSONCodec{}).Check("t1", root)
	require.NoError(t, res.Error)
	require.Empty(t, res.Violations)
	require.Equal(t, "Passed t1", res.String())
}

func TestCheckDetectsUnknownAltIdx(t *testing.T) {
	g := compile(t, `grammar g; s: A | B; A: 'x'; B: 'y';`)

	root := tree.NewUnparserRule("s")
	alt := tree.NewUnparserRuleAlternative(999, 0)
	root.AddChild(alt)

	res := New(g, nil).Check("t2", root)
	require.Error(t, res.Error)
	require.Len(t, res.Violations, 1)
	require.Contains(t, res.Violations[0].Message, "alt_idx")
}

func TestCheckDetectsAltIdxChoiceOutOfRange(t *testing.T) {
	g := compile(t, `grammar g; s: A | B; A: 'x'; B: 'y';`)
	altIdx := findAlternationIdx(t, g, "s")

	root := tree.NewUnparserRule("s")
	alt := tree.NewUnparserRuleAlternative(altIdx, 7)
	root.AddChild(alt)

	res := New(g, nil).Check("t3", root)
	require.Error(t, res.Error)
	require.Contains(t, res.Violations[0].Message, "out of range")
}

func TestCheckDetectsQuantifierBelowLowerBound(t *testing.T) {
	g := compile(t, `grammar g; s: A+; A: 'x';`)
	quantIdx := findQuantifierIdx(t, g, "s")

	root := tree.NewUnparserRule("s")
	qn := tree.NewUnparserRuleQuantifier(quantIdx, 1, tree.Unbounded)
	root.AddChild(qn)

	res := New(g, nil).Check("t4", root)
	require.Error(t, res.Error)
	require.Contains(t, res.Violations[0].Message, "outside")
}

func TestCheckDetectsTokenLeafWithSrcAndChildren(t *testing.T) {
	g := compile(t, `grammar g; s: A; A: 'x';`)

	root := tree.NewUnparserRule("s")
	leaf := tree.NewUnlexerRule("A")
	leaf.SetSrc("x")
	leaf.AddChild(tree.NewUnlexerRule("stray"))
	root.AddChild(leaf)

	res := New(g, nil).Check("t5", root)
	require.Error(t, res.Error)
	require.Contains(t, res.Violations[0].Message, "src set and children")
}

// fakeLossyCodec simulates a codec whose round trip drops information, to
// exercise the re-derivation check independently of any real codec bug.
type fakeLossyCodec struct{}

func (fakeLossyCodec) Encode(root *tree.Node) ([]byte, error) { return nil, nil }
func (fakeLossyCodec) Decode(data []byte) (*tree.Node, error) {
	n := tree.NewUnlexerRule("A")
	n.SetSrc("mismatched")
	return n, nil
}

func TestCheckDetectsCodecRoundTripMismatch(t *testing.T) {
	g := compile(t, `grammar g; s: A; A: 'x';`)
	root := tree.NewUnparserRule("s")
	leaf := tree.NewUnlexerRule("A")
	leaf.SetSrc("x")
	leaf.Immutable = true
	root.AddChild(leaf)

	res := New(g, fakeLossyCodec{}).Check("t6", root)
	require.Error(t, res.Error)
	require.Contains(t, res.Violations[0].Message, "round-trip")
}

func TestListCasesAndRunOverDirectory(t *testing.T) {
	g := compile(t, `grammar g; s: A; A: 'x';`)
	r := rand.New(rand.NewSource(3))
	gen := runtime.NewGenerator(g, model.NewDefaultModel(r), r, size.New(5, 5))
	root, err := gen.Generate("s")
	require.NoError(t, err)

	dir := t.TempDir()
	data, err := codec.JSONCodec{}.Encode(root)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "case1.json"), data, 0644))

	cases := ListCases(dir, codec.JSONCodec{})
	require.Len(t, cases, 1)
	require.NoError(t, cases[0].Error)

	results := New(g, codec.JSONCodec{}).Run(cases)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Error)
}

func findAlternationIdx(t *testing.T, g *grammar.Graph, rule string) int {
	t.Helper()
	an, ok := g.ParserRules[rule].Out[0].To.(*grammar.AlternationNode)
	require.True(t, ok)
	return an.Idx
}

func findQuantifierIdx(t *testing.T, g *grammar.Graph, rule string) int {
	t.Helper()
	qn, ok := g.ParserRules[rule].Out[0].To.(*grammar.QuantifierNode)
	require.True(t, ok)
	return qn.Idx
}

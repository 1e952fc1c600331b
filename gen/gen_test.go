package gen

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nihei9/genfuzz/grammar"
	"github.com/nihei9/genfuzz/model"
	"github.com/nihei9/genfuzz/mutate"
	"github.com/nihei9/genfuzz/population"
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

func TestCreateGenerateOnlyProducesOutput(t *testing.T) {
	g := compile(t, `grammar g; s: 'x' | 'y';`)
	r := rand.New(rand.NewSource(1))
	gen := runtime.NewGenerator(g, model.NewDefaultModel(r), r, size.New(5, 5))

	cfg := Config{Rule: "s", Limit: size.New(5, 5), EnableGenerate: true, UniqueAttempts: 5, MemoSize: 10}
	tool := NewTool(g, gen, nil, nil, cfg, nil)

	res, err := tool.Create()
	require.NoError(t, err)
	require.Contains(t, []string{"x", "y"}, res.Text)
}

func TestCreateExhaustsUniqueAttemptsOnSingleOutputGrammar(t *testing.T) {
	g := compile(t, `grammar g; s: 'x';`)
	r := rand.New(rand.NewSource(1))
	gen := runtime.NewGenerator(g, model.NewDefaultModel(r), r, size.New(5, 5))

	cfg := Config{Rule: "s", Limit: size.New(5, 5), EnableGenerate: true, UniqueAttempts: 3, MemoSize: 4}
	tool := NewTool(g, gen, nil, nil, cfg, nil)

	first, err := tool.Create()
	require.NoError(t, err)
	require.Equal(t, "x", first.Text)

	_, err = tool.Create()
	require.Error(t, err)
}

func TestCreateUsesMutationWhenPopulationNonEmpty(t *testing.T) {
	g := compile(t, `grammar g; s: a; a: 'x' | 'y';`)
	r := rand.New(rand.NewSource(2))
	genr := runtime.NewGenerator(g, model.NewDefaultModel(r), r, size.New(10, 10))

	seed, err := genr.Generate("s")
	require.NoError(t, err)

	pop := population.NewMemoryPopulation(r)
	require.NoError(t, pop.AddIndividual(seed, ""))

	me := &mutate.Engine{Graph: g, Gen: genr, Rand: r, Limit: size.New(10, 10)}

	cfg := Config{
		Rule:            "s",
		Limit:           size.New(10, 10),
		EnableMutate:    true,
		EnableRecombine: true,
		UniqueAttempts:  1,
	}
	tool := NewTool(g, genr, me, pop, cfg, nil)

	res, err := tool.Create()
	require.NoError(t, err)
	require.Contains(t, []string{"x", "y"}, res.Text)
}

func TestInsertSeparatorTransformerAddsSeparatorsBetweenRepetitions(t *testing.T) {
	root := tree.NewUnparserRule("s")
	q := tree.NewUnparserRuleQuantifier(0, 0, tree.Unbounded)
	root.AddChild(q)
	for i := 0; i < 3; i++ {
		qd := tree.NewUnparserRuleQuantified()
		leaf := tree.NewUnlexerRule("a")
		leaf.SetSrc("x")
		qd.AddChild(leaf)
		q.AddChild(qd)
	}

	transformed := InsertSeparator(",")(root)
	require.Equal(t, "x,x,x", transformed.Value())
}

func TestResolveConfigLooksUpTransformers(t *testing.T) {
	fc := &FileConfig{
		Rule:           "s",
		MaxDepth:       5,
		MaxTokens:      5,
		Generate:       true,
		UniqueAttempts: 1,
		Transformers:   []string{"insert_separator"},
	}
	c, err := fc.Resolve(TransformerRegistry)
	require.NoError(t, err)
	require.Len(t, c.Transformers, 1)
}

func TestResolveConfigRejectsUnknownTransformer(t *testing.T) {
	fc := &FileConfig{Transformers: []string{"does_not_exist"}}
	_, err := fc.Resolve(TransformerRegistry)
	require.Error(t, err)
}

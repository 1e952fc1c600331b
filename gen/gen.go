// Package gen implements the GeneratorTool of §4.10: it orchestrates one
// creation attempt end to end (select an operator set, apply it, transform,
// serialize, dedupe against a bounded memo of recent outputs) and optionally
// feeds the produced tree back into a population.
package gen

import (
	"github.com/sirupsen/logrus"

	"github.com/nihei9/genfuzz/grammar"
	"github.com/nihei9/genfuzz/mutate"
	"github.com/nihei9/genfuzz/population"
	"github.com/nihei9/genfuzz/runtime"
	"github.com/nihei9/genfuzz/tree"
)

// Result is one successful creation.
type Result struct {
	Tree *tree.Node
	Text string
}

// Tool ties a compiled grammar, a Generator, an optional MutationEngine and
// an optional Population together under one Config.
type Tool struct {
	Graph  *grammar.Graph
	Gen    *runtime.Generator
	Mutate *mutate.Engine
	Pop    population.Population
	Config Config
	Log    *logrus.Logger

	memo *memo
}

func NewTool(g *grammar.Graph, gen *runtime.Generator, me *mutate.Engine, pop population.Population, cfg Config, log *logrus.Logger) *Tool {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Serializer == nil {
		cfg.Serializer = DefaultSerializer
	}
	return &Tool{
		Graph:  g,
		Gen:    gen,
		Mutate: me,
		Pop:    pop,
		Config: cfg,
		Log:    log,
		memo:   newMemo(cfg.MemoSize),
	}
}

// Create runs one creation loop: select an operator set, apply it, run the
// transformer pipeline, serialize, and check the result's hash against the
// memo, retrying up to Config.UniqueAttempts times.
func (t *Tool) Create() (*Result, error) {
	attempts := t.Config.UniqueAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		root, err := t.produce()
		if err != nil {
			return nil, err
		}
		for _, tr := range t.Config.Transformers {
			root = tr(root)
		}
		text := t.Config.Serializer(root)
		h := hashText(text)

		if t.memo.contains(h) {
			t.Log.WithField("attempt", i+1).Debug("duplicate output, retrying")
			continue
		}
		t.memo.add(h)

		if t.Config.KeepTrees && !t.Config.DryRun && t.Pop != nil {
			if err := t.Pop.AddIndividual(root, ""); err != nil {
				return nil, err
			}
		}
		return &Result{Tree: root, Text: text}, nil
	}
	return nil, errExhaustedUniqueAttempts
}

// produce selects and applies one operator set: a fresh generation when
// there is no usable population yet, or mutation/recombination over a
// sampled recipient otherwise.
func (t *Tool) produce() (*tree.Node, error) {
	rule := t.Config.Rule
	if rule == "" {
		rule = t.Graph.DefaultRule
	}

	if t.Mutate == nil || t.Pop == nil || t.Pop.Empty() {
		return t.Gen.Generate(rule)
	}
	t.Mutate.EnableGenerate = t.Config.EnableGenerate
	t.Mutate.EnableMutate = t.Config.EnableMutate
	t.Mutate.EnableRecombine = t.Config.EnableRecombine
	t.Mutate.EnableUnrestricted = t.Config.EnableUnrestricted

	recipient, err := t.Pop.SelectIndividual(nil)
	if err != nil {
		return t.Gen.Generate(rule)
	}
	donor := mutate.DonorSource(func() *tree.Node {
		ind, err := t.Pop.SelectIndividual(recipient.Root)
		if err != nil {
			return nil
		}
		return ind.Root
	})
	return t.Mutate.Apply(recipient.Root, donor)
}

var errExhaustedUniqueAttempts = genError("exhausted unique_attempts without a novel output")

type genError string

func (e genError) Error() string { return string(e) }

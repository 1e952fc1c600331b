package mutate

import (
	"math/rand"
	"strings"
	"testing"

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
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g, err := grammar.NewCompiler().Compile(root)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return g
}

func newEngine(t *testing.T, src string, seed int64, limit size.Budget) *Engine {
	t.Helper()
	g := compile(t, src)
	r := rand.New(rand.NewSource(seed))
	gen := runtime.NewGenerator(g, model.NewDefaultModel(r), r, limit)
	return &Engine{
		Graph:              g,
		Gen:                gen,
		Rand:               r,
		Limit:              limit,
		EnableGenerate:     true,
		EnableMutate:       true,
		EnableRecombine:    true,
		EnableUnrestricted: true,
	}
}

func isOneOf(got string, want ...string) bool {
	for _, w := range want {
		if got == w {
			return true
		}
	}
	return false
}

func TestRegenerateRuleReplacesASubtree(t *testing.T) {
	e := newEngine(t, `grammar g; s: a a; a: 'x' | 'y';`, 1, size.New(10, 10))
	root, err := e.Gen.Generate("s")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	newRoot, changed := regenerateRule(e, root, nil)
	if !changed {
		t.Fatalf("expected regenerate_rule to make a change")
	}
	if !isOneOf(newRoot.Value(), "xx", "xy", "yx", "yy") {
		t.Fatalf("unexpected regenerated value %q", newRoot.Value())
	}
}

func TestReplaceNodeSplicesFromDonor(t *testing.T) {
	e := newEngine(t, `grammar g; s: a; a: 'x' | 'y';`, 2, size.New(10, 10))

	recipient, err := e.Gen.Generate("s")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	donorRoot, err := e.Gen.Generate("s")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	donor := DonorSource(func() *tree.Node { return donorRoot })

	newRoot, changed := replaceNode(e, recipient, donor)
	if !changed {
		t.Fatalf("expected replace_node to find a same-keyed donor node")
	}
	if !isOneOf(newRoot.Value(), "x", "y") {
		t.Fatalf("unexpected replaced value %q", newRoot.Value())
	}
}

func TestReplaceNodeNoDonorIsNoOp(t *testing.T) {
	e := newEngine(t, `grammar g; s: a; a: 'x';`, 3, size.New(10, 10))
	root, err := e.Gen.Generate("s")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	_, changed := replaceNode(e, root, nil)
	if changed {
		t.Fatalf("expected no-op with a nil donor")
	}
}

func TestDeleteQuantifiedRespectsLowerBound(t *testing.T) {
	e := newEngine(t, `grammar g; s: a+; a: 'x';`, 4, size.New(10, 10))
	root, err := e.Gen.Generate("s")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	before := len(root.Value())

	newRoot, changed := deleteQuantified(e, root, nil)
	if changed {
		if len(newRoot.Value()) >= before {
			t.Fatalf("expected fewer tokens after delete_quantified, got %q from %q", newRoot.Value(), strings.Repeat("x", before))
		}
		for _, q := range collectQuantifiers(newRoot) {
			if q.ChildCount() < q.Start {
				t.Fatalf("delete_quantified violated lower bound: %d children, start %d", q.ChildCount(), q.Start)
			}
		}
	}
}

func TestUnrestrictedDeleteRemovesANode(t *testing.T) {
	e := newEngine(t, `grammar g; s: a b; a: 'x'; b: 'y';`, 5, size.New(10, 10))
	root, err := e.Gen.Generate("s")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	newRoot, changed := unrestrictedDelete(e, root, nil)
	if !changed {
		t.Fatalf("expected unrestricted_delete to remove a node from a two-child root")
	}
	if newRoot.Value() == "xy" {
		t.Fatalf("expected a shorter value after deletion, got %q", newRoot.Value())
	}
}

func TestShuffleQuantifiedsNeedsAtLeastTwoChildren(t *testing.T) {
	e := newEngine(t, `grammar g; s: a?; a: 'x';`, 6, size.New(10, 10))
	root, err := e.Gen.Generate("s")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	_, changed := shuffleQuantifieds(e, root, nil)
	if changed {
		t.Fatalf("expected no-op when no quantifier has two or more children")
	}
}

func TestHoistRuleCollapsesSelfRecursion(t *testing.T) {
	e := newEngine(t, `grammar g; s: a; a: 'x' a | 'y';`, 7, size.New(6, 100))
	root, err := e.Gen.Generate("s")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	newRoot, changed := hoistRule(e, root, nil)
	if changed {
		if strings.Count(newRoot.Value(), "y") > 1 {
			t.Fatalf("hoist_rule should not increase the terminal count, got %q", newRoot.Value())
		}
	}
}

func TestSwapLocalNodesKeepsSameMultiset(t *testing.T) {
	e := newEngine(t, `grammar g; s: a a; a: 'x' | 'y';`, 8, size.New(10, 10))
	root, err := e.Gen.Generate("s")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	before := root.Value()

	newRoot, changed := swapLocalNodes(e, root, nil)
	if changed {
		after := newRoot.Value()
		if sorted(before) != sorted(after) {
			t.Fatalf("swap_local_nodes changed the character multiset: %q -> %q", before, after)
		}
	}
}

func sorted(s string) string {
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		for j := i + 1; j < len(b); j++ {
			if b[j] < b[i] {
				b[i], b[j] = b[j], b[i]
			}
		}
	}
	return string(b)
}

func TestEngineApplyFallsBackToGenerateWhenNothingElseFits(t *testing.T) {
	e := newEngine(t, `grammar g; s: 'x';`, 9, size.New(10, 10))
	e.EnableMutate = false
	e.EnableRecombine = false
	root, err := e.Gen.Generate("s")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	newRoot, err := e.Apply(root, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if newRoot.Value() != "x" {
		t.Fatalf("expected fallback regeneration to reproduce the single-literal grammar, got %q", newRoot.Value())
	}
}

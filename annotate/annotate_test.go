package annotate

import (
	"testing"

	"github.com/nihei9/genfuzz/tree"
)

func lit(s string) *tree.Node {
	n := tree.NewUnlexerRule("")
	n.SetSrc(s)
	return n
}

func TestComputeLevelsAndDepths(t *testing.T) {
	root := tree.NewUnparserRule("root")
	child := tree.NewUnparserRule("child")
	root.AddChild(child)
	child.AddChild(lit("x"))
	child.AddChild(lit("y"))

	a := Compute(root)

	if a.NodeLevels[root] != 0 || a.NodeLevels[child] != 1 {
		t.Fatalf("unexpected levels: root=%v child=%v", a.NodeLevels[root], a.NodeLevels[child])
	}
	if a.NodeDepths[root] != 2 {
		t.Fatalf("expected root depth 2, got %v", a.NodeDepths[root])
	}
	if a.NodeTokens[root] != 2 {
		t.Fatalf("expected root token count 2, got %v", a.NodeTokens[root])
	}
	if len(a.RulesByName["child"]) != 1 {
		t.Fatalf("expected child rule indexed, got %v", a.RulesByName["child"])
	}
	if _, ok := a.RulesByName["root"]; ok {
		t.Fatal("root must not be indexed in rules_by_name")
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	root := tree.NewUnparserRule("root")
	root.AddChild(lit("a"))

	a1 := Compute(root)
	a2 := Compute(root)

	if a1.NodeTokens[root] != a2.NodeTokens[root] || a1.NodeDepths[root] != a2.NodeDepths[root] {
		t.Fatal("computing annotations twice produced different results")
	}
}

func TestComputeIndexesAlternativesAndQuantifiers(t *testing.T) {
	rule := tree.NewUnparserRule("expr")
	alt := tree.NewUnparserRuleAlternative(0, 1)
	rule.AddChild(alt)
	quant := tree.NewUnparserRuleQuantifier(2, 0, tree.Unbounded)
	alt.AddChild(quant)

	a := Compute(rule)

	altKey := tree.Key{Rule: "expr", Sub: "a", Idx: 0}
	quantKey := tree.Key{Rule: "expr", Sub: "q", Idx: 2}
	if len(a.AltsByName[altKey]) != 1 {
		t.Fatalf("expected 1 alternative indexed under %+v, got %v", altKey, a.AltsByName[altKey])
	}
	if len(a.QuantsByKey[quantKey]) != 1 {
		t.Fatalf("expected 1 quantifier indexed under %+v, got %v", quantKey, a.QuantsByKey[quantKey])
	}
}

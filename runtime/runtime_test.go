package runtime

import (
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/nihei9/genfuzz/grammar"
	"github.com/nihei9/genfuzz/model"
	"github.com/nihei9/genfuzz/size"
	"github.com/nihei9/genfuzz/spec"
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

func TestGenerateChoiceBetweenLiterals(t *testing.T) {
	g := compile(t, `grammar g; s: 'a' | 'b';`)
	gen := NewGenerator(g, model.NewDefaultModel(rand.New(rand.NewSource(1))), rand.New(rand.NewSource(1)), size.New(5, 5))

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n, err := gen.Generate("s")
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		seen[n.Value()] = true
	}
	for v := range seen {
		if v != "a" && v != "b" {
			t.Fatalf("unexpected generated value %q", v)
		}
	}
}

func TestGenerateQuantifierRespectsBounds(t *testing.T) {
	g := compile(t, `grammar g; s: a+; a: 'x';`)
	gen := NewGenerator(g, model.NewDefaultModel(rand.New(rand.NewSource(2))), rand.New(rand.NewSource(2)), size.New(10, 10))

	re := regexp.MustCompile(`^x(x){0,20}$`)
	for i := 0; i < 50; i++ {
		n, err := gen.Generate("s")
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !re.MatchString(n.Value()) {
			t.Fatalf("value %q did not match expected shape", n.Value())
		}
	}
}

func TestGenerateRecursiveRuleRespectsDepthLimit(t *testing.T) {
	g := compile(t, `grammar g; l: 'a' l | ;`)
	gen := NewGenerator(g, model.NewDefaultModel(rand.New(rand.NewSource(3))), rand.New(rand.NewSource(3)), size.New(3, 100))

	for i := 0; i < 50; i++ {
		n, err := gen.Generate("l")
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if count := strings.Count(n.Value(), "a"); count > 3 {
			t.Fatalf("depth limit violated, got %v 'a's in %q", count, n.Value())
		}
	}
}

package grammar

import (
	"strings"
	"testing"

	"github.com/nihei9/genfuzz/size"
	"github.com/nihei9/genfuzz/spec"
)

func compileGraph(t *testing.T, src string) *Graph {
	t.Helper()
	root, err := spec.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g, err := NewCompiler().Compile(root)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return g
}

func TestVertexMinSizeOfLiteralAndCharsetIsZero(t *testing.T) {
	lit := &LiteralNode{Text: "x"}
	if got := vertexMinSize(lit); got != size.Zero {
		t.Errorf("literal min size = %v, want %v", got, size.Zero)
	}
	cs := &CharsetNode{Ranges: []CharRange{{From: 'a', To: 'z'}}}
	if got := vertexMinSize(cs); got != size.Zero {
		t.Errorf("charset min size = %v, want %v", got, size.Zero)
	}
}

func ruleOfSize(depth, tokens int) *UnlexerRuleNode {
	r := &UnlexerRuleNode{Name: "r"}
	r.minSize = size.New(depth, tokens)
	return r
}

func TestMinSizeOfSeqTakesMaxDepthAndAddsRuleBoundary(t *testing.T) {
	edges := []Edge{{To: ruleOfSize(1, 1)}, {To: ruleOfSize(3, 1)}, {To: ruleOfSize(1, 1)}}

	// A parser rule's depth is its deepest child plus its own boundary;
	// tokens just sum, since the rule itself contributes none.
	if got, want := minSizeOfSeq(edges, false), size.New(4, 3); got != want {
		t.Errorf("parser seq min size = %v, want %v", got, want)
	}

	// A lexer rule additionally contributes a token of its own.
	if got, want := minSizeOfSeq(edges, true), size.New(4, 4); got != want {
		t.Errorf("lexer seq min size = %v, want %v", got, want)
	}
}

func TestMinSizeOfAlternationIsPointwiseMinimum(t *testing.T) {
	// alt1 has the lower depth but the higher token count; alt2 has the
	// lower token count but the higher depth. Neither pointwise-dominates
	// the other, so the combined size must take the two minimums
	// independently rather than picking one alternative's whole pair.
	alt1 := &AlternativeNode{Elements: []Edge{{To: ruleOfSize(1, 1)}, {To: ruleOfSize(1, 1)}}}
	alt2 := &AlternativeNode{Elements: []Edge{{To: ruleOfSize(2, 1)}}}

	a := &AlternationNode{Alts: []*AlternativeNode{alt1, alt2}}
	if got, want := minSizeOfAlternation(a), size.New(1, 1); got != want {
		t.Errorf("alternation min size = %v, want %v", got, want)
	}
	if len(a.AltMinSize) != 2 {
		t.Errorf("AltMinSize not recorded for all alternatives: %v", a.AltMinSize)
	}
}

func TestEndToEndRuleMinSizes(t *testing.T) {
	g := compileGraph(t, `grammar g; s: A; t: A A A; A: 'x';`)

	if got, want := g.LexerRules["A"].MinSize(), size.New(1, 1); got != want {
		t.Errorf("A min size = %v, want %v", got, want)
	}
	if got, want := g.ParserRules["s"].MinSize(), size.New(2, 1); got != want {
		t.Errorf("s min size = %v, want %v", got, want)
	}
	if got, want := g.ParserRules["t"].MinSize(), size.New(2, 3); got != want {
		t.Errorf("t min size = %v, want %v", got, want)
	}
}

// Package grammar compiles a parsed grammar (spec.RootNode) into a
// GrammarGraph: a directed graph of typed vertices with precomputed
// minimum depth/token sizes and a reserve budget per edge, which the
// generator runtime and mutation engine walk to drive generation.
package grammar

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nihei9/genfuzz/size"
)

// Vertex is the common interface implemented by every grammar graph node
// kind: UnlexerRuleNode, UnparserRuleNode, ImagRuleNode, LiteralNode,
// CharsetNode, LambdaNode, AlternationNode, AlternativeNode, QuantifierNode,
// ActionNode, VariableNode.
type Vertex interface {
	vertex()
	MinSize() size.Budget
}

// Edge is an ordered, optionally argument-carrying reference to another
// vertex. Reserve is filled in by computeReserves: the sum of min-tokens of
// the edges that follow it from the same source vertex.
type Edge struct {
	To      Vertex
	Args    []Arg
	Reserve size.Budget
}

// Arg is one `key=value` call argument on a rule reference.
type Arg struct {
	Key   string
	Value string
}

type base struct {
	minSize size.Budget
}

func (b *base) MinSize() size.Budget { return b.minSize }

// UnlexerRuleNode is a lexer rule: its body is itself a sequence/alternation
// of charsets, literals and sub-rule references, all ultimately producing a
// single run of source text.
type UnlexerRuleNode struct {
	base
	Name      string
	Out       []Edge
	Immutable bool
	Reachable bool
	Fragment  bool
}

func (*UnlexerRuleNode) vertex() {}

// UnparserRuleNode is a parser rule.
type UnparserRuleNode struct {
	base
	Name      string
	Out       []Edge
	Reachable bool
}

func (*UnparserRuleNode) vertex() {}

// ImagRuleNode is a rule referenced but never defined with a body --
// declared-only, e.g. one supplied purely by an imported grammar that
// wasn't resolved. It participates in the graph so references don't dangle,
// but it can never be generated from directly.
type ImagRuleNode struct {
	base
	Name string
}

func (*ImagRuleNode) vertex() {}

// LiteralNode is an interned string literal appearing directly within a
// lexer rule's body (literals found inside parser rules are promoted to a
// synthetic UnlexerRuleNode by the compiler -- see compiler.go).
type LiteralNode struct {
	base
	Text string
}

func (*LiteralNode) vertex() {}

// CharsetNode is a canonicalized, deduplicated set of code point ranges.
type CharsetNode struct {
	base
	Ranges []CharRange
}

func (*CharsetNode) vertex() {}

// LambdaNode represents an empty alternative (epsilon production).
type LambdaNode struct {
	base
}

func (*LambdaNode) vertex() {}

// AlternationNode is a `( … | … | … )` construct.
type AlternationNode struct {
	base
	Idx        int
	Alts       []*AlternativeNode
	Conditions []string // constant numeric weights, or symbolic predicate text
	AltMinSize []size.Budget
}

func (*AlternationNode) vertex() {}

// AlternativeNode is one branch of an AlternationNode.
type AlternativeNode struct {
	base
	Elements []Edge
	Label    string
}

func (*AlternativeNode) vertex() {}

// QuantifierNode is a `?`, `*`, or `+` construct.
type QuantifierNode struct {
	base
	Idx   int
	Start int
	Stop  int // -1 for unbounded, the same value as tree.Unbounded
	Body  Edge
}

func (*QuantifierNode) vertex() {}

// ActionNode is a raw inline action or semantic predicate block.
type ActionNode struct {
	base
	Code        string
	IsPredicate bool
}

func (*ActionNode) vertex() {}

// VariableNode names an element via a label (`x=expr` / `xs+=expr`).
type VariableNode struct {
	base
	Label     string
	Ref       Edge
	ListLabel bool
}

func (*VariableNode) vertex() {}

// Graph is a compiled grammar: immutable after Analyze runs.
type Graph struct {
	Name        string
	DefaultRule string

	LexerRules  map[string]*UnlexerRuleNode
	ParserRules map[string]*UnparserRuleNode
	ImagRules   map[string]*ImagRuleNode

	// LexerOrder/ParserOrder record declaration order, since Go maps don't.
	LexerOrder  []string
	ParserOrder []string

	// Charsets is the deduplicated charset table referenced by CharsetNode
	// values; compiler.go's internCharset reuses an existing entry whose
	// ranges are equal to a new one's.
	Charsets []*CharsetNode
}

func newGraph() *Graph {
	return &Graph{
		LexerRules:  map[string]*UnlexerRuleNode{},
		ParserRules: map[string]*UnparserRuleNode{},
		ImagRules:   map[string]*ImagRuleNode{},
	}
}

// RuleVertex looks up a rule (lexer, parser, or imaginary) by name.
func (g *Graph) RuleVertex(name string) (Vertex, bool) {
	return g.ruleVertex(name)
}

func (g *Graph) ruleVertex(name string) (Vertex, bool) {
	if r, ok := g.ParserRules[name]; ok {
		return r, true
	}
	if r, ok := g.LexerRules[name]; ok {
		return r, true
	}
	if r, ok := g.ImagRules[name]; ok {
		return r, true
	}
	return nil, false
}

// Analyze runs the fixpoint min-size analysis, edge reserve computation,
// immutable-rule detection and reachability analysis described in §4.3. It
// must be called once after the graph's vertices and edges are fully built.
func (g *Graph) Analyze(log *logrus.Logger) error {
	g.computeMinSizes()
	g.computeReserves()
	g.computeImmutable()
	if err := g.checkReachability(log); err != nil {
		return err
	}
	return nil
}

// computeMinSizes is the iterative fixpoint described in §4.3: min-sizes
// only ever shrink from their size.Max starting point, so the loop
// terminates once a full pass makes no change.
func (g *Graph) computeMinSizes() {
	for _, r := range g.LexerRules {
		r.minSize = size.Max
	}
	for _, r := range g.ParserRules {
		r.minSize = size.Max
	}
	for _, r := range g.ImagRules {
		r.minSize = size.Zero
	}

	for {
		more := false
		for _, name := range g.LexerOrder {
			r := g.LexerRules[name]
			ms := minSizeOfSeq(r.Out, true)
			if shrinks(ms, r.minSize) {
				r.minSize = ms
				more = true
			}
		}
		for _, name := range g.ParserOrder {
			r := g.ParserRules[name]
			ms := minSizeOfSeq(r.Out, false)
			if shrinks(ms, r.minSize) {
				r.minSize = ms
				more = true
			}
		}
		if !more {
			break
		}
	}
}

// shrinks reports whether ms is a pointwise improvement over cur -- used by
// the fixpoint loops, which only ever move sizes down.
func shrinks(ms, cur size.Budget) bool {
	return ms.LessEq(cur) && ms != cur
}

// minSizeOfSeq computes the min-size of a straight-line sequence of edges
// (a rule's top-level body, when it has no alternation wrapper): depth is
// the deepest child plus the rule boundary itself (both lexer and parser
// rules descend one level), while tokens sum across the sequence and gain
// one more for a lexer rule, since the rule itself emits a token.
func minSizeOfSeq(edges []Edge, isLexer bool) size.Budget {
	maxDepth := 0
	tokens := 0
	for _, e := range edges {
		ms := vertexMinSize(e.To)
		if ms.Depth > maxDepth {
			maxDepth = ms.Depth
		}
		tokens += ms.Tokens
	}
	if isLexer {
		return size.New(maxDepth+1, tokens+1)
	}
	return size.New(maxDepth+1, tokens)
}

// VertexMinSize returns v's precomputed minimum (depth, tokens). For rule
// vertices this is a cached O(1) lookup; for alternation/alternative/
// quantifier vertices it recomputes over the (static, already-analyzed)
// subtree, which is cheap since grammars are small relative to generated
// trees.
func VertexMinSize(v Vertex) size.Budget {
	return vertexMinSize(v)
}

func vertexMinSize(v Vertex) size.Budget {
	switch n := v.(type) {
	case *UnlexerRuleNode, *UnparserRuleNode, *ImagRuleNode:
		return v.MinSize()
	case *LiteralNode:
		return size.Zero
	case *CharsetNode:
		return size.Zero
	case *LambdaNode:
		return size.Zero
	case *ActionNode:
		return size.Zero
	case *AlternationNode:
		return minSizeOfAlternation(n)
	case *AlternativeNode:
		return minSizeOfAlternative(n)
	case *QuantifierNode:
		return minSizeOfQuantifier(n)
	case *VariableNode:
		return vertexMinSize(n.Ref.To)
	default:
		return size.Zero
	}
}

func minSizeOfAlternative(a *AlternativeNode) size.Budget {
	acc := size.Zero
	maxDepth := 0
	for _, e := range a.Elements {
		ms := vertexMinSize(e.To)
		if !ms.IsMax() && ms.Depth > maxDepth {
			maxDepth = ms.Depth
		}
		acc = acc.AddTokens(ms.Tokens)
	}
	return size.New(maxDepth, acc.Tokens)
}

// minSizeOfAlternation combines its alternatives' sizes pointwise: the
// minimum depth and the minimum tokens are each taken independently across
// alternatives, since the branch that minimizes depth need not be the same
// branch that minimizes tokens.
func minSizeOfAlternation(a *AlternationNode) size.Budget {
	sizes := make([]size.Budget, len(a.Alts))
	best := size.Zero
	for i, alt := range a.Alts {
		ms := minSizeOfAlternative(alt)
		sizes[i] = ms
		if i == 0 {
			best = ms
		} else {
			best = size.Min(best, ms)
		}
	}
	a.AltMinSize = sizes
	return best
}

func minSizeOfQuantifier(q *QuantifierNode) size.Budget {
	if q.Start <= 0 {
		return size.Zero
	}
	body := vertexMinSize(q.Body.To)
	acc := size.Zero
	maxDepth := 0
	for i := 0; i < q.Start; i++ {
		if body.Depth > maxDepth {
			maxDepth = body.Depth
		}
		acc = acc.AddTokens(body.Tokens)
	}
	return size.New(maxDepth, acc.Tokens)
}

// computeReserves walks each vertex's outgoing edges in reverse, so each
// edge's Reserve becomes the running sum of successor min-tokens -- what
// the runtime adds to current.tokens on entry to guarantee remaining
// siblings will still fit (§4.3 Edge reserve).
func (g *Graph) computeReserves() {
	reserveSeq := func(edges []Edge) {
		running := 0
		for i := len(edges) - 1; i >= 0; i-- {
			edges[i].Reserve = size.New(0, running)
			running += vertexMinSize(edges[i].To).Tokens
		}
	}
	for _, name := range g.LexerOrder {
		reserveSeq(g.LexerRules[name].Out)
	}
	for _, name := range g.ParserOrder {
		reserveSeq(g.ParserRules[name].Out)
	}
	g.walkAlternationsAndQuantifiers(reserveSeq)
}

// walkAlternationsAndQuantifiers visits every AlternationNode and
// QuantifierNode reachable from any rule and applies fn to each
// alternative's element sequence (quantifier bodies are single edges and
// need no reserve computation of their own beyond what their body vertex
// already carries).
func (g *Graph) walkAlternationsAndQuantifiers(fn func([]Edge)) {
	seen := map[Vertex]bool{}
	var visit func(v Vertex)
	visit = func(v Vertex) {
		if v == nil || seen[v] {
			return
		}
		seen[v] = true
		switch n := v.(type) {
		case *UnlexerRuleNode:
			for _, e := range n.Out {
				visit(e.To)
			}
		case *UnparserRuleNode:
			for _, e := range n.Out {
				visit(e.To)
			}
		case *AlternationNode:
			for _, alt := range n.Alts {
				fn(alt.Elements)
				for _, e := range alt.Elements {
					visit(e.To)
				}
			}
		case *AlternativeNode:
			fn(n.Elements)
			for _, e := range n.Elements {
				visit(e.To)
			}
		case *QuantifierNode:
			visit(n.Body.To)
		case *VariableNode:
			visit(n.Ref.To)
		}
	}
	for _, name := range g.LexerOrder {
		visit(g.LexerRules[name])
	}
	for _, name := range g.ParserOrder {
		visit(g.ParserRules[name])
	}
}

// computeImmutable is the fixpoint of §4.3: a rule is immutable once its
// body references only literals, charsets and other immutable rules --
// tokens mutation must never re-enter.
func (g *Graph) computeImmutable() {
	for {
		more := false
		for _, name := range g.LexerOrder {
			r := g.LexerRules[name]
			if r.Immutable {
				continue
			}
			if isImmutableSeq(r.Out) {
				r.Immutable = true
				more = true
			}
		}
		if !more {
			break
		}
	}
}

func isImmutableSeq(edges []Edge) bool {
	for _, e := range edges {
		if !isImmutableVertex(e.To) {
			return false
		}
	}
	return true
}

func isImmutableVertex(v Vertex) bool {
	switch n := v.(type) {
	case *LiteralNode, *CharsetNode, *LambdaNode, *ActionNode:
		return true
	case *UnlexerRuleNode:
		return n.Immutable
	case *AlternationNode:
		for _, alt := range n.Alts {
			if !isImmutableSeq(alt.Elements) {
				return false
			}
		}
		return true
	case *QuantifierNode:
		return isImmutableVertex(n.Body.To)
	default:
		return false
	}
}

// checkReachability walks the graph depth-first from the default rule,
// logging a warning for every rule never reached and every rule whose min
// depth came out as size.Max (a cycle with no terminal base).
func (g *Graph) checkReachability(log *logrus.Logger) error {
	start, ok := g.ruleVertex(g.DefaultRule)
	if !ok {
		return fmt.Errorf("default rule %q not found in grammar", g.DefaultRule)
	}

	reached := map[Vertex]bool{}
	var visit func(v Vertex)
	visit = func(v Vertex) {
		if v == nil || reached[v] {
			return
		}
		reached[v] = true
		switch n := v.(type) {
		case *UnlexerRuleNode:
			n.Reachable = true
			for _, e := range n.Out {
				visit(e.To)
			}
		case *UnparserRuleNode:
			n.Reachable = true
			for _, e := range n.Out {
				visit(e.To)
			}
		case *AlternationNode:
			for _, alt := range n.Alts {
				for _, e := range alt.Elements {
					visit(e.To)
				}
			}
		case *AlternativeNode:
			for _, e := range n.Elements {
				visit(e.To)
			}
		case *QuantifierNode:
			visit(n.Body.To)
		case *VariableNode:
			visit(n.Ref.To)
		}
	}
	visit(start)

	if log == nil {
		log = logrus.StandardLogger()
	}
	for _, name := range g.LexerOrder {
		r := g.LexerRules[name]
		if !r.Reachable && !r.Fragment {
			log.WithField("rule", name).Warn("unreachable lexer rule")
		}
		if r.minSize.IsMax() {
			log.WithField("rule", name).Warn("rule has infinite minimum depth")
		}
	}
	for _, name := range g.ParserOrder {
		r := g.ParserRules[name]
		if !r.Reachable {
			log.WithField("rule", name).Warn("unreachable parser rule")
		}
		if r.minSize.IsMax() {
			log.WithField("rule", name).Warn("rule has infinite minimum depth")
		}
	}
	return nil
}

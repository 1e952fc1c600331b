// Package runtime drives generation: it walks a compiled grammar.Graph
// (playing the role the external code emitter's generated procedures would
// play, per §6) while maintaining a current size.Budget against a limit and
// consulting a model.DecisionModel at alternations, quantifiers and
// charsets. Contexts guarantee cleanup on every exit path, mirroring §4.5.
package runtime

import (
	"fmt"
	"math/rand"

	"github.com/nihei9/genfuzz/grammar"
	"github.com/nihei9/genfuzz/model"
	"github.com/nihei9/genfuzz/size"
	"github.com/nihei9/genfuzz/tree"
)

// Listener is notified as rules are entered and exited, in insertion order
// on entry and reverse order on exit.
type Listener interface {
	EnterRule(n *tree.Node)
	ExitRule(n *tree.Node)
}

// Generator walks a grammar.Graph to produce a tree.Node. It is not safe
// for concurrent use by multiple goroutines against the same instance;
// parallelism is achieved by giving each worker its own Generator (§5).
type Generator struct {
	Graph     *grammar.Graph
	Model     model.DecisionModel
	Rand      *rand.Rand
	Limit     size.Budget
	Listeners []Listener

	current size.Budget
}

func NewGenerator(g *grammar.Graph, m model.DecisionModel, r *rand.Rand, limit size.Budget) *Generator {
	return &Generator{Graph: g, Model: m, Rand: r, Limit: limit}
}

// Generate produces a tree rooted at ruleName, defaulting to the graph's
// default rule when ruleName is empty.
func (g *Generator) Generate(ruleName string) (*tree.Node, error) {
	if ruleName == "" {
		ruleName = g.Graph.DefaultRule
	}
	return g.GenerateAt(ruleName, size.Zero)
}

// GenerateAt produces a tree rooted at ruleName as if it were being
// generated from within an already-partially-consumed budget of start (the
// level it would sit at and the tokens its siblings already account for).
// Used by the mutation engine's regenerate_rule operator (§4.9), which
// replaces a subtree in place and must account for the rest of the tree it
// is being spliced back into.
func (g *Generator) GenerateAt(ruleName string, start size.Budget) (*tree.Node, error) {
	v, ok := g.Graph.RuleVertex(ruleName)
	if !ok {
		return nil, fmt.Errorf("unknown rule: %v", ruleName)
	}
	if start.Depth+grammar.VertexMinSize(v).Depth > g.Limit.Depth {
		return nil, fmt.Errorf("start rule %q minimum depth %v exceeds limit depth %v", ruleName, grammar.VertexMinSize(v).Depth, g.Limit.Depth-start.Depth)
	}
	g.current = start
	return g.genRule(ruleName, size.Zero), nil
}

func (g *Generator) notifyEnter(n *tree.Node) {
	for _, l := range g.Listeners {
		l.EnterRule(n)
	}
}

func (g *Generator) notifyExit(n *tree.Node) {
	for i := len(g.Listeners) - 1; i >= 0; i-- {
		g.Listeners[i].ExitRule(n)
	}
}

// genRule opens a RuleContext (increments current.depth, notifies
// listeners) for the named rule, and closes it on every return path.
func (g *Generator) genRule(name string, reserve size.Budget) *tree.Node {
	g.current = g.current.AddDepth(1)
	defer func() { g.current = g.current.AddDepth(-1) }()

	if lr, ok := g.Graph.LexerRules[name]; ok {
		return g.genUnlexerRule(lr, reserve)
	}
	if pr, ok := g.Graph.ParserRules[name]; ok {
		return g.genUnparserRule(pr, reserve)
	}
	// ImagRuleNode: declared but never defined; produce an empty token so
	// the caller at least gets a well-formed (if content-free) subtree.
	n := tree.NewUnlexerRule(name)
	n.SetSrc("")
	g.notifyEnter(n)
	g.notifyExit(n)
	return n
}

// genUnlexerRule is the UnlexerRuleContext of §4.5: also increments
// current.tokens and records the token's own subtree size.
func (g *Generator) genUnlexerRule(r *grammar.UnlexerRuleNode, reserve size.Budget) *tree.Node {
	n := tree.NewUnlexerRule(r.Name)
	n.Immutable = r.Immutable
	g.notifyEnter(n)
	defer g.notifyExit(n)

	before := g.current
	g.current = g.current.AddTokens(1).Add(reserve)

	g.genEdgeSeq(r.Out, n, true)

	g.current = g.current.Sub(reserve)
	n.TokenSize = size.New(0, g.current.Tokens-before.Tokens)
	return n
}

func (g *Generator) genUnparserRule(r *grammar.UnparserRuleNode, reserve size.Budget) *tree.Node {
	n := tree.NewUnparserRule(r.Name)
	g.notifyEnter(n)
	defer g.notifyExit(n)

	g.current = g.current.Add(reserve)
	g.genEdgeSeq(r.Out, n, false)
	g.current = g.current.Sub(reserve)
	return n
}

// genEdgeSeq generates each edge of a straight-line sequence in order,
// attaching the results (or their emitted text, for lexer context) to
// parent.
func (g *Generator) genEdgeSeq(edges []grammar.Edge, parent *tree.Node, isLexer bool) {
	for _, e := range edges {
		g.genVertex(e.To, e.Reserve, parent, isLexer)
	}
}

func (g *Generator) genVertex(v grammar.Vertex, reserve size.Budget, parent *tree.Node, isLexer bool) {
	switch n := v.(type) {
	case *grammar.UnlexerRuleNode:
		g.current = g.current.AddDepth(1)
		child := g.genUnlexerRule(n, reserve)
		g.current = g.current.AddDepth(-1)
		if isLexer {
			g.appendSrc(parent, child.Value())
		} else {
			parent.AddChild(child)
		}
	case *grammar.UnparserRuleNode:
		g.current = g.current.AddDepth(1)
		parent.AddChild(g.genUnparserRule(n, reserve))
		g.current = g.current.AddDepth(-1)
	case *grammar.ImagRuleNode:
		parent.AddChild(g.genRule(n.Name, reserve))
	case *grammar.LiteralNode:
		g.emitText(parent, n.Text, isLexer)
	case *grammar.CharsetNode:
		g.emitCharset(parent, n, isLexer)
	case *grammar.LambdaNode, *grammar.ActionNode:
		// no generated text
	case *grammar.AlternationNode:
		g.genAlternation(n, parent, isLexer)
	case *grammar.AlternativeNode:
		g.genEdgeSeq(n.Elements, parent, isLexer)
	case *grammar.QuantifierNode:
		g.genQuantifier(n, parent, isLexer)
	case *grammar.VariableNode:
		g.genVertex(n.Ref.To, reserve, parent, isLexer)
	}
}

func (g *Generator) emitText(parent *tree.Node, text string, isLexer bool) {
	if isLexer {
		g.appendSrc(parent, text)
		return
	}
	leaf := tree.NewUnlexerRule("")
	leaf.SetSrc(text)
	parent.AddChild(leaf)
}

func (g *Generator) appendSrc(parent *tree.Node, text string) {
	if parent.HasSrc {
		parent.SetSrc(parent.Src + text)
		return
	}
	parent.SetSrc(text)
}

func (g *Generator) emitCharset(parent *tree.Node, cs *grammar.CharsetNode, isLexer bool) {
	picked := g.Model.Charset(model.Node{}, 0, flattenRanges(cs.Ranges))
	g.emitText(parent, string(picked), isLexer)
}

func flattenRanges(ranges []grammar.CharRange) []rune {
	var out []rune
	for _, r := range ranges {
		for c := r.From; c <= r.To; c++ {
			out = append(out, c)
			if len(out) > 1<<16 {
				// Charsets this large are effectively continuous; sampling
				// every code point isn't useful, so cap the enumeration and
				// let the model pick among a representative prefix.
				return out
			}
		}
	}
	return out
}

// genAlternation is the AlternationContext of §4.5.
func (g *Generator) genAlternation(a *grammar.AlternationNode, parent *tree.Node, isLexer bool) {
	weights := make([]float64, len(a.Alts))
	for i := range a.Alts {
		w, ok := grammar.ParseCondition(a.Conditions[i])
		if !ok {
			w = 1 // symbolic predicate text; treated as always-eligible
		}
		if w != 0 && !g.fits(a.AltMinSize[i]) {
			w = 0
		}
		weights[i] = w
	}

	savedLimit := g.Limit
	if allZero(weights) {
		g.relaxForCheapest(a, weights)
	}
	defer func() { g.Limit = savedLimit }()

	ruleName := parent.RuleName
	if isLexer {
		ruleName = parent.Name
	}
	idx := g.Model.Choice(model.Node{RuleName: ruleName, Idx: a.Idx}, a.Idx, weights)

	altNode := tree.NewUnparserRuleAlternative(a.Idx, idx)
	if isLexer {
		g.genEdgeSeq(a.Alts[idx].Elements, parent, true)
		return
	}
	g.genEdgeSeq(a.Alts[idx].Elements, altNode, false)
	parent.AddChild(altNode)
}

func allZero(ws []float64) bool {
	for _, w := range ws {
		if w != 0 {
			return false
		}
	}
	return true
}

// fits reports whether ms would still fit under the current limit once
// added to the running current budget.
func (g *Generator) fits(ms size.Budget) bool {
	if ms.IsMax() {
		return false
	}
	return g.current.Add(ms).LessEq(g.Limit)
}

// relaxForCheapest finds the alternative minimizing (depth, tokens) among
// those whose condition is nonzero, temporarily raises the limit to the
// minimum needed to complete it, and reruns the mask (§4.5).
func (g *Generator) relaxForCheapest(a *grammar.AlternationNode, weights []float64) {
	best := -1
	bestSize := size.Max
	for i, cond := range a.Conditions {
		w, ok := grammar.ParseCondition(cond)
		if ok && w == 0 {
			continue
		}
		ms := a.AltMinSize[i]
		if best == -1 || (ms.Depth < bestSize.Depth || (ms.Depth == bestSize.Depth && ms.Tokens < bestSize.Tokens)) {
			best = i
			bestSize = ms
		}
	}
	if best == -1 {
		return
	}
	needed := g.current.Add(bestSize)
	g.Limit = size.Max2(g.Limit, needed)
	weights[best] = 1
}

// genQuantifier is the QuantifierContext of §4.5.
func (g *Generator) genQuantifier(q *grammar.QuantifierNode, parent *tree.Node, isLexer bool) {
	stop := q.Stop
	qn := tree.NewUnparserRuleQuantifier(q.Idx, q.Start, stop)
	if stop == -1 {
		qn.Stop = tree.Unbounded
	}

	count := 0
	bodyMin := grammar.VertexMinSize(q.Body.To)
	for {
		more := false
		if count < q.Start {
			more = true
		} else if stop == -1 || count < stop {
			more = g.fits(bodyMin) && g.Model.Quantify(model.Node{Idx: q.Idx}, q.Idx, count, q.Start, stop)
		}
		if !more {
			break
		}

		if isLexer {
			g.genVertex(q.Body.To, q.Body.Reserve, parent, true)
		} else {
			qd := tree.NewUnparserRuleQuantified()
			g.genVertex(q.Body.To, q.Body.Reserve, qd, false)
			qn.AddChild(qd)
		}
		count++
	}

	if !isLexer {
		parent.AddChild(qn)
	}
}

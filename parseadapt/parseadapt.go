// Package parseadapt implements the ParserAdapter of §4.11: given an
// externally produced parse tree (an ANTLR-style ParserRuleContext/
// TerminalNode shape), it reconstructs the alternation/quantifier structure
// a Generator would have produced for the same derivation, so that parsed
// corpora can seed a population alongside generated trees.
package parseadapt

import (
	"fmt"
	"strings"

	"github.com/nihei9/genfuzz/grammar"
	"github.com/nihei9/genfuzz/tree"
)

// ExternalNode abstracts one node of the external parse tree: either a rule
// invocation (IsTerminal false, RuleName set, Children the rule's direct
// children in source order) or a token (IsTerminal true, TokenName/Text
// set). Hidden reports whether the token was produced on a hidden/off
// channel (whitespace, comments) rather than the default channel.
type ExternalNode interface {
	RuleName() string
	IsTerminal() bool
	TokenName() string
	Text() string
	Hidden() bool
	Children() []ExternalNode
}

// Adapter reconstructs TreeModels against one compiled grammar.
type Adapter struct {
	Graph *grammar.Graph
}

func New(g *grammar.Graph) *Adapter {
	return &Adapter{Graph: g}
}

// pair records that an external content child produced a given tree node,
// so hidden tokens interleaved among the same rule's children can later be
// reattached next to whichever node their original neighbor ended up under.
type pair struct {
	ext  ExternalNode
	node *tree.Node
}

// Adapt reconstructs a TreeModel from ext, which must represent an
// invocation of a parser rule. The matcher walks the rule's outgoing edges
// left to right against ext's non-hidden children, reconstructing
// AlternationNode/QuantifierNode wrapper nodes, folds hoisted
// recurring-label rules (§4.3) back into the alternative they came from,
// and splices hidden tokens back in next to the content they preceded or
// followed. A structural mismatch is reported rather than guessed at: by
// the time an external parser produced ext, the input already conformed to
// the grammar, so a mismatch means the grammar given to the adapter isn't
// the one the parse tree was built from.
func (a *Adapter) Adapt(ext ExternalNode) (*tree.Node, error) {
	return a.adaptRuleNode(ext)
}

func (a *Adapter) adaptRuleNode(ext ExternalNode) (*tree.Node, error) {
	name := ext.RuleName()
	v, ok := a.Graph.RuleVertex(name)
	if !ok {
		return nil, unresolvedRuleError(name)
	}
	rv, ok := v.(*grammar.UnparserRuleNode)
	if !ok {
		return nil, notAParserRuleError(name)
	}

	all := ext.Children()
	content := make([]ExternalNode, 0, len(all))
	for _, c := range all {
		if !c.Hidden() {
			content = append(content, c)
		}
	}

	kids, pairs, rest, ok := a.matchSeq(rv.Out, content)
	if !ok || len(rest) != 0 {
		return nil, structuralMismatchError(name)
	}

	n := tree.NewUnparserRule(name)
	n.AddChildren(kids...)
	a.reattachHidden(n, all, pairs)
	return n, nil
}

// matchSeq matches a straight-line edge sequence against the front of
// content, left to right, threading the consumed pairs and the unconsumed
// remainder through.
func (a *Adapter) matchSeq(edges []grammar.Edge, content []ExternalNode) ([]*tree.Node, []pair, []ExternalNode, bool) {
	var produced []*tree.Node
	var pairs []pair
	rest := content
	for _, e := range edges {
		p, ps, r, ok := a.matchVertex(e.To, rest)
		if !ok {
			return nil, nil, content, false
		}
		produced = append(produced, p...)
		pairs = append(pairs, ps...)
		rest = r
	}
	return produced, pairs, rest, true
}

func (a *Adapter) matchVertex(v grammar.Vertex, content []ExternalNode) ([]*tree.Node, []pair, []ExternalNode, bool) {
	switch vv := v.(type) {
	case *grammar.LambdaNode, *grammar.ActionNode:
		return nil, nil, content, true

	case *grammar.VariableNode:
		return a.matchVertex(vv.Ref.To, content)

	case *grammar.AlternativeNode:
		return a.matchSeq(vv.Elements, content)

	case *grammar.AlternationNode:
		return a.matchAlternation(vv, content)

	case *grammar.QuantifierNode:
		return a.matchQuantifier(vv, content)

	case *grammar.UnparserRuleNode:
		if len(content) == 0 || content[0].IsTerminal() || content[0].RuleName() != vv.Name {
			return nil, nil, content, false
		}
		child, err := a.adaptRuleNode(content[0])
		if err != nil {
			return nil, nil, content, false
		}
		return []*tree.Node{child}, []pair{{ext: content[0], node: child}}, content[1:], true

	case *grammar.UnlexerRuleNode:
		if len(content) == 0 || !content[0].IsTerminal() {
			return nil, nil, content, false
		}
		leaf := tree.NewUnlexerRule(vv.Name)
		leaf.SetSrc(content[0].Text())
		return []*tree.Node{leaf}, []pair{{ext: content[0], node: leaf}}, content[1:], true

	case *grammar.ImagRuleNode:
		// Declared but never defined: a Generator always produces an empty
		// token for it (runtime.genRule), consuming nothing from the input.
		leaf := tree.NewUnlexerRule(vv.Name)
		leaf.SetSrc("")
		return []*tree.Node{leaf}, nil, content, true

	default:
		return nil, nil, content, false
	}
}

// matchAlternation tries each alternative in declaration order and commits
// to the first that matches, wrapping its children in an
// UnparserRuleAlternative(alt_idx, idx) -- matching runtime.genAlternation's
// output shape. An alternative whose label recurred across the alternation
// was hoisted into a synthetic rule at compile time (§4.3); the external
// tree never saw that extra rule invocation, so its body edges are matched
// directly against this alternation's children and the synthetic rule node
// is synthesized rather than recursed into.
func (a *Adapter) matchAlternation(an *grammar.AlternationNode, content []ExternalNode) ([]*tree.Node, []pair, []ExternalNode, bool) {
	for idx, alt := range an.Alts {
		if syn, ok := hoistedLabelRule(alt); ok {
			kids, pairs, rest, ok := a.matchSeq(syn.Out, content)
			if !ok {
				continue
			}
			wrapper := tree.NewUnparserRule(syn.Name)
			wrapper.AddChildren(kids...)
			altNode := tree.NewUnparserRuleAlternative(an.Idx, idx)
			altNode.AddChild(wrapper)
			return []*tree.Node{altNode}, pairs, rest, true
		}

		kids, pairs, rest, ok := a.matchSeq(alt.Elements, content)
		if !ok {
			continue
		}
		altNode := tree.NewUnparserRuleAlternative(an.Idx, idx)
		altNode.AddChildren(kids...)
		return []*tree.Node{altNode}, pairs, rest, true
	}
	return nil, nil, content, false
}

// hoistedLabelRule reports whether alt is a single reference to a synthetic
// recurring-label rule, per compiler.go's hoistRecurringLabels/
// syntheticLabelRuleName naming.
func hoistedLabelRule(alt *grammar.AlternativeNode) (*grammar.UnparserRuleNode, bool) {
	if len(alt.Elements) != 1 {
		return nil, false
	}
	rv, ok := alt.Elements[0].To.(*grammar.UnparserRuleNode)
	if !ok || !strings.HasPrefix(rv.Name, "_label_") {
		return nil, false
	}
	return rv, true
}

// matchQuantifier greedily matches repetitions of q's body, each wrapped in
// an UnparserRuleQuantified under an UnparserRuleQuantifier(idx, start,
// stop), mirroring runtime.genQuantifier. The quantifier node is always
// produced, even with zero repetitions. maxReps bounds the loop against a
// vacuous (Lambda) body that would otherwise never fail to match.
func (a *Adapter) matchQuantifier(q *grammar.QuantifierNode, content []ExternalNode) ([]*tree.Node, []pair, []ExternalNode, bool) {
	stop := q.Stop
	qn := tree.NewUnparserRuleQuantifier(q.Idx, q.Start, stop)
	if stop == tree.Unbounded {
		qn.Stop = tree.Unbounded
	}

	var pairs []pair
	rest := content
	count := 0
	maxReps := len(content) + 1
	for (stop == -1 || count < stop) && count < maxReps {
		kids, ps, r, ok := a.matchVertex(q.Body.To, rest)
		if !ok {
			break
		}
		qd := tree.NewUnparserRuleQuantified()
		qd.AddChildren(kids...)
		qn.AddChild(qd)
		pairs = append(pairs, ps...)
		rest = r
		count++
		if len(r) == len(rest) && len(kids) == 0 && len(ps) == 0 {
			// The body consumed nothing; stop after this one attempt
			// instead of looping until maxReps on a vacuous body.
			break
		}
	}
	if count < q.Start {
		return nil, nil, content, false
	}
	return []*tree.Node{qn}, pairs, rest, true
}

// reattachHidden splices hidden-channel tokens back into the reconstructed
// tree, immediately before the node their following content sibling
// produced, or immediately after the node their preceding content sibling
// produced when no content follows (a trailing run). pairs maps each
// content child consumed anywhere in n's subtree back to the node it
// produced.
func (a *Adapter) reattachHidden(n *tree.Node, all []ExternalNode, pairs []pair) {
	nodeOf := make(map[ExternalNode]*tree.Node, len(pairs))
	for _, p := range pairs {
		nodeOf[p.ext] = p.node
	}

	i := 0
	for i < len(all) {
		if !all[i].Hidden() {
			i++
			continue
		}
		j := i
		for j < len(all) && all[j].Hidden() {
			j++
		}
		run := all[i:j]

		switch {
		case j < len(all):
			anchor := nodeOf[all[j]]
			for _, h := range run {
				idx := indexInParent(anchor.Parent, anchor)
				anchor.Parent.InsertChild(idx, hiddenLeaf(h))
			}
		case i > 0:
			anchor := nodeOf[all[i-1]]
			for k := len(run) - 1; k >= 0; k-- {
				idx := indexInParent(anchor.Parent, anchor)
				anchor.Parent.InsertChild(idx+1, hiddenLeaf(run[k]))
			}
		default:
			for _, h := range run {
				n.AddChild(hiddenLeaf(h))
			}
		}
		i = j
	}
}

func hiddenLeaf(ext ExternalNode) *tree.Node {
	leaf := tree.NewUnlexerRule(ext.TokenName())
	leaf.SetSrc(ext.Text())
	return leaf
}

func indexInParent(parent, child *tree.Node) int {
	for i, c := range parent.Children() {
		if c == child {
			return i
		}
	}
	return -1
}

type adaptError string

func (e adaptError) Error() string { return string(e) }

func unresolvedRuleError(name string) error {
	return adaptError(fmt.Sprintf("parseadapt: no such rule %q", name))
}

func notAParserRuleError(name string) error {
	return adaptError(fmt.Sprintf("parseadapt: %q is not a parser rule", name))
}

func structuralMismatchError(name string) error {
	return adaptError(fmt.Sprintf("parseadapt: external parse tree does not match grammar structure for rule %q", name))
}

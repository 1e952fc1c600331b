// Package annotate precomputes, in one pre-order pass over a tree, the
// per-node indices the mutation engine and test harnesses need: levels,
// subtree depths/token counts, and buckets of nodes by rule/alternation/
// quantifier identity (§4.6).
package annotate

import "github.com/nihei9/genfuzz/tree"

// Annotations holds the precomputed indices for one tree. Callers should
// treat a value as immutable and recompute (rather than patch) it after any
// mutation to the underlying tree.
type Annotations struct {
	Root *tree.Node

	NodeLevels map[*tree.Node]int
	NodeDepths map[*tree.Node]int
	NodeTokens map[*tree.Node]int

	RulesByName map[string][]*tree.Node
	AltsByName  map[tree.Key][]*tree.Node
	QuantsByKey map[tree.Key][]*tree.Node
}

// Compute walks root once in pre-order and returns its Annotations.
func Compute(root *tree.Node) *Annotations {
	a := &Annotations{
		Root:        root,
		NodeLevels:  map[*tree.Node]int{},
		NodeDepths:  map[*tree.Node]int{},
		NodeTokens:  map[*tree.Node]int{},
		RulesByName: map[string][]*tree.Node{},
		AltsByName:  map[tree.Key][]*tree.Node{},
		QuantsByKey: map[tree.Key][]*tree.Node{},
	}
	a.visit(root, 0)
	return a
}

func (a *Annotations) visit(n *tree.Node, level int) (depth int, tokens int) {
	a.NodeLevels[n] = level

	if n.Kind == tree.KindUnlexerRule && n.HasSrc {
		tokens := n.TokenSize.Tokens + 1
		a.NodeTokens[n] = tokens
		a.NodeDepths[n] = 0
		a.indexNode(n, level)
		return 0, tokens
	}

	maxChildDepth := 0
	sumTokens := 0
	for _, c := range n.Children() {
		cd, ct := a.visit(c, level+1)
		if cd+1 > maxChildDepth {
			maxChildDepth = cd + 1
		}
		sumTokens += ct
	}
	a.NodeDepths[n] = maxChildDepth
	a.NodeTokens[n] = sumTokens
	a.indexNode(n, level)
	return maxChildDepth, sumTokens
}

func (a *Annotations) indexNode(n *tree.Node, level int) {
	if level == 0 {
		return // root is excluded from rules_by_name per §4.6
	}
	switch n.Kind {
	case tree.KindUnparserRule:
		a.RulesByName[n.RuleName] = append(a.RulesByName[n.RuleName], n)
	case tree.KindUnlexerRule:
		if !n.Immutable {
			a.RulesByName[n.Name] = append(a.RulesByName[n.Name], n)
		}
	case tree.KindUnparserRuleAlternative:
		k := n.StructKey()
		a.AltsByName[k] = append(a.AltsByName[k], n)
	case tree.KindUnparserRuleQuantifier:
		k := n.StructKey()
		a.QuantsByKey[k] = append(a.QuantsByKey[k], n)
	}
}

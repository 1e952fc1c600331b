package mutate

import (
	"github.com/nihei9/genfuzz/annotate"
	"github.com/nihei9/genfuzz/grammar"
	"github.com/nihei9/genfuzz/size"
	"github.com/nihei9/genfuzz/tree"
)

// replaceOrRoot splices replacement into old's position, unless old is the
// tree root -- Node.Replace is a no-op on a parentless node, so the caller
// has to special-case becoming the new root itself.
func replaceOrRoot(old, replacement, root *tree.Node) *tree.Node {
	if old == root {
		replacement.Parent = nil
		return replacement
	}
	old.Replace(replacement)
	return root
}

func ruleNameOf(n *tree.Node) string {
	if n.Kind == tree.KindUnlexerRule {
		return n.Name
	}
	return n.RuleName
}

func collectRuleNodes(root *tree.Node) []*tree.Node {
	var out []*tree.Node
	var walk func(n *tree.Node)
	walk = func(n *tree.Node) {
		if n.Kind == tree.KindUnparserRule || n.Kind == tree.KindUnlexerRule {
			out = append(out, n)
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	for _, c := range root.Children() {
		walk(c)
	}
	return out
}

func collectQuantifiers(root *tree.Node) []*tree.Node {
	var out []*tree.Node
	var walk func(n *tree.Node)
	walk = func(n *tree.Node) {
		if n.Kind == tree.KindUnparserRuleQuantifier {
			out = append(out, n)
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(root)
	return out
}

// regenerateRule is generate_rule of §4.9: pick a rule node whose replacement
// with a freshly generated subtree (reserving the rest of the tree's
// existing depth/token footprint) would still fit the limit, and replace it.
// Falls back to regenerating the whole tree from its own start rule when no
// such node exists.
func regenerateRule(e *Engine, root *tree.Node, _ DonorSource) (*tree.Node, bool) {
	ann := annotate.Compute(root)
	rootTokens := ann.NodeTokens[root]

	type candidate struct {
		node *tree.Node
		name string
	}
	var candidates []candidate
	for name, nodes := range ann.RulesByName {
		v, ok := e.Graph.RuleVertex(name)
		if !ok {
			continue
		}
		ms := grammar.VertexMinSize(v)
		for _, n := range nodes {
			level := ann.NodeLevels[n]
			subtreeTokens := ann.NodeTokens[n]
			if level+ms.Depth >= e.Limit.Depth {
				continue
			}
			if rootTokens-subtreeTokens+ms.Tokens >= e.Limit.Tokens {
				continue
			}
			candidates = append(candidates, candidate{n, name})
		}
	}
	if len(candidates) == 0 {
		newRoot, err := e.regenerateFromRoot(root)
		if err != nil {
			return root, false
		}
		return newRoot, true
	}

	c := candidates[e.Rand.Intn(len(candidates))]
	level := ann.NodeLevels[c.node]
	subtreeTokens := ann.NodeTokens[c.node]
	reserve := size.New(level, rootTokens-subtreeTokens)

	newSub, err := e.Gen.GenerateAt(c.name, reserve)
	if err != nil {
		return root, false
	}
	return replaceOrRoot(c.node, newSub, root), true
}

// replaceNode is replace_node of §4.9: swap a recipient node for a
// same-keyed node drawn from a donor tree, as long as the donor's subtree
// still fits at the recipient's position.
func replaceNode(e *Engine, root *tree.Node, donor DonorSource) (*tree.Node, bool) {
	if donor == nil {
		return root, false
	}
	donorRoot := donor()
	if donorRoot == nil {
		return root, false
	}

	recIdx := indexByKey(root)
	donIdx := indexByKey(donorRoot)
	var keys []tree.Key
	for k := range recIdx {
		if len(donIdx[k]) > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return root, false
	}
	k := keys[e.Rand.Intn(len(keys))]
	recNode := recIdx[k][e.Rand.Intn(len(recIdx[k]))]
	donNode := donIdx[k][e.Rand.Intn(len(donIdx[k]))]

	ann := annotate.Compute(root)
	level := ann.NodeLevels[recNode]
	rootTokens := ann.NodeTokens[root]
	recSubtreeTokens := ann.NodeTokens[recNode]

	donAnn := annotate.Compute(donorRoot)
	donSubtreeDepth := donAnn.NodeDepths[donNode]
	donSubtreeTokens := donAnn.NodeTokens[donNode]

	if level+donSubtreeDepth > e.Limit.Depth {
		return root, false
	}
	if rootTokens-recSubtreeTokens+donSubtreeTokens > e.Limit.Tokens {
		return root, false
	}

	return replaceOrRoot(recNode, donNode.DeepCopy(), root), true
}

// insertQuantified is insert_quantified of §4.9: copy one quantified child
// from a donor tree's quantifier into a same-keyed recipient quantifier that
// has not yet reached its upper bound.
func insertQuantified(e *Engine, root *tree.Node, donor DonorSource) (*tree.Node, bool) {
	if donor == nil {
		return root, false
	}
	donorRoot := donor()
	if donorRoot == nil {
		return root, false
	}

	type pair struct {
		recQ, donQ *tree.Node
	}
	donByKey := map[tree.Key][]*tree.Node{}
	for _, q := range collectQuantifiers(donorRoot) {
		if q.ChildCount() > 0 {
			k := q.StructKey()
			donByKey[k] = append(donByKey[k], q)
		}
	}

	var pairs []pair
	for _, rq := range collectQuantifiers(root) {
		if rq.Stop != tree.Unbounded && rq.ChildCount() >= rq.Stop {
			continue
		}
		ds := donByKey[rq.StructKey()]
		if len(ds) == 0 {
			continue
		}
		pairs = append(pairs, pair{rq, ds[e.Rand.Intn(len(ds))]})
	}
	if len(pairs) == 0 {
		return root, false
	}
	p := pairs[e.Rand.Intn(len(pairs))]
	donQd := p.donQ.Children()[e.Rand.Intn(p.donQ.ChildCount())]

	ann := annotate.Compute(root)
	donAnn := annotate.Compute(donorRoot)
	level := ann.NodeLevels[p.recQ]
	rootTokens := ann.NodeTokens[root]
	addedDepth := donAnn.NodeDepths[donQd]
	addedTokens := donAnn.NodeTokens[donQd]

	if level+addedDepth > e.Limit.Depth {
		return root, false
	}
	if rootTokens+addedTokens > e.Limit.Tokens {
		return root, false
	}

	pos := e.Rand.Intn(p.recQ.ChildCount() + 1)
	p.recQ.InsertChild(pos, donQd.DeepCopy())
	return root, true
}

// deleteQuantified is delete_quantified of §4.9: drop one quantified child
// from a quantifier that can still satisfy its lower bound afterward.
func deleteQuantified(e *Engine, root *tree.Node, _ DonorSource) (*tree.Node, bool) {
	var candidates []*tree.Node
	for _, q := range collectQuantifiers(root) {
		if q.ChildCount() > q.Start {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return root, false
	}
	q := candidates[e.Rand.Intn(len(candidates))]
	q.Children()[e.Rand.Intn(q.ChildCount())].Remove()
	return root, true
}

// unrestrictedDelete is unrestricted_delete of §4.9: remove any non-root
// rule node outright, ignoring quantifier bounds.
func unrestrictedDelete(e *Engine, root *tree.Node, _ DonorSource) (*tree.Node, bool) {
	candidates := collectRuleNodes(root)
	if len(candidates) == 0 {
		return root, false
	}
	n := candidates[e.Rand.Intn(len(candidates))]
	n.Remove()
	return root, true
}

// replicateQuantified is replicate_quantified of §4.9: pick a quantified
// child whose subtree token cost leaves room for at least one more copy
// under the remaining token budget, and insert 1..k copies of it.
func replicateQuantified(e *Engine, root *tree.Node, _ DonorSource) (*tree.Node, bool) {
	ann := annotate.Compute(root)
	tokensLeft := e.Limit.Tokens - ann.NodeTokens[root]
	if tokensLeft <= 0 {
		return root, false
	}

	type candidate struct {
		qd *tree.Node
		k  int
	}
	var candidates []candidate
	for _, q := range collectQuantifiers(root) {
		for _, qd := range q.Children() {
			if q.Stop != tree.Unbounded && q.ChildCount() >= q.Stop {
				continue
			}
			subtreeTokens := ann.NodeTokens[qd]
			if subtreeTokens <= 0 {
				continue
			}
			k := tokensLeft / subtreeTokens
			if k < 1 {
				continue
			}
			candidates = append(candidates, candidate{qd, k})
		}
	}
	if len(candidates) == 0 {
		return root, false
	}
	c := candidates[e.Rand.Intn(len(candidates))]
	n := 1 + e.Rand.Intn(c.k)

	parent := c.qd.Parent
	idx := indexOfChild(parent, c.qd)
	for i := 0; i < n; i++ {
		parent.InsertChild(idx+1+i, c.qd.DeepCopy())
	}
	return root, true
}

func indexOfChild(parent, child *tree.Node) int {
	for i, c := range parent.Children() {
		if c == child {
			return i
		}
	}
	return -1
}

// shuffleQuantifieds is shuffle_quantifieds of §4.9: pick a quantifier with
// at least two quantified children and permute their order.
func shuffleQuantifieds(e *Engine, root *tree.Node, _ DonorSource) (*tree.Node, bool) {
	var candidates []*tree.Node
	for _, q := range collectQuantifiers(root) {
		if q.ChildCount() >= 2 {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return root, false
	}
	q := candidates[e.Rand.Intn(len(candidates))]
	n := q.ChildCount()
	for i := n - 1; i > 0; i-- {
		j := e.Rand.Intn(i + 1)
		q.SwapChildren(i, j)
	}
	return root, true
}

// hoistRule is hoist_rule of §4.9: find a rule node that has an ancestor of
// the same name and kind, and replace that ancestor outright with the
// descendant, collapsing the rule's self-recursion by one level.
func hoistRule(e *Engine, root *tree.Node, _ DonorSource) (*tree.Node, bool) {
	type pair struct{ descendant, ancestor *tree.Node }
	var candidates []pair
	for _, n := range collectRuleNodes(root) {
		name := ruleNameOf(n)
		for p := n.Parent; p != nil; p = p.Parent {
			if p.Kind == n.Kind && ruleNameOf(p) == name {
				candidates = append(candidates, pair{n, p})
			}
		}
	}
	if len(candidates) == 0 {
		return root, false
	}
	c := candidates[e.Rand.Intn(len(candidates))]
	return replaceOrRoot(c.ancestor, c.descendant, root), true
}

// unrestrictedHoistRule is unrestricted_hoist_rule of §4.9: like hoist_rule,
// but the ancestor need only be a parser rule with at least two children and
// a token sequence that differs from the descendant's own -- per the design
// resolution, token-sequence equality is checked with Node.EqualTokens.
func unrestrictedHoistRule(e *Engine, root *tree.Node, _ DonorSource) (*tree.Node, bool) {
	type pair struct{ descendant, ancestor *tree.Node }
	var candidates []pair
	for _, n := range collectRuleNodes(root) {
		for p := n.Parent; p != nil; p = p.Parent {
			if p.Kind != tree.KindUnparserRule {
				continue
			}
			if p.ChildCount() < 2 {
				continue
			}
			if n.EqualTokens(p) {
				continue
			}
			candidates = append(candidates, pair{n, p})
		}
	}
	if len(candidates) == 0 {
		return root, false
	}
	c := candidates[e.Rand.Intn(len(candidates))]
	return replaceOrRoot(c.ancestor, c.descendant, root), true
}

// swapNodes exchanges the tree positions of two disjoint, already-attached
// nodes using a pair of throwaway placeholders so neither Replace call ever
// operates on a node that is simultaneously being detached elsewhere.
func swapNodes(a, b *tree.Node) {
	pa := tree.NewUnparserRuleQuantified()
	pb := tree.NewUnparserRuleQuantified()
	a.Replace(pa)
	b.Replace(pb)
	pa.Replace(b)
	pb.Replace(a)
}

// swapLocalNodes is swap_local_nodes of §4.9: exchange two same-keyed,
// non-overlapping (neither an ancestor of the other) nodes within one tree,
// as long as the swap keeps both within the depth limit at their new level.
func swapLocalNodes(e *Engine, root *tree.Node, _ DonorSource) (*tree.Node, bool) {
	idx := indexByKey(root)
	var keys []tree.Key
	for k, nodes := range idx {
		if len(nodes) >= 2 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return root, false
	}
	ann := annotate.Compute(root)

	const maxAttempts = 20
	for attempt := 0; attempt < maxAttempts; attempt++ {
		k := keys[e.Rand.Intn(len(keys))]
		nodes := idx[k]
		i := e.Rand.Intn(len(nodes))
		j := e.Rand.Intn(len(nodes))
		if i == j {
			continue
		}
		a, b := nodes[i], nodes[j]
		if !disjoint(a, b) {
			continue
		}
		levelA, levelB := ann.NodeLevels[a], ann.NodeLevels[b]
		depthA, depthB := ann.NodeDepths[a], ann.NodeDepths[b]
		if levelA+depthB > e.Limit.Depth || levelB+depthA > e.Limit.Depth {
			continue
		}
		swapNodes(a, b)
		return root, true
	}
	return root, false
}

// insertLocalNode is insert_local_node of §4.9: like insert_quantified, but
// the donor quantifier is drawn from the same tree rather than an external
// donor.
func insertLocalNode(e *Engine, root *tree.Node, _ DonorSource) (*tree.Node, bool) {
	type pair struct{ recQ, donQ *tree.Node }
	quants := collectQuantifiers(root)
	byKey := map[tree.Key][]*tree.Node{}
	for _, q := range quants {
		if q.ChildCount() > 0 {
			byKey[q.StructKey()] = append(byKey[q.StructKey()], q)
		}
	}

	var pairs []pair
	for _, q := range quants {
		if q.Stop != tree.Unbounded && q.ChildCount() >= q.Stop {
			continue
		}
		for _, donQ := range byKey[q.StructKey()] {
			if donQ == q {
				continue
			}
			pairs = append(pairs, pair{q, donQ})
		}
	}
	if len(pairs) == 0 {
		return root, false
	}
	p := pairs[e.Rand.Intn(len(pairs))]
	donQd := p.donQ.Children()[e.Rand.Intn(p.donQ.ChildCount())]

	ann := annotate.Compute(root)
	level := ann.NodeLevels[p.recQ]
	rootTokens := ann.NodeTokens[root]
	addedDepth := ann.NodeDepths[donQd]
	addedTokens := ann.NodeTokens[donQd]

	if level+addedDepth > e.Limit.Depth {
		return root, false
	}
	if rootTokens+addedTokens > e.Limit.Tokens {
		return root, false
	}

	pos := e.Rand.Intn(p.recQ.ChildCount() + 1)
	p.recQ.InsertChild(pos, donQd.DeepCopy())
	return root, true
}

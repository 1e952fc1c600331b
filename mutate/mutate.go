// Package mutate implements the MutationEngine of §4.9: a dispatcher over a
// set of structural operators that rewrite a tree in place (or splice
// material from a donor tree), each reporting whether it actually changed
// anything so the dispatcher can retry with a different operator.
package mutate

import (
	"math/rand"

	"github.com/nihei9/genfuzz/grammar"
	"github.com/nihei9/genfuzz/runtime"
	"github.com/nihei9/genfuzz/size"
	"github.com/nihei9/genfuzz/tree"
)

// DonorSource supplies a tree to draw material from for the recombination
// operators. It is a plain function rather than a dependency on package
// population, so mutate has no opinion on how donors are stored or sampled.
type DonorSource func() *tree.Node

// Engine applies one structural operator per call. Generate is used only by
// regenerate_rule and the "all operators failed" fallback; both need a
// working Generator for the grammar the tree was produced from.
type Engine struct {
	Graph *grammar.Graph
	Gen   *runtime.Generator
	Rand  *rand.Rand
	Limit size.Budget

	EnableGenerate     bool
	EnableMutate       bool
	EnableRecombine    bool
	EnableUnrestricted bool
}

type operatorClass int

const (
	classGenerate operatorClass = iota
	classMutate
	classMutateUnrestricted
	classRecombine
)

// operatorFunc returns the (possibly new, if the root itself was replaced)
// root and whether a change was made.
type operatorFunc func(e *Engine, root *tree.Node, donor DonorSource) (*tree.Node, bool)

type operator struct {
	name  string
	class operatorClass
	run   operatorFunc
}

var operators = []operator{
	{"regenerate_rule", classGenerate, regenerateRule},
	{"replace_node", classRecombine, replaceNode},
	{"insert_quantified", classRecombine, insertQuantified},
	{"delete_quantified", classMutate, deleteQuantified},
	{"unrestricted_delete", classMutateUnrestricted, unrestrictedDelete},
	{"replicate_quantified", classMutate, replicateQuantified},
	{"shuffle_quantifieds", classMutate, shuffleQuantifieds},
	{"hoist_rule", classMutate, hoistRule},
	{"unrestricted_hoist_rule", classMutateUnrestricted, unrestrictedHoistRule},
	{"swap_local_nodes", classMutate, swapLocalNodes},
	{"insert_local_node", classMutate, insertLocalNode},
}

func (e *Engine) activeSet() []operator {
	var active []operator
	for _, op := range operators {
		switch op.class {
		case classGenerate:
			if e.EnableGenerate {
				active = append(active, op)
			}
		case classMutate:
			if e.EnableMutate {
				active = append(active, op)
			}
		case classMutateUnrestricted:
			if e.EnableMutate && e.EnableUnrestricted {
				active = append(active, op)
			}
		case classRecombine:
			if e.EnableRecombine {
				active = append(active, op)
			}
		}
	}
	return active
}

// Apply picks an operator uniformly from the active set and applies it to
// root; on a no-op it retries with the remaining operators, and falls back
// to a fresh generation from root's own rule if every operator fails.
func (e *Engine) Apply(root *tree.Node, donor DonorSource) (*tree.Node, error) {
	remaining := e.activeSet()
	for len(remaining) > 0 {
		i := e.Rand.Intn(len(remaining))
		op := remaining[i]
		remaining = append(remaining[:i:i], remaining[i+1:]...)

		newRoot, changed := op.run(e, root, donor)
		if changed {
			return newRoot, nil
		}
	}
	return e.regenerateFromRoot(root)
}

func (e *Engine) regenerateFromRoot(root *tree.Node) (*tree.Node, error) {
	return e.Gen.GenerateAt(ruleNameOf(root), size.Zero)
}

// indexByKey buckets every non-root rule/alternative/quantifier node of root
// by its structural Key, the same identity §4.9's operators match across
// trees or within one tree.
func indexByKey(root *tree.Node) map[tree.Key][]*tree.Node {
	idx := map[tree.Key][]*tree.Node{}
	var walk func(n *tree.Node, isRoot bool)
	walk = func(n *tree.Node, isRoot bool) {
		if !isRoot {
			switch n.Kind {
			case tree.KindUnparserRule, tree.KindUnlexerRule, tree.KindUnparserRuleAlternative, tree.KindUnparserRuleQuantifier:
				k := n.StructKey()
				idx[k] = append(idx[k], n)
			}
		}
		for _, c := range n.Children() {
			walk(c, false)
		}
	}
	walk(root, true)
	return idx
}

func ancestors(n *tree.Node) map[*tree.Node]bool {
	a := map[*tree.Node]bool{}
	for p := n.Parent; p != nil; p = p.Parent {
		a[p] = true
	}
	return a
}

// disjoint reports whether neither a nor b is an ancestor of the other (and
// they are not the same node), the precondition swap_local_nodes requires.
func disjoint(a, b *tree.Node) bool {
	if a == b {
		return false
	}
	if ancestors(a)[b] || ancestors(b)[a] {
		return false
	}
	return true
}

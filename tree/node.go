// Package tree implements the in-memory representation of a derivation: the
// structural decisions (rules, alternatives, quantifiers, quantifieds,
// tokens) a generator made while walking a grammar graph. It is used both as
// the generator's output and as the substrate mutation/crossover operate on.
package tree

import (
	"strings"

	"github.com/nihei9/genfuzz/size"
)

// Kind discriminates the five node variants of §3.
type Kind int

const (
	KindUnlexerRule Kind = iota
	KindUnparserRule
	KindUnparserRuleAlternative
	KindUnparserRuleQuantifier
	KindUnparserRuleQuantified
)

func (k Kind) String() string {
	switch k {
	case KindUnlexerRule:
		return "UnlexerRule"
	case KindUnparserRule:
		return "UnparserRule"
	case KindUnparserRuleAlternative:
		return "UnparserRuleAlternative"
	case KindUnparserRuleQuantifier:
		return "UnparserRuleQuantifier"
	case KindUnparserRuleQuantified:
		return "UnparserRuleQuantified"
	default:
		return "?"
	}
}

// Unbounded represents an unbounded quantifier Stop value.
const Unbounded = -1

// Node is a single vertex of a derivation tree. Which fields are meaningful
// depends on Kind; see the per-kind constructors below.
type Node struct {
	Kind   Kind
	Parent *Node
	kids   []*Node

	// UnlexerRule
	Name      string
	Src       string
	HasSrc    bool
	TokenSize size.Budget
	Immutable bool

	// UnparserRule
	RuleName string

	// UnparserRuleAlternative
	AltIdx int
	Idx    int

	// UnparserRuleQuantifier
	QuantIdx int
	Start    int
	Stop     int // Unbounded (-1) means no upper bound
}

// NewUnlexerRule creates a token-producing node. If src is non-empty (or
// forceLeaf is true for an explicitly empty token), the node is a leaf;
// otherwise it is expected to receive UnlexerRule children via AddChild.
func NewUnlexerRule(name string) *Node {
	return &Node{Kind: KindUnlexerRule, Name: name}
}

// SetSrc marks the node as a leaf carrying literal text.
func (n *Node) SetSrc(src string) {
	n.Src = src
	n.HasSrc = true
}

func NewUnparserRule(name string) *Node {
	return &Node{Kind: KindUnparserRule, RuleName: name}
}

func NewUnparserRuleAlternative(altIdx, idx int) *Node {
	return &Node{Kind: KindUnparserRuleAlternative, AltIdx: altIdx, Idx: idx}
}

func NewUnparserRuleQuantifier(idx, start, stop int) *Node {
	return &Node{Kind: KindUnparserRuleQuantifier, QuantIdx: idx, Start: start, Stop: stop}
}

func NewUnparserRuleQuantified() *Node {
	return &Node{Kind: KindUnparserRuleQuantified}
}

// Children returns the node's children in order. The returned slice must not
// be mutated by the caller; use the Add/Insert/Remove family instead.
func (n *Node) Children() []*Node {
	return n.kids
}

func (n *Node) ChildCount() int {
	return len(n.kids)
}

// AddChild appends child and sets its parent to n.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	n.kids = append(n.kids, child)
}

func (n *Node) AddChildren(children ...*Node) {
	for _, c := range children {
		n.AddChild(c)
	}
}

// InsertChild inserts child at position i, shifting later children right.
func (n *Node) InsertChild(i int, child *Node) {
	child.Parent = n
	n.kids = append(n.kids, nil)
	copy(n.kids[i+1:], n.kids[i:])
	n.kids[i] = child
}

// indexInParent returns n's index among its parent's children, or -1 if n
// has no parent or is not found (which would be an invariant violation).
func (n *Node) indexInParent() int {
	if n.Parent == nil {
		return -1
	}
	for i, c := range n.Parent.kids {
		if c == n {
			return i
		}
	}
	return -1
}

// Replace splices newNode into n's position in its parent's children,
// detaching n (clearing its parent pointer).
func (n *Node) Replace(newNode *Node) {
	p := n.Parent
	if p == nil {
		n.Parent = nil
		return
	}
	i := n.indexInParent()
	if i < 0 {
		return
	}
	newNode.Parent = p
	p.kids[i] = newNode
	n.Parent = nil
}

// Remove detaches n from its parent, splicing it out of the children list.
func (n *Node) Remove() {
	p := n.Parent
	if p == nil {
		return
	}
	i := n.indexInParent()
	if i < 0 {
		return
	}
	p.kids = append(p.kids[:i], p.kids[i+1:]...)
	n.Parent = nil
}

func (n *Node) LeftSibling() *Node {
	if n.Parent == nil {
		return nil
	}
	i := n.indexInParent()
	if i <= 0 {
		return nil
	}
	return n.Parent.kids[i-1]
}

func (n *Node) RightSibling() *Node {
	if n.Parent == nil {
		return nil
	}
	i := n.indexInParent()
	if i < 0 || i >= len(n.Parent.kids)-1 {
		return nil
	}
	return n.Parent.kids[i+1]
}

// SwapChildren exchanges the children at positions i and j, used by
// operators that reorder quantified repetitions without changing parentage.
func (n *Node) SwapChildren(i, j int) {
	n.kids[i], n.kids[j] = n.kids[j], n.kids[i]
}

func (n *Node) LastChild() *Node {
	if len(n.kids) == 0 {
		return nil
	}
	return n.kids[len(n.kids)-1]
}

// DeepCopy returns a structurally identical, fully detached copy of the
// subtree rooted at n. Used by mutation operators that splice donor material
// into a recipient tree.
func (n *Node) DeepCopy() *Node {
	cp := *n
	cp.Parent = nil
	cp.kids = nil
	for _, c := range n.kids {
		cp.AddChild(c.DeepCopy())
	}
	return &cp
}

// Value returns the concatenation of Src across the UnlexerRule leaves of
// the subtree rooted at n, in pre-order -- the textual value of the tree.
func (n *Node) Value() string {
	var b strings.Builder
	n.writeValue(&b)
	return b.String()
}

func (n *Node) writeValue(b *strings.Builder) {
	if n.Kind == KindUnlexerRule && n.HasSrc {
		b.WriteString(n.Src)
		return
	}
	for _, c := range n.kids {
		c.writeValue(b)
	}
}

// Tokens returns the pre-order sequence of UnlexerRule leaves (the tree's
// "tokens").
func (n *Node) Tokens() []*Node {
	var toks []*Node
	n.collectTokens(&toks)
	return toks
}

func (n *Node) collectTokens(toks *[]*Node) {
	if n.Kind == KindUnlexerRule && n.HasSrc {
		*toks = append(*toks, n)
		return
	}
	for _, c := range n.kids {
		c.collectTokens(toks)
	}
}

// EqualTokens reports whether n and other flatten to the same concatenated
// token sequence. This is strict equality of the concatenated source text,
// per the design's explicit resolution of the "equal tokens" open question.
func (n *Node) EqualTokens(other *Node) bool {
	return n.Value() == other.Value()
}

// Equal reports structural equality: same node kinds, same discriminators,
// same Src text, same children in the same order. Parent pointers are
// ignored, matching the Design Notes' tree-equality definition.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindUnlexerRule:
		if a.Name != b.Name || a.HasSrc != b.HasSrc || a.Src != b.Src || a.Immutable != b.Immutable {
			return false
		}
	case KindUnparserRule:
		if a.RuleName != b.RuleName {
			return false
		}
	case KindUnparserRuleAlternative:
		if a.AltIdx != b.AltIdx || a.Idx != b.Idx {
			return false
		}
	case KindUnparserRuleQuantifier:
		if a.QuantIdx != b.QuantIdx || a.Start != b.Start || a.Stop != b.Stop {
			return false
		}
	}
	if len(a.kids) != len(b.kids) {
		return false
	}
	for i := range a.kids {
		if !Equal(a.kids[i], b.kids[i]) {
			return false
		}
	}
	return true
}

// Root walks up to the root of the tree containing n.
func (n *Node) Root() *Node {
	r := n
	for r.Parent != nil {
		r = r.Parent
	}
	return r
}

// Key identifies the structural "slot" a node occupies for the purposes of
// matching compatible nodes across two trees during mutation/recombination
// (§4.9 replace_node/insert_quantified/swap_local_nodes/insert_local_node):
// a rule node is keyed by name, an alternation node by (rule, alt idx), and
// a quantifier node by (rule, quant idx). Nodes without a stable containing
// rule name (e.g. a quantified body) key off their nearest ancestor rule.
type Key struct {
	Rule string
	Sub  string // "", "a", or "q"
	Idx  int
}

func (n *Node) nearestRuleName() string {
	for p := n; p != nil; p = p.Parent {
		if p.Kind == KindUnparserRule {
			return p.RuleName
		}
	}
	return ""
}

// StructKey returns the Key of n, or the zero Key if n's kind has no stable
// identity (KindUnparserRuleQuantified).
func (n *Node) StructKey() Key {
	switch n.Kind {
	case KindUnparserRule:
		return Key{Rule: n.RuleName}
	case KindUnlexerRule:
		return Key{Rule: n.Name}
	case KindUnparserRuleAlternative:
		return Key{Rule: n.nearestRuleName(), Sub: "a", Idx: n.AltIdx}
	case KindUnparserRuleQuantifier:
		return Key{Rule: n.nearestRuleName(), Sub: "q", Idx: n.QuantIdx}
	default:
		return Key{}
	}
}

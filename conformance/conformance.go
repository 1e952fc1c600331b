// Package conformance re-walks a TreeModel against the GrammarGraph it was
// produced from, checking the structural invariants of §3 and a codec
// round-trip, in the Passed/Failed reporting shape the upstream fuzzer
// tooling's own test-case runner uses.
package conformance

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nihei9/genfuzz/codec"
	"github.com/nihei9/genfuzz/grammar"
	"github.com/nihei9/genfuzz/tree"
)

// Violation is one structural-invariant breach, identified by a pre-order
// path of child indices from the checked tree's root.
type Violation struct {
	Path    string
	Message string
}

// Result is one case's outcome.
type Result struct {
	CasePath   string
	Error      error
	Violations []Violation
}

func (r *Result) String() string {
	if r.Error != nil {
		const indent1 = "    "
		const indent2 = indent1 + indent1

		msgLines := strings.Split(r.Error.Error(), "\n")
		msg := fmt.Sprintf("Failed %v:\n%v%v", r.CasePath, indent1, strings.Join(msgLines, "\n"+indent1))
		if len(r.Violations) == 0 {
			return msg
		}
		var lines []string
		for _, v := range r.Violations {
			lines = append(lines, fmt.Sprintf("%v: %v", v.Path, v.Message))
		}
		return fmt.Sprintf("%v\n%v%v", msg, indent2, strings.Join(lines, "\n"+indent2))
	}
	return fmt.Sprintf("Passed %v", r.CasePath)
}

// CaseWithMetadata is one tree loaded from disk for checking.
type CaseWithMetadata struct {
	Root     *tree.Node
	FilePath string
	Error    error
}

// ListCases recursively collects every file under path (or path itself, if
// it names a single file) and decodes it with dec.
func ListCases(path string, dec codec.TreeCodec) []*CaseWithMetadata {
	fi, err := os.Stat(path)
	if err != nil {
		return []*CaseWithMetadata{{FilePath: path, Error: err}}
	}
	if !fi.IsDir() {
		root, err := decodeCase(path, dec)
		return []*CaseWithMetadata{{Root: root, FilePath: path, Error: err}}
	}

	es, err := os.ReadDir(path)
	if err != nil {
		return []*CaseWithMetadata{{FilePath: path, Error: err}}
	}
	var cases []*CaseWithMetadata
	for _, e := range es {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		cases = append(cases, ListCases(filepath.Join(path, e.Name()), dec)...)
	}
	return cases
}

func decodeCase(path string, dec codec.TreeCodec) (*tree.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return dec.Decode(data)
}

// Checker checks trees against one compiled grammar.
type Checker struct {
	Graph *grammar.Graph
	Codec codec.TreeCodec

	alts   map[int]*grammar.AlternationNode
	quants map[int]*grammar.QuantifierNode
}

// New builds a Checker, indexing g's alternations and quantifiers by their
// global idx up front so each Check call is a pure tree walk.
func New(g *grammar.Graph, c codec.TreeCodec) *Checker {
	alts, quants := indexDecisionNodes(g)
	return &Checker{Graph: g, Codec: c, alts: alts, quants: quants}
}

// Run checks every case in cases, reporting a decode failure as a Result
// with no Violations.
func (ck *Checker) Run(cases []*CaseWithMetadata) []*Result {
	var rs []*Result
	for _, c := range cases {
		if c.Error != nil {
			rs = append(rs, &Result{CasePath: c.FilePath, Error: c.Error})
			continue
		}
		rs = append(rs, ck.Check(c.FilePath, c.Root))
	}
	return rs
}

// Check walks root checking §3's structural invariants, then (if Codec is
// set) re-derives it through an encode/decode round trip and checks the
// result still flattens to the same token sequence.
func (ck *Checker) Check(casePath string, root *tree.Node) *Result {
	var violations []Violation
	ck.walk(root, "", &violations)

	if ck.Codec != nil {
		data, err := ck.Codec.Encode(root)
		if err != nil {
			return &Result{CasePath: casePath, Error: fmt.Errorf("encode: %w", err)}
		}
		decoded, err := ck.Codec.Decode(data)
		if err != nil {
			return &Result{CasePath: casePath, Error: fmt.Errorf("decode: %w", err)}
		}
		if !root.EqualTokens(decoded) {
			violations = append(violations, Violation{
				Path:    "/",
				Message: "codec round-trip re-derivation changed the tree's token sequence",
			})
		}
	}

	if len(violations) > 0 {
		return &Result{CasePath: casePath, Error: fmt.Errorf("%d structural violation(s)", len(violations)), Violations: violations}
	}
	return &Result{CasePath: casePath}
}

func (ck *Checker) walk(n *tree.Node, path string, out *[]Violation) {
	switch n.Kind {
	case tree.KindUnlexerRule:
		if n.HasSrc && n.ChildCount() > 0 {
			*out = append(*out, Violation{Path: path, Message: "token leaf has both src set and children"})
		}
		if n.Name != "" {
			if lr, ok := ck.Graph.LexerRules[n.Name]; ok && lr.Immutable != n.Immutable {
				*out = append(*out, Violation{Path: path, Message: "immutable flag diverges from the defining lexer rule"})
			}
		}
	case tree.KindUnparserRuleAlternative:
		ck.checkAlternative(n, path, out)
	case tree.KindUnparserRuleQuantifier:
		ck.checkQuantifier(n, path, out)
	}

	seen := map[*tree.Node]bool{}
	for i, c := range n.Children() {
		if c.Parent != n {
			*out = append(*out, Violation{Path: path, Message: "child's parent pointer does not reference this node"})
		}
		if seen[c] {
			*out = append(*out, Violation{Path: path, Message: "the same child node appears more than once"})
		}
		seen[c] = true
		ck.walk(c, fmt.Sprintf("%s/%d", path, i), out)
	}
}

func (ck *Checker) checkAlternative(n *tree.Node, path string, out *[]Violation) {
	an, ok := ck.alts[n.AltIdx]
	if !ok {
		*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("alt_idx %d does not refer to a known alternation", n.AltIdx)})
		return
	}
	if n.Idx < 0 || n.Idx >= len(an.Alts) {
		*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("chosen idx %d out of range for alternation %d with %d alternatives", n.Idx, n.AltIdx, len(an.Alts))})
	}
}

func (ck *Checker) checkQuantifier(n *tree.Node, path string, out *[]Violation) {
	count := n.ChildCount()
	if count < n.Start || (n.Stop != tree.Unbounded && count > n.Stop) {
		*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("quantifier child count %d outside [%d,%d]", count, n.Start, n.Stop)})
	}

	qn, ok := ck.quants[n.QuantIdx]
	if !ok {
		*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("quant_idx %d does not refer to a known quantifier", n.QuantIdx)})
		return
	}
	gStop := qn.Stop
	if gStop == -1 {
		gStop = tree.Unbounded
	}
	if n.Start != qn.Start || n.Stop != gStop {
		*out = append(*out, Violation{Path: path, Message: "quantifier bounds diverge from the grammar's"})
	}
}

// indexDecisionNodes walks every reachable vertex once, indexing
// AlternationNode/QuantifierNode by their global idx, following the same
// seen-set traversal shape as grammar.Graph's own internal
// walkAlternationsAndQuantifiers.
func indexDecisionNodes(g *grammar.Graph) (map[int]*grammar.AlternationNode, map[int]*grammar.QuantifierNode) {
	alts := map[int]*grammar.AlternationNode{}
	quants := map[int]*grammar.QuantifierNode{}
	seen := map[grammar.Vertex]bool{}

	var visit func(v grammar.Vertex)
	visit = func(v grammar.Vertex) {
		if v == nil || seen[v] {
			return
		}
		seen[v] = true
		switch n := v.(type) {
		case *grammar.UnlexerRuleNode:
			for _, e := range n.Out {
				visit(e.To)
			}
		case *grammar.UnparserRuleNode:
			for _, e := range n.Out {
				visit(e.To)
			}
		case *grammar.AlternationNode:
			alts[n.Idx] = n
			for _, alt := range n.Alts {
				for _, e := range alt.Elements {
					visit(e.To)
				}
			}
		case *grammar.AlternativeNode:
			for _, e := range n.Elements {
				visit(e.To)
			}
		case *grammar.QuantifierNode:
			quants[n.Idx] = n
			visit(n.Body.To)
		case *grammar.VariableNode:
			visit(n.Ref.To)
		}
	}

	for _, name := range g.LexerOrder {
		visit(g.LexerRules[name])
	}
	for _, name := range g.ParserOrder {
		visit(g.ParserRules[name])
	}
	for _, v := range g.ImagRules {
		visit(v)
	}
	return alts, quants
}

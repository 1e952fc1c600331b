package grammar

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/nihei9/genfuzz/compressor"
	verr "github.com/nihei9/genfuzz/error"
	"github.com/nihei9/genfuzz/spec"
)

// WildcardMode selects what the `.` wildcard resolves to.
type WildcardMode int

const (
	WildcardAnyASCIILetter WildcardMode = iota
	WildcardAnyASCIIChar
	WildcardAnyUnicodeChar
)

// Compiler folds a parsed grammar AST into a Graph. It is largely
// mechanical traversal; the interesting behaviors are literal interning,
// charset canonicalization, and argument-action parsing (§4.12).
type Compiler struct {
	Wildcard WildcardMode
	Log      *logrus.Logger

	g                  *Graph
	literalRules       map[string]*UnlexerRuleNode // text -> interned rule
	literalSeq         int
	quantSeq           int
	altSeq             int
	labelSeq           map[string]int // rule name -> next synthetic suffix for recurring labels
	charsetOccurrences [][]CharRange   // every charset element compiled, before interning
	errs               verr.SpecErrors
}

// NewCompiler returns a Compiler with the dialect's usual wildcard
// resolution (any Unicode scalar value) and a standard logger.
func NewCompiler() *Compiler {
	return &Compiler{
		Wildcard: WildcardAnyUnicodeChar,
		Log:      logrus.StandardLogger(),
	}
}

// Compile turns root into a fully analyzed Graph.
func (c *Compiler) Compile(root *spec.RootNode) (*Graph, error) {
	c.g = newGraph()
	c.g.Name = root.Name
	c.literalRules = map[string]*UnlexerRuleNode{}
	c.labelSeq = map[string]int{}

	for _, rn := range root.Rules {
		c.declareRule(rn)
	}
	for _, rn := range root.Rules {
		c.defineRule(rn)
	}

	if c.g.DefaultRule == "" && len(c.g.ParserOrder) > 0 {
		c.g.DefaultRule = c.g.ParserOrder[0]
	} else if c.g.DefaultRule == "" && len(c.g.LexerOrder) > 0 {
		c.g.DefaultRule = c.g.LexerOrder[0]
	}

	if len(c.errs) > 0 {
		return nil, c.errs
	}

	if err := c.g.Analyze(c.Log); err != nil {
		return nil, err
	}
	c.reportCharsetCompression()
	return c.g, nil
}

// reportCharsetCompression logs how much the charset table's row-dedup
// (internCharset) actually bought, by running the compressor package's
// general-purpose row deduplication over every charset occurrence seen
// during compilation (before internCharset ever collapsed a duplicate) and
// comparing its unique row count against the occurrence count. This never
// touches the graph; it is diagnostic only.
func (c *Compiler) reportCharsetCompression() {
	if len(c.charsetOccurrences) == 0 {
		return
	}
	width := 0
	for _, ranges := range c.charsetOccurrences {
		if n := len(ranges) * 2; n > width {
			width = n
		}
	}
	if width == 0 {
		return
	}
	entries := make([]int, 0, len(c.charsetOccurrences)*width)
	for _, ranges := range c.charsetOccurrences {
		row := make([]int, width)
		for i := range row {
			row[i] = -1
		}
		for i, r := range ranges {
			row[i*2] = int(r.From)
			row[i*2+1] = int(r.To)
		}
		entries = append(entries, row...)
	}
	orig, err := compressor.NewOriginalTable(entries, width)
	if err != nil {
		c.Log.WithError(err).Debug("skipping charset compression report")
		return
	}
	tab := compressor.NewUniqueEntriesTable()
	if err := tab.Compress(orig); err != nil {
		c.Log.WithError(err).Debug("skipping charset compression report")
		return
	}
	c.Log.WithFields(logrus.Fields{
		"occurrences": len(c.charsetOccurrences),
		"uniqueRows":  tab.RowCount(),
	}).Debug("charset table deduplication")
}

func (c *Compiler) errorf(pos spec.Position, detail string, args ...interface{}) {
	c.errs = append(c.errs, &verr.SpecError{
		Cause:  fmt.Errorf("grammar compile error"),
		Detail: fmt.Sprintf(detail, args...),
		Row:    pos.Row,
		Col:    pos.Col,
	})
}

func (c *Compiler) declareRule(rn *spec.RuleNode) {
	if rn.IsLexer {
		if _, dup := c.g.LexerRules[rn.Name]; dup {
			c.errorf(rn.Pos, "duplicate lexer rule %q", rn.Name)
			return
		}
		r := &UnlexerRuleNode{Name: rn.Name, Fragment: rn.Fragment}
		c.g.LexerRules[rn.Name] = r
		c.g.LexerOrder = append(c.g.LexerOrder, rn.Name)
		return
	}
	if _, dup := c.g.ParserRules[rn.Name]; dup {
		c.errorf(rn.Pos, "duplicate parser rule %q", rn.Name)
		return
	}
	r := &UnparserRuleNode{Name: rn.Name}
	c.g.ParserRules[rn.Name] = r
	c.g.ParserOrder = append(c.g.ParserOrder, rn.Name)
}

func (c *Compiler) defineRule(rn *spec.RuleNode) {
	if rn.IsLexer {
		r, ok := c.g.LexerRules[rn.Name]
		if !ok {
			return
		}
		r.Out = c.compileBodyEdges(rn.Alts, rn.Pos, true)
		return
	}
	r, ok := c.g.ParserRules[rn.Name]
	if !ok {
		return
	}
	r.Out = c.compileBodyEdges(rn.Alts, rn.Pos, false)
}

// compileBodyEdges compiles a rule's alternatives into the edge sequence
// that becomes the rule vertex's Out: a single edge to an AlternationNode
// when there is more than one alternative (or any alternative carries a
// label/weight), or the flattened element sequence of the sole alternative
// otherwise.
func (c *Compiler) compileBodyEdges(alts []*spec.AlternativeNode, pos spec.Position, isLexer bool) []Edge {
	if len(alts) == 0 {
		return nil
	}
	needsAlternation := len(alts) > 1
	if len(alts) == 1 && (alts[0].Label != "" || alts[0].Weight != "") {
		needsAlternation = true
	}
	if !needsAlternation {
		return c.compileElements(alts[0].Elements, isLexer)
	}

	an := &AlternationNode{Idx: c.altSeq}
	c.altSeq++
	for _, alt := range alts {
		an.Alts = append(an.Alts, &AlternativeNode{
			Elements: c.compileElements(alt.Elements, isLexer),
			Label:    alt.Label,
		})
		an.Conditions = append(an.Conditions, alt.Weight)
	}
	c.hoistRecurringLabels(an, pos)
	return []Edge{{To: an}}
}

// hoistRecurringLabels implements the labeled-alternative handling of
// §4.3: when a label repeats across alternatives of the same alternation,
// a synthetic rule per label is introduced so a later regeneration of a
// subtree under that recurring label has somewhere stable to regenerate
// from.
func (c *Compiler) hoistRecurringLabels(an *AlternationNode, pos spec.Position) {
	counts := map[string]int{}
	for _, alt := range an.Alts {
		if alt.Label != "" {
			counts[alt.Label]++
		}
	}
	for label, n := range counts {
		if n < 2 {
			continue
		}
		for _, alt := range an.Alts {
			if alt.Label != label {
				continue
			}
			synName := c.syntheticLabelRuleName(label)
			syn := &UnparserRuleNode{Name: synName, Out: alt.Elements}
			c.g.ParserRules[synName] = syn
			c.g.ParserOrder = append(c.g.ParserOrder, synName)
			alt.Elements = []Edge{{To: syn}}
		}
	}
}

func (c *Compiler) syntheticLabelRuleName(label string) string {
	c.labelSeq[label]++
	return fmt.Sprintf("_label_%v_%v", label, c.labelSeq[label])
}

func (c *Compiler) compileElements(elems []*spec.ElementNode, isLexer bool) []Edge {
	if len(elems) == 0 {
		return []Edge{{To: &LambdaNode{}}}
	}
	out := make([]Edge, 0, len(elems))
	for _, e := range elems {
		edge := c.compileElement(e, isLexer)
		if e.Quantifier != "" {
			edge = c.wrapQuantifier(edge, e)
		}
		if e.Label != "" {
			edge = Edge{To: &VariableNode{Label: e.Label, Ref: edge, ListLabel: e.ListLabel}}
		}
		out = append(out, edge)
	}
	return out
}

func (c *Compiler) wrapQuantifier(body Edge, e *spec.ElementNode) Edge {
	start, stop := 0, -1
	switch e.Quantifier {
	case "?":
		start, stop = 0, 1
	case "*":
		start, stop = 0, -1
	case "+":
		start, stop = 1, -1
	}
	q := &QuantifierNode{Idx: c.nextQuantIdx(), Start: start, Stop: stop, Body: body}
	return Edge{To: q}
}

func (c *Compiler) nextQuantIdx() int {
	idx := c.quantSeq
	c.quantSeq++
	return idx
}

func (c *Compiler) compileElement(e *spec.ElementNode, isLexer bool) Edge {
	switch e.Kind {
	case spec.ElemRuleRef:
		return c.compileRuleRef(e)
	case spec.ElemLiteral:
		return c.compileLiteral(e, isLexer)
	case spec.ElemCharset:
		return c.compileCharset(e)
	case spec.ElemWildcard:
		return c.compileWildcard(isLexer)
	case spec.ElemGroup:
		return c.compileGroup(e, isLexer)
	case spec.ElemAction:
		return Edge{To: &ActionNode{Code: e.Action, IsPredicate: e.IsPredicate}}
	default:
		c.errorf(e.Pos, "unsupported element kind")
		return Edge{To: &LambdaNode{}}
	}
}

// compileGroup compiles a parenthesized group `(...)`, reusing
// compileBodyEdges's single-alternative collapsing rule so a group with
// exactly one unlabeled alternative doesn't pay for an AlternationNode it
// doesn't need.
func (c *Compiler) compileGroup(e *spec.ElementNode, isLexer bool) Edge {
	edges := c.compileBodyEdges(e.Group, e.Pos, isLexer)
	if len(edges) == 1 {
		return edges[0]
	}
	return Edge{To: &AlternativeNode{Elements: edges}}
}

func (c *Compiler) compileRuleRef(e *spec.ElementNode) Edge {
	v, ok := c.g.ruleVertex(e.Name)
	if !ok {
		// Forward reference to an undeclared rule: register as imaginary so
		// the rest of compilation can proceed; an external import resolver
		// would normally have filled this in.
		imag := &ImagRuleNode{Name: e.Name}
		c.g.ImagRules[e.Name] = imag
		v = imag
	}
	var args []Arg
	for _, a := range e.Args {
		args = append(args, Arg{Key: a.Key, Value: a.Value})
	}
	return Edge{To: v, Args: args}
}

func (c *Compiler) compileLiteral(e *spec.ElementNode, isLexer bool) Edge {
	text, err := decodeStringEscapes(e.Literal)
	if err != nil {
		c.errorf(e.Pos, "invalid string literal: %v", err)
		text = e.Literal
	}
	if isLexer {
		return Edge{To: &LiteralNode{Text: text}}
	}
	return Edge{To: c.internLiteral(text)}
}

// internLiteral promotes a string literal found in a parser rule to an
// implicit lexer rule, reusing one already interned for the same text
// (§4.12 literal interning).
func (c *Compiler) internLiteral(text string) *UnlexerRuleNode {
	if r, ok := c.literalRules[text]; ok {
		return r
	}
	c.literalSeq++
	name := fmt.Sprintf("_lit_%v", c.literalSeq)
	r := &UnlexerRuleNode{
		Name: name,
		Out:  []Edge{{To: &LiteralNode{Text: text}}},
	}
	c.literalRules[text] = r
	c.g.LexerRules[name] = r
	c.g.LexerOrder = append(c.g.LexerOrder, name)
	return r
}

func (c *Compiler) compileCharset(e *spec.ElementNode) Edge {
	ranges, err := parseCharsetBody(e.Charset)
	if err != nil {
		c.errorf(e.Pos, "invalid charset: %v", err)
		return Edge{To: &LambdaNode{}}
	}
	if e.CharsetNeg {
		ranges = negateRanges(ranges)
	} else if err := validateRanges(ranges); err != nil {
		c.errorf(e.Pos, "%v", err)
	}
	c.charsetOccurrences = append(c.charsetOccurrences, ranges)
	return Edge{To: c.internCharset(ranges)}
}

// internCharset returns a deduplicated CharsetNode for ranges, reusing one
// already in the graph's charset table with the same canonical range list.
func (c *Compiler) internCharset(ranges []CharRange) *CharsetNode {
	for _, cs := range c.g.Charsets {
		if rangesEqual(cs.Ranges, ranges) {
			return cs
		}
	}
	cs := &CharsetNode{Ranges: ranges}
	c.g.Charsets = append(c.g.Charsets, cs)
	return cs
}

func rangesEqual(a, b []CharRange) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (c *Compiler) compileWildcard(isLexer bool) Edge {
	if isLexer {
		switch c.Wildcard {
		case WildcardAnyASCIILetter:
			return Edge{To: c.internCharset([]CharRange{{From: 'a', To: 'z'}, {From: 'A', To: 'Z'}})}
		case WildcardAnyASCIIChar:
			return Edge{To: c.internCharset([]CharRange{{From: 0, To: 0x7f}})}
		default:
			return Edge{To: c.internCharset([]CharRange{{From: 0, To: 0xd7ff}, {From: 0xe000, To: 0x10ffff}})}
		}
	}
	// In a parser context the wildcard becomes an alternation over all
	// lexer rules via a synthetic `_dot` rule (§4.3 wildcard resolution).
	return Edge{To: c.syntheticDotRule()}
}

func (c *Compiler) syntheticDotRule() *UnparserRuleNode {
	const name = "_dot"
	if r, ok := c.g.ParserRules[name]; ok {
		return r
	}
	r := &UnparserRuleNode{Name: name}
	c.g.ParserRules[name] = r
	c.g.ParserOrder = append(c.g.ParserOrder, name)

	an := &AlternationNode{Idx: c.altSeq}
	c.altSeq++
	for _, lname := range c.g.LexerOrder {
		lr := c.g.LexerRules[lname]
		if lr.Fragment {
			continue
		}
		an.Alts = append(an.Alts, &AlternativeNode{Elements: []Edge{{To: lr}}})
		an.Conditions = append(an.Conditions, "")
	}
	r.Out = []Edge{{To: an}}
	return r
}

// ParseCondition reports whether a raw AlternationNode.Conditions entry
// parses as a constant numeric weight; non-numeric entries are symbolic
// predicate text evaluated via a host-supplied callback at generation time
// (§9 Design Notes, action blocks and semantic predicates).
func ParseCondition(v string) (float64, bool) {
	if v == "" {
		return 1, true
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

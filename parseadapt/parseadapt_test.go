package parseadapt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nihei9/genfuzz/grammar"
	"github.com/nihei9/genfuzz/spec"
	"github.com/nihei9/genfuzz/tree"
)

func compile(t *testing.T, src string) *grammar.Graph {
	t.Helper()
	root, err := spec.Parse(strings.NewReader(src))
	require.NoError(t, err)
	g, err := grammar.NewCompiler().Compile(root)
	require.NoError(t, err)
	return g
}

// fakeNode is a hand-built ExternalNode, standing in for an ANTLR-style
// ParserRuleContext/TerminalNode. Lowercase rule names (s, a) are parser
// rules; uppercase names (A, B) are lexer rules, matching the grammar
// dialect's own case convention, so a fakeNode terminal and a compiled
// UnlexerRuleNode line up without any extra nesting.
type fakeNode struct {
	rule      string
	terminal  bool
	tokenName string
	text      string
	hidden    bool
	kids      []ExternalNode
}

func (f *fakeNode) RuleName() string         { return f.rule }
func (f *fakeNode) IsTerminal() bool         { return f.terminal }
func (f *fakeNode) TokenName() string        { return f.tokenName }
func (f *fakeNode) Text() string             { return f.text }
func (f *fakeNode) Hidden() bool             { return f.hidden }
func (f *fakeNode) Children() []ExternalNode { return f.kids }

func ruleNode(name string, kids ...ExternalNode) *fakeNode {
	return &fakeNode{rule: name, kids: kids}
}

func tok(name, text string) *fakeNode {
	return &fakeNode{terminal: true, tokenName: name, text: text}
}

func hiddenTok(name, text string) *fakeNode {
	return &fakeNode{terminal: true, tokenName: name, text: text, hidden: true}
}

func TestAdaptSequenceOfTerminals(t *testing.T) {
	g := compile(t, `grammar g; s: A B; A: 'x'; B: 'y';`)
	ext := ruleNode("s", tok("A", "x"), tok("B", "y"))

	n, err := New(g).Adapt(ext)
	require.NoError(t, err)
	require.Equal(t, tree.KindUnparserRule, n.Kind)
	require.Equal(t, "s", n.RuleName)
	require.Equal(t, "xy", n.Value())
	require.Len(t, n.Children(), 2)
}

func TestAdaptAlternationPicksMatchingBranch(t *testing.T) {
	g := compile(t, `grammar g; s: A | B; A: 'x'; B: 'y';`)
	ext := ruleNode("s", tok("A", "x"))

	n, err := New(g).Adapt(ext)
	require.NoError(t, err)
	require.Len(t, n.Children(), 1)
	alt := n.Children()[0]
	require.Equal(t, tree.KindUnparserRuleAlternative, alt.Kind)
	require.Equal(t, 0, alt.Idx)
	require.Equal(t, "x", n.Value())
}

func TestAdaptQuantifierMatchesEachRepetition(t *testing.T) {
	g := compile(t, `grammar g; s: A*; A: 'x';`)
	ext := ruleNode("s", tok("A", "x"), tok("A", "x"), tok("A", "x"))

	n, err := New(g).Adapt(ext)
	require.NoError(t, err)
	require.Len(t, n.Children(), 1)
	qn := n.Children()[0]
	require.Equal(t, tree.KindUnparserRuleQuantifier, qn.Kind)
	require.Len(t, qn.Children(), 3)
	require.Equal(t, "xxx", n.Value())
}

func TestAdaptQuantifierAcceptsZeroRepetitions(t *testing.T) {
	g := compile(t, `grammar g; s: A*; A: 'x';`)
	ext := ruleNode("s")

	n, err := New(g).Adapt(ext)
	require.NoError(t, err)
	require.Len(t, n.Children(), 1)
	require.Equal(t, 0, n.Children()[0].ChildCount())
	require.Equal(t, "", n.Value())
}

func TestAdaptQuantifierFailsBelowLowerBound(t *testing.T) {
	g := compile(t, `grammar g; s: A+; A: 'x';`)
	ext := ruleNode("s")

	_, err := New(g).Adapt(ext)
	require.Error(t, err)
}

func TestAdaptReattachesHiddenTokenBetweenSiblings(t *testing.T) {
	g := compile(t, `grammar g; s: A B; A: 'x'; B: 'y';`)
	ext := ruleNode("s", tok("A", "x"), hiddenTok("WS", " "), tok("B", "y"))

	n, err := New(g).Adapt(ext)
	require.NoError(t, err)
	require.Equal(t, "x y", n.Value())
	require.Len(t, n.Children(), 3)
	require.Equal(t, "WS", n.Children()[1].Name)
}

func TestAdaptReattachesTrailingHiddenTokens(t *testing.T) {
	g := compile(t, `grammar g; s: A; A: 'x';`)
	ext := ruleNode("s", tok("A", "x"), hiddenTok("WS", " "), hiddenTok("WS", "\n"))

	n, err := New(g).Adapt(ext)
	require.NoError(t, err)
	require.Equal(t, "x \n", n.Value())
	require.Len(t, n.Children(), 3)
}

func TestAdaptFoldsHoistedRecurringLabel(t *testing.T) {
	g := compile(t, `grammar g; s: A # Foo | B # Foo; A: 'x'; B: 'y';`)
	ext := ruleNode("s", tok("A", "x"))

	n, err := New(g).Adapt(ext)
	require.NoError(t, err)
	require.Equal(t, "x", n.Value())

	alt := n.Children()[0]
	require.Equal(t, tree.KindUnparserRuleAlternative, alt.Kind)
	require.Len(t, alt.Children(), 1)
	wrapper := alt.Children()[0]
	require.Equal(t, tree.KindUnparserRule, wrapper.Kind)
	require.Contains(t, wrapper.RuleName, "_label_Foo_")
}

func TestAdaptReportsStructuralMismatch(t *testing.T) {
	g := compile(t, `grammar g; s: A B; A: 'x'; B: 'y';`)
	ext := ruleNode("s", tok("A", "x"))

	_, err := New(g).Adapt(ext)
	require.Error(t, err)
}

func TestAdaptUnknownRuleIsReported(t *testing.T) {
	g := compile(t, `grammar g; s: 'x';`)
	ext := ruleNode("nonexistent")

	_, err := New(g).Adapt(ext)
	require.Error(t, err)
}

func TestAdaptRecursesIntoNestedParserRule(t *testing.T) {
	g := compile(t, `grammar g; s: a; a: A; A: 'x';`)
	ext := ruleNode("s", ruleNode("a", tok("A", "x")))

	n, err := New(g).Adapt(ext)
	require.NoError(t, err)
	require.Len(t, n.Children(), 1)
	inner := n.Children()[0]
	require.Equal(t, tree.KindUnparserRule, inner.Kind)
	require.Equal(t, "a", inner.RuleName)
	require.Equal(t, "x", n.Value())
}

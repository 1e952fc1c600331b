package tree

import "testing"

func lit(s string) *Node {
	n := NewUnlexerRule("")
	n.SetSrc(s)
	return n
}

func TestAddChildValue(t *testing.T) {
	root := NewUnparserRule("greeting")
	root.AddChild(lit("hello"))
	root.AddChild(lit(" "))
	root.AddChild(lit("world"))

	if got, want := root.Value(), "hello world"; got != want {
		t.Errorf("Value() = %q, want %q", got, want)
	}
	if got, want := len(root.Tokens()), 3; got != want {
		t.Errorf("len(Tokens()) = %v, want %v", got, want)
	}
}

func TestInsertChild(t *testing.T) {
	root := NewUnparserRule("r")
	a := lit("a")
	c := lit("c")
	root.AddChild(a)
	root.AddChild(c)

	b := lit("b")
	root.InsertChild(1, b)

	if got, want := root.Value(), "abc"; got != want {
		t.Errorf("Value() = %q, want %q", got, want)
	}
	if b.Parent != root {
		t.Error("InsertChild did not set parent")
	}
}

func TestRemoveAndSiblings(t *testing.T) {
	root := NewUnparserRule("r")
	a, b, c := lit("a"), lit("b"), lit("c")
	root.AddChildren(a, b, c)

	if b.LeftSibling() != a || b.RightSibling() != c {
		t.Error("sibling navigation incorrect")
	}

	b.Remove()
	if b.Parent != nil {
		t.Error("Remove did not clear parent")
	}
	if got, want := root.Value(), "ac"; got != want {
		t.Errorf("Value() after remove = %q, want %q", got, want)
	}
	if a.RightSibling() != c {
		t.Error("RightSibling not updated after splice")
	}
}

func TestReplace(t *testing.T) {
	root := NewUnparserRule("r")
	a, b := lit("a"), lit("b")
	root.AddChildren(a, b)

	repl := lit("x")
	a.Replace(repl)

	if got, want := root.Value(), "xb"; got != want {
		t.Errorf("Value() after replace = %q, want %q", got, want)
	}
	if a.Parent != nil {
		t.Error("Replace did not detach old node")
	}
	if repl.Parent != root {
		t.Error("Replace did not attach new node")
	}
}

func TestDeepCopyIndependent(t *testing.T) {
	root := NewUnparserRule("r")
	root.AddChild(lit("a"))

	cp := root.DeepCopy()
	cp.AddChild(lit("b"))

	if root.Value() == cp.Value() {
		t.Error("DeepCopy shares structure with the original")
	}
	if cp.Parent != nil {
		t.Error("DeepCopy root should be detached")
	}
}

func TestEqualIgnoresParent(t *testing.T) {
	a := NewUnparserRule("r")
	a.AddChild(lit("x"))

	b := NewUnparserRule("r")
	b.AddChild(lit("x"))

	container := NewUnparserRule("container")
	container.AddChild(b)

	if !Equal(a, b) {
		t.Error("Equal should ignore parent pointers")
	}
}

func TestEqualTokens(t *testing.T) {
	a := NewUnparserRule("r")
	a.AddChildren(lit("a"), lit("b"))

	b := NewUnparserRuleAlternative(0, 1)
	b.AddChildren(lit("a"), lit("b"))

	if !a.EqualTokens(b) {
		t.Error("EqualTokens should compare flattened token text regardless of shape")
	}
}

func TestStructKey(t *testing.T) {
	rule := NewUnparserRule("expr")
	alt := NewUnparserRuleAlternative(0, 1)
	rule.AddChild(alt)
	quant := NewUnparserRuleQuantifier(2, 0, Unbounded)
	alt.AddChild(quant)

	if got := alt.StructKey(); got != (Key{Rule: "expr", Sub: "a", Idx: 0}) {
		t.Errorf("alt key = %+v", got)
	}
	if got := quant.StructKey(); got != (Key{Rule: "expr", Sub: "q", Idx: 2}) {
		t.Errorf("quant key = %+v", got)
	}
}

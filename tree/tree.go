package tree

// Tree is a single-rooted derivation. It exists mainly so callers have a
// stable handle distinct from "some node" -- Root is always the node with a
// nil Parent.
type Tree struct {
	Root *Node
}

func New(root *Node) *Tree {
	return &Tree{Root: root}
}

func (t *Tree) Value() string {
	if t.Root == nil {
		return ""
	}
	return t.Root.Value()
}

func (t *Tree) Tokens() []*Node {
	if t.Root == nil {
		return nil
	}
	return t.Root.Tokens()
}

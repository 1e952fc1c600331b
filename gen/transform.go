package gen

import "github.com/nihei9/genfuzz/tree"

// Transformer is a tree-to-tree post-processor run, in order, after an
// operator (generate/mutate/recombine) produces a candidate tree and before
// it is serialized (§4.10).
type Transformer func(root *tree.Node) *tree.Node

// InsertSeparator returns a Transformer that inserts a literal separator
// token between every pair of adjacent quantified repetitions, the "insert
// separators" example named by §4.10's transformer option.
func InsertSeparator(sep string) Transformer {
	return func(root *tree.Node) *tree.Node {
		for _, q := range collectQuantifiers(root) {
			kids := q.Children()
			if len(kids) < 2 {
				continue
			}
			for i := len(kids) - 1; i > 0; i-- {
				leaf := tree.NewUnlexerRule("")
				leaf.SetSrc(sep)
				q.InsertChild(i, leaf)
			}
		}
		return root
	}
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

// TransformerRegistry maps a config-file name to a constructor, so
// Config.Transformers can be named in a TOML file (FileConfig.Transformers)
// rather than only built up in Go code.
var TransformerRegistry = map[string]func(arg string) Transformer{
	"insert_separator": InsertSeparator,
}

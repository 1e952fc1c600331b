// Package codec implements the two interchangeable TreeCodecs of §4.8: a
// human-debuggable JSON codec and a dense FlatBuffers codec, both encoding
// the same five tree.Node variants described in §3.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/nihei9/genfuzz/tree"
)

// JSONCodec is the human-debuggable codec: one JSON object per node, keyed
// by a single-letter type tag plus type-specific fields, matching §4.8.
type JSONCodec struct{}

// jsonNode is the on-the-wire shape of one tree.Node. Every field is
// optional and only the ones relevant to T are populated; this mirrors the
// original tool's compact per-kind dict shape rather than a tagged union of
// Go structs, so the wire format stays a flat, greppable object.
type jsonNode struct {
	T string `json:"t"`

	// UnlexerRule
	N string `json:"n,omitempty"`
	S string `json:"s,omitempty"`
	Z []int  `json:"z,omitempty"` // [depth, tokens]
	I bool   `json:"i,omitempty"`

	// UnparserRule / UnparserRuleQuantified / UnparserRuleAlternative /
	// UnparserRuleQuantifier all carry children.
	C []jsonNode `json:"c,omitempty"`

	// UnparserRuleAlternative
	Ai  int `json:"ai,omitempty"`
	Idx int `json:"idx,omitempty"`

	// UnparserRuleQuantifier
	B int `json:"b,omitempty"` // start
	E int `json:"e,omitempty"` // stop, -1 for unbounded
}

func (JSONCodec) Encode(root *tree.Node) ([]byte, error) {
	return json.Marshal(toJSONNode(root))
}

func (JSONCodec) Decode(data []byte) (*tree.Node, error) {
	var jn jsonNode
	if err := json.Unmarshal(data, &jn); err != nil {
		return nil, fmt.Errorf("codec: decoding json tree: %w", err)
	}
	return fromJSONNode(&jn)
}

func toJSONNode(n *tree.Node) jsonNode {
	switch n.Kind {
	case tree.KindUnlexerRule:
		jn := jsonNode{T: "l", N: n.Name, I: n.Immutable}
		if n.HasSrc {
			jn.S = n.Src
		} else {
			// Internal token structure (sub-rules of a composite lexer
			// rule); the reference JSON shape only models leaf tokens, but
			// dropping these children would make decode lossy, so they are
			// carried under the same 'c' key the rule-bearing kinds use.
			jn.C = toJSONChildren(n)
		}
		jn.Z = []int{n.TokenSize.Depth, n.TokenSize.Tokens}
		return jn
	case tree.KindUnparserRule:
		return jsonNode{T: "p", N: n.RuleName, C: toJSONChildren(n)}
	case tree.KindUnparserRuleAlternative:
		return jsonNode{T: "a", Ai: n.AltIdx, Idx: n.Idx, C: toJSONChildren(n)}
	case tree.KindUnparserRuleQuantified:
		return jsonNode{T: "qd", C: toJSONChildren(n)}
	case tree.KindUnparserRuleQuantifier:
		stop := n.Stop
		if stop == tree.Unbounded {
			stop = -1
		}
		return jsonNode{T: "q", Idx: n.QuantIdx, B: n.Start, E: stop, C: toJSONChildren(n)}
	default:
		panic(fmt.Sprintf("codec: unknown node kind %v", n.Kind))
	}
}

func toJSONChildren(n *tree.Node) []jsonNode {
	kids := n.Children()
	if len(kids) == 0 {
		return nil
	}
	out := make([]jsonNode, len(kids))
	for i, c := range kids {
		out[i] = toJSONNode(c)
	}
	return out
}

func fromJSONNode(jn *jsonNode) (*tree.Node, error) {
	switch jn.T {
	case "l":
		n := tree.NewUnlexerRule(jn.N)
		n.Immutable = jn.I
		if len(jn.Z) == 2 {
			n.TokenSize.Depth, n.TokenSize.Tokens = jn.Z[0], jn.Z[1]
		}
		if len(jn.C) == 0 {
			n.SetSrc(jn.S)
			return n, nil
		}
		for _, c := range jn.C {
			child, err := fromJSONNode(&c)
			if err != nil {
				return nil, err
			}
			n.AddChild(child)
		}
		return n, nil
	case "p":
		n := tree.NewUnparserRule(jn.N)
		return addJSONChildren(n, jn.C)
	case "a":
		n := tree.NewUnparserRuleAlternative(jn.Ai, jn.Idx)
		return addJSONChildren(n, jn.C)
	case "qd":
		n := tree.NewUnparserRuleQuantified()
		return addJSONChildren(n, jn.C)
	case "q":
		stop := jn.E
		if stop == -1 {
			stop = tree.Unbounded
		}
		n := tree.NewUnparserRuleQuantifier(jn.Idx, jn.B, stop)
		return addJSONChildren(n, jn.C)
	default:
		return nil, fmt.Errorf("codec: unrecognized node type tag %q", jn.T)
	}
}

func addJSONChildren(n *tree.Node, kids []jsonNode) (*tree.Node, error) {
	for _, c := range kids {
		child, err := fromJSONNode(&c)
		if err != nil {
			return nil, err
		}
		n.AddChild(child)
	}
	return n, nil
}

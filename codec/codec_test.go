package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nihei9/genfuzz/tree"
)

func buildSampleTree() *tree.Node {
	root := tree.NewUnparserRule("expr")

	alt := tree.NewUnparserRuleAlternative(0, 1)
	root.AddChild(alt)

	lhs := tree.NewUnlexerRule("NUM")
	lhs.SetSrc("7")
	lhs.Immutable = true
	alt.AddChild(lhs)

	quant := tree.NewUnparserRuleQuantifier(2, 0, tree.Unbounded)
	alt.AddChild(quant)

	qd := tree.NewUnparserRuleQuantified()
	quant.AddChild(qd)

	op := tree.NewUnlexerRule("PLUS")
	op.SetSrc("+")
	qd.AddChild(op)

	rhs := tree.NewUnlexerRule("NUM")
	rhs.SetSrc("3")
	qd.AddChild(rhs)

	return root
}

func TestJSONCodecRoundTrip(t *testing.T) {
	root := buildSampleTree()
	c := JSONCodec{}

	data, err := c.Encode(root)
	require.NoError(t, err)

	decoded, err := c.Decode(data)
	require.NoError(t, err)

	require.Equal(t, root.Value(), decoded.Value())
	require.True(t, tree.Equal(root, decoded))
}

func TestJSONCodecRejectsGarbage(t *testing.T) {
	_, err := JSONCodec{}.Decode([]byte("not json"))
	require.Error(t, err)
}

func TestFlatBuffersCodecRoundTrip(t *testing.T) {
	root := buildSampleTree()
	c := FlatBuffersCodec{}

	data, err := c.Encode(root)
	require.NoError(t, err)

	decoded, err := c.Decode(data)
	require.NoError(t, err)

	require.Equal(t, root.Value(), decoded.Value())
	require.True(t, tree.Equal(root, decoded))
}

func TestFlatBuffersCodecRejectsGarbage(t *testing.T) {
	_, err := FlatBuffersCodec{}.Decode([]byte{0, 1, 2})
	require.Error(t, err)
}

func TestFlatBuffersCodecRejectsEmpty(t *testing.T) {
	_, err := FlatBuffersCodec{}.Decode(nil)
	require.Error(t, err)
}

func TestAnnotatedCodecRederivesAnnotations(t *testing.T) {
	root := buildSampleTree()
	ac := AnnotatedCodec{Inner: JSONCodec{}}

	data, err := ac.EncodeAnnotated(root, nil)
	require.NoError(t, err)

	decoded, ann, err := ac.DecodeAnnotated(data)
	require.NoError(t, err)
	require.NotNil(t, ann)
	require.Equal(t, root.Value(), decoded.Value())
	require.Contains(t, ann.RulesByName, "NUM")
}

package codec

import (
	"github.com/nihei9/genfuzz/annotate"
	"github.com/nihei9/genfuzz/tree"
)

// TreeCodec is the minimal non-annotated contract both JSONCodec and
// FlatBuffersCodec satisfy.
type TreeCodec interface {
	Encode(root *tree.Node) ([]byte, error)
	Decode(data []byte) (*tree.Node, error)
}

// AnnotatedCodec wraps a TreeCodec to satisfy the AnnotatedTreeCodec variant
// of §4.8. Per that section's note, annotations are not given independent
// wire representation: EncodeAnnotated discards them (the tree alone is
// sufficient to rederive them) and DecodeAnnotated recomputes them fresh via
// annotate.Compute after decoding the tree.
type AnnotatedCodec struct {
	Inner TreeCodec
}

func (c AnnotatedCodec) Encode(root *tree.Node) ([]byte, error) {
	return c.Inner.Encode(root)
}

func (c AnnotatedCodec) Decode(data []byte) (*tree.Node, error) {
	return c.Inner.Decode(data)
}

func (c AnnotatedCodec) EncodeAnnotated(root *tree.Node, _ *annotate.Annotations) ([]byte, error) {
	return c.Inner.Encode(root)
}

func (c AnnotatedCodec) DecodeAnnotated(data []byte) (*tree.Node, *annotate.Annotations, error) {
	root, err := c.Inner.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return root, annotate.Compute(root), nil
}

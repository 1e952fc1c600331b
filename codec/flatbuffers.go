package codec

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/nihei9/genfuzz/tree"
)

// FlatBuffersCodec is the dense binary codec of §4.8: every node becomes one
// FBRule table, nested tables encoded as an indirect-offset vector.
type FlatBuffersCodec struct{}

func (FlatBuffersCodec) Encode(root *tree.Node) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("codec: encoding flatbuffers tree: %v", r)
		}
	}()
	b := flatbuffers.NewBuilder(1024)
	rootOff := buildFBRule(b, root)
	b.Finish(rootOff)
	return b.FinishedBytes(), nil
}

func (FlatBuffersCodec) Decode(data []byte) (n *tree.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = nil, fmt.Errorf("codec: decoding flatbuffers tree: %v", r)
		}
	}()
	if len(data) == 0 {
		return nil, fmt.Errorf("codec: empty flatbuffers payload")
	}
	return readFBRule(getRootAsFBRule(data))
}

func buildFBRule(b *flatbuffers.Builder, n *tree.Node) flatbuffers.UOffsetT {
	if n.Kind == tree.KindUnlexerRule && n.HasSrc {
		name := b.CreateString(n.Name)
		src := b.CreateString(n.Src)
		fb := fbRuleBuilder{b}
		fb.start()
		fb.addType(FBRuleTypeUnlexerRule)
		fb.addName(name)
		fb.addSrc(src)
		fb.addSize(int32(n.TokenSize.Depth), int32(n.TokenSize.Tokens))
		fb.addImmutable(n.Immutable)
		return fb.end()
	}

	kids := n.Children()
	childOffsets := make([]flatbuffers.UOffsetT, len(kids))
	for i, c := range kids {
		childOffsets[i] = buildFBRule(b, c)
	}

	var nameOffset flatbuffers.UOffsetT
	if n.Kind == tree.KindUnlexerRule {
		nameOffset = b.CreateString(n.Name)
	} else if n.Kind == tree.KindUnparserRule {
		nameOffset = b.CreateString(n.RuleName)
	}

	fb := fbRuleBuilder{b}
	fb.startChildrenVector(len(childOffsets))
	for i := len(childOffsets) - 1; i >= 0; i-- {
		b.PrependUOffsetT(childOffsets[i])
	}
	childrenOffset := b.EndVector(len(childOffsets))

	fb.start()
	fb.addChildren(childrenOffset)
	switch n.Kind {
	case tree.KindUnlexerRule:
		fb.addType(FBRuleTypeUnlexerRule)
		fb.addName(nameOffset)
		fb.addSize(int32(n.TokenSize.Depth), int32(n.TokenSize.Tokens))
		fb.addImmutable(n.Immutable)
	case tree.KindUnparserRule:
		fb.addType(FBRuleTypeUnparserRule)
		fb.addName(nameOffset)
	case tree.KindUnparserRuleQuantifier:
		fb.addType(FBRuleTypeUnparserRuleQuantifier)
		fb.addIdx(int32(n.QuantIdx))
		fb.addStart(int32(n.Start))
		stop := n.Stop
		if stop == tree.Unbounded {
			stop = -1
		}
		fb.addStop(int32(stop))
	case tree.KindUnparserRuleQuantified:
		fb.addType(FBRuleTypeUnparserRuleQuantified)
	case tree.KindUnparserRuleAlternative:
		fb.addType(FBRuleTypeUnparserRuleAlternative)
		fb.addAltIdx(int32(n.AltIdx))
		fb.addIdx(int32(n.Idx))
	}
	return fb.end()
}

func readFBRule(r *FBRule) (*tree.Node, error) {
	switch r.Type() {
	case FBRuleTypeUnlexerRule:
		n := tree.NewUnlexerRule(r.Name())
		n.Immutable = r.Immutable()
		n.TokenSize.Depth = int(r.SizeDepth())
		n.TokenSize.Tokens = int(r.SizeTokens())
		if r.ChildrenLength() == 0 {
			n.SetSrc(r.Src())
			return n, nil
		}
		return readFBChildren(n, r)
	case FBRuleTypeUnparserRule:
		return readFBChildren(tree.NewUnparserRule(r.Name()), r)
	case FBRuleTypeUnparserRuleQuantifier:
		stop := int(r.Stop())
		if stop == -1 {
			stop = tree.Unbounded
		}
		return readFBChildren(tree.NewUnparserRuleQuantifier(int(r.Idx()), int(r.Start()), stop), r)
	case FBRuleTypeUnparserRuleQuantified:
		return readFBChildren(tree.NewUnparserRuleQuantified(), r)
	case FBRuleTypeUnparserRuleAlternative:
		return readFBChildren(tree.NewUnparserRuleAlternative(int(r.AltIdx()), int(r.Idx())), r)
	default:
		return nil, fmt.Errorf("codec: unrecognized flatbuffers rule type %d", r.Type())
	}
}

func readFBChildren(n *tree.Node, r *FBRule) (*tree.Node, error) {
	for i := 0; i < r.ChildrenLength(); i++ {
		child, err := readFBRule(r.Children(i))
		if err != nil {
			return nil, err
		}
		n.AddChild(child)
	}
	return n, nil
}

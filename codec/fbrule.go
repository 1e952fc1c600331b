package codec

import (
	flatbuffers "github.com/google/flatbuffers/go"
)

// FBRuleType tags which of the five node kinds a FBRule table holds. Values
// match the original tool's flatbuffers schema exactly so the wire layout
// stays recognizable to anything built against that schema.
type FBRuleType int8

const (
	FBRuleTypeUnlexerRule FBRuleType = iota
	FBRuleTypeUnparserRule
	FBRuleTypeUnparserRuleQuantifier
	FBRuleTypeUnparserRuleQuantified
	FBRuleTypeUnparserRuleAlternative
)

// FBRule is a hand-written reader for the single recursive flatbuffers table
// that encodes every node kind (§4.8): a tag field picks which of the
// type-specific optional fields are meaningful. There is no .fbs schema
// compiler run in this tree; the table is built and read directly against
// flatbuffers.Builder/Table, field offset by field offset.
//
// Field -> vtable slot (each slot is 2 bytes in the vtable, offset 4+2*slot
// from the table's vtable base):
//
//	0 type (int8)        5 idx (int32)
//	1 name (string)      6 start (int32)
//	2 children (vector)  7 stop (int32)
//	3 src (string)       8 altIdx (int32)
//	4 size (struct)      9 immutable (bool)
type FBRule struct {
	tab flatbuffers.Table
}

func getRootAsFBRule(buf []byte) *FBRule {
	n := flatbuffers.GetUOffsetT(buf)
	r := &FBRule{}
	r.tab.Bytes = buf
	r.tab.Pos = n
	return r
}

func (r *FBRule) Type() FBRuleType {
	o := r.tab.Offset(4)
	if o != 0 {
		return FBRuleType(r.tab.GetInt8(o + r.tab.Pos))
	}
	return FBRuleTypeUnlexerRule
}

func (r *FBRule) Name() string {
	o := r.tab.Offset(6)
	if o != 0 {
		return r.tab.String(o + r.tab.Pos)
	}
	return ""
}

func (r *FBRule) ChildrenLength() int {
	o := r.tab.Offset(8)
	if o == 0 {
		return 0
	}
	return r.tab.VectorLen(o)
}

func (r *FBRule) Children(i int) *FBRule {
	o := r.tab.Offset(8)
	if o == 0 {
		return nil
	}
	x := r.tab.Vector(o)
	x += flatbuffers.UOffsetT(i) * 4
	x = r.tab.Indirect(x)
	child := &FBRule{}
	child.tab.Bytes = r.tab.Bytes
	child.tab.Pos = x
	return child
}

func (r *FBRule) Src() string {
	o := r.tab.Offset(10)
	if o != 0 {
		return r.tab.String(o + r.tab.Pos)
	}
	return ""
}

func (r *FBRule) SizeDepth() int32 {
	o := r.tab.Offset(12)
	if o != 0 {
		return r.tab.GetInt32(o + r.tab.Pos)
	}
	return 0
}

func (r *FBRule) SizeTokens() int32 {
	o := r.tab.Offset(12)
	if o != 0 {
		return r.tab.GetInt32(o + r.tab.Pos + 4)
	}
	return 0
}

func (r *FBRule) Idx() int32 {
	o := r.tab.Offset(14)
	if o != 0 {
		return r.tab.GetInt32(o + r.tab.Pos)
	}
	return 0
}

func (r *FBRule) Start() int32 {
	o := r.tab.Offset(16)
	if o != 0 {
		return r.tab.GetInt32(o + r.tab.Pos)
	}
	return 0
}

func (r *FBRule) Stop() int32 {
	o := r.tab.Offset(18)
	if o != 0 {
		return r.tab.GetInt32(o + r.tab.Pos)
	}
	return 0
}

func (r *FBRule) AltIdx() int32 {
	o := r.tab.Offset(20)
	if o != 0 {
		return r.tab.GetInt32(o + r.tab.Pos)
	}
	return 0
}

func (r *FBRule) Immutable() bool {
	o := r.tab.Offset(22)
	if o != 0 {
		return r.tab.GetBool(o + r.tab.Pos)
	}
	return false
}

// fbRuleBuilder wraps the slot writes for one FBRule table so callers don't
// hand-track slot numbers.
type fbRuleBuilder struct {
	b *flatbuffers.Builder
}

func (fb fbRuleBuilder) start() {
	fb.b.StartObject(10)
}

func (fb fbRuleBuilder) addType(t FBRuleType) {
	fb.b.PrependInt8Slot(0, int8(t), int8(FBRuleTypeUnlexerRule))
}

func (fb fbRuleBuilder) addName(name flatbuffers.UOffsetT) {
	fb.b.PrependUOffsetTSlot(1, name, 0)
}

func (fb fbRuleBuilder) addChildren(children flatbuffers.UOffsetT) {
	fb.b.PrependUOffsetTSlot(2, children, 0)
}

func (fb fbRuleBuilder) startChildrenVector(n int) {
	fb.b.StartVector(4, n, 4)
}

func (fb fbRuleBuilder) addSrc(src flatbuffers.UOffsetT) {
	fb.b.PrependUOffsetTSlot(3, src, 0)
}

// addSize writes the inline (depth, tokens) struct and records it in slot 4.
// Structs have no independent storage: the two int32s are prepended right
// here, immediately before the slot is recorded, matching how flatbuffers
// structs are always written inline within their containing table.
func (fb fbRuleBuilder) addSize(depth, tokens int32) {
	fb.b.Prep(4, 8)
	fb.b.PrependInt32(tokens)
	fb.b.PrependInt32(depth)
	fb.b.PrependStructSlot(4, fb.b.Offset(), 0)
}

func (fb fbRuleBuilder) addIdx(idx int32) {
	fb.b.PrependInt32Slot(5, idx, 0)
}

func (fb fbRuleBuilder) addStart(start int32) {
	fb.b.PrependInt32Slot(6, start, 0)
}

func (fb fbRuleBuilder) addStop(stop int32) {
	fb.b.PrependInt32Slot(7, stop, 0)
}

func (fb fbRuleBuilder) addAltIdx(altIdx int32) {
	fb.b.PrependInt32Slot(8, altIdx, 0)
}

func (fb fbRuleBuilder) addImmutable(immutable bool) {
	fb.b.PrependBoolSlot(9, immutable, false)
}

func (fb fbRuleBuilder) end() flatbuffers.UOffsetT {
	return fb.b.EndObject()
}

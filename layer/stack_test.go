//
// stack_test.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package layer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/markkurossi/pkt/wire"
)

// A 2-field header: one-byte type, one-byte payload length.
func tlvSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := Compile("TLV", []*FieldSpec{
		Enum("type", 0, 1, map[uint64]string{1: "data", 2: "ack"}),
		LenOf("len", 1, "", nil),
	}, WithDiscriminator("type"))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return s
}

func TestBuildLengthFromPayload(t *testing.T) {
	tlv := tlvSchema(t)
	reg := NewRegistry()

	payload := New(Raw).Set("load", []byte{0xaa, 0xbb, 0xcc})
	data, err := NewStack(New(tlv).Set("type", 1), payload).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !bytes.Equal(data, []byte{0x01, 0x03, 0xaa, 0xbb, 0xcc}) {
		t.Fatalf("unexpected bytes: %x", data)
	}

	stack, err := reg.Dissect(tlv, data)
	if err != nil {
		t.Fatalf("Dissect failed: %v", err)
	}
	if len(stack.Layers) != 2 {
		t.Fatalf("unexpected layer count: %d", len(stack.Layers))
	}
	hdr := stack.Layers[0]
	if hdr.Uint("type") != 1 || hdr.Uint("len") != 3 {
		t.Errorf("header round trip failed: %s", hdr)
	}
	if !bytes.Equal(stack.Layers[1].Bytes("load"), []byte{0xaa, 0xbb, 0xcc}) {
		t.Errorf("payload round trip failed: %s", stack.Layers[1])
	}
}

func TestConditionalField(t *testing.T) {
	s := MustCompile("cond", []*FieldSpec{
		Uint8("type", 0),
		Uint16("extra", 0xbeef).When(func(view Values) bool {
			return view.Uint("type") == 1
		}),
		Uint8("tail", 0x7f),
	})

	// type=2: the conditional field contributes no bytes.
	data, err := NewStack(New(s).Set("type", 2)).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !bytes.Equal(data, []byte{0x02, 0x7f}) {
		t.Fatalf("conditional field not omitted: %x", data)
	}

	inst, n, err := s.Dissect(data)
	if err != nil {
		t.Fatalf("Dissect failed: %v", err)
	}
	if n != 2 {
		t.Errorf("unexpected consumed count: %d", n)
	}
	if inst.Present("extra") {
		t.Errorf("absent field dissected as present")
	}
	if _, ok := inst.Value("extra"); ok {
		t.Errorf("absent field has a value")
	}

	// type=1: the conditional field is on the wire.
	data, err = NewStack(New(s).Set("type", 1)).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !bytes.Equal(data, []byte{0x01, 0xbe, 0xef, 0x7f}) {
		t.Fatalf("conditional field not emitted: %x", data)
	}
	inst, _, err = s.Dissect(data)
	if err != nil {
		t.Fatalf("Dissect failed: %v", err)
	}
	if inst.Uint("extra") != 0xbeef {
		t.Errorf("conditional field round trip failed: %s", inst)
	}
}

func TestDispatch(t *testing.T) {
	a := MustCompile("A", []*FieldSpec{
		Uint8("proto", 0),
	}, WithDiscriminator("proto"))
	b := MustCompile("B", []*FieldSpec{
		Uint8("id", 0),
		RemainingBytes("data"),
	})

	reg := NewRegistry()
	reg.Bind(a, 5, b)
	reg.Finalize()

	stack, err := reg.Dissect(a, []byte{0x05, 0x42, 0x01})
	if err != nil {
		t.Fatalf("Dissect failed: %v", err)
	}
	if len(stack.Layers) != 2 {
		t.Fatalf("unexpected layer count: %d", len(stack.Layers))
	}
	if stack.Layers[1].Schema() != b {
		t.Errorf("dispatch selected %s", stack.Layers[1].Schema())
	}
	if stack.Layers[1].Uint("id") != 0x42 {
		t.Errorf("second layer decode failed: %s", stack.Layers[1])
	}

	// Unregistered discriminator: raw fallback, never an error.
	stack, err = reg.Dissect(a, []byte{0x63, 0xde, 0xad})
	if err != nil {
		t.Fatalf("Dissect failed: %v", err)
	}
	if len(stack.Layers) != 2 {
		t.Fatalf("unexpected layer count: %d", len(stack.Layers))
	}
	if stack.Layers[1].Schema() != Raw {
		t.Errorf("fallback not selected: %s", stack.Layers[1].Schema())
	}
	if !bytes.Equal(stack.Layers[1].Bytes("load"), []byte{0xde, 0xad}) {
		t.Errorf("fallback load failed: %s", stack.Layers[1])
	}
}

func TestBitPackedRoundTrip(t *testing.T) {
	s := MustCompile("bits", []*FieldSpec{
		Bits("a", 0, 2),
		Bits("b", 0, 2),
		Bits("c", 0, 2),
		Bits("d", 0, 2),
	})
	inst := New(s).Set("a", 3).Set("b", 0).Set("c", 1).Set("d", 2)
	data, err := NewStack(inst).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(data) != 1 {
		t.Fatalf("unexpected length: %d", len(data))
	}

	got, _, err := s.Dissect(data)
	if err != nil {
		t.Fatalf("Dissect failed: %v", err)
	}
	for name, expected := range map[string]uint64{
		"a": 3, "b": 0, "c": 1, "d": 2,
	} {
		if got.Uint(name) != expected {
			t.Errorf("field %s: %d != %d", name, got.Uint(name), expected)
		}
	}
}

func TestBitOrderLSBFirst(t *testing.T) {
	s := MustCompile("bits", []*FieldSpec{
		Bits("low", 0, 4),
		Bits("high", 0, 4),
	}, WithBitOrder(wire.LSBFirst))
	data, err := NewStack(New(s).Set("low", 0x2).Set("high", 0xa)).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if data[0] != 0xa2 {
		t.Errorf("LSB-first packing failed: %x", data)
	}
}

func TestTruncated(t *testing.T) {
	s := MustCompile("test", []*FieldSpec{
		Uint32("a", 0),
		Uint16("b", 0),
	})
	reg := NewRegistry()

	for n := 0; n < 6; n++ {
		_, err := reg.Dissect(s, make([]byte, n))
		if !errors.Is(err, wire.ErrorTruncated) {
			t.Errorf("%d bytes: truncation not detected: %v", n, err)
		}
	}
	if _, err := reg.Dissect(s, make([]byte, 6)); err != nil {
		t.Errorf("full header rejected: %v", err)
	}
}

func TestTruncatedInnerLayer(t *testing.T) {
	tlv := tlvSchema(t)
	inner := MustCompile("inner", []*FieldSpec{
		Uint32("v", 0),
	})
	reg := NewRegistry()
	reg.Bind(tlv, 1, inner)

	// Header says type 1, but only two payload bytes follow; the
	// prefix survives and the rest lands in Trailing.
	stack, err := reg.Dissect(tlv, []byte{0x01, 0x02, 0xaa, 0xbb})
	if err != nil {
		t.Fatalf("Dissect failed: %v", err)
	}
	if len(stack.Layers) != 1 {
		t.Fatalf("unexpected layer count: %d", len(stack.Layers))
	}
	if !errors.Is(stack.Incomplete, wire.ErrorTruncated) {
		t.Errorf("cause not recorded: %v", stack.Incomplete)
	}
	if !bytes.Equal(stack.Trailing, []byte{0xaa, 0xbb}) {
		t.Errorf("trailing bytes lost: %x", stack.Trailing)
	}
}

func TestDepthBudget(t *testing.T) {
	// A self-loop: every decoded value binds back to the schema.
	s := MustCompile("loop", []*FieldSpec{
		Uint8("next", 0),
	}, WithDiscriminator("next"))

	reg := NewRegistry()
	reg.Bind(s, 0, s)
	reg.SetMaxDepth(8)
	reg.Finalize()

	stack, err := reg.Dissect(s, make([]byte, 64))
	if err != nil {
		t.Fatalf("Dissect failed: %v", err)
	}
	if len(stack.Layers) != 8 {
		t.Errorf("budget not honored: %d layers", len(stack.Layers))
	}
	if !errors.Is(stack.Incomplete, ErrorDepth) {
		t.Errorf("depth cause not recorded: %v", stack.Incomplete)
	}
	if len(stack.Trailing) != 64-8 {
		t.Errorf("trailing bytes lost: %d", len(stack.Trailing))
	}
}

func TestOverflow(t *testing.T) {
	s := MustCompile("test", []*FieldSpec{
		Uint8("v", 0),
	})
	_, err := NewStack(New(s).Set("v", 0x1ff)).Build()
	if !errors.Is(err, wire.ErrorOverflow) {
		t.Errorf("overflow not surfaced: %v", err)
	}
}

func TestChecksumAfterLength(t *testing.T) {
	// The checksum is declared before the length but must cover
	// its patched bytes.
	s := MustCompile("test", []*FieldSpec{
		Checksum("sum", 1, func(ctx *FinalizeContext) uint64 {
			var sum uint64
			for _, b := range ctx.Header[1:] {
				sum += uint64(b)
			}
			for _, b := range ctx.Payload {
				sum += uint64(b)
			}
			return sum & 0xff
		}),
		LenOf("len", 1, "", nil),
	})
	payload := New(Raw).Set("load", []byte{0x10, 0x20})
	data, err := NewStack(New(s), payload).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// len=2, checksum = 2 + 0x10 + 0x20.
	if !bytes.Equal(data, []byte{0x32, 0x02, 0x10, 0x20}) {
		t.Errorf("finalization order failed: %x", data)
	}
}

func TestExplicitValueWinsOverDeferred(t *testing.T) {
	tlv := tlvSchema(t)
	payload := New(Raw).Set("load", []byte{0xaa})
	data, err := NewStack(New(tlv).Set("len", 9), payload).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if data[1] != 9 {
		t.Errorf("explicit value overridden: %x", data)
	}
}

func TestCountedList(t *testing.T) {
	item := MustCompile("item", []*FieldSpec{
		Uint8("len", 0),
		VarBytes("value", "len", nil),
	})
	s := MustCompile("list", []*FieldSpec{
		CountOf("count", 1, "items"),
		Layers("items", item, "count"),
	})

	inst := New(s).Set("items", []*Instance{
		New(item).Set("len", 2).Set("value", []byte{0x01, 0x02}),
		New(item).Set("len", 1).Set("value", []byte{0x03}),
	})
	data, err := NewStack(inst).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !bytes.Equal(data, []byte{0x02, 0x02, 0x01, 0x02, 0x01, 0x03}) {
		t.Fatalf("list encoding failed: %x", data)
	}

	got, n, err := s.Dissect(data)
	if err != nil {
		t.Fatalf("Dissect failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("unexpected consumed count: %d", n)
	}
	items := got.Sub("items")
	if len(items) != 2 {
		t.Fatalf("unexpected element count: %d", len(items))
	}
	if !bytes.Equal(items[0].Bytes("value"), []byte{0x01, 0x02}) ||
		!bytes.Equal(items[1].Bytes("value"), []byte{0x03}) {
		t.Errorf("list round trip failed: %s", got)
	}
	if !got.Equal(inst) {
		t.Errorf("Equal failed: %s != %s", got, inst)
	}
}

func TestListElementDeferredLength(t *testing.T) {
	// Element lengths are deferred and finalized per element.
	item := MustCompile("item", []*FieldSpec{
		LenOf("len", 1, "value", nil),
		VarBytes("value", "len", nil),
	})
	s := MustCompile("list", []*FieldSpec{
		CountOf("count", 1, "items"),
		Layers("items", item, "count"),
	})
	inst := New(s).Set("items", []*Instance{
		New(item).Set("value", []byte{0xca, 0xfe}),
	})
	data, err := NewStack(inst).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !bytes.Equal(data, []byte{0x01, 0x02, 0xca, 0xfe}) {
		t.Errorf("element length not finalized: %x", data)
	}
}

func TestAnswers(t *testing.T) {
	s := MustCompile("req", []*FieldSpec{
		Uint16("id", 0),
		Bits("response", 0, 1),
		Bits("pad", 0, 7),
	}, WithAnswers(func(self, other *Instance) bool {
		return self.Uint("id") == other.Uint("id") &&
			self.Uint("response") == 1 && other.Uint("response") == 0
	}))

	query := NewStack(New(s).Set("id", 7))
	response := NewStack(New(s).Set("id", 7).Set("response", 1))
	wrong := NewStack(New(s).Set("id", 8).Set("response", 1))

	if !response.Answers(query) {
		t.Errorf("matching response rejected")
	}
	if wrong.Answers(query) {
		t.Errorf("wrong transaction ID accepted")
	}
	if query.Answers(query) {
		t.Errorf("query answers itself")
	}
}

func TestAnswersSchemaMismatch(t *testing.T) {
	a := MustCompile("a", []*FieldSpec{Uint8("v", 0)})
	b := MustCompile("b", []*FieldSpec{Uint8("v", 0)})
	if NewStack(New(a)).Answers(NewStack(New(b))) {
		t.Errorf("different schemas answer each other")
	}
}

func TestDissectLeftover(t *testing.T) {
	// A terminal schema with no discriminator: leftover bytes
	// dissolve into a Raw layer.
	s := MustCompile("hdr", []*FieldSpec{
		Uint16("v", 0),
	})
	reg := NewRegistry()
	stack, err := reg.Dissect(s, []byte{0x01, 0x02, 0x03, 0x04})
	if err != nil {
		t.Fatalf("Dissect failed: %v", err)
	}
	if len(stack.Layers) != 2 || stack.Layers[1].Schema() != Raw {
		t.Fatalf("leftover bytes not wrapped: %s", stack)
	}
	if !bytes.Equal(stack.Layers[1].Bytes("load"), []byte{0x03, 0x04}) {
		t.Errorf("leftover load failed: %s", stack.Layers[1])
	}
}

func TestHostileLength(t *testing.T) {
	s := MustCompile("test", []*FieldSpec{
		Uint64("len", 0),
		VarBytes("data", "len", nil),
	})

	// A stored length near MaxInt64 must not wrap the bounds check.
	_, _, err := s.Dissect([]byte{
		0x7f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	})
	if !errors.Is(err, wire.ErrorTruncated) {
		t.Errorf("giant length not rejected: %v", err)
	}

	// A stored length past MaxInt64 converts negative.
	_, _, err = s.Dissect([]byte{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	})
	if !errors.Is(err, ErrorMalformed) {
		t.Errorf("negative length not rejected: %v", err)
	}
}

func TestHostileSpan(t *testing.T) {
	item := MustCompile("item", []*FieldSpec{
		Uint8("v", 0),
	})
	s := MustCompile("test", []*FieldSpec{
		Uint64("span", 0),
		LayersSpan("items", item, "span", nil),
	})
	_, _, err := s.Dissect([]byte{
		0x7f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	})
	if !errors.Is(err, wire.ErrorTruncated) {
		t.Errorf("giant span not rejected: %v", err)
	}
}

func TestHostileCount(t *testing.T) {
	// Raw elements on an empty remainder consume zero bytes; a
	// hostile count must not multiply them into an allocation
	// storm.
	s := MustCompile("test", []*FieldSpec{
		Uint16("n", 0),
		Layers("items", Raw, "n"),
	})
	_, _, err := s.Dissect([]byte{0xff, 0xff})
	if !errors.Is(err, ErrorMalformed) {
		t.Errorf("hostile count not rejected: %v", err)
	}
}

func TestWrongValueType(t *testing.T) {
	s := MustCompile("test", []*FieldSpec{
		Uint8("v", 0),
	})
	_, err := NewStack(New(s).Set("v", "nope")).Build()
	if !errors.Is(err, ErrorValue) {
		t.Errorf("non-integer value built: %v", err)
	}
}

func TestSignedField(t *testing.T) {
	s := MustCompile("test", []*FieldSpec{
		IntN("delta", 0, 2),
	})
	data, err := NewStack(New(s).Set("delta", -2)).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	inst, _, err := s.Dissect(data)
	if err != nil {
		t.Fatalf("Dissect failed: %v", err)
	}
	if inst.Int("delta") != -2 {
		t.Errorf("signed round trip failed: %d", inst.Int("delta"))
	}
}

//
// field.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package layer

import (
	"github.com/markkurossi/pkt/wire"
)

// Kind enumerates the field kinds a schema can declare. The set is
// closed; each kind has an encode and a decode function in the codec
// dispatch table. CustomKind is the extension point for
// self-delimiting fields that need their own codec.
type Kind int

// Field kinds.
const (
	UintKind Kind = iota
	BitsKind
	BytesKind
	VarBytesKind
	LenKind
	EnumKind
	LayersKind
	CustomKind
)

var kindNames = map[Kind]string{
	UintKind:     "uint",
	BitsKind:     "bits",
	BytesKind:    "bytes",
	VarBytesKind: "varbytes",
	LenKind:      "len",
	EnumKind:     "enum",
	LayersKind:   "layers",
	CustomKind:   "custom",
}

func (k Kind) String() string {
	name, ok := kindNames[k]
	if ok {
		return name
	}
	return "{Kind}"
}

// LengthMode defines how a variable-length field resolves its byte
// count at dissection time.
type LengthMode int

// Length modes.
const (
	// Intrinsic fields have a fixed size.
	Intrinsic LengthMode = iota

	// DerivedFrom fields take their length from an already decoded
	// sibling field.
	DerivedFrom

	// Remaining fields consume the rest of the layer's buffer. Only
	// legal for the last field of a schema.
	Remaining

	// Explicit fields take whatever length their assigned value has
	// at build time; at dissection time they behave like Remaining.
	Explicit
)

// LengthPolicy resolves a variable-length field's byte count.
type LengthPolicy struct {
	Mode LengthMode
	From string

	// Derive maps the sibling field's decoded value to a byte
	// count. Nil means the value is the byte count.
	Derive func(stored uint64) int
}

// CountMode defines how a sub-layer list field knows when to stop
// decoding elements.
type CountMode int

// Count modes.
const (
	// CountFrom lists decode as many elements as an already decoded
	// sibling field says.
	CountFrom CountMode = iota

	// SpanFrom lists decode elements until a byte span, taken from
	// a sibling field, is exhausted.
	SpanFrom

	// UntilEnd lists decode elements until the buffer ends. Only
	// legal for the last field of a schema.
	UntilEnd
)

// CountPolicy resolves a sub-layer list field's element count.
type CountPolicy struct {
	Mode CountMode
	From string

	// Derive maps the sibling field's decoded value to a count or
	// byte span. Nil means the value is used as is.
	Derive func(stored uint64) int
}

// Values is read access to a layer's decoded or assigned field
// values. Condition predicates receive a Values view that exposes
// only fields declared before the conditional field, so a predicate
// can never consult undissected bytes.
type Values interface {
	// Value returns the field's value and whether the field is
	// present. Unassigned present fields report their default.
	Value(name string) (any, bool)

	// Uint returns the field's value as an unsigned integer, zero
	// if absent.
	Uint(name string) uint64

	// Int returns the field's value as a signed integer, zero if
	// absent.
	Int(name string) int64

	// Bytes returns the field's value as a byte string, nil if
	// absent.
	Bytes(name string) []byte
}

// FinalizeContext carries the data a deferred field's finalizer
// needs: the layer's serialized header (placeholders already patched
// by earlier finalizers), the finalized payload bytes, and the field
// values of the layer and its enclosing layer.
type FinalizeContext struct {
	Header  []byte
	Payload []byte
	Layer   *Instance
	Outer   *Instance

	spans map[string]span
}

// Field returns the header byte span a sibling field encoded to,
// nil if the field is absent or bit-packed.
func (ctx *FinalizeContext) Field(name string) []byte {
	s, ok := ctx.spans[name]
	if !ok {
		return nil
	}
	return ctx.Header[s.start:s.end]
}

// FinalizeFunc computes a deferred field's value once the layer and
// payload bytes are known.
type FinalizeFunc func(ctx *FinalizeContext) uint64

// Finalization precedence: lengths and counts are patched before
// generic deferred fields, which are patched before checksums, so a
// checksum always covers final length bytes. Ties resolve in
// declaration order.
const (
	prioLen      = 0
	prioDeferred = 1
	prioChecksum = 2
)

// Codec is the per-field codec of CustomKind fields. Decode
// receives the whole layer buffer and the field's offset so
// self-referential formats (DNS name compression pointers) can
// reach backwards.
type Codec interface {
	Encode(v any, data []byte) ([]byte, error)
	Decode(data []byte, ofs int) (any, int, error)
}

// FieldSpec describes one field of a layer schema.
type FieldSpec struct {
	Name    string
	Kind    Kind
	Default any

	// Size is the byte width of integer and fixed byte-string
	// fields.
	Size int

	// Bits is the bit width of bit-packed fields.
	Bits int

	Signed bool

	// Order overrides the schema's byte order when set.
	Order *wire.Order

	// Enum maps values to display names.
	Enum map[uint64]string

	Length LengthPolicy
	Count  CountPolicy

	// Elem is the element schema of sub-layer list fields.
	Elem *Schema

	// Cond reports whether the field is present. Nil means always
	// present. Absent fields contribute no bytes to build or
	// dissect.
	Cond func(view Values) bool

	// Finalize computes the value of a deferred field (length,
	// count, checksum) during the second build pass. It runs only
	// when the field was not explicitly assigned.
	Finalize FinalizeFunc

	// Custom is the codec of CustomKind fields.
	Custom Codec

	// Repr formats the value for display. Nil falls back to a
	// generic representation.
	Repr func(v any) string

	prio int
}

// When makes the field conditional on the given predicate.
func (f *FieldSpec) When(cond func(view Values) bool) *FieldSpec {
	f.Cond = cond
	return f
}

// WithDefault sets the value the field takes when unassigned.
func (f *FieldSpec) WithDefault(v any) *FieldSpec {
	f.Default = v
	return f
}

// Little sets the field to little-endian byte order.
func (f *FieldSpec) Little() *FieldSpec {
	o := wire.LittleEndian
	f.Order = &o
	return f
}

// WithRepr sets a display formatter for the field.
func (f *FieldSpec) WithRepr(repr func(v any) string) *FieldSpec {
	f.Repr = repr
	return f
}

// Uint8 declares a one-byte unsigned integer field.
func Uint8(name string, def uint64) *FieldSpec {
	return UintN(name, def, 1)
}

// Uint16 declares a two-byte unsigned integer field.
func Uint16(name string, def uint64) *FieldSpec {
	return UintN(name, def, 2)
}

// Uint32 declares a four-byte unsigned integer field.
func Uint32(name string, def uint64) *FieldSpec {
	return UintN(name, def, 4)
}

// Uint64 declares an eight-byte unsigned integer field.
func Uint64(name string, def uint64) *FieldSpec {
	return UintN(name, def, 8)
}

// UintN declares a size-byte unsigned integer field.
func UintN(name string, def uint64, size int) *FieldSpec {
	return &FieldSpec{
		Name:    name,
		Kind:    UintKind,
		Default: def,
		Size:    size,
	}
}

// IntN declares a size-byte signed integer field.
func IntN(name string, def int64, size int) *FieldSpec {
	return &FieldSpec{
		Name:    name,
		Kind:    UintKind,
		Default: def,
		Size:    size,
		Signed:  true,
	}
}

// Bits declares a bit-packed field. Consecutive bit fields share
// bytes; each run must end on a byte boundary.
func Bits(name string, def uint64, bits int) *FieldSpec {
	return &FieldSpec{
		Name:    name,
		Kind:    BitsKind,
		Default: def,
		Bits:    bits,
	}
}

// Bytes declares a fixed-length byte-string field.
func Bytes(name string, def []byte, size int) *FieldSpec {
	return &FieldSpec{
		Name:    name,
		Kind:    BytesKind,
		Default: def,
		Size:    size,
	}
}

// VarBytes declares a variable-length byte-string field whose
// length is derived from the sibling field from. The optional
// derive function maps the sibling's value to a byte count.
func VarBytes(name, from string, derive func(stored uint64) int) *FieldSpec {
	return &FieldSpec{
		Name: name,
		Kind: VarBytesKind,
		Length: LengthPolicy{
			Mode:   DerivedFrom,
			From:   from,
			Derive: derive,
		},
	}
}

// RemainingBytes declares a byte-string field consuming the rest of
// the layer's buffer.
func RemainingBytes(name string) *FieldSpec {
	return &FieldSpec{
		Name: name,
		Kind: VarBytesKind,
		Length: LengthPolicy{
			Mode: Remaining,
		},
	}
}

// LenOf declares a size-byte length field. It is deferred: unless
// explicitly assigned, its value is computed during the second
// build pass as the encoded length of the sibling field of, or of
// the payload when of is empty. The optional adjust function maps
// the measured byte count to the stored value.
func LenOf(name string, size int, of string, adjust func(measured int) int) *FieldSpec {
	return &FieldSpec{
		Name: name,
		Kind: LenKind,
		Size: size,
		Length: LengthPolicy{
			Mode: DerivedFrom,
			From: of,
		},
		prio: prioLen,
		Finalize: func(ctx *FinalizeContext) uint64 {
			var n int
			if len(of) == 0 {
				n = len(ctx.Payload)
			} else {
				n = len(ctx.Field(of))
			}
			if adjust != nil {
				n = adjust(n)
			}
			return uint64(n)
		},
	}
}

// CountOf declares a size-byte count field. It is deferred: unless
// explicitly assigned, its value is the element count of the
// sibling sub-layer list field list.
func CountOf(name string, size int, list string) *FieldSpec {
	return &FieldSpec{
		Name: name,
		Kind: LenKind,
		Size: size,
		Length: LengthPolicy{
			Mode: DerivedFrom,
			From: list,
		},
		prio: prioLen,
		Finalize: func(ctx *FinalizeContext) uint64 {
			v, ok := ctx.Layer.Value(list)
			if !ok {
				return 0
			}
			elems, ok := v.([]*Instance)
			if !ok {
				return 0
			}
			return uint64(len(elems))
		},
	}
}

// Deferred declares a size-byte integer field whose value is
// computed during the second build pass, after length and count
// fields have been patched but before checksums.
func Deferred(name string, size int, fn FinalizeFunc) *FieldSpec {
	return &FieldSpec{
		Name:     name,
		Kind:     LenKind,
		Size:     size,
		prio:     prioDeferred,
		Finalize: fn,
	}
}

// Checksum declares a size-byte checksum field. Checksums are
// patched last, so they cover the final bytes of every other
// deferred field.
func Checksum(name string, size int, fn FinalizeFunc) *FieldSpec {
	return &FieldSpec{
		Name:     name,
		Kind:     LenKind,
		Size:     size,
		prio:     prioChecksum,
		Finalize: fn,
	}
}

// Enum declares a size-byte enumerated integer field.
func Enum(name string, def uint64, size int, names map[uint64]string) *FieldSpec {
	return &FieldSpec{
		Name:    name,
		Kind:    EnumKind,
		Default: def,
		Size:    size,
		Enum:    names,
	}
}

// Layers declares a counted sub-layer list field whose element
// count is taken from the sibling field from.
func Layers(name string, elem *Schema, from string) *FieldSpec {
	return &FieldSpec{
		Name: name,
		Kind: LayersKind,
		Elem: elem,
		Count: CountPolicy{
			Mode: CountFrom,
			From: from,
		},
	}
}

// LayersSpan declares a sub-layer list field bounded by a byte span
// taken from the sibling field from.
func LayersSpan(name string, elem *Schema, from string,
	derive func(stored uint64) int) *FieldSpec {

	return &FieldSpec{
		Name: name,
		Kind: LayersKind,
		Elem: elem,
		Count: CountPolicy{
			Mode:   SpanFrom,
			From:   from,
			Derive: derive,
		},
	}
}

// LayersUntilEnd declares a sub-layer list field decoding elements
// until the buffer ends.
func LayersUntilEnd(name string, elem *Schema) *FieldSpec {
	return &FieldSpec{
		Name: name,
		Kind: LayersKind,
		Elem: elem,
		Count: CountPolicy{
			Mode: UntilEnd,
		},
	}
}

// Custom declares a field with its own codec.
func Custom(name string, def any, codec Codec) *FieldSpec {
	return &FieldSpec{
		Name:    name,
		Kind:    CustomKind,
		Default: def,
		Custom:  codec,
	}
}

// deferred reports whether the field is back-patched during the
// second build pass.
func (f *FieldSpec) deferred() bool {
	return f.Finalize != nil
}

// fixedSize returns the field's intrinsic byte size, or zero when
// the size is not known before dissection.
func (f *FieldSpec) fixedSize() int {
	switch f.Kind {
	case UintKind, LenKind, EnumKind, BytesKind:
		return f.Size
	default:
		return 0
	}
}

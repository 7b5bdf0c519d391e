//
// codec.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package layer

import (
	"sort"

	"github.com/markkurossi/pkt/wire"
	"github.com/pkg/errors"
)

// kindCodec binds a field kind to its encode and decode functions.
// The table is the closed-variant replacement for per-field
// polymorphic codec methods.
type kindCodec struct {
	encode func(e *encoder, f *FieldSpec, v any) error
	decode func(d *decoder, f *FieldSpec) (any, error)
}

var kindCodecs map[Kind]kindCodec

func init() {
	kindCodecs = map[Kind]kindCodec{
		UintKind:     {encodeUint, decodeUint},
		BitsKind:     {encodeBits, decodeBits},
		BytesKind:    {encodeBytes, decodeBytes},
		VarBytesKind: {encodeVarBytes, decodeVarBytes},
		LenKind:      {encodeUint, decodeUint},
		EnumKind:     {encodeUint, decodeUint},
		LayersKind:   {encodeLayers, decodeLayers},
		CustomKind:   {encodeCustom, decodeCustom},
	}
}

type span struct {
	start int
	end   int
}

type patch struct {
	f     *FieldSpec
	start int
	idx   int
}

// encoder serializes one layer's fields in declaration order. Bit
// fields accumulate into a shared bit writer that is flushed when a
// non-bit field follows.
type encoder struct {
	schema  *Schema
	inst    *Instance
	data    []byte
	bits    *wire.BitWriter
	spans   map[string]span
	patches []patch
}

func (e *encoder) flushBits() error {
	if e.bits == nil {
		return nil
	}
	b, err := e.bits.Bytes()
	if err != nil {
		return errors.Wrapf(err, "schema %q: unaligned bit group",
			e.schema.Name)
	}
	e.data = append(e.data, b...)
	e.bits = nil
	return nil
}

// encode runs the first build pass: every field is serialized in
// declaration order, deferred fields emit a placeholder of their
// declared width and are recorded for the second pass.
func (i *Instance) encode() (*encoder, error) {
	e := &encoder{
		schema: i.schema,
		inst:   i,
		spans:  make(map[string]span),
	}
	for idx, f := range i.schema.Fields {
		if f.Cond != nil && !f.Cond(&condView{inst: i, limit: idx}) {
			continue
		}

		var v any
		switch {
		case i.set[f.Name]:
			v = i.values[f.Name]
		case f.deferred():
			// Placeholder, patched in pass two.
			if err := e.flushBits(); err != nil {
				return nil, err
			}
			e.patches = append(e.patches, patch{
				f:     f,
				start: len(e.data),
				idx:   idx,
			})
			v = uint64(0)
		default:
			v = normalize(f, f.Default)
		}

		if f.Kind != BitsKind {
			if err := e.flushBits(); err != nil {
				return nil, err
			}
		}
		start := len(e.data)
		if err := kindCodecs[f.Kind].encode(e, f, v); err != nil {
			return nil, errors.Wrapf(err, "schema %q: field %q",
				i.schema.Name, f.Name)
		}
		if f.Kind != BitsKind {
			e.spans[f.Name] = span{start: start, end: len(e.data)}
		}
	}
	if err := e.flushBits(); err != nil {
		return nil, err
	}
	return e, nil
}

// Serialize builds the layer's bytes: pass one encodes the fields,
// pass two patches deferred fields once the payload is known.
// Lengths and counts are patched first, checksums last, ties in
// declaration order, so a checksum always covers the final length
// bytes. Outer is the enclosing layer, nil for the outermost;
// pseudo-header checksums read its addresses from it.
func (i *Instance) Serialize(payload []byte, outer *Instance) ([]byte, error) {
	e, err := i.encode()
	if err != nil {
		return nil, err
	}

	patches := e.patches
	sort.SliceStable(patches, func(a, b int) bool {
		if patches[a].f.prio != patches[b].f.prio {
			return patches[a].f.prio < patches[b].f.prio
		}
		return patches[a].idx < patches[b].idx
	})

	ctx := &FinalizeContext{
		Header:  e.data,
		Payload: payload,
		Layer:   i,
		Outer:   outer,
		spans:   e.spans,
	}
	for _, p := range patches {
		v := p.f.Finalize(ctx)
		err = wire.PutUint(e.data, v, p.start, p.f.Size, i.schema.order(p.f))
		if err != nil {
			return nil, errors.Wrapf(err, "schema %q: field %q",
				i.schema.Name, p.f.Name)
		}
	}
	return e.data, nil
}

func encodeUint(e *encoder, f *FieldSpec, v any) error {
	var err error
	if f.Signed {
		i, ok := v.(int64)
		if !ok {
			return ErrorValue
		}
		e.data, err = wire.AppendInt(e.data, i, f.Size, e.schema.order(f))
		return err
	}
	u, ok := v.(uint64)
	if !ok {
		return ErrorValue
	}
	e.data, err = wire.AppendUint(e.data, u, f.Size, e.schema.order(f))
	return err
}

func encodeBits(e *encoder, f *FieldSpec, v any) error {
	u, ok := v.(uint64)
	if !ok {
		return ErrorValue
	}
	if e.bits == nil {
		e.bits = wire.NewBitWriter(e.schema.BitOrder)
	}
	return e.bits.WriteBits(u, f.Bits)
}

func encodeBytes(e *encoder, f *FieldSpec, v any) error {
	b, ok := v.([]byte)
	if !ok && v != nil {
		return ErrorValue
	}
	if len(b) > f.Size {
		return wire.ErrorOverflow
	}
	e.data = append(e.data, b...)
	// Short values are padded with zeros to the declared width.
	for i := len(b); i < f.Size; i++ {
		e.data = append(e.data, 0)
	}
	return nil
}

func encodeVarBytes(e *encoder, f *FieldSpec, v any) error {
	b, ok := v.([]byte)
	if !ok && v != nil {
		return ErrorValue
	}
	e.data = append(e.data, b...)
	return nil
}

func encodeLayers(e *encoder, f *FieldSpec, v any) error {
	if v == nil {
		return nil
	}
	elems, ok := v.([]*Instance)
	if !ok {
		return ErrorValue
	}
	for _, el := range elems {
		if el.schema != f.Elem {
			return ErrorValue
		}
		data, err := el.Serialize(nil, e.inst)
		if err != nil {
			return err
		}
		e.data = append(e.data, data...)
	}
	return nil
}

func encodeCustom(e *encoder, f *FieldSpec, v any) error {
	data, err := f.Custom.Encode(v, e.data)
	if err != nil {
		return err
	}
	e.data = data
	return nil
}

// decoder dissects one layer's fields in declaration order from
// data, starting at the byte offset start. The full buffer is kept
// so self-referential custom codecs (DNS name compression) can
// reach backwards from their offset.
type decoder struct {
	schema *Schema
	inst   *Instance
	data   []byte
	ofs    int
	bits   *wire.BitReader
}

func (d *decoder) syncBits() {
	if d.bits != nil {
		d.ofs = d.bits.Offset()
		d.bits = nil
	}
}

// Dissect decodes one layer instance from data, returning the
// instance and the number of bytes consumed. The caller dissects
// the remainder as the payload of the next layer.
func (s *Schema) Dissect(data []byte) (*Instance, int, error) {
	return s.dissectAt(data, 0)
}

func (s *Schema) dissectAt(data []byte, start int) (*Instance, int, error) {
	if len(data)-start < s.minSize {
		return nil, 0, wire.ErrorTruncated
	}
	d := &decoder{
		schema: s,
		inst:   New(s),
		data:   data,
		ofs:    start,
	}
	for idx, f := range s.Fields {
		if f.Kind != BitsKind {
			d.syncBits()
		}
		if f.Cond != nil && !f.Cond(&condView{inst: d.inst, limit: idx}) {
			d.inst.absent[f.Name] = true
			continue
		}
		v, err := kindCodecs[f.Kind].decode(d, f)
		if err != nil {
			return nil, 0, err
		}
		d.inst.values[f.Name] = v
		d.inst.set[f.Name] = true
	}
	d.syncBits()
	d.inst.contents = data[start:d.ofs]

	return d.inst, d.ofs - start, nil
}

func decodeUint(d *decoder, f *FieldSpec) (any, error) {
	order := d.schema.order(f)
	if f.Signed {
		v, err := wire.Int(d.data, d.ofs, f.Size, order)
		if err != nil {
			return nil, err
		}
		d.ofs += f.Size
		return v, nil
	}
	v, err := wire.Uint(d.data, d.ofs, f.Size, order)
	if err != nil {
		return nil, err
	}
	d.ofs += f.Size
	return v, nil
}

func decodeBits(d *decoder, f *FieldSpec) (any, error) {
	if d.bits == nil {
		d.bits = wire.NewBitReader(d.data, d.ofs, d.schema.BitOrder)
	}
	v, err := d.bits.ReadBits(f.Bits)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func decodeBytes(d *decoder, f *FieldSpec) (any, error) {
	if f.Size > len(d.data)-d.ofs {
		return nil, wire.ErrorTruncated
	}
	v := d.data[d.ofs : d.ofs+f.Size]
	d.ofs += f.Size
	return v, nil
}

func decodeVarBytes(d *decoder, f *FieldSpec) (any, error) {
	var n int
	switch f.Length.Mode {
	case DerivedFrom:
		stored := d.inst.Uint(f.Length.From)
		if f.Length.Derive != nil {
			n = f.Length.Derive(stored)
		} else {
			n = int(stored)
		}
		if n < 0 {
			return nil, ErrorMalformed
		}

	case Remaining, Explicit:
		n = len(d.data) - d.ofs

	default:
		return nil, ErrorMalformed
	}
	// Compared by subtraction: d.ofs+n can wrap on hostile stored
	// lengths.
	if n > len(d.data)-d.ofs {
		return nil, wire.ErrorTruncated
	}
	v := d.data[d.ofs : d.ofs+n]
	d.ofs += n
	return v, nil
}

func decodeLayers(d *decoder, f *FieldSpec) (any, error) {
	var elems []*Instance

	switch f.Count.Mode {
	case CountFrom:
		stored := d.inst.Uint(f.Count.From)
		count := int(stored)
		if f.Count.Derive != nil {
			count = f.Count.Derive(stored)
		}
		if count < 0 {
			return nil, ErrorMalformed
		}
		for i := 0; i < count; i++ {
			el, n, err := f.Elem.dissectAt(d.data, d.ofs)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				// A zero-size element cannot make progress; a
				// hostile count must not multiply it.
				return nil, ErrorMalformed
			}
			elems = append(elems, el)
			d.ofs += n
		}

	case SpanFrom, UntilEnd:
		limit := len(d.data)
		if f.Count.Mode == SpanFrom {
			stored := d.inst.Uint(f.Count.From)
			span := int(stored)
			if f.Count.Derive != nil {
				span = f.Count.Derive(stored)
			}
			if span < 0 {
				return nil, ErrorMalformed
			}
			if span > len(d.data)-d.ofs {
				return nil, wire.ErrorTruncated
			}
			limit = d.ofs + span
		}
		for d.ofs < limit {
			el, n, err := f.Elem.dissectAt(d.data[:limit], d.ofs)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				// A zero-size element cannot make progress.
				return nil, ErrorMalformed
			}
			elems = append(elems, el)
			d.ofs += n
		}

	default:
		return nil, ErrorMalformed
	}
	return elems, nil
}

func decodeCustom(d *decoder, f *FieldSpec) (any, error) {
	v, n, err := f.Custom.Decode(d.data, d.ofs)
	if err != nil {
		return nil, err
	}
	d.ofs += n
	return v, nil
}

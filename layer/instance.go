//
// instance.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package layer

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
)

// Instance is a layer schema bound to concrete field values. It is
// created either by explicit construction (New plus Set calls, with
// unassigned fields at their defaults) or by dissection. Instances
// are not safe for concurrent mutation.
type Instance struct {
	schema   *Schema
	values   map[string]any
	set      map[string]bool
	absent   map[string]bool
	contents []byte
}

// New creates an instance of the schema with all fields at their
// defaults.
func New(s *Schema) *Instance {
	return &Instance{
		schema: s,
		values: make(map[string]any),
		set:    make(map[string]bool),
		absent: make(map[string]bool),
	}
}

// Schema returns the instance's schema.
func (i *Instance) Schema() *Schema {
	return i.schema
}

// Contents returns the raw bytes this instance was dissected from,
// nil for constructed instances. The slice aliases the dissection
// input buffer.
func (i *Instance) Contents() []byte {
	return i.contents
}

// Set assigns a field value. The value is normalized to the
// field's canonical type; integer fields accept any Go integer
// type. Set panics on an unknown field name: assigning a field the
// schema does not declare is a programming error, not input error.
func (i *Instance) Set(name string, v any) *Instance {
	f := i.schema.Field(name)
	if f == nil {
		panic(fmt.Sprintf("pkt: schema %q has no field %q",
			i.schema.Name, name))
	}
	i.values[name] = normalize(f, v)
	i.set[name] = true
	return i
}

// normalize converts v to the field's canonical value type:
// unsigned integer fields hold uint64, signed ones int64, byte
// strings []byte, sub-layer lists []*Instance. A value that does
// not convert is kept as is; the encoder rejects it with
// ErrorValue instead of building zeros from a caller bug.
func normalize(f *FieldSpec, v any) any {
	switch f.Kind {
	case UintKind, BitsKind, LenKind, EnumKind:
		if f.Signed {
			if i, ok := toInt64(v); ok {
				return i
			}
			return v
		}
		if u, ok := toUint64(v); ok {
			return u
		}
		return v

	case BytesKind, VarBytesKind:
		switch val := v.(type) {
		case []byte:
			return val
		case string:
			return []byte(val)
		case nil:
			return []byte(nil)
		}
		return v

	default:
		return v
	}
}

func toUint64(v any) (uint64, bool) {
	switch val := v.(type) {
	case uint64:
		return val, true
	case uint32:
		return uint64(val), true
	case uint16:
		return uint64(val), true
	case uint8:
		return uint64(val), true
	case uint:
		return uint64(val), true
	case int64:
		return uint64(val), true
	case int32:
		return uint64(val), true
	case int16:
		return uint64(val), true
	case int8:
		return uint64(val), true
	case int:
		return uint64(val), true
	}
	// Named integer types (enum constants).
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return rv.Uint(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Int64:
		return uint64(rv.Int()), true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int32:
		return int64(val), true
	case int16:
		return int64(val), true
	case int8:
		return int64(val), true
	case int:
		return int64(val), true
	case uint64:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint:
		return int64(val), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return int64(rv.Uint()), true
	}
	return 0, false
}

// Value returns the field's value. Fields dissected as absent
// report false; unassigned fields report their default.
func (i *Instance) Value(name string) (any, bool) {
	if i.absent[name] {
		return nil, false
	}
	if i.set[name] {
		return i.values[name], true
	}
	f := i.schema.Field(name)
	if f == nil {
		return nil, false
	}
	if f.Default == nil {
		return nil, true
	}
	return normalize(f, f.Default), true
}

// Uint returns the field's value as an unsigned integer, zero when
// absent.
func (i *Instance) Uint(name string) uint64 {
	v, ok := i.Value(name)
	if !ok {
		return 0
	}
	switch val := v.(type) {
	case uint64:
		return val
	case int64:
		return uint64(val)
	default:
		return 0
	}
}

// Int returns the field's value as a signed integer, zero when
// absent.
func (i *Instance) Int(name string) int64 {
	v, ok := i.Value(name)
	if !ok {
		return 0
	}
	switch val := v.(type) {
	case int64:
		return val
	case uint64:
		return int64(val)
	default:
		return 0
	}
}

// Bytes returns the field's value as a byte string, nil when
// absent.
func (i *Instance) Bytes(name string) []byte {
	v, ok := i.Value(name)
	if !ok {
		return nil
	}
	b, _ := v.([]byte)
	return b
}

// Sub returns the field's value as a sub-layer list, nil when
// absent.
func (i *Instance) Sub(name string) []*Instance {
	v, ok := i.Value(name)
	if !ok {
		return nil
	}
	sub, _ := v.([]*Instance)
	return sub
}

// Present reports whether the field participates in the layer's
// bytes: for dissected instances its condition held during decode,
// for constructed ones it holds against the current values.
func (i *Instance) Present(name string) bool {
	if i.absent[name] {
		return false
	}
	idx, ok := i.schema.index[name]
	if !ok {
		return false
	}
	f := i.schema.Fields[idx]
	if f.Cond == nil {
		return true
	}
	return f.Cond(&condView{inst: i, limit: idx})
}

// Equal reports whether two instances of the same schema carry the
// same field values. Deferred fields left for the engine to compute
// on either side are skipped, since their value exists only in the
// built bytes.
func (i *Instance) Equal(o *Instance) bool {
	if o == nil || i.schema != o.schema {
		return false
	}
	for _, f := range i.schema.Fields {
		if f.deferred() && (!i.set[f.Name] || !o.set[f.Name]) {
			continue
		}
		ip := i.Present(f.Name)
		if ip != o.Present(f.Name) {
			return false
		}
		if !ip {
			continue
		}
		iv, _ := i.Value(f.Name)
		ov, _ := o.Value(f.Name)
		if !valueEqual(f, iv, ov) {
			return false
		}
	}
	return true
}

func valueEqual(f *FieldSpec, a, b any) bool {
	switch f.Kind {
	case BytesKind, VarBytesKind:
		ab, _ := a.([]byte)
		bb, _ := b.([]byte)
		return bytes.Equal(ab, bb)

	case LayersKind:
		as, _ := a.([]*Instance)
		bs, _ := b.([]*Instance)
		if len(as) != len(bs) {
			return false
		}
		for idx, el := range as {
			if !el.Equal(bs[idx]) {
				return false
			}
		}
		return true

	default:
		return reflect.DeepEqual(a, b)
	}
}

func (i *Instance) String() string {
	sb := new(strings.Builder)
	sb.WriteString(i.schema.Name)
	for _, f := range i.schema.Fields {
		if !i.Present(f.Name) {
			continue
		}
		v, _ := i.Value(f.Name)
		fmt.Fprintf(sb, " %s=%s", f.Name, represent(f, v))
	}
	return sb.String()
}

// represent formats a field value for display. Best effort, never
// used for correctness.
func represent(f *FieldSpec, v any) string {
	if f.Repr != nil {
		return f.Repr(v)
	}
	switch val := v.(type) {
	case uint64:
		if f.Enum != nil {
			name, ok := f.Enum[val]
			if ok {
				return name
			}
		}
		return fmt.Sprintf("%d", val)

	case int64:
		return fmt.Sprintf("%d", val)

	case []byte:
		return fmt.Sprintf("%x", val)

	case []*Instance:
		parts := make([]string, 0, len(val))
		for _, el := range val {
			parts = append(parts, "{"+el.String()+"}")
		}
		return strings.Join(parts, ",")

	case nil:
		return ""

	default:
		return fmt.Sprintf("%v", val)
	}
}

// condView restricts a Values view to the fields declared before
// the field at index limit. Conditions and length references can
// only consult values that are already resolved in declaration
// order.
type condView struct {
	inst  *Instance
	limit int
}

func (v *condView) visible(name string) bool {
	idx, ok := v.inst.schema.index[name]
	return ok && idx < v.limit
}

// Value implements Values.Value.
func (v *condView) Value(name string) (any, bool) {
	if !v.visible(name) {
		return nil, false
	}
	return v.inst.Value(name)
}

// Uint implements Values.Uint.
func (v *condView) Uint(name string) uint64 {
	if !v.visible(name) {
		return 0
	}
	return v.inst.Uint(name)
}

// Int implements Values.Int.
func (v *condView) Int(name string) int64 {
	if !v.visible(name) {
		return 0
	}
	return v.inst.Int(name)
}

// Bytes implements Values.Bytes.
func (v *condView) Bytes(name string) []byte {
	if !v.visible(name) {
		return nil
	}
	return v.inst.Bytes(name)
}

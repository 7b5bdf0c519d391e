//
// schema.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package layer

import (
	"github.com/markkurossi/pkt/wire"
	"github.com/pkg/errors"
)

// Schema is a compiled, validated layer schema: an ordered field
// sequence plus dispatch and build metadata. Schemas are immutable
// after Compile and safe for concurrent use.
type Schema struct {
	// Name is the human-readable protocol name.
	Name string

	// Fields is the ordered field sequence.
	Fields []*FieldSpec

	// Discriminator names the field whose decoded value selects
	// the next layer's schema. Empty for terminal layers.
	Discriminator string

	// ByteOrder is the default byte order of integer fields.
	ByteOrder wire.Order

	// BitOrder is the packing direction of bit fields.
	BitOrder wire.BitOrder

	answers func(self, other *Instance) bool
	index   map[string]int
	minSize int
}

// Option configures a schema at compile time.
type Option func(s *Schema)

// WithDiscriminator names the dispatch discriminator field.
func WithDiscriminator(name string) Option {
	return func(s *Schema) {
		s.Discriminator = name
	}
}

// WithByteOrder sets the default byte order of integer fields.
func WithByteOrder(order wire.Order) Option {
	return func(s *Schema) {
		s.ByteOrder = order
	}
}

// WithBitOrder sets the bit-packing direction of the schema's bit
// fields.
func WithBitOrder(order wire.BitOrder) Option {
	return func(s *Schema) {
		s.BitOrder = order
	}
}

// WithAnswers installs the layer's request/response predicate,
// invoked by Stack.Answers with the received layer as self.
func WithAnswers(fn func(self, other *Instance) bool) Option {
	return func(s *Schema) {
		s.answers = fn
	}
}

// Compile validates the field sequence and produces a schema.
// Dependency references are resolved eagerly: a dangling or
// forward length-from, count-from, or discriminator reference is an
// ErrorUnresolved here instead of a failure on every build or
// dissect call.
func Compile(name string, fields []*FieldSpec, opts ...Option) (*Schema, error) {
	s := &Schema{
		Name:      name,
		Fields:    fields,
		ByteOrder: wire.BigEndian,
		BitOrder:  wire.MSBFirst,
		index:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	for idx, f := range fields {
		if len(f.Name) == 0 {
			return nil, errors.Errorf("schema %q: field %d: empty name",
				name, idx)
		}
		if _, ok := s.index[f.Name]; ok {
			return nil, errors.Errorf("schema %q: duplicate field %q",
				name, f.Name)
		}
		s.index[f.Name] = idx

		if err := s.checkField(idx, f); err != nil {
			return nil, err
		}
	}
	if len(s.Discriminator) > 0 {
		idx, ok := s.index[s.Discriminator]
		if !ok {
			return nil, errors.Wrapf(ErrorUnresolved,
				"schema %q: discriminator %q", name, s.Discriminator)
		}
		switch fields[idx].Kind {
		case UintKind, BitsKind, LenKind, EnumKind:

		default:
			return nil, errors.Errorf(
				"schema %q: discriminator %q is not an integer field",
				name, s.Discriminator)
		}
	}
	if err := s.checkBitGroups(); err != nil {
		return nil, err
	}
	s.minSize = s.computeMinSize()

	return s, nil
}

// MustCompile is like Compile but panics on error. It is intended
// for protocol catalogs built at package initialization time.
func MustCompile(name string, fields []*FieldSpec, opts ...Option) *Schema {
	s, err := Compile(name, fields, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) checkField(idx int, f *FieldSpec) error {
	last := idx == len(s.Fields)-1

	// An earlier integer field the reference can be decoded from.
	backref := func(ref string) error {
		ri, ok := s.index[ref]
		if !ok || ri >= idx {
			return errors.Wrapf(ErrorUnresolved,
				"schema %q: field %q references %q", s.Name, f.Name, ref)
		}
		switch s.Fields[ri].Kind {
		case UintKind, BitsKind, LenKind, EnumKind:
			return nil
		default:
			return errors.Errorf(
				"schema %q: field %q: reference %q is not an integer field",
				s.Name, f.Name, ref)
		}
	}

	switch f.Kind {
	case UintKind, LenKind, EnumKind:
		if f.Size < 1 || f.Size > 8 {
			return errors.Errorf("schema %q: field %q: invalid size %d",
				s.Name, f.Name, f.Size)
		}

	case BitsKind:
		if f.Bits < 1 || f.Bits > 56 {
			return errors.Errorf("schema %q: field %q: invalid bit width %d",
				s.Name, f.Name, f.Bits)
		}
		if f.Cond != nil {
			return errors.Errorf(
				"schema %q: field %q: bit fields cannot be conditional",
				s.Name, f.Name)
		}
		if f.Finalize != nil {
			return errors.Errorf(
				"schema %q: field %q: bit fields cannot be deferred",
				s.Name, f.Name)
		}

	case BytesKind:
		if f.Size < 1 {
			return errors.Errorf("schema %q: field %q: invalid size %d",
				s.Name, f.Name, f.Size)
		}

	case VarBytesKind:
		switch f.Length.Mode {
		case DerivedFrom:
			if err := backref(f.Length.From); err != nil {
				return err
			}
		case Remaining, Explicit:
			if !last {
				return errors.Errorf(
					"schema %q: field %q: remaining-bytes field must be last",
					s.Name, f.Name)
			}
		default:
			return errors.Errorf(
				"schema %q: field %q: invalid length mode", s.Name, f.Name)
		}

	case LayersKind:
		if f.Elem == nil {
			return errors.Errorf("schema %q: field %q: no element schema",
				s.Name, f.Name)
		}
		switch f.Count.Mode {
		case CountFrom, SpanFrom:
			if err := backref(f.Count.From); err != nil {
				return err
			}
		case UntilEnd:
			if !last {
				return errors.Errorf(
					"schema %q: field %q: open-ended list must be last",
					s.Name, f.Name)
			}
		default:
			return errors.Errorf(
				"schema %q: field %q: invalid count mode", s.Name, f.Name)
		}

	case CustomKind:
		if f.Custom == nil {
			return errors.Errorf("schema %q: field %q: no codec",
				s.Name, f.Name)
		}

	default:
		return errors.Errorf("schema %q: field %q: invalid kind %v",
			s.Name, f.Name, f.Kind)
	}

	// Length fields measuring a sibling must name a real field.
	if f.Kind == LenKind && len(f.Length.From) > 0 {
		found := false
		for _, o := range s.Fields {
			if o.Name == f.Length.From {
				found = true
				break
			}
		}
		if !found {
			return errors.Wrapf(ErrorUnresolved,
				"schema %q: field %q measures %q",
				s.Name, f.Name, f.Length.From)
		}
	}
	return nil
}

// checkBitGroups verifies that every run of consecutive bit fields
// ends on a byte boundary.
func (s *Schema) checkBitGroups() error {
	var bits int
	for _, f := range s.Fields {
		if f.Kind == BitsKind {
			bits += f.Bits
			continue
		}
		if bits%8 != 0 {
			return errors.Errorf(
				"schema %q: bit group before field %q is %d bits",
				s.Name, f.Name, bits)
		}
		bits = 0
	}
	if bits%8 != 0 {
		return errors.Errorf("schema %q: trailing bit group is %d bits",
			s.Name, bits)
	}
	return nil
}

// computeMinSize sums the intrinsic sizes of the unconditional
// fields. Variable-length fields and lists contribute zero.
func (s *Schema) computeMinSize() int {
	var size, bits int
	for _, f := range s.Fields {
		if f.Cond != nil {
			continue
		}
		if f.Kind == BitsKind {
			bits += f.Bits
			continue
		}
		size += f.fixedSize()
	}
	return size + bits/8
}

// MinSize returns the minimum byte size of the layer: the sum of
// the intrinsic sizes of its unconditional fields.
func (s *Schema) MinSize() int {
	return s.minSize
}

// Field returns the named field spec, nil if unknown.
func (s *Schema) Field(name string) *FieldSpec {
	idx, ok := s.index[name]
	if !ok {
		return nil
	}
	return s.Fields[idx]
}

func (s *Schema) String() string {
	return s.Name
}

// order returns the byte order of field f.
func (s *Schema) order(f *FieldSpec) wire.Order {
	if f.Order != nil {
		return *f.Order
	}
	return s.ByteOrder
}

//
// schemafile.go
//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

// Package schemafile loads protocol schemas from TOML documents.
// A schema file declares layer schemas as ordered field tables plus
// dispatch bindings, so simple protocols can be defined as data
// without writing Go:
//
//	[[schema]]
//	name = "TLV"
//	discriminator = "type"
//
//	  [[schema.field]]
//	  name = "type"
//	  kind = "uint"
//	  size = 1
//
//	  [[schema.field]]
//	  name = "len"
//	  kind = "len"
//	  size = 1
//
//	  [[schema.field]]
//	  name = "value"
//	  kind = "varbytes"
//	  length_from = "len"
//
//	[[bind]]
//	parent = "TLV"
//	on = 5
//	child = "Ext"
//
// Checksums and other computed fields need code and stay out of
// schema files.
package schemafile

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/markkurossi/pkt/layer"
	"github.com/markkurossi/pkt/wire"
	"github.com/pkg/errors"
)

// File is the TOML document structure.
type File struct {
	Schemas  []SchemaDef  `toml:"schema"`
	Bindings []BindingDef `toml:"bind"`
}

// SchemaDef declares one layer schema.
type SchemaDef struct {
	Name          string     `toml:"name"`
	Discriminator string     `toml:"discriminator"`
	ByteOrder     string     `toml:"byte_order"`
	BitOrder      string     `toml:"bit_order"`
	Fields        []FieldDef `toml:"field"`
}

// FieldDef declares one field.
type FieldDef struct {
	Name    string `toml:"name"`
	Kind    string `toml:"kind"`
	Size    int    `toml:"size"`
	Bits    int    `toml:"bits"`
	Order   string `toml:"order"`
	Signed  bool   `toml:"signed"`
	Default any    `toml:"default"`

	// Variable-length byte strings.
	Remaining    bool   `toml:"remaining"`
	LengthFrom   string `toml:"length_from"`
	LengthAdjust int    `toml:"length_adjust"`

	// Length fields: the measured sibling, empty for the payload,
	// and an additive adjustment to the measured byte count.
	Of     string `toml:"of"`
	Adjust int    `toml:"adjust"`

	// Sub-layer lists.
	Elem      string `toml:"elem"`
	CountFrom string `toml:"count_from"`

	Enum map[string]string `toml:"enum"`
	When *WhenDef          `toml:"when"`
}

// WhenDef declares a conditional-presence predicate over a sibling
// field's value.
type WhenDef struct {
	Field string  `toml:"field"`
	Eq    *uint64 `toml:"eq"`
	Ne    *uint64 `toml:"ne"`
}

// BindingDef declares one dispatch binding.
type BindingDef struct {
	Parent string `toml:"parent"`
	On     uint64 `toml:"on"`
	Child  string `toml:"child"`
}

type binding struct {
	parent *layer.Schema
	value  uint64
	child  *layer.Schema
}

// Catalog holds the compiled schemas and bindings of one schema
// file.
type Catalog struct {
	// Schemas maps schema names to compiled schemas.
	Schemas map[string]*layer.Schema

	bindings []binding
}

// Load parses and compiles the schema file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return c, nil
}

// Parse parses and compiles a schema file. Schemas compile in
// declaration order; bindings and list element references may name
// only schemas declared earlier in the file, plus the builtin
// "Raw" fallback.
func Parse(data []byte) (*Catalog, error) {
	var file File

	err := toml.Unmarshal(data, &file)
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		Schemas: make(map[string]*layer.Schema),
	}
	for _, def := range file.Schemas {
		s, err := c.compile(def)
		if err != nil {
			return nil, err
		}
		c.Schemas[def.Name] = s
	}
	for _, b := range file.Bindings {
		parent, err := c.lookup(b.Parent)
		if err != nil {
			return nil, errors.Wrapf(err, "bind")
		}
		child, err := c.lookup(b.Child)
		if err != nil {
			return nil, errors.Wrapf(err, "bind")
		}
		c.bindings = append(c.bindings, binding{
			parent: parent,
			value:  b.On,
			child:  child,
		})
	}
	return c, nil
}

// Register registers the catalog's bindings into the registry.
func (c *Catalog) Register(reg *layer.Registry) {
	for _, b := range c.bindings {
		reg.Bind(b.parent, b.value, b.child)
	}
}

func (c *Catalog) lookup(name string) (*layer.Schema, error) {
	if name == "Raw" {
		return layer.Raw, nil
	}
	s, ok := c.Schemas[name]
	if !ok {
		return nil, errors.Errorf("unknown schema %q", name)
	}
	return s, nil
}

func (c *Catalog) compile(def SchemaDef) (*layer.Schema, error) {
	if len(def.Name) == 0 {
		return nil, errors.New("schema without a name")
	}
	var opts []layer.Option

	if len(def.Discriminator) > 0 {
		opts = append(opts, layer.WithDiscriminator(def.Discriminator))
	}
	switch def.ByteOrder {
	case "", "big":

	case "little":
		opts = append(opts, layer.WithByteOrder(wire.LittleEndian))

	default:
		return nil, errors.Errorf("schema %q: invalid byte order %q",
			def.Name, def.ByteOrder)
	}
	switch def.BitOrder {
	case "", "msb":

	case "lsb":
		opts = append(opts, layer.WithBitOrder(wire.LSBFirst))

	default:
		return nil, errors.Errorf("schema %q: invalid bit order %q",
			def.Name, def.BitOrder)
	}

	var fields []*layer.FieldSpec
	declared := make(map[string]string)
	for idx, fd := range def.Fields {
		f, err := c.compileField(fd, declared)
		if err != nil {
			return nil, errors.Wrapf(err, "schema %q: field %d",
				def.Name, idx)
		}
		fields = append(fields, f)
		declared[fd.Name] = fd.Kind
	}
	return layer.Compile(def.Name, fields, opts...)
}

func (c *Catalog) compileField(def FieldDef, declared map[string]string) (
	*layer.FieldSpec, error) {
	var f *layer.FieldSpec

	switch def.Kind {
	case "uint":
		if def.Signed {
			f = layer.IntN(def.Name, defaultInt(def.Default), def.Size)
		} else {
			f = layer.UintN(def.Name, defaultUint(def.Default), def.Size)
		}

	case "bits":
		f = layer.Bits(def.Name, defaultUint(def.Default), def.Bits)

	case "bytes":
		f = layer.Bytes(def.Name, defaultBytes(def.Default), def.Size)

	case "varbytes":
		if def.Remaining {
			f = layer.RemainingBytes(def.Name)
		} else {
			adjust := def.LengthAdjust
			var derive func(stored uint64) int
			if adjust != 0 {
				derive = func(stored uint64) int {
					return int(stored) + adjust
				}
			}
			f = layer.VarBytes(def.Name, def.LengthFrom, derive)
		}
		if def.Default != nil {
			f.WithDefault(defaultBytes(def.Default))
		}

	case "len":
		adjust := def.Adjust
		var fn func(measured int) int
		if adjust != 0 {
			fn = func(measured int) int {
				return measured + adjust
			}
		}
		f = layer.LenOf(def.Name, def.Size, def.Of, fn)

	case "count":
		f = layer.CountOf(def.Name, def.Size, def.Of)

	case "enum":
		names, err := parseEnum(def.Enum)
		if err != nil {
			return nil, err
		}
		f = layer.Enum(def.Name, defaultUint(def.Default), def.Size, names)

	case "layers":
		elem, err := c.lookup(def.Elem)
		if err != nil {
			return nil, err
		}
		f = layer.Layers(def.Name, elem, def.CountFrom)

	default:
		return nil, errors.Errorf("invalid field kind %q", def.Kind)
	}

	switch def.Order {
	case "":

	case "little":
		f.Little()

	case "big":
		o := wire.BigEndian
		f.Order = &o

	default:
		return nil, errors.Errorf("invalid byte order %q", def.Order)
	}

	if def.When != nil {
		w := def.When
		if len(w.Field) == 0 || (w.Eq == nil) == (w.Ne == nil) {
			return nil, errors.Errorf(
				"field %q: when needs a field and exactly one of eq, ne",
				def.Name)
		}
		// The condition can only consult an earlier integer field;
		// an unchecked name would compile into a predicate that
		// silently reads zero.
		switch declared[w.Field] {
		case "uint", "bits", "len", "count", "enum":

		default:
			return nil, errors.Wrapf(layer.ErrorUnresolved,
				"field %q: when references %q", def.Name, w.Field)
		}
		f.When(func(view layer.Values) bool {
			v := view.Uint(w.Field)
			if w.Eq != nil {
				return v == *w.Eq
			}
			return v != *w.Ne
		})
	}
	return f, nil
}

func parseEnum(m map[string]string) (map[uint64]string, error) {
	names := make(map[uint64]string)
	for k, v := range m {
		val, err := strconv.ParseUint(k, 0, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid enum value %q", k)
		}
		names[val] = v
	}
	return names, nil
}

func defaultUint(v any) uint64 {
	switch val := v.(type) {
	case int64:
		return uint64(val)
	case float64:
		return uint64(val)
	default:
		return 0
	}
}

func defaultInt(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case float64:
		return int64(val)
	default:
		return 0
	}
}

func defaultBytes(v any) []byte {
	switch val := v.(type) {
	case string:
		return []byte(val)
	default:
		return nil
	}
}

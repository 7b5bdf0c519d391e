//
// bind.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package layer

import (
	"fmt"
)

// Raw is the terminal fallback schema: a single field holding the
// remaining bytes as an opaque load. Dissection ends in Raw when no
// dispatch binding matches, so unknown discriminator values are
// never an error.
var Raw = MustCompile("Raw", []*FieldSpec{
	RemainingBytes("load"),
})

// DefaultDepth is the default decode budget: the maximum number of
// layers one Dissect call will decode.
const DefaultDepth = 100

type binding struct {
	parent *Schema
	value  uint64
}

// Registry maps (parent schema, discriminator value) pairs to
// successor schemas. Registration happens once, at schema
// definition time; after Finalize the registry is immutable and
// safe for concurrent Lookup and Dissect calls. The registry does
// not detect recursive layer graphs; the decode budget bounds
// dissection instead.
type Registry struct {
	bindings  map[binding]*Schema
	fallback  *Schema
	maxDepth  int
	finalized bool
}

// NewRegistry creates an empty registry with the Raw fallback and
// the default decode budget.
func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[binding]*Schema),
		fallback: Raw,
		maxDepth: DefaultDepth,
	}
}

// Bind registers child as the successor of parent when the
// parent's discriminator field decodes to value. The last Bind for
// a given pair wins. Bind panics if the registry is finalized:
// late registration would race concurrent dissection.
func (r *Registry) Bind(parent *Schema, value uint64, child *Schema) {
	if r.finalized {
		panic("pkt: Bind after Finalize")
	}
	r.bindings[binding{parent: parent, value: value}] = child
}

// SetFallback replaces the raw fallback schema.
func (r *Registry) SetFallback(s *Schema) {
	if r.finalized {
		panic("pkt: SetFallback after Finalize")
	}
	r.fallback = s
}

// SetMaxDepth sets the decode budget.
func (r *Registry) SetMaxDepth(depth int) {
	if r.finalized {
		panic("pkt: SetMaxDepth after Finalize")
	}
	if depth < 1 {
		panic(fmt.Sprintf("pkt: invalid decode budget %d", depth))
	}
	r.maxDepth = depth
}

// Finalize freezes the registry. All registration must complete
// before the first Dissect call from multiple goroutines.
func (r *Registry) Finalize() {
	r.finalized = true
}

// Finalized reports whether the registry is frozen.
func (r *Registry) Finalized() bool {
	return r.finalized
}

// Lookup returns the successor schema of parent for the given
// discriminator value. Lookup is total: an unregistered value
// resolves to the fallback schema so that dissection always
// terminates in an opaque-bytes layer.
func (r *Registry) Lookup(parent *Schema, value uint64) *Schema {
	child, ok := r.bindings[binding{parent: parent, value: value}]
	if ok {
		return child
	}
	return r.fallback
}

// Fallback returns the registry's fallback schema.
func (r *Registry) Fallback() *Schema {
	return r.fallback
}

// DefaultRegistry is the process-wide registry protocol catalogs
// register into.
var DefaultRegistry = NewRegistry()

// Bind registers a successor binding in the default registry.
func Bind(parent *Schema, value uint64, child *Schema) {
	DefaultRegistry.Bind(parent, value, child)
}

// Lookup consults the default registry.
func Lookup(parent *Schema, value uint64) *Schema {
	return DefaultRegistry.Lookup(parent, value)
}

// Finalize freezes the default registry.
func Finalize() {
	DefaultRegistry.Finalize()
}

//
// stack.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package layer

import (
	"strings"
)

// Stack is an ordered chain of layer instances, outermost first.
// The stack owns its instances in a flat slice; traversal is a
// loop, never recursion, so the decode budget is a simple counter.
type Stack struct {
	// Layers holds the instances, outermost first.
	Layers []*Instance

	// Trailing holds input bytes that were not consumed: either
	// data past the last decoded layer when dissection stopped
	// early, or bytes beyond one top-level message.
	Trailing []byte

	// Incomplete records why dissection stopped before consuming
	// the whole buffer: ErrorDepth when the decode budget ran out,
	// or the decode error of the first layer that failed. Nil for
	// a complete dissection.
	Incomplete error
}

// NewStack creates a stack from the given instances, outermost
// first.
func NewStack(layers ...*Instance) *Stack {
	return &Stack{
		Layers: layers,
	}
}

// Push appends an instance as the new innermost layer.
func (s *Stack) Push(i *Instance) *Stack {
	s.Layers = append(s.Layers, i)
	return s
}

// Layer returns the first instance of the given schema, nil if the
// stack has none.
func (s *Stack) Layer(schema *Schema) *Instance {
	for _, l := range s.Layers {
		if l.schema == schema {
			return l
		}
	}
	return nil
}

// Build serializes the stack into wire bytes. Layers build in
// post-order: the innermost layer first, its bytes becoming the
// payload of the next layer out, so each layer's deferred length
// and checksum fields are finalized over an already-final payload.
// The output is deterministic for a fully-specified stack; unset
// fields build as their defaults.
func (s *Stack) Build() ([]byte, error) {
	var payload []byte
	for i := len(s.Layers) - 1; i >= 0; i-- {
		var outer *Instance
		if i > 0 {
			outer = s.Layers[i-1]
		}
		hdr, err := s.Layers[i].Serialize(payload, outer)
		if err != nil {
			return nil, err
		}
		payload = append(hdr, payload...)
	}
	return payload, nil
}

// Dissect decodes data against the default registry, starting with
// the given outermost schema.
func Dissect(schema *Schema, data []byte) (*Stack, error) {
	return DefaultRegistry.Dissect(schema, data)
}

// Dissect decodes data into a layer stack, starting with the given
// outermost schema. Each decoded layer's discriminator value
// selects the next schema from the registry; unknown values
// dissolve into the Raw fallback. A failure below the outermost
// layer degrades gracefully: the already decoded prefix is
// returned, the unconsumed bytes land in Trailing, and the cause
// in Incomplete. Only an error in the outermost layer is returned
// as an error.
func (r *Registry) Dissect(schema *Schema, data []byte) (*Stack, error) {
	stack := NewStack()
	s := schema
	rest := data

	for depth := 0; ; depth++ {
		if depth >= r.maxDepth {
			logger.Debug().
				Str("schema", s.Name).
				Int("depth", depth).
				Msg("decode budget exhausted")
			stack.Incomplete = ErrorDepth
			stack.Trailing = rest
			return stack, nil
		}

		inst, n, err := s.Dissect(rest)
		if err != nil {
			if len(stack.Layers) == 0 {
				return nil, err
			}
			logger.Debug().
				Str("schema", s.Name).
				Int("remaining", len(rest)).
				Err(err).
				Msg("dissection stopped")
			stack.Incomplete = err
			stack.Trailing = rest
			return stack, nil
		}
		stack.Push(inst)
		rest = rest[n:]
		if len(rest) == 0 {
			return stack, nil
		}

		if len(s.Discriminator) == 0 {
			// Terminal layer with bytes left: opaque payload.
			next := r.fallback
			if next == s {
				// The fallback consumes everything; a leftover
				// here means it cannot make progress.
				stack.Trailing = rest
				return stack, nil
			}
			s = next
			continue
		}
		value := inst.Uint(s.Discriminator)
		next := r.Lookup(s, value)
		if next == r.fallback {
			logger.Debug().
				Str("schema", s.Name).
				Uint64("value", value).
				Msg("no binding, using fallback")
		}
		s = next
	}
}

// Answers reports whether this stack is a response to the other
// stack. Layers are compared pairwise; a layer whose schema
// defines an answers predicate short-circuits the chain to false
// on disagreement, and differing schemas never answer each other.
func (s *Stack) Answers(other *Stack) bool {
	n := len(s.Layers)
	if len(other.Layers) < n {
		n = len(other.Layers)
	}
	for i := 0; i < n; i++ {
		self := s.Layers[i]
		o := other.Layers[i]
		if self.schema != o.schema {
			return false
		}
		if self.schema.answers != nil && !self.schema.answers(self, o) {
			return false
		}
	}
	return true
}

func (s *Stack) String() string {
	parts := make([]string, 0, len(s.Layers))
	for _, l := range s.Layers {
		parts = append(parts, l.String())
	}
	return strings.Join(parts, " / ")
}

//
// bind_test.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package layer

import (
	"testing"
)

func TestLookupTotal(t *testing.T) {
	a := MustCompile("a", []*FieldSpec{Uint8("v", 0)})
	reg := NewRegistry()

	// Lookup never fails: unregistered pairs resolve to the
	// fallback.
	for v := uint64(0); v < 300; v++ {
		if reg.Lookup(a, v) == nil {
			t.Fatalf("Lookup returned nil for %d", v)
		}
	}
	if reg.Lookup(a, 0) != Raw {
		t.Errorf("default fallback is not Raw")
	}
}

func TestBindOverwrite(t *testing.T) {
	a := MustCompile("a", []*FieldSpec{Uint8("v", 0)})
	b := MustCompile("b", []*FieldSpec{Uint8("v", 0)})
	c := MustCompile("c", []*FieldSpec{Uint8("v", 0)})

	reg := NewRegistry()
	reg.Bind(a, 1, b)
	reg.Bind(a, 1, c)
	if reg.Lookup(a, 1) != c {
		t.Errorf("last registration did not win")
	}
}

func TestSharedChild(t *testing.T) {
	// The layer graph is not a tree: one child can be reachable
	// from several parents.
	a := MustCompile("a", []*FieldSpec{Uint8("v", 0)})
	b := MustCompile("b", []*FieldSpec{Uint8("v", 0)})
	child := MustCompile("child", []*FieldSpec{Uint8("v", 0)})

	reg := NewRegistry()
	reg.Bind(a, 1, child)
	reg.Bind(b, 2, child)
	if reg.Lookup(a, 1) != child || reg.Lookup(b, 2) != child {
		t.Errorf("shared child lookup failed")
	}
}

func TestBindAfterFinalize(t *testing.T) {
	a := MustCompile("a", []*FieldSpec{Uint8("v", 0)})
	reg := NewRegistry()
	reg.Finalize()
	if !reg.Finalized() {
		t.Fatalf("Finalized not reported")
	}

	defer func() {
		if recover() == nil {
			t.Errorf("Bind after Finalize did not panic")
		}
	}()
	reg.Bind(a, 1, a)
}

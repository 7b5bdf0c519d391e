//
// wire.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

// Package wire implements the primitive field codec: fixed-width
// integer encoding with configurable byte order and signedness, and
// bit-level packing that crosses byte boundaries in either MSB-first
// or LSB-first direction. The package knows nothing about packet
// structure; the layer package drives it field by field.
package wire

// Order defines the byte order of multi-byte integer fields.
type Order int

// Byte orders for integer fields.
const (
	BigEndian Order = iota
	LittleEndian
)

func (o Order) String() string {
	switch o {
	case BigEndian:
		return "big-endian"
	case LittleEndian:
		return "little-endian"
	default:
		return "{Order}"
	}
}

// BitOrder defines the direction in which bit-packed fields fill
// their bytes.
type BitOrder int

// Bit-packing directions. MSBFirst packs the first declared field
// into the most significant bits of the first byte; LSBFirst packs
// it into the least significant bits.
const (
	MSBFirst BitOrder = iota
	LSBFirst
)

func (o BitOrder) String() string {
	switch o {
	case MSBFirst:
		return "msb-first"
	case LSBFirst:
		return "lsb-first"
	default:
		return "{BitOrder}"
	}
}

//
// int.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package wire

import (
	"math"
)

// MaxUint returns the largest unsigned value that fits into size
// bytes.
func MaxUint(size int) uint64 {
	if size >= 8 {
		return math.MaxUint64
	}
	return 1<<(8*uint(size)) - 1
}

// AppendUint appends v to data as a size-byte unsigned integer in
// the given byte order. Sizes from 1 to 8 bytes are supported, also
// the odd ones (3-byte lengths appear in several link protocols).
func AppendUint(data []byte, v uint64, size int, order Order) ([]byte, error) {
	if size < 1 || size > 8 {
		return nil, ErrorOverflow
	}
	if v > MaxUint(size) {
		return nil, ErrorOverflow
	}
	for i := 0; i < size; i++ {
		var shift uint
		if order == BigEndian {
			shift = uint(8 * (size - 1 - i))
		} else {
			shift = uint(8 * i)
		}
		data = append(data, byte(v>>shift))
	}
	return data, nil
}

// AppendInt appends v to data as a size-byte two's complement
// integer in the given byte order.
func AppendInt(data []byte, v int64, size int, order Order) ([]byte, error) {
	if size < 1 || size > 8 {
		return nil, ErrorOverflow
	}
	if size < 8 {
		min := int64(-1) << (8*uint(size) - 1)
		max := int64(1)<<(8*uint(size)-1) - 1
		if v < min || v > max {
			return nil, ErrorOverflow
		}
	}
	return AppendUint(data, uint64(v)&MaxUint(size), size, order)
}

// Uint decodes a size-byte unsigned integer from data at ofs.
func Uint(data []byte, ofs, size int, order Order) (uint64, error) {
	if size < 1 || size > 8 {
		return 0, ErrorOverflow
	}
	if ofs < 0 || ofs+size > len(data) {
		return 0, ErrorTruncated
	}
	var v uint64
	for i := 0; i < size; i++ {
		if order == BigEndian {
			v = v<<8 | uint64(data[ofs+i])
		} else {
			v |= uint64(data[ofs+i]) << uint(8*i)
		}
	}
	return v, nil
}

// Int decodes a size-byte two's complement integer from data at ofs.
func Int(data []byte, ofs, size int, order Order) (int64, error) {
	v, err := Uint(data, ofs, size, order)
	if err != nil {
		return 0, err
	}
	return SignExtend(v, size), nil
}

// SignExtend interprets the low size bytes of v as a two's
// complement integer.
func SignExtend(v uint64, size int) int64 {
	if size >= 8 {
		return int64(v)
	}
	shift := uint(64 - 8*size)
	return int64(v<<shift) >> shift
}

// PutUint overwrites size bytes of data at ofs with v. It is used
// for back-patching deferred fields into their placeholder spans.
func PutUint(data []byte, v uint64, ofs, size int, order Order) error {
	if v > MaxUint(size) {
		return ErrorOverflow
	}
	if ofs < 0 || ofs+size > len(data) {
		return ErrorTruncated
	}
	for i := 0; i < size; i++ {
		var shift uint
		if order == BigEndian {
			shift = uint(8 * (size - 1 - i))
		} else {
			shift = uint(8 * i)
		}
		data[ofs+i] = byte(v >> shift)
	}
	return nil
}

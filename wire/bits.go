//
// bits.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package wire

// BitWriter packs sub-byte fields into a byte stream. Consecutive
// bit fields share bytes; a byte is emitted once eight bits have
// accumulated, so fields may cross byte boundaries. Fields are at
// most 56 bits wide.
type BitWriter struct {
	order BitOrder
	data  []byte
	acc   uint64
	nbits int
}

// NewBitWriter creates a bit writer with the given packing
// direction.
func NewBitWriter(order BitOrder) *BitWriter {
	return &BitWriter{
		order: order,
	}
}

// WriteBits appends the low n bits of v.
func (w *BitWriter) WriteBits(v uint64, n int) error {
	if n < 1 || n > 56 {
		return ErrorOverflow
	}
	if n < 64 && v >= 1<<uint(n) {
		return ErrorOverflow
	}
	if w.order == MSBFirst {
		w.acc = w.acc<<uint(n) | v
	} else {
		w.acc |= v << uint(w.nbits)
	}
	w.nbits += n

	for w.nbits >= 8 {
		if w.order == MSBFirst {
			w.data = append(w.data, byte(w.acc>>uint(w.nbits-8)))
			w.nbits -= 8
			w.acc &= 1<<uint(w.nbits) - 1
		} else {
			w.data = append(w.data, byte(w.acc))
			w.acc >>= 8
			w.nbits -= 8
		}
	}
	return nil
}

// Aligned reports whether the writer is at a byte boundary.
func (w *BitWriter) Aligned() bool {
	return w.nbits == 0
}

// Bytes returns the packed bytes. The writer must be byte-aligned.
func (w *BitWriter) Bytes() ([]byte, error) {
	if !w.Aligned() {
		return nil, ErrorOverflow
	}
	return w.data, nil
}

// Reset clears the writer for reuse.
func (w *BitWriter) Reset() {
	w.data = w.data[:0]
	w.acc = 0
	w.nbits = 0
}

// BitReader extracts sub-byte fields from a byte buffer, in the
// same packing direction the writer used.
type BitReader struct {
	order BitOrder
	data  []byte
	ofs   int
	acc   uint64
	nbits int
}

// NewBitReader creates a bit reader over data, starting at the byte
// offset ofs.
func NewBitReader(data []byte, ofs int, order BitOrder) *BitReader {
	return &BitReader{
		order: order,
		data:  data,
		ofs:   ofs,
	}
}

// ReadBits consumes the next n bits.
func (r *BitReader) ReadBits(n int) (uint64, error) {
	if n < 1 || n > 56 {
		return 0, ErrorOverflow
	}
	for r.nbits < n {
		if r.ofs >= len(r.data) {
			return 0, ErrorTruncated
		}
		if r.order == MSBFirst {
			r.acc = r.acc<<8 | uint64(r.data[r.ofs])
		} else {
			r.acc |= uint64(r.data[r.ofs]) << uint(r.nbits)
		}
		r.ofs++
		r.nbits += 8
	}

	var v uint64
	if r.order == MSBFirst {
		v = r.acc >> uint(r.nbits-n)
		r.nbits -= n
		r.acc &= 1<<uint(r.nbits) - 1
	} else {
		v = r.acc & (1<<uint(n) - 1)
		r.acc >>= uint(n)
		r.nbits -= n
	}
	return v, nil
}

// Aligned reports whether the reader is at a byte boundary.
func (r *BitReader) Aligned() bool {
	return r.nbits == 0
}

// Offset returns the byte offset of the next unread byte. It is
// meaningful only when the reader is byte-aligned.
func (r *BitReader) Offset() int {
	return r.ofs
}

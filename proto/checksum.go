//
// checksum.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package proto

import (
	"github.com/markkurossi/pkt/layer"
)

// Checksum computes the Internet checksum for the data. A buffer
// carrying a valid embedded checksum sums to zero.
func Checksum(data []byte) uint16 {
	var sum uint32 = 0xffff
	var i int

	for i = 0; i < len(data); i += 2 {
		if i+1 < len(data) {
			sum += uint32(data[i])<<8 | uint32(data[i+1])
		} else {
			sum += uint32(data[i]) << 8
		}
		if sum > 0xffff {
			sum -= 0xffff
		}
	}
	return uint16(^sum)
}

// pseudoHeader builds the IPv4 pseudo header covering a transport
// segment of the given length.
//
//  0      7 8     15 16    23 24    31
// +--------+--------+--------+--------+
// |          source address           |
// +--------+--------+--------+--------+
// |        destination address        |
// +--------+--------+--------+--------+
// |  zero  |protocol|  segment length |
// +--------+--------+--------+--------+
func pseudoHeader(ip *layer.Instance, protocol Protocol, length int) []byte {
	phdr := make([]byte, 0, 12)
	phdr = append(phdr, ip.Bytes("src")...)
	phdr = append(phdr, ip.Bytes("dst")...)
	phdr = append(phdr, 0, byte(protocol),
		byte(length>>8), byte(length))
	return phdr
}

// transportChecksum finalizes a UDP or TCP checksum field over the
// IPv4 pseudo header, the segment header, and the payload. Without
// an enclosing IPv4 layer the checksum is left zero.
func transportChecksum(protocol Protocol) layer.FinalizeFunc {
	return func(ctx *layer.FinalizeContext) uint64 {
		if ctx.Outer == nil || ctx.Outer.Schema() != IPv4 {
			return 0
		}
		length := len(ctx.Header) + len(ctx.Payload)
		data := pseudoHeader(ctx.Outer, protocol, length)
		data = append(data, ctx.Header...)
		data = append(data, ctx.Payload...)

		return uint64(Checksum(data))
	}
}

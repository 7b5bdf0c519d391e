//
// ipv4.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package proto

import (
	"bytes"

	"github.com/markkurossi/pkt/layer"
)

// IPv4 is the IP version 4 header. The total length and the header
// checksum are deferred: length is patched once the payload size is
// known, and the checksum last, over the patched header bytes. The
// options field derives its length from the IHL.
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |Version|  IHL  |Type of Service|          Total Length         |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |         Identification        |Flags|      Fragment Offset    |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |  Time to Live |    Protocol   |         Header Checksum       |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                       Source Address                          |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                    Destination Address                        |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                    Options                    |    Padding    |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
var IPv4 = layer.MustCompile("IPv4", []*layer.FieldSpec{
	layer.Bits("version", 4, 4),
	layer.Bits("ihl", 5, 4),
	layer.Uint8("tos", 0),
	layer.Deferred("len", 2, func(ctx *layer.FinalizeContext) uint64 {
		return uint64(len(ctx.Header) + len(ctx.Payload))
	}),
	layer.Uint16("id", 1),
	layer.Bits("flags", 0, 3),
	layer.Bits("frag", 0, 13),
	layer.Uint8("ttl", 64),
	layer.Enum("proto", 0, 1, IPProtocols),
	layer.Checksum("chksum", 2, func(ctx *layer.FinalizeContext) uint64 {
		return uint64(Checksum(ctx.Header))
	}),
	layer.Bytes("src", IP("0.0.0.0"), 4).WithRepr(ipRepr),
	layer.Bytes("dst", IP("127.0.0.1"), 4).WithRepr(ipRepr),
	layer.VarBytes("options", "ihl", func(stored uint64) int {
		return (int(stored) - 5) * 4
	}),
}, layer.WithDiscriminator("proto"),
	layer.WithAnswers(func(self, other *layer.Instance) bool {
		// A response travels the reverse path.
		return bytes.Equal(self.Bytes("src"), other.Bytes("dst")) &&
			bytes.Equal(self.Bytes("dst"), other.Bytes("src")) &&
			self.Uint("proto") == other.Uint("proto")
	}))

//
// udp.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package proto

import (
	"github.com/markkurossi/pkt/layer"
)

// UDPHeaderLen defines the length of the UDP datagram header.
const UDPHeaderLen = 8

// UDP is the UDP datagram header. The length field is deferred to
// header plus payload size; the checksum covers the IPv4 pseudo
// header and is patched last.
//
//  0      7 8     15 16    23 24    31
// +--------+--------+--------+--------+
// |     Source      |   Destination   |
// |      Port       |      Port       |
// +--------+--------+--------+--------+
// |                 |                 |
// |     Length      |    Checksum     |
// +--------+--------+--------+--------+
// |
// |          data octets ...
// +---------------- ...
var UDP = layer.MustCompile("UDP", []*layer.FieldSpec{
	layer.Uint16("sport", 53),
	layer.Uint16("dport", 53),
	layer.LenOf("len", 2, "", func(n int) int {
		return n + UDPHeaderLen
	}),
	layer.Checksum("chksum", 2, transportChecksum(ProtoUDP)),
}, layer.WithDiscriminator("dport"),
	layer.WithAnswers(func(self, other *layer.Instance) bool {
		return self.Uint("sport") == other.Uint("dport") &&
			self.Uint("dport") == other.Uint("sport")
	}))

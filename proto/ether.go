//
// ether.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package proto

import (
	"github.com/markkurossi/pkt/layer"
)

// EtherTypes names the Ethertype values the catalog knows.
var EtherTypes = map[uint64]string{
	0x0800: "IPv4",
	0x0806: "ARP",
	0x8100: "802.1Q",
	0x86dd: "IPv6",
	0x8847: "MPLS",
}

// Ether is the Ethernet II frame header. The Ethertype selects the
// next layer.
var Ether = layer.MustCompile("Ethernet", []*layer.FieldSpec{
	layer.Bytes("dst", MAC("ff:ff:ff:ff:ff:ff"), 6).WithRepr(macRepr),
	layer.Bytes("src", nil, 6).WithRepr(macRepr),
	layer.Enum("type", 0x0800, 2, EtherTypes),
}, layer.WithDiscriminator("type"))

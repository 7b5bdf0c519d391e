//
// arp.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package proto

import (
	"github.com/markkurossi/pkt/layer"
)

// ARPOps names the ARP operation codes.
var ARPOps = map[uint64]string{
	1: "who-has",
	2: "is-at",
	3: "RARP-req",
	4: "RARP-rep",
}

// ARP is the address resolution protocol header. The address
// fields take their lengths from the hwlen and plen fields, so the
// schema covers any hardware/protocol address combination.
var ARP = layer.MustCompile("ARP", []*layer.FieldSpec{
	layer.Uint16("hwtype", 1),
	layer.Enum("ptype", 0x0800, 2, EtherTypes),
	layer.Uint8("hwlen", 6),
	layer.Uint8("plen", 4),
	layer.Enum("op", 1, 2, ARPOps),
	layer.VarBytes("hwsrc", "hwlen", nil).
		WithDefault(make([]byte, 6)).WithRepr(macRepr),
	layer.VarBytes("psrc", "plen", nil).
		WithDefault(make([]byte, 4)).WithRepr(ipRepr),
	layer.VarBytes("hwdst", "hwlen", nil).
		WithDefault(make([]byte, 6)).WithRepr(macRepr),
	layer.VarBytes("pdst", "plen", nil).
		WithDefault(make([]byte, 4)).WithRepr(ipRepr),
}, layer.WithAnswers(func(self, other *layer.Instance) bool {
	return self.Uint("op") == 2 && other.Uint("op") == 1
}))

//
// proto.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

// Package proto defines the built-in protocol catalog: Ethernet,
// ARP, IPv4, UDP, TCP, and DNS schemas, registered into the default
// dispatch registry. The schemas are data; all construction and
// dissection logic lives in the layer package.
package proto

import (
	"fmt"

	"github.com/markkurossi/pkt/layer"
)

// Protocol is an IP protocol number.
type Protocol uint8

// IP protocol numbers.
const (
	ProtoICMP Protocol = 1
	ProtoTCP  Protocol = 6
	ProtoUDP  Protocol = 17
)

// IPProtocols names the IP protocol numbers the catalog knows.
var IPProtocols = map[uint64]string{
	1:  "ICMP",
	2:  "IGMP",
	6:  "TCP",
	17: "UDP",
	41: "IPv6",
	89: "OSPF",
}

func (p Protocol) String() string {
	name, ok := IPProtocols[uint64(p)]
	if ok {
		return name
	}
	return fmt.Sprintf("{Protocol %d}", uint8(p))
}

func init() {
	layer.Bind(Ether, 0x0800, IPv4)
	layer.Bind(Ether, 0x0806, ARP)

	layer.Bind(IPv4, uint64(ProtoTCP), TCP)
	layer.Bind(IPv4, uint64(ProtoUDP), UDP)

	layer.Bind(UDP, 53, DNS)
	layer.Bind(UDP, 5353, DNS)
}

// Finalize freezes the default registry. Applications call it once
// their own bindings are registered, before dissecting from
// multiple goroutines.
func Finalize() {
	layer.Finalize()
}

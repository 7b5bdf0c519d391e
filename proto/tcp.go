//
// tcp.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package proto

import (
	"strings"

	"github.com/markkurossi/pkt/layer"
)

// TCP flag bits, in the 9-bit flags field.
const (
	TCPFin = 0x001
	TCPSyn = 0x002
	TCPRst = 0x004
	TCPPsh = 0x008
	TCPAck = 0x010
	TCPUrg = 0x020
	TCPEce = 0x040
	TCPCwr = 0x080
	TCPNs  = 0x100
)

var tcpFlagNames = []struct {
	bit  uint64
	name string
}{
	{TCPNs, "N"},
	{TCPCwr, "C"},
	{TCPEce, "E"},
	{TCPUrg, "U"},
	{TCPAck, "A"},
	{TCPPsh, "P"},
	{TCPRst, "R"},
	{TCPSyn, "S"},
	{TCPFin, "F"},
}

func tcpFlagsRepr(v any) string {
	flags, ok := v.(uint64)
	if !ok {
		return ""
	}
	sb := new(strings.Builder)
	for _, f := range tcpFlagNames {
		if flags&f.bit != 0 {
			sb.WriteString(f.name)
		}
	}
	return sb.String()
}

// TCP is the TCP segment header. The data offset drives the length
// of the options field; the checksum covers the IPv4 pseudo header.
var TCP = layer.MustCompile("TCP", []*layer.FieldSpec{
	layer.Uint16("sport", 20),
	layer.Uint16("dport", 80),
	layer.Uint32("seq", 0),
	layer.Uint32("ack", 0),
	layer.Bits("dataofs", 5, 4),
	layer.Bits("reserved", 0, 3),
	layer.Bits("flags", TCPSyn, 9).WithRepr(tcpFlagsRepr),
	layer.Uint16("window", 8192),
	layer.Checksum("chksum", 2, transportChecksum(ProtoTCP)),
	layer.Uint16("urgptr", 0),
	layer.VarBytes("options", "dataofs", func(stored uint64) int {
		return (int(stored) - 5) * 4
	}),
}, layer.WithDiscriminator("dport"),
	layer.WithAnswers(func(self, other *layer.Instance) bool {
		return self.Uint("sport") == other.Uint("dport") &&
			self.Uint("dport") == other.Uint("sport")
	}))

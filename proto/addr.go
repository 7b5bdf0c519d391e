//
// addr.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package proto

import (
	"fmt"
	"net"
)

// IP returns the 4-byte form of a dotted-quad IPv4 address, nil if
// the string does not parse.
func IP(addr string) []byte {
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil
	}
	return ip.To4()
}

// MAC returns the 6-byte form of a colon-separated hardware
// address, nil if the string does not parse.
func MAC(addr string) []byte {
	hw, err := net.ParseMAC(addr)
	if err != nil {
		return nil
	}
	return hw
}

func ipRepr(v any) string {
	b, ok := v.([]byte)
	if !ok || len(b) != 4 {
		return fmt.Sprintf("%x", v)
	}
	return net.IP(b).String()
}

func macRepr(v any) string {
	b, ok := v.([]byte)
	if !ok || len(b) == 0 {
		return fmt.Sprintf("%x", v)
	}
	return net.HardwareAddr(b).String()
}

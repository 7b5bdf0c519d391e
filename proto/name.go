//
// name.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package proto

import (
	"strings"

	"github.com/markkurossi/pkt/layer"
	"github.com/markkurossi/pkt/wire"
)

// Name is a DNS domain name as a sequence of labels.
type Name []string

// ParseName splits a dotted name into labels.
func ParseName(name string) Name {
	if len(name) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(name, "."), ".")
}

func (n Name) String() string {
	return strings.Join(n, ".")
}

// maxNamePtrs bounds compression pointer chains so hostile inputs
// cannot loop the decoder.
const maxNamePtrs = 16

// nameCodec encodes DNS names as length-prefixed labels with an
// empty terminator. Decoding accepts compression pointers reaching
// backwards into the message; encoding never emits them.
type nameCodec struct{}

// Encode implements layer.Codec.
func (nameCodec) Encode(v any, data []byte) ([]byte, error) {
	var name Name
	switch val := v.(type) {
	case Name:
		name = val
	case string:
		name = ParseName(val)
	case nil:

	default:
		return nil, layer.ErrorValue
	}
	for _, label := range name {
		if len(label) > 63 {
			return nil, wire.ErrorOverflow
		}
		data = append(data, byte(len(label)))
		data = append(data, label...)
	}
	// Labels are terminated with an empty element.
	return append(data, 0), nil
}

// Decode implements layer.Codec.
func (nameCodec) Decode(data []byte, ofs int) (any, int, error) {
	name, end, err := parseLabels(data, ofs, 0)
	if err != nil {
		return nil, 0, err
	}
	return name, end - ofs, nil
}

func parseLabels(data []byte, ofs, ptrs int) (Name, int, error) {
	var name Name

	for ofs < len(data) {
		if data[ofs]&0xc0 == 0xc0 {
			// Compression pointer.
			if ptrs >= maxNamePtrs {
				return nil, ofs, layer.ErrorMalformed
			}
			offset, err := wire.Uint(data, ofs, 2, wire.BigEndian)
			if err != nil {
				return nil, ofs, err
			}
			ofs += 2

			pl, _, err := parseLabels(data, int(offset&0x3fff), ptrs+1)
			if err != nil {
				return nil, ofs, err
			}
			return append(name, pl...), ofs, nil
		}

		l := int(data[ofs])
		ofs++
		if l == 0 {
			return name, ofs, nil
		}
		if ofs+l > len(data) {
			return nil, ofs, wire.ErrorTruncated
		}
		name = append(name, string(data[ofs:ofs+l]))
		ofs += l
	}
	return nil, ofs, wire.ErrorTruncated
}

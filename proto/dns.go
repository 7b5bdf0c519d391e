//
// dns.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package proto

import (
	"github.com/markkurossi/pkt/layer"
)

// DNSTypes names the resource record types the catalog knows.
var DNSTypes = map[uint64]string{
	1:   "A",
	2:   "NS",
	5:   "CNAME",
	6:   "SOA",
	12:  "PTR",
	15:  "MX",
	16:  "TXT",
	28:  "AAAA",
	33:  "SRV",
	41:  "OPT",
	255: "ANY",
}

// DNSClasses names the resource record classes.
var DNSClasses = map[uint64]string{
	1:   "IN",
	3:   "CH",
	255: "ANY",
}

// DNSOpcodes names the query opcodes.
var DNSOpcodes = map[uint64]string{
	0: "QUERY",
	1: "IQUERY",
	2: "STATUS",
}

// DNSRcodes names the response codes.
var DNSRcodes = map[uint64]string{
	0: "NoError",
	1: "FormErr",
	2: "ServFail",
	3: "NXDomain",
	4: "NotImp",
	5: "Refused",
}

func nameRepr(v any) string {
	n, ok := v.(Name)
	if !ok {
		return ""
	}
	return n.String()
}

// DNSQuestion is one entry of the question section.
var DNSQuestion = layer.MustCompile("DNSQuestion", []*layer.FieldSpec{
	layer.Custom("name", nil, nameCodec{}).WithRepr(nameRepr),
	layer.Enum("qtype", 1, 2, DNSTypes),
	layer.Enum("qclass", 1, 2, DNSClasses),
})

// DNSRR is one resource record of the answer, authority, and
// additional sections. The RDATA length is deferred to the encoded
// size of the rdata field.
//
//                                 1  1  1  1  1  1
//   0  1  2  3  4  5  6  7  8  9  0  1  2  3  4  5
// +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
// |                                               |
// /                      NAME                     /
// |                                               |
// +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
// |                      TYPE                     |
// +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
// |                     CLASS                     |
// +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
// |                      TTL                      |
// |                                               |
// +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
// |                   RDLENGTH                    |
// +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--|
// /                     RDATA                     /
// +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
var DNSRR = layer.MustCompile("DNSRR", []*layer.FieldSpec{
	layer.Custom("name", nil, nameCodec{}).WithRepr(nameRepr),
	layer.Enum("type", 1, 2, DNSTypes),
	layer.Enum("class", 1, 2, DNSClasses),
	layer.Uint32("ttl", 0),
	layer.LenOf("rdlen", 2, "rdata", nil),
	layer.VarBytes("rdata", "rdlen", nil),
})

// DNS is the DNS message: the header with its flag bit group and
// four section counts, followed by the counted sections. The
// counts are deferred to the section lengths at build time.
//
//                                 1  1  1  1  1  1
//   0  1  2  3  4  5  6  7  8  9  0  1  2  3  4  5
// +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
// |                      ID                       |
// +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
// |QR|   Opcode  |AA|TC|RD|RA|   Z    |   RCODE   |
// +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
// |                    QDCOUNT                    |
// +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
// |                    ANCOUNT                    |
// +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
// |                    NSCOUNT                    |
// +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
// |                    ARCOUNT                    |
// +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
var DNS = layer.MustCompile("DNS", []*layer.FieldSpec{
	layer.Uint16("id", 0),
	layer.Bits("qr", 0, 1),
	layer.Bits("opcode", 0, 4),
	layer.Bits("aa", 0, 1),
	layer.Bits("tc", 0, 1),
	layer.Bits("rd", 1, 1),
	layer.Bits("ra", 0, 1),
	layer.Bits("z", 0, 3),
	layer.Bits("rcode", 0, 4),
	layer.CountOf("qdcount", 2, "qd"),
	layer.CountOf("ancount", 2, "an"),
	layer.CountOf("nscount", 2, "ns"),
	layer.CountOf("arcount", 2, "ar"),
	layer.Layers("qd", DNSQuestion, "qdcount"),
	layer.Layers("an", DNSRR, "ancount"),
	layer.Layers("ns", DNSRR, "nscount"),
	layer.Layers("ar", DNSRR, "arcount"),
}, layer.WithAnswers(func(self, other *layer.Instance) bool {
	return self.Uint("id") == other.Uint("id") &&
		self.Uint("qr") == 1 && other.Uint("qr") == 0
}))

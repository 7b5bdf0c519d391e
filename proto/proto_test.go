//
// proto_test.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package proto

import (
	"testing"

	"github.com/markkurossi/pkt/layer"
	"gotest.tools/v3/assert"
)

func TestEtherIPv4UDPRoundTrip(t *testing.T) {
	payload := []byte("hello")

	stack := layer.NewStack(
		layer.New(Ether).
			Set("src", MAC("02:00:00:00:00:01")).
			Set("dst", MAC("02:00:00:00:00:02")),
		layer.New(IPv4).
			Set("proto", uint64(ProtoUDP)).
			Set("src", IP("10.0.0.1")).
			Set("dst", IP("10.0.0.2")),
		layer.New(UDP).
			Set("sport", 1234).
			Set("dport", 9999),
		layer.New(layer.Raw).Set("load", payload),
	)
	data, err := stack.Build()
	assert.NilError(t, err)
	assert.Equal(t, len(data), 14+20+8+len(payload))

	got, err := layer.Dissect(Ether, data)
	assert.NilError(t, err)
	assert.NilError(t, got.Incomplete)
	assert.Equal(t, len(got.Layers), 4)

	eth := got.Layer(Ether)
	assert.Assert(t, eth != nil)
	assert.DeepEqual(t, eth.Bytes("src"), MAC("02:00:00:00:00:01"))
	assert.Equal(t, eth.Uint("type"), uint64(0x0800))

	ip := got.Layer(IPv4)
	assert.Assert(t, ip != nil)
	assert.Equal(t, ip.Uint("version"), uint64(4))
	assert.Equal(t, ip.Uint("ihl"), uint64(5))
	assert.Equal(t, ip.Uint("len"), uint64(20+8+len(payload)))
	assert.DeepEqual(t, ip.Bytes("dst"), IP("10.0.0.2"))

	// A header carrying a valid checksum sums to zero.
	assert.Equal(t, Checksum(ip.Contents()), uint16(0))

	udp := got.Layer(UDP)
	assert.Assert(t, udp != nil)
	assert.Equal(t, udp.Uint("sport"), uint64(1234))
	assert.Equal(t, udp.Uint("len"), uint64(UDPHeaderLen+len(payload)))

	assert.DeepEqual(t, got.Layers[3].Bytes("load"), payload)
}

func TestUDPChecksum(t *testing.T) {
	// Odd payload length exercises checksum padding.
	payload := []byte{0x01, 0x02, 0x03}

	stack := layer.NewStack(
		layer.New(IPv4).
			Set("proto", uint64(ProtoUDP)).
			Set("src", IP("192.168.1.1")).
			Set("dst", IP("192.168.1.2")),
		layer.New(UDP).Set("dport", 9999),
		layer.New(layer.Raw).Set("load", payload),
	)
	data, err := stack.Build()
	assert.NilError(t, err)

	got, err := layer.Dissect(IPv4, data)
	assert.NilError(t, err)
	udp := got.Layer(UDP)
	assert.Assert(t, udp != nil)

	// Pseudo header plus segment sums to zero when the embedded
	// checksum is valid.
	ip := got.Layer(IPv4)
	phdr := pseudoHeader(ip, ProtoUDP, UDPHeaderLen+len(payload))
	phdr = append(phdr, data[20:]...)
	assert.Equal(t, Checksum(phdr), uint16(0))
}

func TestUDPChecksumWithoutIP(t *testing.T) {
	// No enclosing IPv4 layer: the checksum stays zero.
	data, err := layer.NewStack(layer.New(UDP)).Build()
	assert.NilError(t, err)
	assert.Equal(t, data[6], byte(0))
	assert.Equal(t, data[7], byte(0))
}

func TestARPRoundTrip(t *testing.T) {
	req := layer.New(ARP).
		Set("op", 1).
		Set("hwsrc", MAC("02:00:00:00:00:01")).
		Set("psrc", IP("10.0.0.1")).
		Set("pdst", IP("10.0.0.2"))
	data, err := layer.NewStack(
		layer.New(Ether).Set("type", 0x0806),
		req,
	).Build()
	assert.NilError(t, err)

	got, err := layer.Dissect(Ether, data)
	assert.NilError(t, err)
	assert.Equal(t, len(got.Layers), 2)

	arp := got.Layer(ARP)
	assert.Assert(t, arp != nil)
	assert.Equal(t, arp.Uint("op"), uint64(1))
	assert.DeepEqual(t, arp.Bytes("hwsrc"), MAC("02:00:00:00:00:01"))
	assert.DeepEqual(t, arp.Bytes("pdst"), IP("10.0.0.2"))
	// Empty hardware destination decodes at its declared length.
	assert.Equal(t, len(arp.Bytes("hwdst")), 6)
}

func TestUnknownEthertype(t *testing.T) {
	data, err := layer.NewStack(
		layer.New(Ether).Set("type", 0x9999),
		layer.New(layer.Raw).Set("load", []byte{0xde, 0xad}),
	).Build()
	assert.NilError(t, err)

	got, err := layer.Dissect(Ether, data)
	assert.NilError(t, err)
	assert.Equal(t, len(got.Layers), 2)
	assert.Equal(t, got.Layers[1].Schema(), layer.Raw)
}

func TestTCPOptions(t *testing.T) {
	opts := []byte{0x02, 0x04, 0x05, 0xb4} // MSS 1460
	stack := layer.NewStack(
		layer.New(IPv4).
			Set("proto", uint64(ProtoTCP)).
			Set("src", IP("10.0.0.1")).
			Set("dst", IP("10.0.0.2")),
		layer.New(TCP).
			Set("sport", 43210).
			Set("dport", 80).
			Set("seq", 1000).
			Set("dataofs", 6).
			Set("options", opts),
	)
	data, err := stack.Build()
	assert.NilError(t, err)

	got, err := layer.Dissect(IPv4, data)
	assert.NilError(t, err)
	tcp := got.Layer(TCP)
	assert.Assert(t, tcp != nil)
	assert.Equal(t, tcp.Uint("dataofs"), uint64(6))
	assert.DeepEqual(t, tcp.Bytes("options"), opts)
	assert.Equal(t, tcp.Uint("flags"), uint64(TCPSyn))

	// Pseudo header plus segment sums to zero.
	phdr := pseudoHeader(got.Layer(IPv4), ProtoTCP, len(data)-20)
	phdr = append(phdr, data[20:]...)
	assert.Equal(t, Checksum(phdr), uint16(0))
}

func TestDNSQueryRoundTrip(t *testing.T) {
	q := layer.New(DNS).
		Set("id", 0x1234).
		Set("qd", []*layer.Instance{
			layer.New(DNSQuestion).Set("name", ParseName("www.example.com")),
		})
	data, err := layer.NewStack(q).Build()
	assert.NilError(t, err)

	got, _, err := DNS.Dissect(data)
	assert.NilError(t, err)
	assert.Equal(t, got.Uint("id"), uint64(0x1234))
	assert.Equal(t, got.Uint("qdcount"), uint64(1))
	assert.Equal(t, got.Uint("ancount"), uint64(0))

	qd := got.Sub("qd")
	assert.Equal(t, len(qd), 1)
	name, _ := qd[0].Value("name")
	assert.Equal(t, name.(Name).String(), "www.example.com")
	assert.Equal(t, qd[0].Uint("qtype"), uint64(1))
}

func TestDNSCompressionPointer(t *testing.T) {
	// A response whose answer name is a pointer to the question
	// name at offset 12.
	data := []byte{
		0x12, 0x34, // ID
		0x81, 0x80, // QR RD RA
		0x00, 0x01, // QDCOUNT
		0x00, 0x01, // ANCOUNT
		0x00, 0x00, // NSCOUNT
		0x00, 0x00, // ARCOUNT
		// Question: a.io A IN
		0x01, 'a', 0x02, 'i', 'o', 0x00,
		0x00, 0x01, 0x00, 0x01,
		// Answer: ptr(12) A IN 60s 1.2.3.4
		0xc0, 0x0c,
		0x00, 0x01, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x3c,
		0x00, 0x04,
		0x01, 0x02, 0x03, 0x04,
	}
	got, n, err := DNS.Dissect(data)
	assert.NilError(t, err)
	assert.Equal(t, n, len(data))

	assert.Equal(t, got.Uint("qr"), uint64(1))
	assert.Equal(t, got.Uint("rd"), uint64(1))
	assert.Equal(t, got.Uint("ra"), uint64(1))

	an := got.Sub("an")
	assert.Equal(t, len(an), 1)
	name, _ := an[0].Value("name")
	assert.Equal(t, name.(Name).String(), "a.io")
	assert.Equal(t, an[0].Uint("ttl"), uint64(60))
	assert.DeepEqual(t, an[0].Bytes("rdata"), []byte{0x01, 0x02, 0x03, 0x04})
}

func TestDNSAnswers(t *testing.T) {
	query := layer.NewStack(
		layer.New(UDP).Set("sport", 40000).Set("dport", 53),
		layer.New(DNS).Set("id", 7),
	)
	response := layer.NewStack(
		layer.New(UDP).Set("sport", 53).Set("dport", 40000),
		layer.New(DNS).Set("id", 7).Set("qr", 1),
	)
	wrongID := layer.NewStack(
		layer.New(UDP).Set("sport", 53).Set("dport", 40000),
		layer.New(DNS).Set("id", 8).Set("qr", 1),
	)
	wrongPort := layer.NewStack(
		layer.New(UDP).Set("sport", 53).Set("dport", 40001),
		layer.New(DNS).Set("id", 7).Set("qr", 1),
	)

	assert.Assert(t, response.Answers(query))
	assert.Assert(t, !wrongID.Answers(query))
	assert.Assert(t, !wrongPort.Answers(query))
}

func TestIPv4Options(t *testing.T) {
	opts := []byte{0x01, 0x01, 0x01, 0x01} // NOPs
	stack := layer.NewStack(
		layer.New(IPv4).
			Set("ihl", 6).
			Set("options", opts).
			Set("src", IP("10.0.0.1")).
			Set("dst", IP("10.0.0.2")),
	)
	data, err := stack.Build()
	assert.NilError(t, err)
	assert.Equal(t, len(data), 24)

	got, err := layer.Dissect(IPv4, data)
	assert.NilError(t, err)
	ip := got.Layer(IPv4)
	assert.DeepEqual(t, ip.Bytes("options"), opts)
	assert.Equal(t, Checksum(ip.Contents()), uint16(0))
}

func TestNameRoundTrip(t *testing.T) {
	codec := nameCodec{}
	data, err := codec.Encode(ParseName("mail.example.org"), nil)
	assert.NilError(t, err)

	v, n, err := codec.Decode(data, 0)
	assert.NilError(t, err)
	assert.Equal(t, n, len(data))
	assert.Equal(t, v.(Name).String(), "mail.example.org")

	// Root name is a single zero byte.
	data, err = codec.Encode(nil, nil)
	assert.NilError(t, err)
	assert.DeepEqual(t, data, []byte{0x00})
}

//
// gp.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

// Package gp bridges layer schemas to gopacket. Schemas get
// gopacket layer types on demand, so dissected packets can flow
// into gopacket-based tooling (pcap writers, packet sources,
// BPF-filtered captures) and schema-built stacks can serialize
// through gopacket.SerializeLayers.
package gp

import (
	"sync"

	"github.com/gopacket/gopacket"
	"github.com/markkurossi/pkt/layer"
)

// Layer type numbers below 1000 are reserved by gopacket.
const layerTypeBase = 1700

var (
	mu       sync.Mutex
	nextNum  = layerTypeBase
	types    = make(map[*layer.Schema]gopacket.LayerType)
	registry = layer.DefaultRegistry
)

// SetRegistry sets the registry gopacket decoders use to chain
// layers. The default is the process-wide registry.
func SetRegistry(r *layer.Registry) {
	mu.Lock()
	registry = r
	mu.Unlock()
}

// LayerType returns the gopacket layer type of the schema. The
// first call for a schema registers a decoder under a private-use
// type number.
func LayerType(s *layer.Schema) gopacket.LayerType {
	mu.Lock()
	defer mu.Unlock()

	t, ok := types[s]
	if ok {
		return t
	}
	num := nextNum
	nextNum++

	t = gopacket.RegisterLayerType(num, gopacket.LayerTypeMetadata{
		Name:    s.Name,
		Decoder: decoder(s),
	})
	types[s] = t
	return t
}

func decoder(s *layer.Schema) gopacket.DecodeFunc {
	return func(data []byte, p gopacket.PacketBuilder) error {
		inst, n, err := s.Dissect(data)
		if err != nil {
			return err
		}
		p.AddLayer(&Layer{
			inst:    inst,
			payload: data[n:],
		})
		if n >= len(data) {
			return nil
		}
		if len(s.Discriminator) == 0 {
			return p.NextDecoder(gopacket.LayerTypePayload)
		}
		mu.Lock()
		r := registry
		mu.Unlock()
		next := r.Lookup(s, inst.Uint(s.Discriminator))
		return p.NextDecoder(LayerType(next))
	}
}

// Layer adapts a dissected instance to the gopacket.Layer
// interface.
type Layer struct {
	inst    *layer.Instance
	payload []byte
}

// Instance returns the wrapped layer instance.
func (l *Layer) Instance() *layer.Instance {
	return l.inst
}

// LayerType implements gopacket.Layer.LayerType.
func (l *Layer) LayerType() gopacket.LayerType {
	return LayerType(l.inst.Schema())
}

// LayerContents implements gopacket.Layer.LayerContents.
func (l *Layer) LayerContents() []byte {
	return l.inst.Contents()
}

// LayerPayload implements gopacket.Layer.LayerPayload.
func (l *Layer) LayerPayload() []byte {
	return l.payload
}

func (l *Layer) String() string {
	return l.inst.String()
}

// Packet decodes data as a gopacket packet whose outermost layer
// is the given schema.
func Packet(s *layer.Schema, data []byte) gopacket.Packet {
	return gopacket.NewPacket(data, LayerType(s), gopacket.Default)
}

// Serializable adapts a layer instance to
// gopacket.SerializableLayer. The serialize buffer's content at
// serialization time is the instance's payload, so deferred
// lengths and checksums finalize over the already-built inner
// layers.
type Serializable struct {
	inst  *layer.Instance
	outer *layer.Instance
}

// NewSerializable wraps a standalone instance. Instances that need
// their enclosing layer for finalization (transport checksums)
// must go through SerializableLayers instead.
func NewSerializable(inst *layer.Instance) *Serializable {
	return &Serializable{
		inst: inst,
	}
}

// LayerType implements gopacket.SerializableLayer.LayerType.
func (s *Serializable) LayerType() gopacket.LayerType {
	return LayerType(s.inst.Schema())
}

// SerializeTo implements gopacket.SerializableLayer.SerializeTo.
func (s *Serializable) SerializeTo(b gopacket.SerializeBuffer,
	opts gopacket.SerializeOptions) error {

	hdr, err := s.inst.Serialize(b.Bytes(), s.outer)
	if err != nil {
		return err
	}
	buf, err := b.PrependBytes(len(hdr))
	if err != nil {
		return err
	}
	copy(buf, hdr)
	return nil
}

// SerializableLayers adapts a stack for gopacket.SerializeLayers,
// outermost first, wiring each layer's enclosing instance for
// finalization.
func SerializableLayers(stack *layer.Stack) []gopacket.SerializableLayer {
	out := make([]gopacket.SerializableLayer, len(stack.Layers))
	for i, inst := range stack.Layers {
		sl := &Serializable{
			inst: inst,
		}
		if i > 0 {
			sl.outer = stack.Layers[i-1]
		}
		out[i] = sl
	}
	return out
}

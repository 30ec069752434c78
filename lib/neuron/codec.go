// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package neuron

import (
	"math"

	"github.com/bureau-foundation/connector/lib/bytestructure"
	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/fault"
)

const (
	// areaHeaderSize is cortical_id [6]byte + neuron_count u32.
	areaHeaderSize = cortical.IDLength + 4

	// pointSize is x, y, z u32 + p f32.
	pointSize = 16
)

// Encode serializes the map into a NeuronCategoricalXYZP structure.
// Areas are written in insertion order.
func (m *Map) Encode() (bytestructure.Structure, error) {
	if m.Len() > math.MaxUint16 {
		return bytestructure.Structure{}, fault.Validationf(
			"neuron map has %d areas, the format allows at most %d", m.Len(), math.MaxUint16)
	}

	bodySize := 2
	for id, collection := range m.All() {
		if uint64(collection.Len()) > math.MaxUint32 {
			return bytestructure.Structure{}, fault.Validationf(
				"area %s has %d neurons, the format allows at most %d", id, collection.Len(), uint64(math.MaxUint32))
		}
		bodySize += areaHeaderSize + collection.Len()*pointSize
	}

	builder := bytestructure.NewBuilder(bytestructure.TypeNeuronXYZP, bodySize)
	builder.PutUint16(uint16(m.Len()))
	for id, collection := range m.All() {
		builder.PutBytes(id[:])
		builder.PutUint32(uint32(collection.Len()))
		for _, point := range collection.points {
			builder.PutUint32(point.X)
			builder.PutUint32(point.Y)
			builder.PutUint32(point.Z)
			builder.PutFloat32(point.P)
		}
	}
	return builder.Finish(), nil
}

// Decode parses a NeuronCategoricalXYZP structure. It fails with a
// fault.ErrDecode error on a wrong type or version, truncated records,
// trailing bytes, invalid cortical IDs, or an area listed twice.
func Decode(structure bytestructure.Structure) (*Map, error) {
	if structure.Type() != bytestructure.TypeNeuronXYZP {
		return nil, fault.Decodef("neuron map: structure is %s, not %s",
			structure.Type(), bytestructure.TypeNeuronXYZP)
	}
	if structure.Version() != bytestructure.Version {
		return nil, fault.Decodef("neuron map: version %d is not supported", structure.Version())
	}

	reader := structure.NewReader()
	areaCount, err := reader.Uint16("area count")
	if err != nil {
		return nil, err
	}

	neurons := NewMap()
	for area := range int(areaCount) {
		idBytes, err := reader.Bytes("cortical id", cortical.IDLength)
		if err != nil {
			return nil, err
		}
		id, err := cortical.IDFromBytes(idBytes)
		if err != nil {
			return nil, fault.Decodef("neuron map: area %d: %v", area, err)
		}
		if neurons.Contains(id) {
			return nil, fault.Decodef("neuron map: area %s appears more than once", id)
		}

		neuronCount, err := reader.Uint32("neuron count")
		if err != nil {
			return nil, err
		}
		// Check the declared count against what is left before
		// allocating, so a corrupt count cannot force a huge slice.
		if uint64(neuronCount)*pointSize > uint64(reader.Remaining()) {
			return nil, fault.Decodef("neuron map: area %s declares %d neurons (%d bytes) but only %d bytes remain",
				id, neuronCount, uint64(neuronCount)*pointSize, reader.Remaining())
		}

		collection := NewCollection(int(neuronCount))
		for range neuronCount {
			point, err := readPoint(reader)
			if err != nil {
				return nil, err
			}
			collection.Append(point)
		}
		neurons.Insert(id, collection)
	}

	if reader.Remaining() != 0 {
		return nil, fault.Decodef("neuron map: %d trailing bytes after %d areas", reader.Remaining(), areaCount)
	}
	return neurons, nil
}

func readPoint(reader *bytestructure.Reader) (Point, error) {
	var point Point
	var err error
	if point.X, err = reader.Uint32("neuron x"); err != nil {
		return Point{}, err
	}
	if point.Y, err = reader.Uint32("neuron y"); err != nil {
		return Point{}, err
	}
	if point.Z, err = reader.Uint32("neuron z"); err != nil {
		return Point{}, err
	}
	if point.P, err = reader.Float32("neuron potential"); err != nil {
		return Point{}, err
	}
	return point, nil
}

// DecodeBytes parses raw payload bytes holding either a single neuron
// structure or a holder whose first neuron structure is taken.
func DecodeBytes(data []byte) (*Map, error) {
	structure, err := bytestructure.FromBytes(data)
	if err != nil {
		return nil, err
	}
	for index, structureType := range structure.Types() {
		if structureType != bytestructure.TypeNeuronXYZP {
			continue
		}
		leaf, err := structure.Extract(index)
		if err != nil {
			return nil, err
		}
		return Decode(leaf)
	}
	return nil, fault.Decodef("payload holds no %s structure", bytestructure.TypeNeuronXYZP)
}

var _ bytestructure.Encodable = (*Map)(nil)

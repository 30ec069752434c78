// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bytestructure

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/connector/lib/fault"
)

// Type identifies what a structure's body contains. These values are
// protocol constants.
type Type uint8

const (
	TypeJSON        Type = 1
	TypeMultiStruct Type = 9
	TypeNeuronXYZP  Type = 11
)

// String returns the snake_case type name.
func (t Type) String() string {
	switch t {
	case TypeJSON:
		return "json"
	case TypeMultiStruct:
		return "multi_struct"
	case TypeNeuronXYZP:
		return "neuron_xyzp"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

func (t Type) known() bool {
	switch t {
	case TypeJSON, TypeMultiStruct, TypeNeuronXYZP:
		return true
	default:
		return false
	}
}

const (
	// Version is the format version written into every header.
	Version = 1

	// HeaderSize is the length of the type + version header.
	HeaderSize = 2

	// multiDirectoryEntrySize is one holder directory entry: offset
	// u32 + length u32.
	multiDirectoryEntrySize = 8

	// MaxMultiCount is the largest number of structures one holder can
	// carry (the count field is one byte).
	MaxMultiCount = 255
)

// Encodable is implemented by objects that serialize into a single
// structure.
type Encodable interface {
	Encode() (Structure, error)
}

// Structure is an immutable encoded object or holder of objects. The
// zero value holds no bytes and is rejected by every consumer.
type Structure struct {
	data []byte
}

// FromBytes validates data as a structure and returns an owned copy.
// The header must name a known type and version 1; holder directories
// must tile the remaining bytes exactly, and JSON bodies must be valid
// JSON.
func FromBytes(data []byte) (Structure, error) {
	owned := bytes.Clone(data)
	if err := validate(owned, true); err != nil {
		return Structure{}, err
	}
	return Structure{data: owned}, nil
}

func validate(data []byte, allowMulti bool) error {
	if len(data) < HeaderSize {
		return fault.Decodef("byte structure: %d bytes is shorter than the %d-byte header", len(data), HeaderSize)
	}
	structureType := Type(data[0])
	if !structureType.known() {
		return fault.Decodef("byte structure: unknown structure type %d", data[0])
	}
	if data[1] != Version {
		return fault.Decodef("byte structure: %s version %d is not supported (this code supports version %d)",
			structureType, data[1], Version)
	}

	switch structureType {
	case TypeJSON:
		if !json.Valid(data[HeaderSize:]) {
			return fault.Decodef("byte structure: json body is not valid JSON")
		}
	case TypeMultiStruct:
		if !allowMulti {
			return fault.Decodef("byte structure: nested multi-struct holders are not allowed")
		}
		if _, err := readDirectory(data); err != nil {
			return err
		}
	case TypeNeuronXYZP:
		// The body layout belongs to lib/neuron, which validates it on
		// decode.
	}
	return nil
}

// span is one directory entry of a holder.
type span struct {
	offset uint32
	length uint32
}

// readDirectory parses and validates a holder directory. Entries must
// be contiguous, start right after the directory, cover every
// remaining byte, and each name a valid non-holder structure.
func readDirectory(data []byte) ([]span, error) {
	if len(data) < HeaderSize+1 {
		return nil, fault.Decodef("multi-struct: missing structure count")
	}
	count := int(data[HeaderSize])
	if count == 0 {
		return nil, fault.Decodef("multi-struct: holder declares zero structures")
	}
	directoryEnd := HeaderSize + 1 + count*multiDirectoryEntrySize
	if len(data) < directoryEnd {
		return nil, fault.Decodef("multi-struct: directory for %d structures needs %d bytes, have %d",
			count, directoryEnd, len(data))
	}

	spans := make([]span, count)
	expectedOffset := uint64(directoryEnd)
	for i := range spans {
		entry := data[HeaderSize+1+i*multiDirectoryEntrySize:]
		spans[i].offset = binary.LittleEndian.Uint32(entry[0:4])
		spans[i].length = binary.LittleEndian.Uint32(entry[4:8])

		if uint64(spans[i].offset) != expectedOffset {
			return nil, fault.Decodef("multi-struct: structure %d starts at offset %d, expected %d",
				i, spans[i].offset, expectedOffset)
		}
		end := uint64(spans[i].offset) + uint64(spans[i].length)
		if end > uint64(len(data)) {
			return nil, fault.Decodef("multi-struct: structure %d ends at %d, beyond holder length %d",
				i, end, len(data))
		}
		if err := validate(data[spans[i].offset:end], false); err != nil {
			return nil, fmt.Errorf("multi-struct: structure %d: %w", i, err)
		}
		expectedOffset = end
	}
	if expectedOffset != uint64(len(data)) {
		return nil, fault.Decodef("multi-struct: %d trailing bytes after the last structure",
			uint64(len(data))-expectedOffset)
	}
	return spans, nil
}

// IsZero reports whether s holds no bytes.
func (s Structure) IsZero() bool { return len(s.data) == 0 }

// Type returns the header's structure type. Zero for the zero value.
func (s Structure) Type() Type {
	if s.IsZero() {
		return 0
	}
	return Type(s.data[0])
}

// Version returns the header's format version.
func (s Structure) Version() uint8 {
	if s.IsZero() {
		return 0
	}
	return s.data[1]
}

// IsMulti reports whether s is a holder of other structures.
func (s Structure) IsMulti() bool { return s.Type() == TypeMultiStruct }

// Len returns the encoded size in bytes.
func (s Structure) Len() int { return len(s.data) }

// Count returns the number of leaf structures: the directory count for
// a holder, 1 for a single structure, 0 for the zero value.
func (s Structure) Count() int {
	switch {
	case s.IsZero():
		return 0
	case s.IsMulti():
		return int(s.data[HeaderSize])
	default:
		return 1
	}
}

// Types returns the structure type of each leaf in order.
func (s Structure) Types() []Type {
	if !s.IsMulti() {
		if s.IsZero() {
			return nil
		}
		return []Type{s.Type()}
	}
	spans := s.spans()
	types := make([]Type, len(spans))
	for i, entry := range spans {
		types[i] = Type(s.data[entry.offset])
	}
	return types
}

// spans reads the directory of a holder that has already passed
// validation.
func (s Structure) spans() []span {
	count := int(s.data[HeaderSize])
	spans := make([]span, count)
	for i := range spans {
		entry := s.data[HeaderSize+1+i*multiDirectoryEntrySize:]
		spans[i].offset = binary.LittleEndian.Uint32(entry[0:4])
		spans[i].length = binary.LittleEndian.Uint32(entry[4:8])
	}
	return spans
}

// Bytes returns an independent copy of the encoded bytes.
func (s Structure) Bytes() []byte { return bytes.Clone(s.data) }

// Equal reports whether two structures hold identical bytes.
func (s Structure) Equal(other Structure) bool { return bytes.Equal(s.data, other.data) }

// Extract returns an independent copy of leaf structure index. On a
// single structure, index 0 returns a copy of s itself.
func (s Structure) Extract(index int) (Structure, error) {
	if s.IsZero() {
		return Structure{}, fault.Validationf("extract from empty byte structure")
	}
	if index < 0 || index >= s.Count() {
		return Structure{}, fault.Validationf("structure index %d out of range (structure holds %d)", index, s.Count())
	}
	if !s.IsMulti() {
		return Structure{data: bytes.Clone(s.data)}, nil
	}
	entry := s.spans()[index]
	return Structure{data: bytes.Clone(s.data[entry.offset : entry.offset+entry.length])}, nil
}

// leaves returns every leaf structure, sharing s's buffer. Internal
// use only: callers copy before exposing.
func (s Structure) leaves() []Structure {
	if !s.IsMulti() {
		return []Structure{s}
	}
	spans := s.spans()
	leaves := make([]Structure, len(spans))
	for i, entry := range spans {
		leaves[i] = Structure{data: s.data[entry.offset : entry.offset+entry.length]}
	}
	return leaves
}

// Combine packs two structures into one holder. Holders among the
// inputs are flattened, so the result always has a flat directory.
func Combine(a, b Structure) (Structure, error) {
	return CombineAll([]Structure{a, b})
}

// CombineAll packs structures into one holder, flattening any holders
// among them. The inputs are copied; the result owns its buffer.
func CombineAll(structures []Structure) (Structure, error) {
	var leaves []Structure
	for i, structure := range structures {
		if structure.IsZero() {
			return Structure{}, fault.Validationf("combine: structure %d is empty", i)
		}
		leaves = append(leaves, structure.leaves()...)
	}
	if len(leaves) == 0 {
		return Structure{}, fault.Validationf("combine: no structures given")
	}
	if len(leaves) > MaxMultiCount {
		return Structure{}, fault.Validationf("combine: %d structures exceed the holder limit of %d",
			len(leaves), MaxMultiCount)
	}

	directoryEnd := HeaderSize + 1 + len(leaves)*multiDirectoryEntrySize
	total := directoryEnd
	for _, leaf := range leaves {
		total += leaf.Len()
	}
	if uint64(total) > uint64(^uint32(0)) {
		return Structure{}, fault.Validationf("combine: holder of %d bytes exceeds the 4 GiB offset range", total)
	}

	builder := NewBuilder(TypeMultiStruct, total-HeaderSize)
	builder.PutUint8(uint8(len(leaves)))
	offset := directoryEnd
	for _, leaf := range leaves {
		builder.PutUint32(uint32(offset))
		builder.PutUint32(uint32(leaf.Len()))
		offset += leaf.Len()
	}
	for _, leaf := range leaves {
		builder.PutBytes(leaf.data)
	}
	return builder.Finish(), nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bytestructure

import (
	"encoding/binary"
	"math"

	"github.com/bureau-foundation/connector/lib/fault"
)

// Builder appends a structure body after its header. The builder is
// single-use: after Finish, further writes panic.
type Builder struct {
	buffer   []byte
	finished bool
}

// NewBuilder starts a structure of the given type. bodyCapacity is a
// size hint for the body, excluding the header.
func NewBuilder(structureType Type, bodyCapacity int) *Builder {
	buffer := make([]byte, 0, HeaderSize+max(bodyCapacity, 0))
	buffer = append(buffer, byte(structureType), Version)
	return &Builder{buffer: buffer}
}

func (b *Builder) checkOpen() {
	if b.finished {
		panic("bytestructure: write to finished Builder")
	}
}

// PutUint8 appends one byte.
func (b *Builder) PutUint8(value uint8) {
	b.checkOpen()
	b.buffer = append(b.buffer, value)
}

// PutUint16 appends a little-endian uint16.
func (b *Builder) PutUint16(value uint16) {
	b.checkOpen()
	b.buffer = binary.LittleEndian.AppendUint16(b.buffer, value)
}

// PutUint32 appends a little-endian uint32.
func (b *Builder) PutUint32(value uint32) {
	b.checkOpen()
	b.buffer = binary.LittleEndian.AppendUint32(b.buffer, value)
}

// PutFloat32 appends the IEEE-754 bits of value, little-endian.
func (b *Builder) PutFloat32(value float32) {
	b.PutUint32(math.Float32bits(value))
}

// PutBytes appends raw bytes.
func (b *Builder) PutBytes(data []byte) {
	b.checkOpen()
	b.buffer = append(b.buffer, data...)
}

// Len returns the number of bytes written so far, header included.
func (b *Builder) Len() int { return len(b.buffer) }

// Finish freezes the written bytes into a Structure. The builder
// transfers ownership of its buffer and cannot be reused.
func (b *Builder) Finish() Structure {
	b.checkOpen()
	b.finished = true
	structure := Structure{data: b.buffer}
	b.buffer = nil
	return structure
}

// Reader walks a structure body. Every read past the end of the body
// returns a fault.ErrDecode error naming the field being read.
type Reader struct {
	data   []byte
	offset int
}

// NewReader returns a Reader positioned at the first body byte of s.
func (s Structure) NewReader() *Reader {
	if s.IsZero() {
		return &Reader{}
	}
	return &Reader{data: s.data, offset: HeaderSize}
}

// Remaining returns the number of unread body bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.offset }

func (r *Reader) take(field string, size int) ([]byte, error) {
	if r.Remaining() < size {
		return nil, fault.Decodef("truncated %s at offset %d: need %d bytes, have %d",
			field, r.offset, size, r.Remaining())
	}
	chunk := r.data[r.offset : r.offset+size]
	r.offset += size
	return chunk, nil
}

// Uint8 reads one byte.
func (r *Reader) Uint8(field string) (uint8, error) {
	chunk, err := r.take(field, 1)
	if err != nil {
		return 0, err
	}
	return chunk[0], nil
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16(field string) (uint16, error) {
	chunk, err := r.take(field, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(chunk), nil
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32(field string) (uint32, error) {
	chunk, err := r.take(field, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(chunk), nil
}

// Float32 reads little-endian IEEE-754 bits.
func (r *Reader) Float32(field string) (float32, error) {
	bits, err := r.Uint32(field)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// Bytes reads size raw bytes. The returned slice aliases the structure
// and must not be modified.
func (r *Reader) Bytes(field string, size int) ([]byte, error) {
	return r.take(field, size)
}

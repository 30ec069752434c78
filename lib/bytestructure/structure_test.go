// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bytestructure

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/bureau-foundation/connector/lib/fault"
)

func mustJSON(t *testing.T, text string) Structure {
	t.Helper()
	structure, err := NewRawJSON([]byte(text))
	if err != nil {
		t.Fatalf("NewRawJSON(%q): %v", text, err)
	}
	return structure
}

// rawXYZP builds a neuron structure with an opaque body. This package
// does not interpret neuron bodies, so any bytes are acceptable.
func rawXYZP(body ...byte) Structure {
	builder := NewBuilder(TypeNeuronXYZP, len(body))
	builder.PutBytes(body)
	return builder.Finish()
}

func TestFromBytesHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{name: "empty", data: nil, wantErr: true},
		{name: "one byte", data: []byte{1}, wantErr: true},
		{name: "unknown type", data: []byte{42, 1}, wantErr: true},
		{name: "future version", data: []byte{byte(TypeJSON), 2, '{', '}'}, wantErr: true},
		{name: "invalid json", data: []byte{byte(TypeJSON), 1, '{'}, wantErr: true},
		{name: "json", data: []byte{byte(TypeJSON), 1, '[', ']'}},
		{name: "neuron header only", data: []byte{byte(TypeNeuronXYZP), 1}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := FromBytes(test.data)
			if test.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, fault.ErrDecode) {
					t.Errorf("error %v does not wrap ErrDecode", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromBytes: %v", err)
			}
		})
	}
}

func TestFromBytesCopiesInput(t *testing.T) {
	t.Parallel()

	data := []byte{byte(TypeNeuronXYZP), 1, 7, 7}
	structure, err := FromBytes(data)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	data[2] = 0
	if got := structure.Bytes()[2]; got != 7 {
		t.Errorf("structure changed with caller buffer: byte 2 = %d, want 7", got)
	}

	out := structure.Bytes()
	out[3] = 0
	if got := structure.Bytes()[3]; got != 7 {
		t.Errorf("structure changed through Bytes() copy: byte 3 = %d, want 7", got)
	}
}

func TestCombineAndExtract(t *testing.T) {
	t.Parallel()

	first := mustJSON(t, `{"x":1}`)
	second := rawXYZP(1, 2, 3)

	combined, err := Combine(first, second)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if !combined.IsMulti() {
		t.Fatalf("combined type = %s, want multi_struct", combined.Type())
	}
	if combined.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", combined.Count())
	}
	types := combined.Types()
	if len(types) != 2 || types[0] != TypeJSON || types[1] != TypeNeuronXYZP {
		t.Errorf("Types() = %v, want [json neuron_xyzp]", types)
	}

	for index, want := range []Structure{first, second} {
		got, err := combined.Extract(index)
		if err != nil {
			t.Fatalf("Extract(%d): %v", index, err)
		}
		if !bytes.Equal(got.Bytes(), want.Bytes()) {
			t.Errorf("Extract(%d) = %x, want %x", index, got.Bytes(), want.Bytes())
		}
	}

	if _, err := combined.Extract(2); !errors.Is(err, fault.ErrValidation) {
		t.Errorf("Extract(2) error = %v, want ErrValidation", err)
	}

	// The holder survives a round trip through raw bytes.
	reparsed, err := FromBytes(combined.Bytes())
	if err != nil {
		t.Fatalf("FromBytes(combined): %v", err)
	}
	if !reparsed.Equal(combined) {
		t.Error("reparsed holder differs from original")
	}
}

func TestCombineLayout(t *testing.T) {
	t.Parallel()

	first := rawXYZP()
	second := rawXYZP(9)
	combined, err := Combine(first, second)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}

	data := combined.Bytes()
	directoryEnd := HeaderSize + 1 + 2*8
	want := []struct{ offset, length uint32 }{
		{uint32(directoryEnd), 2},
		{uint32(directoryEnd + 2), 3},
	}
	if data[0] != byte(TypeMultiStruct) || data[1] != Version || data[2] != 2 {
		t.Fatalf("header = %x, want 09 01 02", data[:3])
	}
	for i, entry := range want {
		base := HeaderSize + 1 + i*8
		offset := binary.LittleEndian.Uint32(data[base:])
		length := binary.LittleEndian.Uint32(data[base+4:])
		if offset != entry.offset || length != entry.length {
			t.Errorf("directory[%d] = (%d, %d), want (%d, %d)", i, offset, length, entry.offset, entry.length)
		}
	}
	if len(data) != directoryEnd+5 {
		t.Errorf("len = %d, want %d", len(data), directoryEnd+5)
	}
}

func TestCombineFlattensHolders(t *testing.T) {
	t.Parallel()

	a := mustJSON(t, `1`)
	b := mustJSON(t, `2`)
	c := mustJSON(t, `3`)

	inner, err := Combine(a, b)
	if err != nil {
		t.Fatalf("Combine(a, b): %v", err)
	}
	outer, err := Combine(inner, c)
	if err != nil {
		t.Fatalf("Combine(inner, c): %v", err)
	}
	if outer.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", outer.Count())
	}
	for index, want := range []string{"1", "2", "3"} {
		leaf, err := outer.Extract(index)
		if err != nil {
			t.Fatalf("Extract(%d): %v", index, err)
		}
		text, err := leaf.JSON()
		if err != nil {
			t.Fatalf("JSON(): %v", err)
		}
		if string(text) != want {
			t.Errorf("leaf %d = %s, want %s", index, text, want)
		}
	}
}

func TestCombineRejects(t *testing.T) {
	t.Parallel()

	if _, err := CombineAll(nil); !errors.Is(err, fault.ErrValidation) {
		t.Errorf("CombineAll(nil) error = %v, want ErrValidation", err)
	}
	if _, err := Combine(Structure{}, rawXYZP()); !errors.Is(err, fault.ErrValidation) {
		t.Errorf("Combine(zero, x) error = %v, want ErrValidation", err)
	}

	many := make([]Structure, MaxMultiCount+1)
	for i := range many {
		many[i] = rawXYZP()
	}
	if _, err := CombineAll(many); !errors.Is(err, fault.ErrValidation) {
		t.Errorf("CombineAll(256) error = %v, want ErrValidation", err)
	}
}

func TestFromBytesRejectsBadDirectory(t *testing.T) {
	t.Parallel()

	good, err := Combine(rawXYZP(1), rawXYZP(2))
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{name: "zero count", mutate: func(data []byte) []byte { data[2] = 0; return data }},
		{name: "truncated directory", mutate: func(data []byte) []byte { return data[:8] }},
		{name: "trailing bytes", mutate: func(data []byte) []byte { return append(data, 0) }},
		{name: "overlapping offset", mutate: func(data []byte) []byte {
			binary.LittleEndian.PutUint32(data[HeaderSize+1+8:], 0)
			return data
		}},
		{name: "length past end", mutate: func(data []byte) []byte {
			binary.LittleEndian.PutUint32(data[HeaderSize+1+8+4:], 1000)
			return data
		}},
		{name: "sub-structure bad version", mutate: func(data []byte) []byte {
			data[HeaderSize+1+16+1] = 9
			return data
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := FromBytes(test.mutate(good.Bytes()))
			if !errors.Is(err, fault.ErrDecode) {
				t.Errorf("error = %v, want ErrDecode", err)
			}
		})
	}
}

func TestFromBytesRejectsNestedHolder(t *testing.T) {
	t.Parallel()

	inner, err := Combine(rawXYZP(), rawXYZP())
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	innerBytes := inner.Bytes()

	// Hand-assemble a holder whose only entry is another holder.
	builder := NewBuilder(TypeMultiStruct, 0)
	builder.PutUint8(1)
	builder.PutUint32(uint32(HeaderSize + 1 + 8))
	builder.PutUint32(uint32(len(innerBytes)))
	builder.PutBytes(innerBytes)
	nested := builder.Finish()

	_, err = FromBytes(nested.Bytes())
	if err == nil || !strings.Contains(err.Error(), "nested") {
		t.Errorf("error = %v, want nested holder rejection", err)
	}
}

func TestExtractSingle(t *testing.T) {
	t.Parallel()

	structure := mustJSON(t, `{"a":true}`)
	if structure.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", structure.Count())
	}
	leaf, err := structure.Extract(0)
	if err != nil {
		t.Fatalf("Extract(0): %v", err)
	}
	if !leaf.Equal(structure) {
		t.Error("Extract(0) of single structure differs from itself")
	}
	if _, err := structure.Extract(1); err == nil {
		t.Error("Extract(1) of single structure succeeded")
	}
}

func TestBuilderAndReader(t *testing.T) {
	t.Parallel()

	builder := NewBuilder(TypeNeuronXYZP, 11)
	builder.PutUint8(0xAB)
	builder.PutUint16(0x1234)
	builder.PutUint32(0xDEADBEEF)
	builder.PutFloat32(0.5)
	structure := builder.Finish()

	reader := structure.NewReader()
	if reader.Remaining() != 11 {
		t.Fatalf("Remaining() = %d, want 11", reader.Remaining())
	}
	if value, err := reader.Uint8("a"); err != nil || value != 0xAB {
		t.Errorf("Uint8 = %#x, %v", value, err)
	}
	if value, err := reader.Uint16("b"); err != nil || value != 0x1234 {
		t.Errorf("Uint16 = %#x, %v", value, err)
	}
	if value, err := reader.Uint32("c"); err != nil || value != 0xDEADBEEF {
		t.Errorf("Uint32 = %#x, %v", value, err)
	}
	if value, err := reader.Float32("d"); err != nil || value != 0.5 {
		t.Errorf("Float32 = %v, %v", value, err)
	}

	_, err := reader.Uint32("past end")
	if !errors.Is(err, fault.ErrDecode) {
		t.Fatalf("read past end error = %v, want ErrDecode", err)
	}
	if !strings.Contains(err.Error(), "past end") {
		t.Errorf("error %q does not name the field", err)
	}
}

func TestBuilderFinishIsFinal(t *testing.T) {
	t.Parallel()

	builder := NewBuilder(TypeJSON, 0)
	builder.PutBytes([]byte("{}"))
	builder.Finish()

	defer func() {
		if recover() == nil {
			t.Error("write after Finish did not panic")
		}
	}()
	builder.PutUint8(1)
}

func TestTypeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value Type
		want  string
	}{
		{TypeJSON, "json"},
		{TypeMultiStruct, "multi_struct"},
		{TypeNeuronXYZP, "neuron_xyzp"},
		{Type(200), "unknown(200)"},
	}
	for _, test := range tests {
		if got := test.value.String(); got != test.want {
			t.Errorf("Type(%d).String() = %q, want %q", uint8(test.value), got, test.want)
		}
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cortical

import (
	"github.com/bureau-foundation/connector/lib/fault"
)

// IDLength is the byte length of every cortical ID, on the wire and in
// text form.
const IDLength = 6

// ID names one cortical area. The zero value is not a valid ID; obtain
// IDs from [ParseID], [IDFromBytes], [SensorType.ID] or [CoreType.ID].
type ID [IDLength]byte

// Category is the kind of cortical area an ID names, derived from the
// ID's first byte.
type Category uint8

const (
	CategorySensor Category = iota + 1
	CategoryMotor
	CategoryCore
	CategoryCustom
	CategoryMemory
)

// String returns the lowercase category name.
func (c Category) String() string {
	switch c {
	case CategorySensor:
		return "sensor"
	case CategoryMotor:
		return "motor"
	case CategoryCore:
		return "core"
	case CategoryCustom:
		return "custom"
	case CategoryMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// allowedIDChars is the set of bytes permitted anywhere in an ID:
// a-z, 0-9 and underscore.
var allowedIDChars [256]bool

func init() {
	for c := byte('a'); c <= 'z'; c++ {
		allowedIDChars[c] = true
	}
	for c := byte('0'); c <= '9'; c++ {
		allowedIDChars[c] = true
	}
	allowedIDChars['_'] = true
}

func categoryOf(prefix byte) Category {
	switch prefix {
	case 'i':
		return CategorySensor
	case 'o':
		return CategoryMotor
	case '_':
		return CategoryCore
	case 'c':
		return CategoryCustom
	case 'm':
		return CategoryMemory
	default:
		return 0
	}
}

// ParseID validates text as a cortical ID.
func ParseID(text string) (ID, error) {
	return IDFromBytes([]byte(text))
}

// IDFromBytes validates raw bytes (as read from a byte structure) as a
// cortical ID.
func IDFromBytes(data []byte) (ID, error) {
	var id ID
	if len(data) != IDLength {
		return id, fault.Validationf("cortical id %q: length %d, want %d", data, len(data), IDLength)
	}
	for i, c := range data {
		if !allowedIDChars[c] {
			return id, fault.Validationf("cortical id %q: invalid character %q at position %d (allowed: a-z, 0-9, _)", data, c, i)
		}
	}
	if categoryOf(data[0]) == 0 {
		return id, fault.Validationf("cortical id %q: unknown category prefix %q (want one of i, o, _, c, m)", data, data[0])
	}
	copy(id[:], data)
	return id, nil
}

// MustParseID is ParseID for compile-time constants. Panics on invalid
// input.
func MustParseID(text string) ID {
	id, err := ParseID(text)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the six-character text form.
func (id ID) String() string { return string(id[:]) }

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id == ID{} }

// Category returns the area category of a valid ID. The zero ID has
// category 0.
func (id ID) Category() Category { return categoryOf(id[0]) }

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	if id.IsZero() {
		return nil, fault.Validationf("cannot marshal zero cortical id")
	}
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := IDFromBytes(text)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bytestructure

import (
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/connector/lib/fault"
)

// NewJSON marshals value and wraps the result in a JSON structure.
func NewJSON(value any) (Structure, error) {
	text, err := json.Marshal(value)
	if err != nil {
		return Structure{}, fault.Validationf("marshal json structure: %v", err)
	}
	return newJSONUnchecked(text), nil
}

// NewRawJSON wraps an already-serialized JSON document. The text must
// be valid JSON; it is stored byte-for-byte.
func NewRawJSON(text []byte) (Structure, error) {
	if !json.Valid(text) {
		return Structure{}, fault.Validationf("json structure: body is not valid JSON")
	}
	return newJSONUnchecked(text), nil
}

func newJSONUnchecked(text []byte) Structure {
	builder := NewBuilder(TypeJSON, len(text))
	builder.PutBytes(text)
	return builder.Finish()
}

// JSON returns a copy of the document carried by a JSON structure.
func (s Structure) JSON() ([]byte, error) {
	if s.Type() != TypeJSON {
		return nil, fault.Decodef("structure is %s, not json", s.Type())
	}
	body := s.data[HeaderSize:]
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

// DecodeJSON unmarshals the document carried by a JSON structure into
// target.
func (s Structure) DecodeJSON(target any) error {
	text, err := s.JSON()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(text, target); err != nil {
		return fmt.Errorf("decode json structure: %w", err)
	}
	return nil
}

// JSONDocument is an arbitrary JSON value that encodes as a JSON
// structure.
type JSONDocument struct {
	Raw json.RawMessage
}

// Encode implements [Encodable].
func (d JSONDocument) Encode() (Structure, error) {
	return NewRawJSON(d.Raw)
}

// DecodeJSONDocument extracts the document from a JSON structure.
func DecodeJSONDocument(s Structure) (JSONDocument, error) {
	text, err := s.JSON()
	if err != nil {
		return JSONDocument{}, err
	}
	return JSONDocument{Raw: text}, nil
}

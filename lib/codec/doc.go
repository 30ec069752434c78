// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR configuration for agent frames.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same frame always produces the same bytes. Types implementing
// encoding.TextMarshaler (cortical.ID, compress.Tag) travel as CBOR
// text strings. Decoding ignores unknown fields and decodes untyped
// maps as map[string]any.
//
// Frames on a stream connection are length-prefixed: a 4-byte
// big-endian length followed by the CBOR bytes. [WriteMessage] and
// [ReadMessage] implement that framing; ReadMessage enforces a maximum
// message size before allocating.
//
// Struct fields use cbor tags:
//
//	type Frame struct {
//	    Kind    string `cbor:"kind"`
//	    Payload []byte `cbor:"payload,omitempty"`
//	}
package codec

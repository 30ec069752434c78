// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// prefixSize is the length of the big-endian uint32 message length.
const prefixSize = 4

// WriteMessage encodes v and writes it with a 4-byte length prefix in
// a single Write call, so concurrent writers serialized by a mutex
// never interleave partial messages.
func WriteMessage(w io.Writer, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	if uint64(len(data)) > uint64(^uint32(0)) {
		return fmt.Errorf("message size %d exceeds the 4-byte length prefix", len(data))
	}
	buffer := make([]byte, prefixSize, prefixSize+len(data))
	binary.BigEndian.PutUint32(buffer, uint32(len(data)))
	buffer = append(buffer, data...)
	if _, err := w.Write(buffer); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed message and decodes it into
// v. Messages longer than maxSize are rejected before their body is
// read. A clean EOF before the prefix is returned as io.EOF, so
// callers can tell a closed connection from a broken one.
func ReadMessage(r io.Reader, maxSize int, v any) error {
	var prefix [prefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("reading message length: %w", err)
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if uint64(length) > uint64(maxSize) {
		return &MessageTooLargeError{Size: uint64(length), Limit: maxSize}
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("reading message body: %w", err)
	}
	if err := Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}
	return nil
}

// MessageTooLargeError reports a length prefix above the reader's
// limit.
type MessageTooLargeError struct {
	Size  uint64
	Limit int
}

func (e *MessageTooLargeError) Error() string {
	return fmt.Sprintf("message size %d exceeds maximum %d", e.Size, e.Limit)
}

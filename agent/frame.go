// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"github.com/bureau-foundation/connector/lib/compress"
)

type frameKind string

const (
	frameRegister   frameKind = "register"
	frameSensory    frameKind = "sensory"
	frameHeartbeat  frameKind = "heartbeat"
	frameDeregister frameKind = "deregister"
)

// frame is the client-to-sink message. Session is a fresh UUID per
// registration; every later frame must repeat it. Sequence restarts at
// 1 for each session.
type frame struct {
	Kind      frameKind `cbor:"kind"`
	AgentID   string    `cbor:"agent_id"`
	AgentType AgentType `cbor:"agent_type"`
	Session   string    `cbor:"session"`
	Sequence  uint64    `cbor:"sequence"`

	// Sensory frames only. Size is the uncompressed length and Digest
	// the digest of the uncompressed structure.
	Compression compress.Tag `cbor:"compression"`
	Size        uint32       `cbor:"size,omitempty"`
	Digest      []byte       `cbor:"digest,omitempty"`
	Payload     []byte       `cbor:"payload,omitempty"`

	// Register frames only.
	Capabilities *Capabilities `cbor:"capabilities,omitempty"`
	Endpoints    *Endpoints    `cbor:"endpoints,omitempty"`
}

// ack answers exactly one frame.
type ack struct {
	Sequence uint64 `cbor:"sequence"`
	OK       bool   `cbor:"ok"`
	Code     string `cbor:"code,omitempty"`
	Message  string `cbor:"message,omitempty"`
}

const (
	// maxAckSize bounds ack messages read by the client.
	maxAckSize = 64 << 10

	// frameOverhead is the allowance for frame fields besides the
	// payload when the sink sizes its read limit.
	frameOverhead = 64 << 10
)

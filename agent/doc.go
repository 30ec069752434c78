// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent connects a connector process to a payload sink.
//
// A [Client] holds one persistent stream connection, dialed through a
// [Dialer], and exchanges length-prefixed CBOR frames with the sink:
// a registration frame carrying the agent's identity and capabilities,
// sensory frames carrying byte-structure payloads, heartbeats, and a
// final deregistration. Every frame is answered by an ack. A rejected
// frame comes back as a [*RemoteError] wrapped in a connection error.
//
// Sensory payloads are compressed with the configured [compress.Tag]
// and carry the keyed BLAKE3 digest of the uncompressed structure, so
// the [Sink] can verify what it decompressed before handing the
// structure to its [Handler].
//
// Registration retries with exponential backoff are the only retry
// loop. Every other failure is returned to the caller, wrapped so that
// errors.Is(err, fault.ErrConnection) holds.
//
// The wire protocol is this package's own. It does not reproduce the
// FEAGI agent protocol.
package agent

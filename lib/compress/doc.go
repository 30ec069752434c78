// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress compresses byte-structure payloads for transport.
//
// A payload travels with its [Tag] and uncompressed size; both are
// carried by the agent frame, so this package produces bare compressed
// bodies with no header of its own. [Compress] falls back to
// [None] when the requested algorithm does not shrink the input, and
// reports the tag actually used so the receiver can invert it with
// [Decompress].
//
// LZ4 block mode is the default for sensory payloads: neuron maps are
// small, dense float records where decode speed matters more than
// ratio. [BG4LZ4] regroups each 4-byte word by byte position before
// LZ4, which helps when the records are mostly small integers. Zstd
// suits the JSON side channels; its output never grows past the
// uncompressed size the frame declares.
package compress

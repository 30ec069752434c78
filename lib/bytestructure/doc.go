// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bytestructure implements the self-describing binary container
// that carries encoded objects between a connector and its receiver.
//
// Every [Structure] begins with a two-byte header: the structure [Type]
// and the format version. Version 1 is the only version this package
// reads or writes. All multi-byte integers are little-endian and there
// is no padding.
//
//	JSON (type 1):
//	    header | UTF-8 JSON document
//
//	MultiStructHolder (type 9):
//	    header | count u8 | count x (offset u32, length u32) | sub-structures
//
//	NeuronCategoricalXYZP (type 11):
//	    header | body written by lib/neuron
//
// Holder offsets are measured from the first byte of the holder. Holders
// never nest: [CombineAll] flattens holders it is given, so a receiver
// can always [Structure.Extract] a leaf structure by index.
//
// A Structure is immutable once built. [FromBytes] copies its input,
// and [Structure.Bytes] and [Structure.Extract] return independent
// copies, so no caller ever aliases another's buffer. Structures are
// built append-only with a [Builder] and frozen by [Builder.Finish];
// decoders walk the body with a [Reader], which reports truncation as a
// fault.ErrDecode error.
//
// [Structure.Digest] is a keyed BLAKE3 digest of the raw bytes, used by
// the agent protocol as a frame integrity check.
package bytestructure

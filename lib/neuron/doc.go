// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package neuron holds the in-memory form of encoded sensor activity
// and its byte-structure codec.
//
// A [Point] is one activation: integer X, Y, Z coordinates inside a
// cortical area and a float32 potential. A [Collection] is the ordered,
// append-only list of points emitted into one area during one encode
// cycle; duplicate coordinates are legal and represent independent
// emissions. A [Map] associates cortical IDs with collections, keeping
// insertion order for deterministic serialization.
//
// [Map.Encode] writes a NeuronCategoricalXYZP structure (type 11):
//
//	area_count u16
//	area_count x {
//	    cortical_id [6]byte
//	    neuron_count u32
//	    neuron_count x { x u32, y u32, z u32, p f32 }
//	}
//
// [Decode] is its inverse and rejects anything that does not account
// for every byte exactly.
//
// Maps and collections are not safe for concurrent use.
package neuron

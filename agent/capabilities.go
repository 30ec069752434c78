// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"github.com/bureau-foundation/connector/lib/cortical"
)

// VisionCapability advertises a camera feed and the cortical area its
// frames land in. [Client.SendSensoryData] maps flat neuron indices
// onto this area.
type VisionCapability struct {
	Modality string      `cbor:"modality"`
	Width    uint32      `cbor:"width"`
	Height   uint32      `cbor:"height"`
	Channels uint32      `cbor:"channels"`
	Area     cortical.ID `cbor:"area"`
}

// Volume is the number of neurons the capability addresses.
func (v VisionCapability) Volume() uint64 {
	return uint64(v.Width) * uint64(v.Height) * uint64(v.Channels)
}

// MotorCapability advertises the motor outputs an agent consumes.
type MotorCapability struct {
	Modality    string        `cbor:"modality"`
	OutputCount uint32        `cbor:"output_count"`
	Areas       []cortical.ID `cbor:"areas"`
}

// Capabilities is the document sent in the registration frame. Custom
// entries are arbitrary JSON values decoded into Go values, so they
// survive the CBOR round trip as maps, slices, strings, numbers and
// booleans.
type Capabilities struct {
	Vision *VisionCapability `cbor:"vision,omitempty"`
	Motor  *MotorCapability  `cbor:"motor,omitempty"`
	Custom map[string]any    `cbor:"custom,omitempty"`
}

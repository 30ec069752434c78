// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cortical defines the identifiers and shape descriptors for
// cortical areas.
//
// An [ID] is a fixed six-byte ASCII identifier. Its first byte names
// the area category ([Category]): sensor areas start with 'i', motor
// areas with 'o', core areas with '_', custom areas with 'c' and memory
// areas with 'm'. Sensor IDs are derived from a [SensorType] and a
// [GroupIndex]: the four-byte type base followed by the group index as
// two lowercase hex digits, so proximity sensor group 1 is "ipro01".
// Motor IDs follow the same rule from a [MotorType]: rotary motor
// group 0 is "omot00".
//
// Sensor, motor and core types are closed sets. Every switch over them is
// exhaustive; adding a type means adding it to the definition table in
// types.go or motor.go and to each switch.
//
// [Dimensions] describe the neuron grid one channel occupies. A sensor
// area with N channels lays them out side by side along X, so the area
// spans N*Width by Height by Depth neurons.
package cortical

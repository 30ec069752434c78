// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package motor decodes motor neuron maps into per-channel output
// values.
//
// A [Cache] is set up with [Cache.RegisterArea] for each motor area
// (motor type plus grouping index), giving its channel count, the
// channel depth, the [FrameHandling] and the [Positioning]. Channel c
// of an area reads the neurons at x = c, y = 0; the z position of the
// firing neurons carries the value:
//
//   - Unsigned types (servos, gaze) read 0..1 over the whole depth.
//   - Signed types (rotary motors) split the depth: z below depth/2
//     is positive, z from depth/2 up is negative, each half positioned
//     the same way.
//
// [Cache.DecodeNeurons] applies one map. Areas missing from the map
// keep their values. Every updated channel runs through its pipeline
// (identity unless [Cache.SetPipeline] installs another), is readable
// with [Cache.ReadChannel] and is handed to the callbacks registered
// with [Cache.OnUpdate].
package motor

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sensor buffers processed sensor readings and encodes them
// into neuron maps.
//
// A [Cache] is set up once: [Cache.RegisterArea] declares a cortical
// area (sensor type plus grouping index) with its channel count and
// per-channel dimensions, then [Cache.RegisterChannel] attaches a
// processor pipeline to each channel that will carry data. After
// setup, [Cache.UpdateChannel] runs raw readings through a channel's
// pipeline and buffers the result, and [Cache.EncodeToNeurons] turns
// the buffered state into a neuron.Map.
//
// Channels sit side by side along X: channel c of an area whose
// channels are W wide starts at x = c*W. A [Coder] places the
// channel's value inside that slot:
//
//   - Linear: one point at (c*W, 0, 0) with the value as potential.
//   - SplitSign: like Linear for v >= 0; negative values go to
//     z = depth/2 with potential |v|.
//   - Bidirectional: one point with potential 1 whose z carries the
//     value. Each sign gets depth/2 layers; |v| picks layer
//     round(|v| * (depth/2 - 1)), offset by depth/2 for negative v.
//   - Image: one point per pixel channel at (c*W + x, y, color) with
//     the pixel intensity as potential. Row 0 is the top row.
//
// Staleness: a channel registered with allowStale emits on every
// encode. Any other channel emits only if it was updated since the
// previous encode; a channel that has never been updated never emits.
// Under [StaleFail] a non-fresh channel fails the encode instead.
//
// A Cache is not safe for concurrent use. Callers serialize updates
// and encodes, typically by owning the cache from a single goroutine.
package sensor

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package genome checks and repairs FEAGI 2.x genome documents before
// they are handed to a brain.
//
// Genomes are authored as JSON, optionally with comments and trailing
// commas (JSONC). [Validate] reports every problem as an error (the
// genome cannot be loaded) or a warning (it loads, but something is
// missing or stale). [AutoFix] repairs the problems that have an
// unambiguous fix and returns the rewritten document:
//
//   - zero block_boundaries components and per_voxel_neuron_cnt below 1
//     become 1
//   - a missing relative_coordinate becomes [0, 0, 0]
//   - missing physiology fields get their defaults
//   - missing neuron_morphologies and brain_regions become {}
//   - stale or missing signatures are recomputed
//
// Signatures are keyed BLAKE3 digests over the canonical JSON of a
// section: object keys sorted, no insignificant whitespace. The genome
// signature covers the whole document except the signatures object.
package genome

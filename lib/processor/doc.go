// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package processor transforms raw sensor samples before they are
// buffered and encoded.
//
// A [Sample] is either a scalar float32 or an [ImageFrame]. A
// [Processor] accepts samples of one kind and produces samples of the
// same kind; processors compose into a [Pipeline] that runs them in
// order. The built-in processors are:
//
//   - [RollingAverage]: mean of the last N scalars, with the history
//     pre-filled from a seed value.
//   - [LinearScale]: affine map of [lower, upper] onto [0, 1], or onto
//     [-1, 1] when built with [NewSignedLinearScale]. Out-of-domain
//     inputs clamp to the nearest bound; [NewStrictLinearScale] rejects
//     them instead.
//   - [Identity] and [ImageIdentity]: pass-through for values that are
//     already normalized.
//
// Every processor reports the value a channel holds before any real
// sample arrives through Initial. Processors carry per-channel state
// and are not safe for concurrent use.
package processor

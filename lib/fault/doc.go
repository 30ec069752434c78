// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fault defines the error kinds shared by the connector packages.
//
// Every failure surfaced by the core wraps exactly one of four sentinel
// kinds, so callers classify errors with [errors.Is] regardless of which
// package produced them:
//
//   - [ErrConfiguration]: duplicate or conflicting registration, unknown
//     cortical type, channel index out of range, invalid agent config.
//   - [ErrValidation]: malformed cortical IDs, out-of-domain input in
//     strict mode, samples of the wrong shape.
//   - [ErrDecode]: truncated or inconsistent byte structures.
//   - [ErrConnection]: transport failures reported by the agent client.
//
// The constructors ([Configurationf] and friends) format a message and
// wrap the kind:
//
//	return fault.Configurationf("cortical area %s is not registered", id)
//
// This package has no connector-internal dependencies.
package fault

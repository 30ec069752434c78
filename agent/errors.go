// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"errors"
	"fmt"
)

// RemoteError is a frame rejection reported by the sink in its ack.
// Client methods wrap it in a connection error; extract it with
// errors.As:
//
//	var remote *agent.RemoteError
//	if errors.As(err, &remote) {
//	    if remote.Code == agent.CodeDigestMismatch { ... }
//	}
type RemoteError struct {
	// Code is one of the Code constants.
	Code string
	// Message is the sink's human-readable description.
	Message string
	// Sequence is the rejected frame's sequence number.
	Sequence uint64
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("sink rejected frame %d: %s: %s", e.Sequence, e.Code, e.Message)
}

// Rejection codes.
const (
	CodeMalformed       = "malformed"
	CodeNotRegistered   = "not_registered"
	CodeDigestMismatch  = "digest_mismatch"
	CodePayloadTooLarge = "payload_too_large"
	CodeRejected        = "rejected"
)

// IsRemoteError reports whether err wraps a *RemoteError with the given
// code.
func IsRemoteError(err error, code string) bool {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Code == code
	}
	return false
}

// ErrNotRegistered is returned by send operations before a successful
// [Client.Connect] or after the connection has been lost.
var ErrNotRegistered = errors.New("agent is not registered")

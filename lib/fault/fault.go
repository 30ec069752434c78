// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks registration and setup mistakes.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation marks values that fail a constructor's rules.
	ErrValidation = errors.New("validation error")

	// ErrDecode marks byte input that cannot be parsed.
	ErrDecode = errors.New("decode error")

	// ErrConnection marks transport failures. The agent client is the
	// only producer.
	ErrConnection = errors.New("connection error")
)

// kindError pairs a sentinel kind with a message and an optional cause.
// Error() renders "message: cause" and Is/Unwrap expose both the kind
// and the cause to errors.Is and errors.As.
type kindError struct {
	kind    error
	message string
	cause   error
}

func (e *kindError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *kindError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

// Configurationf returns an ErrConfiguration error with a formatted message.
func Configurationf(format string, args ...any) error {
	return &kindError{kind: ErrConfiguration, message: fmt.Sprintf(format, args...)}
}

// Validationf returns an ErrValidation error with a formatted message.
func Validationf(format string, args ...any) error {
	return &kindError{kind: ErrValidation, message: fmt.Sprintf(format, args...)}
}

// Decodef returns an ErrDecode error with a formatted message.
func Decodef(format string, args ...any) error {
	return &kindError{kind: ErrDecode, message: fmt.Sprintf(format, args...)}
}

// Connection wraps a transport failure. The cause stays reachable
// through errors.Is and errors.As (for example net.Error or
// context.DeadlineExceeded).
func Connection(cause error, format string, args ...any) error {
	return &kindError{kind: ErrConnection, message: fmt.Sprintf(format, args...), cause: cause}
}

// Kind returns the sentinel kind err wraps, or nil when err carries
// none of them.
func Kind(err error) error {
	for _, kind := range []error{ErrConfiguration, ErrValidation, ErrDecode, ErrConnection} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"net"
	"time"
)

// Dialer opens the client's stream connection.
type Dialer interface {
	Dial(ctx context.Context, address string) (net.Conn, error)
}

// TCPDialer dials TCP. The zero value uses the operating system's
// keep-alive defaults.
type TCPDialer struct {
	// KeepAlive is passed to net.Dialer. Negative disables keep-alive.
	KeepAlive time.Duration
}

func (d TCPDialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	dialer := net.Dialer{KeepAlive: d.KeepAlive}
	return dialer.DialContext(ctx, "tcp", address)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by the connector's tests.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern used when a test waits on a goroutine (a sink delivering a
// payload, a heartbeat loop exiting). They are the only place tests
// use real wall-clock timeouts; everything else runs on clock.Fake.
//
// Helpers call t.Fatalf on failure.
package testutil

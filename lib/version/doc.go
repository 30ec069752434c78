// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the connector
// binary.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// These default to "unknown" / "0.1.0-dev" when not injected, which
// occurs during development builds and test runs:
//
//	go build -ldflags "-X github.com/bureau-foundation/connector/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// [Info] formats the one-line form printed by "connector version",
// [Full] adds the Go toolchain, the platform and the release channel, and [Semantic] parses
// [Version] so callers can compare releases.
package version

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command tree used by the connector binary.
//
// The central type is [Command]: a named command with optional nested
// [Command.Subcommands], a [pflag.FlagSet] factory, and a Run function.
// [Command.Execute] parses flags, routes to subcommands and prints
// structured help. Unknown commands and flags get a "did you mean"
// suggestion when an edit distance of at most 3 finds one.
//
// [NewLogger] builds the slog text logger every command writes to.
package cli

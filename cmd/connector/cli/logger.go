// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
)

// NewLogger returns a text logger writing to w at info level, or debug
// level when verbose is set. Callers scope it with With():
//
//	logger := cli.NewLogger(os.Stderr, verbose).With("command", "run")
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

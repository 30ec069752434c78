// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/connector/cmd/connector/cli"
	"github.com/bureau-foundation/connector/lib/version"
)

type result struct {
	stdout string
	stderr string
	err    error
}

// execute runs the connector with args against in-memory streams.
func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(t.Context(), args, strings.NewReader(stdin), &stdout, &stderr)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func exitCode(err error) int {
	var exit *cli.ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	if err != nil {
		return 1
	}
	return 0
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestVersion(t *testing.T) {
	got := execute(t, "", "version")
	if got.err != nil {
		t.Fatalf("version: %v", got.err)
	}
	if strings.TrimSpace(got.stdout) != version.Info() {
		t.Errorf("got %q, want %q", got.stdout, version.Info())
	}

	verbose := execute(t, "", "--verbose", "version")
	if verbose.err != nil {
		t.Fatalf("--verbose version: %v", verbose.err)
	}
	if !strings.Contains(verbose.stdout, "Go:") {
		t.Errorf("verbose version output %q missing the Go line", verbose.stdout)
	}
}

func TestRootHelp(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"help"}} {
		got := execute(t, "", args...)
		if got.err != nil {
			t.Fatalf("%v: %v", args, got.err)
		}
		for _, command := range []string{"demo", "inspect", "genome", "motor", "run", "sink", "version"} {
			if !strings.Contains(got.stderr, command) {
				t.Errorf("%v: help missing %q:\n%s", args, command, got.stderr)
			}
		}
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no command", nil, "subcommand required"},
		{"unknown command", []string{"inspcet"}, `did you mean "inspect"`},
		{"unknown global flag", []string{"--colour", "version"}, "unknown flag: --colour"},
		{"unknown command flag", []string{"demo", "--outptu", "x"}, "did you mean --output"},
		{"inspect without file", []string{"inspect"}, "usage: connector inspect FILE"},
		{"version with argument", []string{"version", "extra"}, `unexpected argument "extra"`},
		{"missing env file", []string{"--env-file", "/nonexistent/.env", "version"}, "loading env file"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := execute(t, "", test.args...)
			if got.err == nil {
				t.Fatal("want an error")
			}
			if !strings.Contains(got.err.Error(), test.want) {
				t.Errorf("error = %q, want it to contain %q", got.err, test.want)
			}
		})
	}
}

func TestCancelledContextStopsSink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stdout, stderr bytes.Buffer
	err := run(ctx, []string{"sink", "--listen", "127.0.0.1:0"}, strings.NewReader(""), &stdout, &stderr)
	if err != nil {
		t.Fatalf("sink with a cancelled context: %v", err)
	}
	if !strings.Contains(stderr.String(), "sink listening") {
		t.Errorf("stderr = %q, want the listening line", stderr.String())
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"runtime"

	"github.com/Masterminds/semver/v3"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

// Info returns a formatted version string suitable for --version output.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full returns detailed version information: the Go toolchain, the
// platform and the release channel derived from [Version].
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s\n  Channel: %s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH, channel())
}

// channel is "release" for a plain semantic version, the prerelease
// tag ("dev", "rc.1") otherwise, and "invalid" when [Version] does not
// parse.
func channel() string {
	parsed, err := Semantic()
	switch {
	case err != nil:
		return "invalid"
	case parsed.Prerelease() != "":
		return parsed.Prerelease()
	default:
		return "release"
	}
}

// Semantic parses [Version]. An injected value that is not a semantic
// version is an error, not a silent fallback.
func Semantic() (*semver.Version, error) {
	parsed, err := semver.StrictNewVersion(Version)
	if err != nil {
		return nil, fmt.Errorf("parsing build version %q: %w", Version, err)
	}
	return parsed, nil
}

// Print writes [Full] when verbose is set and [Info] otherwise.
func Print(w io.Writer, verbose bool) error {
	text := Info()
	if verbose {
		text = Full()
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

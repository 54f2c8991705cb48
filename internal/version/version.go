// SPDX-License-Identifier: MIT

// Package version carries the build identity stamped via -ldflags.
package version

import "fmt"

var (
	// Version is the release tag. The build system overrides it; the
	// fallback marks an untagged development build.
	Version = "v0.0.0-dev"

	// Commit is the git short hash of the build.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// String renders the full build identity for --version output.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}

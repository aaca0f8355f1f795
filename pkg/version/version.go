// Package version holds build information injected at link time.
package version

import "fmt"

var (
	// Version is the semantic version, set via -ldflags.
	Version = "dev"

	// GitCommit is the git commit hash, set via -ldflags.
	GitCommit = "unknown"

	// BuildTime is the build timestamp, set via -ldflags.
	BuildTime = "unknown"
)

// String returns a single-line version description.
func String() string {
	return fmt.Sprintf("attache %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}

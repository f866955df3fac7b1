// Package version provides centralized version management for the harness.
// It supports semantic versioning and build-time injection via -ldflags.
package version

import (
	"fmt"
	"runtime"

	"github.com/Masterminds/semver/v3"
)

// Build information that can be set at compile time via -ldflags.
var (
	// Version is the semantic version of the harness.
	Version = "0.3.0"

	// GitCommit is the git commit hash when the binary was built.
	GitCommit = "unknown"

	// BuildDate is the date when the binary was built.
	BuildDate = "unknown"
)

// Info represents comprehensive version information.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the full version information for the current build.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// GetBaseVersion returns the base version (major.minor.patch) without
// prerelease or build metadata.
func GetBaseVersion() string {
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return Version
	}
	return fmt.Sprintf("%d.%d.%d", sv.Major(), sv.Minor(), sv.Patch())
}

// IsValid reports whether the current version parses as semver.
func IsValid() bool {
	_, err := semver.NewVersion(Version)
	return err == nil
}

// String returns a human-readable one-line version summary.
func (i Info) String() string {
	return fmt.Sprintf("stackharness v%s (commit %s, built %s, %s, %s)",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform)
}

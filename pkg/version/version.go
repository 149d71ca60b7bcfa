// Package version provides build and version information for CodeScout.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of CodeScout.
// Set via ldflags at build time, or defaults to dev:
// -X github.com/codescout/codescout/pkg/version.Version=$(VERSION)
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary (set at runtime).
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetInfo returns the full build information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// String returns a formatted version string with all build info.
func String() string {
	return fmt.Sprintf("codescout %s (commit %s, built %s, %s %s/%s)",
		Version, Commit, Date, GoVersion, runtime.GOOS, runtime.GOARCH)
}

// Short returns only the version number.
func Short() string {
	return Version
}

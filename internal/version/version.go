// Package version holds build metadata injected with -ldflags "-X".
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the line printed by `netcanvas version`.
func Info() string {
	return fmt.Sprintf("netcanvas %s (commit %s, built %s, %s %s/%s)",
		Version, GitCommit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns the bare version, e.g. "0.3.1" or "dev".
func Short() string {
	return Version
}

// UserAgent identifies the client to the lab service.
func UserAgent() string {
	return "netcanvas/" + Version
}

// Map returns the build metadata for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}

// Package version provides version information for the documine services.
//
// The variables are set at build time via ldflags:
//
//	-ldflags "-X documine/internal/version.version=v1.0.0 -X documine/internal/version.commit=abc123 -X documine/internal/version.buildTime=2025-01-01T00:00:00Z"
package version

import (
	"fmt"
	"strings"
)

//nolint:gochecknoglobals // Required for build-time injection via ldflags.
var (
	version   string
	commit    string
	buildTime string
)

// ApplicationName is the name displayed in version output.
const ApplicationName = "docuMINE"

// Default values used when version information is not available.
const (
	DefaultVersion   = "dev"
	DefaultCommit    = "unknown"
	DefaultBuildTime = "unknown"
)

// Info encapsulates version information with proper defaults.
type Info struct {
	Version   string
	Commit    string
	BuildTime string
}

// Get returns the version information from build-time variables, with
// defaults applied.
func Get() Info {
	return Info{
		Version:   orDefault(version, DefaultVersion),
		Commit:    orDefault(commit, DefaultCommit),
		BuildTime: orDefault(buildTime, DefaultBuildTime),
	}
}

// Short returns the bare version string.
func Short() string {
	return Get().Version
}

// String returns a multi-line human-readable version report.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", ApplicationName)
	fmt.Fprintf(&b, "Version: %s\n", i.Version)
	fmt.Fprintf(&b, "Commit: %s\n", i.Commit)
	fmt.Fprintf(&b, "Built: %s\n", i.BuildTime)
	return b.String()
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

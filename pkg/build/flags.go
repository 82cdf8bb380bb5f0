// SPDX-License-Identifier: MIT
//
// Package build carries the metadata embedded into the binary at link time:
// application name, description, build timestamp, Git commit and semantic
// version. The CLI uses it for its usage line and --version output.
package build

import "fmt"

// DefaultDescription is used when no description is linked in.
const DefaultDescription = "Acoustic timegrapher: measures the rate and beat error of a mechanical watch"

// Info is the build metadata.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders the version line, e.g. "1.2.0 (commit abc123, built 2025-04-13)".
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation, for example:
//
//	go build -ldflags "-X timegrapher/pkg/build.buildName=timegrapher -X timegrapher/pkg/build.buildVersion=0.1.0 ..."
var (
	buildName        string
	buildDescription string
	buildTime        string
	buildCommit      string
	buildVersion     string
	buildFlags       = &Info{
		Name:        "timegrapher",
		Description: DefaultDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize validates and copies build information from ldflags variables.
// Development builds without ldflags get an error and keep the defaults. The
// description is optional.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion
	if buildDescription != "" {
		buildFlags.Description = buildDescription
	}

	return nil
}

// GetBuildFlags returns a copy of the current build information.
func GetBuildFlags() Info {
	return *buildFlags
}

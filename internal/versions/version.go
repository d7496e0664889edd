// Package versions provides build version information for recordsync and
// version comparison helpers.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

const (
	unknownStr = "unknown"

	// MinimumAPIVersion is the oldest remote API version this client speaks
	MinimumAPIVersion = "1.0.0"
)

// Version information set by build using -ldflags
var (
	// Version is the current version of recordsync
	Version = "dev"
	// Commit is the git commit hash of the build
	//nolint:goconst // This is a placeholder for the commit hash
	Commit = unknownStr
	// BuildDate is the date when the binary was built
	//nolint:goconst // This is a placeholder for the build date
	BuildDate = unknownStr
)

// VersionInfo represents the version information
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersionInfo returns the version information
func GetVersionInfo() VersionInfo {
	return getVersionInfoWithValues(Version, Commit, BuildDate)
}

func getVersionInfoWithValues(version, commit, buildDate string) VersionInfo {
	ver := version
	commitVal := commit
	buildDateVal := buildDate

	if strings.HasPrefix(ver, "dev") {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					if commitVal == unknownStr {
						commitVal = setting.Value
					}
				case "vcs.time":
					if buildDateVal == unknownStr {
						buildDateVal = setting.Value
					}
				}
			}
		}
	}

	if buildDateVal != unknownStr {
		if t, err := time.Parse(time.RFC3339, buildDateVal); err == nil {
			buildDateVal = t.UTC().Format("2006-01-02 15:04:05 MST")
		}
	}

	if ver == "dev" {
		ver = fmt.Sprintf("build-%.*s", 8, commitVal)
	}

	return VersionInfo{
		Version:   ver,
		Commit:    commitVal,
		BuildDate: buildDateVal,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// IsNewerVersion reports whether candidate is strictly greater than current.
// Strings that are not semantic versions are compared lexically.
func IsNewerVersion(candidate, current string) bool {
	c, errCandidate := semver.NewVersion(candidate)
	cur, errCurrent := semver.NewVersion(current)
	if errCandidate != nil || errCurrent != nil {
		return candidate > current
	}
	return c.GreaterThan(cur)
}

// IsSupportedAPIVersion reports whether the remote API version is at least MinimumAPIVersion
func IsSupportedAPIVersion(apiVersion string) bool {
	return !IsNewerVersion(MinimumAPIVersion, apiVersion)
}

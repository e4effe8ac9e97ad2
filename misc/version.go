// Package misc carries program identity shared by all other packages.
package misc

import "runtime/debug"

// Set at build time via -ldflags "-X epubmd/misc.version=... -X epubmd/misc.gitHash=...".
var (
	appName = "epubmd"
	version = "development"
	gitHash = ""
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

// GetGitHash returns the commit the binary was built from. When not injected
// at build time it falls back to the revision recorded in build info.
func GetGitHash() string {
	if gitHash != "" {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}

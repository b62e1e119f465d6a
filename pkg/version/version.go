package version

import "runtime/debug"

// Version is the current application version, overridden at build time:
//
//	go build -ldflags "-X github.com/vanderheijden86/ghtree/pkg/version.Version=v1.2.3"
var Version = "v0.1.0"

// Commit is the VCS revision, set by ldflags or read from the build info.
var Commit = ""

// String returns "version (commit)" or just the version.
func String() string {
	commit := Commit
	if commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 7 {
					commit = s.Value[:7]
				}
			}
		}
	}
	if commit == "" {
		return Version
	}
	return Version + " (" + commit + ")"
}

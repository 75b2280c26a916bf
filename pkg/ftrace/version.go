package ftrace

import "runtime/debug"

var (
	Version   = "v0.0.0-in-progress"
	GitCommit = "unknown"
)

// WrapperVersion returns the semantic version populated at build time via
// ldflags. In development it defaults to v0.0.0-in-progress.
func WrapperVersion() string {
	return Version
}

// Commit returns the VCS revision recorded at build time, falling back to the
// ldflags value when the binary carries no build info.
func Commit() string {
	if GitCommit != "unknown" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return GitCommit
}

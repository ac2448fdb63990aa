// Package version reports build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/Yuplx-HU/task-executor/pkg/version.Version=v1.2.0"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the semantic version (set at build time via ldflags)
	Version = "dev"
	// Commit is the git commit hash (set at build time via ldflags)
	Commit = "unknown"
	// BuildTime is the build timestamp (set at build time via ldflags)
	BuildTime = "unknown"
)

// Info contains version information
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"buildTime" yaml:"buildTime"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the version information
// A binary installed with go install has no ldflags; the module version and
// VCS revision recorded by the toolchain are used instead
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.Commit == "unknown":
				info.Commit = s.Value
			case s.Key == "vcs.time" && info.BuildTime == "unknown":
				info.BuildTime = s.Value
			}
		}
	}

	return info
}

// Short returns a one-line version string
func (i Info) Short() string {
	commit := i.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("taskexec %s (%s)", i.Version, commit)
}

// Map returns the fields as a key-value map in display form
func (i Info) Map() map[string]interface{} {
	return map[string]interface{}{
		"Version":    i.Version,
		"Commit":     i.Commit,
		"Build Time": i.BuildTime,
		"Go Version": i.GoVersion,
		"Platform":   i.Platform,
	}
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("Task Executor\n  Version:    %s\n  Commit:     %s\n  Build Time: %s\n  Go Version: %s\n  Platform:   %s",
		i.Version, i.Commit, i.BuildTime, i.GoVersion, i.Platform)
}

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.Version == "" {
		t.Error("Version should not be empty")
	}

	if info.Commit == "" {
		t.Error("Commit should not be empty")
	}

	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %s, want %s", info.GoVersion, runtime.Version())
	}

	expectedPlatform := runtime.GOOS + "/" + runtime.GOARCH
	if info.Platform != expectedPlatform {
		t.Errorf("Platform = %s, want %s", info.Platform, expectedPlatform)
	}
}

func TestGet_LdflagsTakePrecedence(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version = "v1.2.3"
	Commit = "0123456789abcdef0123"

	info := Get()
	if info.Version != "v1.2.3" {
		t.Errorf("Version = %s, want v1.2.3", info.Version)
	}
	if info.Commit != "0123456789abcdef0123" {
		t.Errorf("Commit = %s, want 0123456789abcdef0123", info.Commit)
	}
}

func TestShort(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			name: "long commit is shortened",
			info: Info{Version: "v1.0.0", Commit: "0123456789abcdef0123"},
			want: "taskexec v1.0.0 (0123456789ab)",
		},
		{
			name: "unknown commit",
			info: Info{Version: "dev", Commit: "unknown"},
			want: "taskexec dev (unknown)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.Short(); got != tt.want {
				t.Errorf("Short() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	info := Get()
	output := info.String()

	if !strings.Contains(output, "Task Executor") {
		t.Error("String output should contain 'Task Executor'")
	}

	if !strings.Contains(output, info.Version) {
		t.Errorf("String output should contain version %s", info.Version)
	}

	if !strings.Contains(output, info.Commit) {
		t.Errorf("String output should contain commit %s", info.Commit)
	}
}

func TestMap(t *testing.T) {
	info := Info{Version: "v1", Commit: "abc", BuildTime: "now", GoVersion: "go1", Platform: "linux/amd64"}
	m := info.Map()

	if len(m) != 5 {
		t.Errorf("Map() has %d entries, want 5", len(m))
	}
	if m["Build Time"] != "now" {
		t.Errorf("Map()[Build Time] = %v, want now", m["Build Time"])
	}
}

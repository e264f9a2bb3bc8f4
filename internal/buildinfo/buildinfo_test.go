package buildinfo

import (
	"strings"
	"testing"
)

func TestBuildInfoIncludesPlatformFields(t *testing.T) {
	info := BuildInfo()
	for _, key := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if _, ok := info[key]; !ok {
			t.Errorf("BuildInfo() missing key %q", key)
		}
	}
}

func TestRuntimeInfoAddsUptime(t *testing.T) {
	info := RuntimeInfo()
	if _, ok := info["uptime"]; !ok {
		t.Error("RuntimeInfo() missing uptime key")
	}
}

func TestStringIsOneLineSummary(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "faster-ee ") {
		t.Errorf("String() = %q, want prefix %q", s, "faster-ee ")
	}
	if strings.Contains(s, "\n") {
		t.Error("String() should be a single line")
	}
}

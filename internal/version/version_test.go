// Where: internal/version/version_test.go
// What: Tests for version resolution.
// Why: Keep the version string stable across build modes.
package version

import (
	"runtime/debug"
	"testing"
)

func stubBuildInfo(t *testing.T, info *debug.BuildInfo, ok bool) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, ok }
	t.Cleanup(func() { readBuildInfo = orig })
}

func TestGetVersion(t *testing.T) {
	cases := []struct {
		name string
		info *debug.BuildInfo
		ok   bool
		want string
	}{
		{name: "no build info", ok: false, want: "dev"},
		{
			name: "revision",
			info: &debug.BuildInfo{Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}}},
			ok:   true,
			want: "0123456",
		},
		{
			name: "dirty",
			info: &debug.BuildInfo{Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abcdef0"},
				{Key: "vcs.modified", Value: "true"},
			}},
			ok:   true,
			want: "abcdef0 (dirty)",
		},
		{
			name: "module version",
			info: &debug.BuildInfo{Main: debug.Module{Version: "v0.3.0"}},
			ok:   true,
			want: "v0.3.0",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stubBuildInfo(t, tc.info, tc.ok)
			if got := GetVersion(); got != tc.want {
				t.Fatalf("GetVersion() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGetVersionPrefersLinkedVersion(t *testing.T) {
	orig := Version
	Version = "v1.0.0"
	t.Cleanup(func() { Version = orig })
	if got := GetVersion(); got != "v1.0.0" {
		t.Fatalf("GetVersion() = %q", got)
	}
}

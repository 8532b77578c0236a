package version

import (
	"strings"
	"testing"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		bim  map[string]string
		want string
	}{
		{
			"no vcs",
			map[string]string{"GOOS": "linux", "GOARCH": "amd64"},
			"diskimgcreator version dev linux/amd64",
		},
		{
			"git",
			map[string]string{
				"GOOS":         "linux",
				"GOARCH":       "arm64",
				"vcs":          "git",
				"vcs.revision": "0123456789abcdef0123",
				"vcs.time":     "2024-05-01T10:00:00Z",
			},
			"diskimgcreator version dev linux/arm64 rev 0123456789 on 2024-05-01T10:00:00Z",
		},
		{
			"short revision and modified tree",
			map[string]string{
				"GOOS":         "linux",
				"GOARCH":       "amd64",
				"vcs":          "git",
				"vcs.revision": "abc123",
				"vcs.time":     "2024-05-01T10:00:00Z",
				"vcs.modified": "true",
			},
			"diskimgcreator version dev linux/amd64 rev abc123 on 2024-05-01T10:00:00Z (modified)",
		},
	}

	for _, tt := range tests {
		if got := describe("diskimgcreator version dev", tt.bim); got != tt.want {
			t.Errorf("%s: describe() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestString(t *testing.T) {
	if got := String("diskimgmounter"); !strings.HasPrefix(got, "diskimgmounter version "+Version) {
		t.Errorf("Unexpected version string %q", got)
	}
}

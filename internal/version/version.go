package version

import (
	"fmt"
	"runtime/debug"

	"github.com/larsks/gobot/tools"
)

// Version is set at build time with -ldflags "-X ...version.Version=v1.2.3".
var Version = "dev"

const shortRevision = 10

// String describes the running binary: program name, version, platform and,
// for builds from a git checkout, the revision.
func String(progName string) string {
	vs := fmt.Sprintf("%s version %s", progName, Version)

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return vs
	}
	return describe(vs, tools.BuildInfoMap(bi))
}

func describe(vs string, bim map[string]string) string {
	vs = fmt.Sprintf("%s %s/%s", vs, bim["GOOS"], bim["GOARCH"])
	if bim["vcs"] != "git" {
		return vs
	}

	rev := bim["vcs.revision"]
	if len(rev) > shortRevision {
		rev = rev[:shortRevision]
	}
	vs = fmt.Sprintf("%s rev %s on %s", vs, rev, bim["vcs.time"])
	if bim["vcs.modified"] == "true" {
		vs += " (modified)"
	}
	return vs
}

package main

import (
	_ "embed"
	"runtime/debug"
	"strings"

	"golang.org/x/mod/semver"
)

//go:embed VERSION
var embeddedVersion string

// Version returns the version string: the module version when installed with
// go install, otherwise "devel-0.1.0+abc1234" with the VCS revision and a
// ".dirty" marker for modified trees.
func Version() string {
	return version(strings.TrimSpace(embeddedVersion), readBuildInfo())
}

func readBuildInfo() *debug.BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return info
}

func version(base string, info *debug.BuildInfo) string {
	if info == nil {
		return base
	}
	if v := info.Main.Version; semver.IsValid(v) {
		return v
	}

	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) >= 7 {
				rev = s.Value[:7]
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return "devel-" + base
	}
	if dirty {
		rev += ".dirty"
	}
	return "devel-" + base + "+" + rev
}

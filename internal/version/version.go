package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/six78/feature-negotiation/internal/version.tag=..."
var (
	tag    = "devel"
	status string

	buildInfo string
)

func Version() string {
	v := tag
	if status != "" {
		v += "-dirty"
	}
	return fmt.Sprintf("%s %s", v, buildInfo)
}

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	var goos, goarch string
	for _, s := range info.Settings {
		switch s.Key {
		case "GOOS":
			goos = s.Value
		case "GOARCH":
			goarch = s.Value
		case "vcs.modified":
			if s.Value == "true" && status == "" {
				status = "modified"
			}
		}
	}

	buildInfo = fmt.Sprintf("%s/%s", goos, goarch)
}

// Package version reports the build of the judge binaries. The release
// number comes from version.txt, the commit from the VCS stamp the Go
// toolchain records in the binary.
package version

import (
	_ "embed"
	"runtime"
	"runtime/debug"
	"strings"
)

//go:embed version.txt
var release string

// Info describes a build
type Info struct {
	Version   string `json:"buildVersion"`
	Revision  string `json:"revision,omitempty"`
	BuildTime string `json:"buildTime,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
	OS        string `json:"os"`
}

// Version is the release of arena-judge, with the short commit appended
// when the binary carries one
var Version = Get().String()

// Get collects the build information of the running binary
func Get() Info {
	return read(strings.TrimSpace(release), debug.ReadBuildInfo)
}

func read(release string, buildInfo func() (*debug.BuildInfo, bool)) Info {
	info := Info{
		Version:   release,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOARCH,
		OS:        runtime.GOOS,
	}
	bi, ok := buildInfo()
	if !ok {
		if info.Version == "" {
			info.Version = "unknown"
		}
		return info
	}
	if info.Version == "" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.time":
			info.BuildTime = s.Value
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

func (i Info) String() string {
	s := i.Version
	if len(i.Revision) >= 7 {
		s += "+" + i.Revision[:7]
		if i.Dirty {
			s += ".dirty"
		}
	}
	return s
}

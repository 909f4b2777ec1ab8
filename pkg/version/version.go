// Package version holds build metadata for the gdport binary.
package version

import (
	"runtime/debug"
	"sync"
)

// Build metadata, overridden at link time with
// -ldflags "-X github.com/Sumatoshi-tech/gdport/pkg/version.Version=v1.2.3".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const (
	develVersion = "(devel)"
	revisionKey  = "vcs.revision"
	timeKey      = "vcs.time"
	shortHashLen = 12
)

var initOnce sync.Once

// InitBinaryVersion fills unset metadata from the module build info when the binary was
// built with go install or go build inside a checkout.
func InitBinaryVersion() {
	initOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}

		apply(info)
	})
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != develVersion {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case revisionKey:
			if Commit == "none" && setting.Value != "" {
				Commit = setting.Value[:min(shortHashLen, len(setting.Value))]
			}
		case timeKey:
			if Date == "unknown" && setting.Value != "" {
				Date = setting.Value
			}
		}
	}
}

// String renders "version (commit: c, built: d)".
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}

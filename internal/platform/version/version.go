// Package version exposes build metadata stamped in with -ldflags, e.g.
//
//	-X github.com/radudiaconu0/sockudo/internal/platform/version.Version=v1.2.0
package version

import (
	"fmt"
	"log/slog"
	"runtime"
)

// ProtocolVersion is the client protocol revision the server speaks.
const ProtocolVersion = 7

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Protocol  int    `json:"protocol"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Protocol:  ProtocolVersion,
	}
}

// String renders the one-line form printed by -version.
func (i Info) String() string {
	return fmt.Sprintf("sockudo %s (commit %s, built %s, %s, protocol %d)",
		i.Version, shortCommit(i.Commit), i.BuildTime, i.GoVersion, i.Protocol)
}

// LogValue groups the build fields under a single log attribute.
func (i Info) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", i.Version),
		slog.String("commit", shortCommit(i.Commit)),
		slog.String("go", i.GoVersion),
		slog.Int("protocol", i.Protocol),
	)
}

func shortCommit(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

// In file: cmd/gateway/version.go
package main

import (
	"fmt"
	"runtime"
)

// Injected at link time, e.g.:
//
//	go build -ldflags "-X main.version=v1.2.0 -X main.gitCommit=$(git rev-parse --short HEAD)"
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

// BuildInfo describes the running binary; it is logged once at startup so
// deployed gateways can be matched to a commit from their logs alone.
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
	GoVersion string
	Platform  string
}

func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		BuildDate: buildDate,
		GitCommit: gitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

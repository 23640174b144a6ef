// Package version carries build metadata.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time via ldflags:
// -X github.com/voxnote/voxnote/internal/version.Version=v0.3.0
// -X github.com/voxnote/voxnote/internal/version.Commit=abc1234
// -X github.com/voxnote/voxnote/internal/version.BuildTime=2026-08-31T10:30:00Z
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns a human-readable one-liner.
func String() string {
	return fmt.Sprintf("voxnote %s (%s, %s, %s)", Version, Commit, BuildTime, runtime.Version())
}

// Package buildinfo exposes the version metadata the build stamps into
// the binary, plus the process start time for uptime reporting.
//
// Release builds pass -ldflags "-X .../buildinfo.Version=..." for each
// of the four variables; a plain `go build` leaves the dev defaults in
// place.
package buildinfo

import (
	"fmt"
	"runtime"
	"time"
)

// Stamped by the linker.
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildTime = "unknown"
)

var started = time.Now()

// String renders the single-line form used in startup logs:
//
//	ferryd dev (abc1234@main) built 2025-08-01T10:00:00Z
func String() string {
	return fmt.Sprintf("ferryd %s (%s@%s) built %s", Version, GitCommit, GitBranch, BuildTime)
}

// UserAgent is the User-Agent value for outbound bridge calls, for
// example "ferryd/dev (linux; amd64)".
func UserAgent() string {
	return fmt.Sprintf("ferryd/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH)
}

// Uptime reports how long this process has been running, truncated to
// whole seconds.
func Uptime() time.Duration {
	return time.Since(started).Truncate(time.Second)
}

// Info collects the stamped values and the runtime environment into a
// flat map for the version subcommand and the telemetry sensors.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"git_branch": GitBranch,
		"build_time": BuildTime,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"uptime":     Uptime().String(),
	}
}

// Package buildinfo exposes version metadata stamped into the binary
// at link time, plus the runtime facts reported alongside it.
package buildinfo

import (
	"fmt"
	"runtime"
	"time"
)

// Stamped via -ldflags "-X ..."; the defaults identify an unstamped
// development build.
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildTime = "unknown"
)

var startTime = time.Now()

// String is the one-line banner logged at startup.
func String() string {
	return fmt.Sprintf("Scribe %s (%s@%s) built %s", Version, GitCommit, GitBranch, BuildTime)
}

// UserAgent is the User-Agent value stamped on outbound HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("Scribe/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH)
}

// Uptime reports how long the process has been running, truncated to
// whole seconds.
func Uptime() time.Duration {
	return time.Since(startTime).Truncate(time.Second)
}

// Info collects build and runtime metadata for the version endpoint
// and the version subcommand.
func Info() map[string]string {
	info := map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"git_branch": GitBranch,
		"build_time": BuildTime,
	}
	info["go_version"] = runtime.Version()
	info["os"] = runtime.GOOS
	info["arch"] = runtime.GOARCH
	info["uptime"] = Uptime().String()
	return info
}

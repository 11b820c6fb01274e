package version

import (
	"runtime"
	"time"
)

var (
	Version   = "dev"                           // ex: v0.3.0
	Commit    = "none"                          // ex: 9f1c2ab
	BuildDate = time.Now().Format(time.RFC3339) // ex: 2026-01-04T09:12:00Z
	GoVersion = runtime.Version()
)

// UserAgent is sent on every request to the routing daemon.
func UserAgent() string {
	return "switchboard/" + Version
}

package redis

const (
	// KeyLogs is the list holding flushed daemon log entries, oldest first.
	KeyLogs = "switchboard:logs"
	// KeySnapshot holds the last topology fetched from the daemon.
	KeySnapshot = "switchboard:topology:snapshot"
)

// LogsKey returns the Redis key of the log history list.
func LogsKey() string {
	return KeyLogs
}

// SnapshotKey returns the Redis key of the cached topology snapshot.
func SnapshotKey() string {
	return KeySnapshot
}

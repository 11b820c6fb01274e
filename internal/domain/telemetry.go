package domain

import "time"

// TrafficSample is one message of the traffic stream, in bytes per second.
type TrafficSample struct {
	UploadBps   int64     `json:"up"`
	DownloadBps int64     `json:"down"`
	At          time.Time `json:"at"`
}

// MemorySample is one message of the memory stream.
type MemorySample struct {
	InUseBytes int64     `json:"inuse"`
	At         time.Time `json:"at"`
}

// LogEntry is a daemon log line stamped on receipt.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"time"`
	Level     string    `json:"type"`
	Payload   string    `json:"payload"`
}

package clash

// ProxyInfo is one entry of GET /proxies.
type ProxyInfo struct {
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	All     []string       `json:"all,omitempty"` // groups only
	Now     string         `json:"now,omitempty"` // groups only
	UDP     bool           `json:"udp"`
	XUDP    bool           `json:"xudp"`
	TFO     bool           `json:"tfo"`
	History []DelayHistory `json:"history"`
}

// DelayHistory is one past latency measurement kept by the daemon.
type DelayHistory struct {
	Time  string `json:"time"`
	Delay int    `json:"delay"`
}

// DelayResponse is the body of GET /proxies/{name}/delay.
type DelayResponse struct {
	Delay   int    `json:"delay"`
	Message string `json:"message,omitempty"`
}

// Configs is the subset of GET /configs the client reads.
type Configs struct {
	Mode               string     `json:"mode"`
	Port               int        `json:"port"`
	MixedPort          int        `json:"mixed-port"`
	LogLevel           string     `json:"log-level"`
	IPv6               bool       `json:"ipv6"`
	AllowLan           bool       `json:"allow-lan"`
	ExternalController string     `json:"external-controller,omitempty"`
	Tun                *TunConfig `json:"tun,omitempty"`
}

// TunConfig toggles the daemon's TUN device.
type TunConfig struct {
	Enable bool `json:"enable"`
}

// ConfigPatch is the body of PATCH /configs. Empty fields are left untouched.
type ConfigPatch struct {
	Mode string     `json:"mode,omitempty"`
	Tun  *TunConfig `json:"tun,omitempty"`
}

// ConnectionMetadata describes the endpoints of a tracked connection.
type ConnectionMetadata struct {
	Network         string `json:"network"`
	Type            string `json:"type"`
	SourceIP        string `json:"sourceIP"`
	DestinationIP   string `json:"destinationIP"`
	SourcePort      string `json:"sourcePort"`
	DestinationPort string `json:"destinationPort"`
	Host            string `json:"host"`
	ProcessPath     string `json:"processPath,omitempty"`
}

// Connection is one entry of GET /connections.
type Connection struct {
	ID          string             `json:"id"`
	Metadata    ConnectionMetadata `json:"metadata"`
	Upload      int64              `json:"upload"`
	Download    int64              `json:"download"`
	Start       string             `json:"start"`
	Chains      []string           `json:"chains"`
	Rule        string             `json:"rule"`
	RulePayload string             `json:"rulePayload"`
}

// ConnectionsResponse is the body of GET /connections.
type ConnectionsResponse struct {
	DownloadTotal int64        `json:"downloadTotal"`
	UploadTotal   int64        `json:"uploadTotal"`
	Connections   []Connection `json:"connections"`
}

// Rule is one entry of GET /rules.
type Rule struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Proxy   string `json:"proxy"`
}

type rulesResponse struct {
	Rules []Rule `json:"rules"`
}

// VersionInfo is the body of GET /version.
type VersionInfo struct {
	Version string `json:"version"`
	Meta    bool   `json:"meta"`
}

// TrafficMessage is one frame of the traffic stream.
type TrafficMessage struct {
	Up   int64 `json:"up"`
	Down int64 `json:"down"`
}

// MemoryMessage is one frame of the memory stream.
type MemoryMessage struct {
	InUse   int64 `json:"inuse"`
	OSLimit int64 `json:"oslimit"`
}

// LogMessage is one frame of the log stream.
type LogMessage struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

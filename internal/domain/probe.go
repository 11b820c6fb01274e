package domain

// Outcome is the result class of a single latency probe.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
)

// ProbeResult is what a probe produced for one node.
// Sequence is assigned when the probe is issued; a result whose sequence is no
// longer the latest for its node is Stale and was not written to the store.
type ProbeResult struct {
	NodeName  string  `json:"node"`
	Outcome   Outcome `json:"outcome"`
	LatencyMs int     `json:"latencyMs,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	Sequence  uint64  `json:"sequence"`
	Stale     bool    `json:"stale,omitempty"`
}

// State maps the outcome onto the node's probe state.
func (r ProbeResult) State() ProbeState {
	switch r.Outcome {
	case OutcomeSuccess:
		return ProbeSuccess
	case OutcomeTimeout:
		return ProbeTimeout
	default:
		return ProbeError
	}
}

// SiteResult is a latency check of a group against a named test URL.
type SiteResult struct {
	Site      string  `json:"site"`
	URL       string  `json:"url"`
	Outcome   Outcome `json:"outcome"`
	LatencyMs int     `json:"latencyMs,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

package domain

// Kind classifies a proxy entity reported by the daemon.
type Kind string

const (
	KindDirect   Kind = "Direct"
	KindReject   Kind = "Reject"
	KindSelector Kind = "Selector"
	KindURLTest  Kind = "URLTest"
	KindFallback Kind = "Fallback"
	// KindConcrete covers every outbound protocol (Shadowsocks, Vmess, Trojan, ...).
	// The protocol name itself is kept in ProxyNode.Type.
	KindConcrete Kind = "Concrete"
	// KindUnknown is synthesized locally for names that cannot be resolved.
	KindUnknown Kind = "Unknown"
)

// GlobalGroup is the reserved group the daemon exposes for global mode.
const GlobalGroup = "GLOBAL"

// KindOf maps the daemon's "type" string to a Kind.
func KindOf(typ string) Kind {
	switch typ {
	case "Direct":
		return KindDirect
	case "Reject", "RejectDrop":
		return KindReject
	case "Selector":
		return KindSelector
	case "URLTest":
		return KindURLTest
	case "Fallback":
		return KindFallback
	case "", "Unknown":
		return KindUnknown
	default:
		return KindConcrete
	}
}

// IsGroup reports whether nodes of this kind own members and an active pointer.
func (k Kind) IsGroup() bool {
	return k == KindSelector || k == KindURLTest || k == KindFallback
}

// IsPassThrough reports kinds that are not meaningfully probeable.
func (k Kind) IsPassThrough() bool {
	return k == KindDirect || k == KindReject
}

// ProbeState is the per-node latency probe lifecycle.
type ProbeState string

const (
	ProbeIdle    ProbeState = "idle"
	ProbeTesting ProbeState = "testing"
	ProbeSuccess ProbeState = "success"
	ProbeTimeout ProbeState = "timeout"
	ProbeError   ProbeState = "error"
)

// Capability is a bit set of transport features a node advertises.
type Capability uint8

const (
	CapUDP Capability = 1 << iota
	CapTFO
)

func (c Capability) Has(flag Capability) bool { return c&flag != 0 }

// Names lists the capability flags in a stable order, for display.
func (c Capability) Names() []string {
	var out []string
	if c.Has(CapUDP) {
		out = append(out, "UDP")
	}
	if c.Has(CapTFO) {
		out = append(out, "TFO")
	}
	return out
}

// ProxyNode is one entity of the daemon's proxy graph: a group or a concrete outbound.
type ProxyNode struct {
	Name          string     `json:"name"`
	Type          string     `json:"type"`
	Kind          Kind       `json:"kind"`
	Members       []string   `json:"members,omitempty"` // server order, never re-sorted in place
	Active        string     `json:"active,omitempty"`
	LastLatencyMs *int       `json:"lastLatencyMs,omitempty"`
	ProbeState    ProbeState `json:"probeState"`
	Capabilities  Capability `json:"-"`
}

// IsGroup reports whether the node is a strategy group.
func (n *ProxyNode) IsGroup() bool {
	return n.Kind.IsGroup()
}

// Clone returns a deep copy so callers never alias store-owned slices or pointers.
func (n *ProxyNode) Clone() *ProxyNode {
	if n == nil {
		return nil
	}
	c := *n
	if n.Members != nil {
		c.Members = append([]string(nil), n.Members...)
	}
	if n.LastLatencyMs != nil {
		v := *n.LastLatencyMs
		c.LastLatencyMs = &v
	}
	return &c
}

// UnknownNode builds the synthetic placeholder returned for unresolvable names.
func UnknownNode(name string) *ProxyNode {
	return &ProxyNode{
		Name:       name,
		Type:       string(KindUnknown),
		Kind:       KindUnknown,
		ProbeState: ProbeIdle,
	}
}

// Latency returns a pointer to ms, for populating LastLatencyMs.
func Latency(ms int) *int {
	return &ms
}

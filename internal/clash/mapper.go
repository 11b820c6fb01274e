package clash

import "github.com/MrSnakeDoc/switchboard/internal/domain"

// ToNode maps one daemon entry into the domain model. The most recent history
// entry seeds the latency so a freshly started service is not blank.
func ToNode(p ProxyInfo) *domain.ProxyNode {
	n := &domain.ProxyNode{
		Name:       p.Name,
		Type:       p.Type,
		Kind:       domain.KindOf(p.Type),
		ProbeState: domain.ProbeIdle,
	}
	if n.Kind.IsGroup() {
		n.Members = append([]string(nil), p.All...)
		n.Active = p.Now
	}
	if p.UDP || p.XUDP {
		n.Capabilities |= domain.CapUDP
	}
	if p.TFO {
		n.Capabilities |= domain.CapTFO
	}

	if len(p.History) > 0 {
		if d := p.History[len(p.History)-1].Delay; d > 0 {
			n.LastLatencyMs = domain.Latency(d)
			n.ProbeState = domain.ProbeSuccess
		} else {
			n.ProbeState = domain.ProbeTimeout
		}
	}
	return n
}

// ToNodes maps a full /proxies listing, keeping its order.
func ToNodes(proxies []ProxyInfo) []*domain.ProxyNode {
	out := make([]*domain.ProxyNode, 0, len(proxies))
	for _, p := range proxies {
		if p.Name == "" {
			continue
		}
		out = append(out, ToNode(p))
	}
	return out
}

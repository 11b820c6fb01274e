package clash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/switchboard/internal/domain"
)

func TestToNode(t *testing.T) {
	tests := []struct {
		name    string
		in      ProxyInfo
		kind    domain.Kind
		state   domain.ProbeState
		latency *int
		caps    domain.Capability
		members []string
		active  string
	}{
		{
			name:    "concrete with history",
			in:      ProxyInfo{Name: "HK", Type: "Trojan", UDP: true, TFO: true, History: []DelayHistory{{Delay: 300}, {Delay: 120}}},
			kind:    domain.KindConcrete,
			state:   domain.ProbeSuccess,
			latency: domain.Latency(120),
			caps:    domain.CapUDP | domain.CapTFO,
		},
		{
			name:  "last history entry failed",
			in:    ProxyInfo{Name: "JP", Type: "Vmess", XUDP: true, History: []DelayHistory{{Delay: 80}, {Delay: 0}}},
			kind:  domain.KindConcrete,
			state: domain.ProbeTimeout,
			caps:  domain.CapUDP,
		},
		{
			name:    "selector",
			in:      ProxyInfo{Name: "Proxy", Type: "Selector", All: []string{"HK", "JP"}, Now: "JP"},
			kind:    domain.KindSelector,
			state:   domain.ProbeIdle,
			members: []string{"HK", "JP"},
			active:  "JP",
		},
		{
			name:  "members ignored on non-groups",
			in:    ProxyInfo{Name: "DIRECT", Type: "Direct", All: []string{"x"}, Now: "x"},
			kind:  domain.KindDirect,
			state: domain.ProbeIdle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := ToNode(tt.in)
			assert.Equal(t, tt.in.Name, n.Name)
			assert.Equal(t, tt.in.Type, n.Type)
			assert.Equal(t, tt.kind, n.Kind)
			assert.Equal(t, tt.state, n.ProbeState)
			assert.Equal(t, tt.latency, n.LastLatencyMs)
			assert.Equal(t, tt.caps, n.Capabilities)
			assert.Equal(t, tt.members, n.Members)
			assert.Equal(t, tt.active, n.Active)
		})
	}
}

func TestToNodes_SkipsNamelessAndKeepsOrder(t *testing.T) {
	nodes := ToNodes([]ProxyInfo{
		{Name: "B", Type: "Direct"},
		{Type: "Direct"},
		{Name: "A", Type: "Reject"},
	})
	require.Len(t, nodes, 2)
	assert.Equal(t, "B", nodes[0].Name)
	assert.Equal(t, "A", nodes[1].Name)
}

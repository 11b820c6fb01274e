package topology

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/switchboard/internal/domain"
	"github.com/MrSnakeDoc/switchboard/internal/logger"
)

func group(name string, kind domain.Kind, active string, members ...string) *domain.ProxyNode {
	return &domain.ProxyNode{
		Name:       name,
		Type:       string(kind),
		Kind:       kind,
		Members:    members,
		Active:     active,
		ProbeState: domain.ProbeIdle,
	}
}

func leaf(name string) *domain.ProxyNode {
	return &domain.ProxyNode{
		Name:       name,
		Type:       "Shadowsocks",
		Kind:       domain.KindConcrete,
		ProbeState: domain.ProbeIdle,
	}
}

func autoTopology(active string) Snapshot {
	return Snapshot{
		Mode: "Rule",
		Nodes: []*domain.ProxyNode{
			group("Auto", domain.KindURLTest, active, "A", "B", "C"),
			leaf("A"),
			leaf("B"),
			leaf("C"),
		},
	}
}

func newTestStore(opts ...Option) *Store {
	return NewStore(logger.NewNop(), opts...)
}

func TestReplaceSnapshot_KeepsServerOrder(t *testing.T) {
	s := newTestStore()
	s.ReplaceSnapshot(autoTopology("B"))

	names := make([]string, 0)
	for _, n := range s.Nodes() {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"Auto", "A", "B", "C"}, names)
	assert.Equal(t, "rule", s.Mode())
	assert.True(t, s.Ready())

	members, err := s.Members("Auto")
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "A", members[0].Name)
}

func TestReplaceSnapshot_KeepsInFlightProbe(t *testing.T) {
	s := newTestStore()
	s.ReplaceSnapshot(autoTopology("B"))

	_, fresh := s.BeginProbe("A")
	require.True(t, fresh)

	incoming := autoTopology("B")
	incoming.Nodes[1].ProbeState = domain.ProbeIdle
	s.ReplaceSnapshot(incoming)

	a, ok := s.Node("A")
	require.True(t, ok)
	assert.Equal(t, domain.ProbeTesting, a.ProbeState)
}

func TestReplaceSnapshot_OverwritesSettledState(t *testing.T) {
	s := newTestStore()
	s.ReplaceSnapshot(autoTopology("B"))

	seq, _ := s.BeginProbe("A")
	require.True(t, s.CompleteProbe(domain.ProbeResult{
		NodeName: "A", Outcome: domain.OutcomeSuccess, LatencyMs: 80, Sequence: seq,
	}))

	incoming := autoTopology("B")
	incoming.Nodes[1].ProbeState = domain.ProbeTimeout
	s.ReplaceSnapshot(incoming)

	a, _ := s.Node("A")
	assert.Equal(t, domain.ProbeTimeout, a.ProbeState)
	assert.Nil(t, a.LastLatencyMs)
}

func TestReplaceSnapshot_IncomingTestingIsNormalised(t *testing.T) {
	s := newTestStore()
	incoming := autoTopology("B")
	incoming.Nodes[1].ProbeState = domain.ProbeTesting
	s.ReplaceSnapshot(incoming)

	a, _ := s.Node("A")
	assert.Equal(t, domain.ProbeIdle, a.ProbeState)
}

func TestNode_ReturnsCopies(t *testing.T) {
	s := newTestStore()
	s.ReplaceSnapshot(autoTopology("B"))

	g, _ := s.Node("Auto")
	g.Members[0] = "mutated"
	g.Active = "mutated"

	again, _ := s.Node("Auto")
	assert.Equal(t, "A", again.Members[0])
	assert.Equal(t, "B", again.Active)
}

func TestSelectActive(t *testing.T) {
	s := newTestStore()
	s.ReplaceSnapshot(autoTopology("B"))

	tests := []struct {
		name    string
		group   string
		member  string
		wantErr error
	}{
		{name: "valid member", group: "Auto", member: "C"},
		{name: "unknown group", group: "Nope", member: "C", wantErr: ErrGroupNotFound},
		{name: "not a group", group: "A", member: "C", wantErr: ErrNotGroup},
		{name: "not a member", group: "Auto", member: "Z", wantErr: ErrNotMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SelectActive(tt.group, tt.member)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSelectActive_OptimisticThenOverridden(t *testing.T) {
	s := newTestStore()
	s.ReplaceSnapshot(autoTopology("B"))

	require.NoError(t, s.SelectActive("Auto", "C"))
	assert.Equal(t, "C", s.ResolveLeaf("Auto").Leaf.Name)

	// the daemon rejected the switch and still reports B
	s.ReplaceSnapshot(autoTopology("B"))
	assert.Equal(t, "B", s.ResolveLeaf("Auto").Leaf.Name)
}

func TestProbeThenResolve(t *testing.T) {
	s := newTestStore()
	s.ReplaceSnapshot(autoTopology("B"))

	seq, fresh := s.BeginProbe("B")
	require.True(t, fresh)
	require.True(t, s.CompleteProbe(domain.ProbeResult{
		NodeName: "B", Outcome: domain.OutcomeSuccess, LatencyMs: 142, Sequence: seq,
	}))

	res := s.ResolveLeaf("Auto")
	assert.Equal(t, "B", res.Leaf.Name)
	require.NotNil(t, res.Leaf.LastLatencyMs)
	assert.Equal(t, 142, *res.Leaf.LastLatencyMs)
	assert.Equal(t, domain.ProbeSuccess, res.Leaf.ProbeState)
	assert.Equal(t, []string{"Auto", "B"}, res.Chain)
}

func TestBeginProbe_JoinsInFlight(t *testing.T) {
	s := newTestStore()
	s.ReplaceSnapshot(autoTopology("B"))

	first, fresh := s.BeginProbe("A")
	require.True(t, fresh)
	second, fresh := s.BeginProbe("A")
	assert.False(t, fresh)
	assert.Equal(t, first, second)
}

func TestCompleteProbe_DiscardsStaleResult(t *testing.T) {
	s := newTestStore()
	s.ReplaceSnapshot(autoTopology("B"))

	older, _ := s.BeginProbe("A")

	// A disappears and comes back: its Testing state is gone, so a new probe is issued.
	s.ReplaceSnapshot(Snapshot{Nodes: []*domain.ProxyNode{leaf("B")}})
	s.ReplaceSnapshot(autoTopology("B"))
	newer, fresh := s.BeginProbe("A")
	require.True(t, fresh)
	require.Greater(t, newer, older)

	// newer finishes first, older straggles in afterwards
	assert.True(t, s.CompleteProbe(domain.ProbeResult{
		NodeName: "A", Outcome: domain.OutcomeSuccess, LatencyMs: 55, Sequence: newer,
	}))
	assert.False(t, s.CompleteProbe(domain.ProbeResult{
		NodeName: "A", Outcome: domain.OutcomeTimeout, Sequence: older,
	}))

	a, _ := s.Node("A")
	assert.Equal(t, domain.ProbeSuccess, a.ProbeState)
	require.NotNil(t, a.LastLatencyMs)
	assert.Equal(t, 55, *a.LastLatencyMs)

	assert.True(t, s.ProbeOutcome("A", older).Stale)
	assert.Equal(t, 55, s.ProbeOutcome("A", newer).LatencyMs)
}

func TestCompleteProbe_UnknownNode(t *testing.T) {
	s := newTestStore()
	seq, fresh := s.BeginProbe("ghost")
	require.True(t, fresh)
	assert.True(t, s.CompleteProbe(domain.ProbeResult{NodeName: "ghost", Outcome: domain.OutcomeError, Sequence: seq}))
	_, ok := s.Node("ghost")
	assert.False(t, ok)
}

func TestDisplayGroup(t *testing.T) {
	tests := []struct {
		name  string
		snap  Snapshot
		want  string
		setup func(s *Store)
	}{
		{
			name: "first selector in server order",
			snap: Snapshot{Mode: "rule", Nodes: []*domain.ProxyNode{
				group(domain.GlobalGroup, domain.KindSelector, "Proxy", "Proxy", "Media"),
				group("Media", domain.KindSelector, "A", "A"),
				group("Proxy", domain.KindSelector, "A", "A"),
				leaf("A"),
			}},
			want: "Media",
		},
		{
			name: "drills into nested strategy group once",
			snap: Snapshot{Mode: "rule", Nodes: []*domain.ProxyNode{
				group("Proxy", domain.KindSelector, "Auto", "Auto", "A"),
				group("Auto", domain.KindURLTest, "Inner", "Inner"),
				group("Inner", domain.KindSelector, "A", "A"),
				leaf("A"),
			}},
			want: "Auto",
		},
		{
			name: "global mode shows GLOBAL",
			snap: Snapshot{Mode: "Global", Nodes: []*domain.ProxyNode{
				group("Proxy", domain.KindSelector, "A", "A"),
				group(domain.GlobalGroup, domain.KindSelector, "Proxy", "Proxy"),
				leaf("A"),
			}},
			want: domain.GlobalGroup,
		},
		{
			name: "no selectors",
			snap: Snapshot{Mode: "rule", Nodes: []*domain.ProxyNode{
				group("Auto", domain.KindURLTest, "A", "A"),
				leaf("A"),
			}},
			want: "",
		},
		{
			name: "pinned group survives snapshot",
			snap: Snapshot{Mode: "rule", Nodes: []*domain.ProxyNode{
				group("Proxy", domain.KindSelector, "A", "A"),
				group("Media", domain.KindSelector, "A", "A"),
				leaf("A"),
			}},
			setup: func(s *Store) {
				s.ReplaceSnapshot(Snapshot{Nodes: []*domain.ProxyNode{
					group("Proxy", domain.KindSelector, "A", "A"),
					group("Media", domain.KindSelector, "A", "A"),
					leaf("A"),
				}})
				if err := s.SetDisplayGroup("Media"); err != nil {
					panic(err)
				}
			},
			want: "Media",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore()
			if tt.setup != nil {
				tt.setup(s)
			}
			s.ReplaceSnapshot(tt.snap)
			assert.Equal(t, tt.want, s.DisplayGroup())
		})
	}
}

func TestExport_RoundTrip(t *testing.T) {
	s := newTestStore()
	s.ReplaceSnapshot(autoTopology("C"))

	other := newTestStore()
	other.ReplaceSnapshot(s.Export())

	assert.Equal(t, "C", other.ResolveLeaf("Auto").Leaf.Name)
	assert.Equal(t, s.Count(), other.Count())
}

func TestSetDisplayGroup_Errors(t *testing.T) {
	s := newTestStore()
	s.ReplaceSnapshot(autoTopology("B"))
	assert.ErrorIs(t, s.SetDisplayGroup("missing"), ErrGroupNotFound)
	assert.ErrorIs(t, s.SetDisplayGroup("A"), ErrNotGroup)
	assert.NoError(t, s.SetDisplayGroup("Auto"))
	assert.Equal(t, "Auto", s.DisplayGroup())
}

func ExampleStore_ResolveLeaf() {
	s := NewStore(logger.NewNop())
	s.ReplaceSnapshot(Snapshot{Nodes: []*domain.ProxyNode{
		group("Proxy", domain.KindSelector, "Auto", "Auto"),
		group("Auto", domain.KindURLTest, "Tokyo", "Tokyo"),
		leaf("Tokyo"),
	}})
	res := s.ResolveLeaf("Proxy")
	fmt.Println(res.Leaf.Name, res.Chain)
	// Output: Tokyo [Proxy Auto Tokyo]
}

package topology

import (
	"slices"
	"strings"

	"github.com/MrSnakeDoc/switchboard/internal/domain"
)

// SortMode is a display-only ordering of group members.
type SortMode string

const (
	SortDefault SortMode = "default" // server order
	SortName    SortMode = "name"
	SortLatency SortMode = "latency"
)

// ParseSortMode maps a query value to a SortMode, defaulting to server order.
func ParseSortMode(v string) SortMode {
	switch SortMode(strings.ToLower(strings.TrimSpace(v))) {
	case SortName:
		return SortName
	case SortLatency:
		return SortLatency
	default:
		return SortDefault
	}
}

// timeoutRank places nodes without a usable latency after every measured one.
const timeoutRank = 9_999_999

// SortMembers returns a sorted copy of members. The input slice is not modified.
func SortMembers(members []*domain.ProxyNode, mode SortMode) []*domain.ProxyNode {
	out := slices.Clone(members)
	switch mode {
	case SortName:
		slices.SortStableFunc(out, func(a, b *domain.ProxyNode) int {
			return strings.Compare(a.Name, b.Name)
		})
	case SortLatency:
		slices.SortStableFunc(out, func(a, b *domain.ProxyNode) int {
			return latencyRank(a) - latencyRank(b)
		})
	}
	return out
}

func latencyRank(n *domain.ProxyNode) int {
	if n.LastLatencyMs == nil || *n.LastLatencyMs <= 0 {
		return timeoutRank
	}
	return *n.LastLatencyMs
}

// DisplayGroups orders groups for listing: GLOBAL first, then selectors, then
// the other strategy groups, each tier in server order. GLOBAL is hidden
// unless the daemon runs in global mode.
func DisplayGroups(groups []*domain.ProxyNode, mode string) []*domain.ProxyNode {
	out := make([]*domain.ProxyNode, 0, len(groups))
	for _, g := range groups {
		if g.Name == domain.GlobalGroup && mode != ModeGlobal {
			continue
		}
		out = append(out, g)
	}
	slices.SortStableFunc(out, func(a, b *domain.ProxyNode) int {
		return groupWeight(a) - groupWeight(b)
	})
	return out
}

func groupWeight(g *domain.ProxyNode) int {
	switch {
	case g.Name == domain.GlobalGroup:
		return 0
	case g.Kind == domain.KindSelector:
		return 1
	default:
		return 2
	}
}

package topology

import (
	"github.com/MrSnakeDoc/switchboard/internal/domain"
	"github.com/MrSnakeDoc/switchboard/internal/logger"
)

// DefaultMaxDepth bounds active-pointer chasing; far above any real nesting.
const DefaultMaxDepth = 32

// Anomaly explains why a resolution ended on a synthetic Unknown leaf.
type Anomaly string

const (
	AnomalyNone  Anomaly = ""
	AnomalyCycle Anomaly = "cycle"
	AnomalyDepth Anomaly = "depth"
)

// Resolution is the outcome of following active pointers from a group.
// Chain lists every visited name in order, the leaf included.
type Resolution struct {
	Leaf    *domain.ProxyNode `json:"leaf"`
	Chain   []string          `json:"chain"`
	Anomaly Anomaly           `json:"anomaly,omitempty"`
}

// ResolveLeaf follows active pointers from name until it reaches a concrete
// node, a group without a selection, or a name missing from the table.
// Cycles and chains longer than the depth bound end on an Unknown leaf.
func (s *Store) ResolveLeaf(name string) Resolution {
	s.mu.RLock()
	res := resolve(s.nodes, name, s.maxDepth)
	s.mu.RUnlock()

	if res.Anomaly != AnomalyNone {
		s.reportAnomaly(name, res)
	}
	return res
}

func resolve(nodes map[string]*domain.ProxyNode, start string, maxDepth int) Resolution {
	visited := make(map[string]struct{}, 4)
	chain := make([]string, 0, 4)
	current := start

	for {
		if _, seen := visited[current]; seen {
			return Resolution{Leaf: domain.UnknownNode(current), Chain: chain, Anomaly: AnomalyCycle}
		}
		if len(chain) >= maxDepth {
			return Resolution{Leaf: domain.UnknownNode(current), Chain: chain, Anomaly: AnomalyDepth}
		}
		visited[current] = struct{}{}
		chain = append(chain, current)

		node, ok := nodes[current]
		if !ok {
			return Resolution{Leaf: domain.UnknownNode(current), Chain: chain}
		}
		if !node.IsGroup() || node.Active == "" {
			return Resolution{Leaf: node.Clone(), Chain: chain}
		}
		current = node.Active
	}
}

// reportAnomaly logs a malformed chain once per (group, kind).
func (s *Store) reportAnomaly(group string, res Resolution) {
	key := group + "\x00" + string(res.Anomaly)

	s.anomalyMu.Lock()
	_, logged := s.anomalies[key]
	if !logged {
		s.anomalies[key] = struct{}{}
	}
	s.anomalyMu.Unlock()

	if logged || s.logger == nil {
		return
	}
	s.logger.Warn("proxy chain could not be resolved",
		logger.String("group", group),
		logger.String("anomaly", string(res.Anomaly)),
		logger.Strings("chain", res.Chain))
}

// pickDisplayLocked decides which group the dashboard shows after a snapshot.
// Callers hold s.mu for writing.
func (s *Store) pickDisplayLocked() string {
	if s.mode == ModeGlobal {
		if g, ok := s.nodes[domain.GlobalGroup]; ok && g.IsGroup() {
			return domain.GlobalGroup
		}
	}

	if s.display != "" && s.display != domain.GlobalGroup {
		if g, ok := s.nodes[s.display]; ok && g.IsGroup() {
			return s.display
		}
	}
	return DefaultGroup(s.order, s.nodes)
}

// DefaultGroup picks the first Selector in server order, GLOBAL excluded.
// When that selector's active member is itself a group, the member is
// returned instead. The drill-down happens once only.
func DefaultGroup(order []string, nodes map[string]*domain.ProxyNode) string {
	for _, name := range order {
		n, ok := nodes[name]
		if !ok || n.Kind != domain.KindSelector || n.Name == domain.GlobalGroup {
			continue
		}
		if next, ok := nodes[n.Active]; ok && next.IsGroup() {
			return next.Name
		}
		return n.Name
	}
	return ""
}

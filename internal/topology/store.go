// Package topology holds the client's view of the daemon's proxy graph.
//
// Write paths are fixed: ReplaceSnapshot (reconciliation), SelectActive
// (optimistic user selection) and BeginProbe/CompleteProbe (probe scheduler).
// Precedence between them is last-writer-wins except for one rule: a node
// that is being probed stays Testing across snapshot replacement, because a
// snapshot fetched before the probe started cannot know about it. Changing
// that precedence changes what clients observe and must be treated as a
// breaking change.
package topology

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/switchboard/internal/domain"
	"github.com/MrSnakeDoc/switchboard/internal/logger"
)

var (
	ErrGroupNotFound = errors.New("topology: group not found")
	ErrNotGroup      = errors.New("topology: node is not a group")
	ErrNotMember     = errors.New("topology: node is not a member of the group")
)

// ModeGlobal is the daemon mode in which the GLOBAL group routes everything.
const ModeGlobal = "global"

// Snapshot is a full topology as fetched from the daemon, in server order.
type Snapshot struct {
	Nodes []*domain.ProxyNode `json:"nodes"`
	Mode  string              `json:"mode"`
}

// Store is the in-memory proxy graph shared by the reconciler, the probe
// scheduler and the API.
type Store struct {
	mu       sync.RWMutex
	nodes    map[string]*domain.ProxyNode // name -> node
	order    []string                     // server order
	mode     string
	display  string
	lastSync time.Time

	seq        uint64                        // global probe sequence counter
	latest     map[string]uint64             // node -> sequence of the newest probe issued
	lastResult map[string]domain.ProbeResult // node -> newest applied result

	maxDepth int
	logger   logger.Logger

	anomalyMu sync.Mutex
	anomalies map[string]struct{}
}

// Option customizes a Store.
type Option func(*Store)

// WithMaxDepth overrides the leaf resolution depth bound.
func WithMaxDepth(depth int) Option {
	return func(s *Store) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// NewStore creates an empty store.
func NewStore(log logger.Logger, opts ...Option) *Store {
	s := &Store{
		nodes:      make(map[string]*domain.ProxyNode),
		latest:     make(map[string]uint64),
		lastResult: make(map[string]domain.ProbeResult),
		maxDepth:   DefaultMaxDepth,
		logger:     log,
		anomalies:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReplaceSnapshot swaps the whole node table for snap.
// Nodes that are Testing locally keep that state; every other field comes
// from the snapshot. The display group is recomputed afterwards.
func (s *Store) ReplaceSnapshot(snap Snapshot) {
	nodes := make(map[string]*domain.ProxyNode, len(snap.Nodes))
	order := make([]string, 0, len(snap.Nodes))

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, incoming := range snap.Nodes {
		if incoming == nil || incoming.Name == "" {
			continue
		}
		if _, dup := nodes[incoming.Name]; dup {
			continue
		}
		n := incoming.Clone()
		if n.ProbeState == "" || n.ProbeState == domain.ProbeTesting {
			// only a local probe can make a node Testing
			n.ProbeState = domain.ProbeIdle
		}
		if old, ok := s.nodes[n.Name]; ok && old.ProbeState == domain.ProbeTesting {
			n.ProbeState = domain.ProbeTesting
		}
		nodes[n.Name] = n
		order = append(order, n.Name)
	}

	s.nodes = nodes
	s.order = order
	s.mode = strings.ToLower(snap.Mode)
	s.lastSync = time.Now()
	s.display = s.pickDisplayLocked()
}

// Export returns a deep copy of the current table, for caching.
func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Snapshot{Mode: s.mode, Nodes: make([]*domain.ProxyNode, 0, len(s.order))}
	for _, name := range s.order {
		out.Nodes = append(out.Nodes, s.nodes[name].Clone())
	}
	return out
}

// Node returns a copy of the named node.
func (s *Store) Node(name string) (*domain.ProxyNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[name]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// Nodes returns copies of all nodes in server order.
func (s *Store) Nodes() []*domain.ProxyNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ProxyNode, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.nodes[name].Clone())
	}
	return out
}

// Groups returns copies of all group nodes in server order.
func (s *Store) Groups() []*domain.ProxyNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ProxyNode
	for _, name := range s.order {
		if n := s.nodes[name]; n.IsGroup() {
			out = append(out, n.Clone())
		}
	}
	return out
}

// Members returns the group's members in server order. Names the table does
// not know are returned as Unknown nodes.
func (s *Store) Members(group string) ([]*domain.ProxyNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.nodes[group]
	if !ok {
		return nil, ErrGroupNotFound
	}
	if !g.IsGroup() {
		return nil, ErrNotGroup
	}
	out := make([]*domain.ProxyNode, 0, len(g.Members))
	for _, name := range g.Members {
		if n, ok := s.nodes[name]; ok {
			out = append(out, n.Clone())
			continue
		}
		out = append(out, domain.UnknownNode(name))
	}
	return out, nil
}

// SelectActive optimistically points group at member before the daemon
// confirms. The next snapshot confirms or overrides it.
func (s *Store) SelectActive(group, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.nodes[group]
	if !ok {
		return ErrGroupNotFound
	}
	if !g.IsGroup() {
		return ErrNotGroup
	}
	if len(g.Members) > 0 && !slices.Contains(g.Members, member) {
		return ErrNotMember
	}
	g.Active = member
	return nil
}

// Mode returns the daemon mode from the last snapshot, lower-cased.
func (s *Store) Mode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// DisplayGroup returns the group currently selected for display.
func (s *Store) DisplayGroup() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.display
}

// SetDisplayGroup pins the display group until the next snapshot decides it
// is no longer valid.
func (s *Store) SetDisplayGroup(group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.nodes[group]
	if !ok {
		return ErrGroupNotFound
	}
	if !g.IsGroup() {
		return ErrNotGroup
	}
	s.display = group
	return nil
}

// LastSync returns when the last snapshot was applied.
func (s *Store) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// Ready reports whether at least one snapshot has been applied.
func (s *Store) Ready() bool {
	return !s.LastSync().IsZero()
}

// Count returns the number of nodes in the table.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

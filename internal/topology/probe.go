package topology

import "github.com/MrSnakeDoc/switchboard/internal/domain"

// BeginProbe registers a probe of name.
// If the node is already Testing, no new sequence is issued: the caller gets
// the in-flight sequence and fresh=false. Otherwise the node is marked
// Testing and a new, strictly larger sequence is returned with fresh=true.
// Names the table does not know always get a fresh sequence.
func (s *Store) BeginProbe(name string) (seq uint64, fresh bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, known := s.nodes[name]
	if known && n.ProbeState == domain.ProbeTesting {
		if cur, ok := s.latest[name]; ok {
			return cur, false
		}
	}

	s.seq++
	s.latest[name] = s.seq
	if known {
		n.ProbeState = domain.ProbeTesting
	}
	return s.seq, true
}

// CompleteProbe applies res if it belongs to the newest probe issued for its
// node and reports whether it did. Results of superseded probes are dropped.
func (s *Store) CompleteProbe(res domain.ProbeResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest[res.NodeName] != res.Sequence {
		return false
	}
	s.lastResult[res.NodeName] = res

	n, ok := s.nodes[res.NodeName]
	if !ok {
		return true
	}
	n.ProbeState = res.State()
	if res.Outcome == domain.OutcomeSuccess {
		n.LastLatencyMs = domain.Latency(res.LatencyMs)
	} else {
		n.LastLatencyMs = nil
	}
	return true
}

// ProbeOutcome returns the result recorded for probe seq of name.
// If a newer probe has been issued since, the returned result is marked Stale.
func (s *Store) ProbeOutcome(name string, seq uint64) domain.ProbeResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest[name] != seq {
		return domain.ProbeResult{
			NodeName: name,
			Outcome:  domain.OutcomeError,
			Reason:   "superseded by a newer probe",
			Sequence: seq,
			Stale:    true,
		}
	}
	if res, ok := s.lastResult[name]; ok && res.Sequence == seq {
		return res
	}
	return domain.ProbeResult{
		NodeName: name,
		Outcome:  domain.OutcomeError,
		Reason:   "probe result unavailable",
		Sequence: seq,
	}
}

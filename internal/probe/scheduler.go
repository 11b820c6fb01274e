// Package probe runs latency probes against proxy nodes through a shared
// concurrency limiter and records their outcomes in the topology store.
package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/switchboard/internal/clash"
	"github.com/MrSnakeDoc/switchboard/internal/domain"
	"github.com/MrSnakeDoc/switchboard/internal/limiter"
	"github.com/MrSnakeDoc/switchboard/internal/logger"
	"github.com/MrSnakeDoc/switchboard/internal/topology"
)

const DefaultTimeout = 2500 * time.Millisecond

// Prober performs one latency measurement of a node through the daemon.
type Prober interface {
	ProxyDelay(ctx context.Context, name, testURL string, timeout time.Duration) (int, error)
}

// Observer is notified of every finished probe. Optional.
type Observer interface {
	ObserveProbe(res domain.ProbeResult)
}

// Request overrides the scheduler defaults for one call. Zero values keep the defaults.
type Request struct {
	URL     string
	Timeout time.Duration
}

// Scheduler issues probes. Concurrent probes of the same node share one
// network call; results of superseded probes never reach the store.
type Scheduler struct {
	store    *topology.Store
	prober   Prober
	limiter  *limiter.Limiter
	logger   logger.Logger
	observer Observer

	// base outlives individual callers: a probe keeps running for the other
	// waiters when the caller that started it goes away.
	base    context.Context
	testURL string
	timeout time.Duration

	mu     sync.Mutex // orders BeginProbe with singleflight registration
	flight singleflight.Group
}

// NewScheduler creates a scheduler. base bounds the lifetime of every probe.
func NewScheduler(
	base context.Context,
	store *topology.Store,
	prober Prober,
	lim *limiter.Limiter,
	log logger.Logger,
	testURL string,
	timeout time.Duration,
) *Scheduler {
	if testURL == "" {
		testURL = clash.DefaultTestURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scheduler{
		store:   store,
		prober:  prober,
		limiter: lim,
		logger:  log,
		base:    base,
		testURL: testURL,
		timeout: timeout,
	}
}

// SetObserver registers o for finished probes.
func (s *Scheduler) SetObserver(o Observer) {
	s.observer = o
}

func (s *Scheduler) resolve(req Request) Request {
	if req.URL == "" {
		req.URL = s.testURL
	}
	if req.Timeout <= 0 {
		req.Timeout = s.timeout
	}
	return req
}

// ProbeNode probes name and returns its outcome. If the node is already
// being probed, the call joins the in-flight probe instead of issuing a new
// one. A cancelled ctx only stops the wait; the probe itself still completes.
func (s *Scheduler) ProbeNode(ctx context.Context, name string, req Request) domain.ProbeResult {
	req = s.resolve(req)

	s.mu.Lock()
	seq, fresh := s.store.BeginProbe(name)
	key := fmt.Sprintf("%s#%d", name, seq)
	ch := s.flight.DoChan(key, func() (any, error) {
		if fresh {
			return s.run(name, seq, req), nil
		}
		// the call that registered this key is gone; report what it left
		return s.store.ProbeOutcome(name, seq), nil
	})
	s.mu.Unlock()

	select {
	case r := <-ch:
		return r.Val.(domain.ProbeResult)
	case <-ctx.Done():
		return domain.ProbeResult{
			NodeName: name,
			Outcome:  domain.OutcomeError,
			Reason:   ctx.Err().Error(),
			Sequence: seq,
		}
	}
}

// run measures the node under the limiter and applies the result.
func (s *Scheduler) run(name string, seq uint64, req Request) domain.ProbeResult {
	fut := limiter.Submit(s.base, s.limiter, func(ctx context.Context) (domain.ProbeResult, error) {
		return s.measure(ctx, name, seq, req), nil
	})

	res, err := fut.Result()
	if err != nil {
		res = domain.ProbeResult{
			NodeName: name,
			Outcome:  domain.OutcomeError,
			Reason:   err.Error(),
			Sequence: seq,
		}
	}

	res.Stale = !s.store.CompleteProbe(res)
	if res.Stale {
		s.logger.Debug("discarding superseded probe result",
			logger.String("node", name),
			logger.Uint64("sequence", seq))
	}
	if s.observer != nil {
		s.observer.ObserveProbe(res)
	}
	return res
}

func (s *Scheduler) measure(ctx context.Context, name string, seq uint64, req Request) domain.ProbeResult {
	res := domain.ProbeResult{NodeName: name, Sequence: seq}

	start := time.Now()
	delay, err := s.prober.ProxyDelay(ctx, name, req.URL, req.Timeout)
	elapsed := time.Since(start)

	switch {
	case err != nil && (errors.Is(err, clash.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) || elapsed >= req.Timeout):
		res.Outcome = domain.OutcomeTimeout
		res.Reason = err.Error()
	case err != nil:
		res.Outcome = domain.OutcomeError
		res.Reason = err.Error()
	case delay <= 0 || time.Duration(delay)*time.Millisecond >= req.Timeout || elapsed >= req.Timeout:
		res.Outcome = domain.OutcomeTimeout
	default:
		res.Outcome = domain.OutcomeSuccess
		res.LatencyMs = delay
	}
	return res
}

// Probeable reports whether a node is worth probing. Direct and Reject
// outbounds always answer instantly.
func Probeable(n *domain.ProxyNode) bool {
	if n.Kind.IsPassThrough() {
		return false
	}
	return n.Name != "DIRECT" && n.Name != "REJECT"
}

// ProbeGroup probes every probeable member of group. Results come back in
// member order. All probes share the scheduler's limiter, so a large group is
// still globally bounded.
func (s *Scheduler) ProbeGroup(ctx context.Context, group string, req Request) ([]domain.ProbeResult, error) {
	members, err := s.store.Members(group)
	if err != nil {
		return nil, err
	}

	targets := make([]string, 0, len(members))
	for _, m := range members {
		if Probeable(m) {
			targets = append(targets, m.Name)
		}
	}

	results := make([]domain.ProbeResult, len(targets))
	var wg sync.WaitGroup
	for i, name := range targets {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i] = s.ProbeNode(ctx, name, req)
		}(i, name)
	}
	wg.Wait()

	s.logger.Info("group probe finished",
		logger.String("group", group),
		logger.Int("nodes", len(results)))
	return results, nil
}

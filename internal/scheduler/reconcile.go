package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/switchboard/internal/clash"
	"github.com/MrSnakeDoc/switchboard/internal/logger"
	"github.com/MrSnakeDoc/switchboard/internal/topology"
)

// ErrNoSnapshot is returned by Ready until a topology has been loaded.
var ErrNoSnapshot = errors.New("scheduler: no topology snapshot yet")

// Fetcher reads server truth from the daemon.
type Fetcher interface {
	Proxies(ctx context.Context) ([]clash.ProxyInfo, error)
	Configs(ctx context.Context) (clash.Configs, error)
}

// SnapshotCache keeps the last good topology across restarts.
type SnapshotCache interface {
	LoadSnapshot(ctx context.Context) (topology.Snapshot, bool, error)
	SaveSnapshot(ctx context.Context, snap topology.Snapshot) error
}

// ReconcileObserver is told about every reconciliation attempt.
type ReconcileObserver interface {
	ObserveReconcile(err error)
}

// Reconciler periodically replaces the store's topology with the daemon's.
type Reconciler struct {
	fetcher       Fetcher
	store         *topology.Store
	cache         SnapshotCache // nil when persistence is disabled
	observer      ReconcileObserver
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
	flight        singleflight.Group
}

// NewReconciler creates a reconciler. manualTrigger should be buffered (size 1).
func NewReconciler(
	fetcher Fetcher,
	store *topology.Store,
	cache SnapshotCache,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *Reconciler {
	if manualTrigger == nil {
		manualTrigger = make(chan struct{}, 1)
	}
	return &Reconciler{
		fetcher:       fetcher,
		store:         store,
		cache:         cache,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// SetObserver registers o for reconciliation outcomes.
func (r *Reconciler) SetObserver(o ReconcileObserver) {
	r.observer = o
}

// Start seeds the store from the cache, reconciles once and then keeps
// reconciling on the interval and on Trigger until ctx ends or Stop is called.
// A failing first fetch is logged; the loop keeps running.
func (r *Reconciler) Start(ctx context.Context) {
	r.seed(ctx)

	if err := r.Reconcile(ctx); err != nil {
		r.logger.Warn("initial reconciliation failed", logger.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.reconcileAndLog(ctx)
			case <-r.manualTrigger:
				r.logger.Debug("manual reconciliation triggered")
				r.reconcileAndLog(ctx)
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the loop. Safe to call more than once.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Trigger asks for a reconciliation as soon as possible. Requests made while
// one is already pending collapse into it; those report false.
func (r *Reconciler) Trigger() bool {
	select {
	case r.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Ready reports whether the store holds a topology.
func (r *Reconciler) Ready() error {
	if !r.store.Ready() {
		return ErrNoSnapshot
	}
	return nil
}

// Reconcile fetches the topology and mode and replaces the store's snapshot.
// Concurrent calls share one fetch. On failure the store is left untouched.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	_, err, _ := r.flight.Do("reconcile", func() (any, error) {
		return nil, r.reconcile(ctx)
	})
	return err
}

func (r *Reconciler) reconcileAndLog(ctx context.Context) {
	if err := r.Reconcile(ctx); err != nil {
		r.logger.Warn("reconciliation failed, keeping last snapshot", logger.Error(err))
	}
}

func (r *Reconciler) reconcile(ctx context.Context) (err error) {
	defer func() {
		if r.observer != nil {
			r.observer.ObserveReconcile(err)
		}
	}()

	proxies, err := r.fetcher.Proxies(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch proxies: %w", err)
	}
	cfg, err := r.fetcher.Configs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch configs: %w", err)
	}

	snap := topology.Snapshot{Nodes: clash.ToNodes(proxies), Mode: cfg.Mode}
	r.store.ReplaceSnapshot(snap)

	r.logger.Debug("topology reconciled",
		logger.Int("nodes", len(snap.Nodes)),
		logger.String("mode", snap.Mode),
		logger.String("display", r.store.DisplayGroup()))

	// Update cache (best effort)
	if r.cache != nil {
		if err := r.cache.SaveSnapshot(ctx, snap); err != nil {
			r.logger.Warn("failed to cache topology snapshot", logger.Error(err))
		}
	}
	return nil
}

// seed loads the cached snapshot so the API has something to serve before
// the daemon answers. A store that already has data is left alone.
func (r *Reconciler) seed(ctx context.Context) {
	if r.cache == nil || r.store.Ready() {
		return
	}
	snap, ok, err := r.cache.LoadSnapshot(ctx)
	if err != nil {
		r.logger.Warn("failed to load cached topology", logger.Error(err))
		return
	}
	if !ok {
		return
	}
	r.store.ReplaceSnapshot(snap)
	r.logger.Info("seeded topology from cache", logger.Int("nodes", len(snap.Nodes)))
}

// internal/service/metrics/coordinator.go
package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"fedportal-service/internal/domain/metrics"
)

// Broadcaster receives freshly applied snapshots for push delivery.
// Implemented by the websocket hub; a nil broadcaster is a no-op.
type Broadcaster interface {
	SnapshotUpdated(snap *metrics.Snapshot)
}

// snapshotSource lets tests drive the coordinator without a database.
type snapshotSource interface {
	ComputeSnapshot(ctx context.Context, q metrics.Query) (*metrics.Snapshot, error)
}

type cacheEntry struct {
	snap  *metrics.Snapshot
	epoch uint64
}

// Coordinator owns the shared live snapshots. Change notifications for any
// category funnel into one goroutine which debounces them with a quiet
// window and recomputes every tracked range exactly once per window. Each
// recompute round carries an epoch token; a completion whose epoch is older
// than what the cache already holds is discarded.
//
// Only the unrestricted scope is cached and kept live: restricted scopes
// are pinned to a single owner and cheap enough to compute per request.
type Coordinator struct {
	source    snapshotSource
	logger    *zap.Logger
	window    time.Duration
	broadcast Broadcaster

	invalidations chan metrics.Invalidation
	refreshes     chan metrics.TimeRange

	epoch atomic.Uint64

	mu      sync.RWMutex
	cache   map[metrics.TimeRange]*cacheEntry
	loading bool
	loaded  bool
}

func NewCoordinator(source snapshotSource, logger *zap.Logger, window time.Duration, broadcast Broadcaster) *Coordinator {
	return &Coordinator{
		source:        source,
		logger:        logger,
		window:        window,
		broadcast:     broadcast,
		invalidations: make(chan metrics.Invalidation, 64),
		refreshes:     make(chan metrics.TimeRange, 8),
		cache:         make(map[metrics.TimeRange]*cacheEntry),
	}
}

// Invalidations is the sink change notifications are delivered to. Sends
// should be non-blocking; a dropped signal coalesces into the next one.
func (c *Coordinator) Invalidations() chan<- metrics.Invalidation {
	return c.invalidations
}

// Invalidate queues a change notification for one category.
func (c *Coordinator) Invalidate(inv metrics.Invalidation) {
	select {
	case c.invalidations <- inv:
	default:
	}
}

// Refresh forces an immediate recompute of one range, bypassing the quiet
// window. Used by the manual refresh endpoint.
func (c *Coordinator) Refresh(rng metrics.TimeRange) {
	select {
	case c.refreshes <- rng:
	default:
	}
}

// Loading reports whether the first load is still in flight. Debounced
// recomputes never flip it back.
func (c *Coordinator) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Snapshot serves the live cached snapshot for unrestricted queries,
// computing and caching on first request per range. Restricted queries are
// always computed fresh.
func (c *Coordinator) Snapshot(ctx context.Context, q metrics.Query) (*metrics.Snapshot, error) {
	if q.Scope.Restricted {
		return c.source.ComputeSnapshot(ctx, q)
	}

	c.mu.RLock()
	entry, ok := c.cache[q.TimeRange]
	c.mu.RUnlock()
	if ok {
		return entry.snap, nil
	}

	return c.firstLoad(ctx, q)
}

func (c *Coordinator) firstLoad(ctx context.Context, q metrics.Query) (*metrics.Snapshot, error) {
	c.mu.Lock()
	if entry, ok := c.cache[q.TimeRange]; ok {
		c.mu.Unlock()
		return entry.snap, nil
	}
	if !c.loaded {
		c.loading = true
	}
	c.mu.Unlock()

	epoch := c.epoch.Add(1)
	snap, err := c.source.ComputeSnapshot(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.loading = false
		c.loaded = true
	}
	if err != nil {
		return nil, err
	}
	c.apply(q.TimeRange, snap, epoch)
	return snap, nil
}

// apply installs a completed snapshot unless a newer round already did.
// Caller holds c.mu.
func (c *Coordinator) apply(rng metrics.TimeRange, snap *metrics.Snapshot, epoch uint64) bool {
	entry, ok := c.cache[rng]
	if ok && entry.epoch > epoch {
		return false
	}
	c.cache[rng] = &cacheEntry{snap: snap, epoch: epoch}
	return true
}

// Run is the coordinator loop. It blocks until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			fire = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return

		case inv := <-c.invalidations:
			c.logger.Debug("metrics invalidated",
				zap.String("category", string(inv.Category)))
			// Restart the quiet window on every signal
			if timer == nil {
				timer = time.NewTimer(c.window)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(c.window)
			}

		case rng := <-c.refreshes:
			c.recompute(ctx, []metrics.TimeRange{rng})

		case <-fire:
			stopTimer()
			c.recompute(ctx, c.trackedRanges())
		}
	}
}

func (c *Coordinator) trackedRanges() []metrics.TimeRange {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ranges := make([]metrics.TimeRange, 0, len(c.cache))
	for rng := range c.cache {
		ranges = append(ranges, rng)
	}
	return ranges
}

// recompute runs one round for the given ranges off the coordinator
// goroutine so a slow query never blocks the debounce loop.
func (c *Coordinator) recompute(ctx context.Context, ranges []metrics.TimeRange) {
	if len(ranges) == 0 {
		return
	}
	epoch := c.epoch.Add(1)

	go func() {
		for _, rng := range ranges {
			q := metrics.Query{TimeRange: rng}
			snap, err := c.source.ComputeSnapshot(ctx, q)
			if err != nil {
				c.logger.Warn("live recompute failed",
					zap.String("range", string(rng)),
					zap.Error(err))
				continue
			}

			c.mu.Lock()
			applied := c.apply(rng, snap, epoch)
			c.mu.Unlock()

			if !applied {
				c.logger.Debug("discarding stale snapshot",
					zap.String("range", string(rng)),
					zap.Uint64("epoch", epoch))
				continue
			}
			if c.broadcast != nil {
				c.broadcast.SnapshotUpdated(snap)
			}
		}
	}()
}

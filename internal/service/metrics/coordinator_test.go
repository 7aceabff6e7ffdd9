package metrics

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	metricsdom "fedportal-service/internal/domain/metrics"
)

type countingSource struct {
	calls atomic.Int64
	gate  chan struct{} // when set, ComputeSnapshot blocks until it closes
}

func (s *countingSource) ComputeSnapshot(ctx context.Context, q metricsdom.Query) (*metricsdom.Snapshot, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	return &metricsdom.Snapshot{
		Query:      q,
		Counts:     map[metricsdom.Category]int{},
		ComputedAt: time.Now(),
	}, nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, "condition not met within timeout")
}

func TestSnapshotFirstLoadCachesUnrestricted(t *testing.T) {
	source := &countingSource{}
	coord := NewCoordinator(source, zap.NewNop(), 50*time.Millisecond, nil)

	q := metricsdom.Query{TimeRange: metricsdom.RangeMonth}

	_, err := coord.Snapshot(context.Background(), q)
	require.NoError(t, err)
	_, err = coord.Snapshot(context.Background(), q)
	require.NoError(t, err)

	// Second request was served from the cache
	assert.Equal(t, int64(1), source.calls.Load())
}

func TestSnapshotRestrictedBypassesCache(t *testing.T) {
	source := &countingSource{}
	coord := NewCoordinator(source, zap.NewNop(), 50*time.Millisecond, nil)

	q := metricsdom.Query{
		Scope:     metricsdom.Scope{Restricted: true, OwnerID: "u1"},
		TimeRange: metricsdom.RangeMonth,
	}

	for i := 0; i < 3; i++ {
		_, err := coord.Snapshot(context.Background(), q)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(3), source.calls.Load())
}

func TestDebounceCoalescesBurstIntoOneRecompute(t *testing.T) {
	source := &countingSource{}
	coord := NewCoordinator(source, zap.NewNop(), 60*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Seed the cache so there is a tracked range to recompute
	_, err := coord.Snapshot(ctx, metricsdom.Query{TimeRange: metricsdom.RangeMonth})
	require.NoError(t, err)
	require.Equal(t, int64(1), source.calls.Load())

	go coord.Run(ctx)

	// Three rapid change signals inside one quiet window
	for i := 0; i < 3; i++ {
		coord.Invalidate(metricsdom.Invalidation{Category: metricsdom.CategoryDocease, At: time.Now()})
		time.Sleep(10 * time.Millisecond)
	}

	waitFor(t, time.Second, func() bool {
		return source.calls.Load() == 2
	})

	// No further recomputes without further signals
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int64(2), source.calls.Load())
}

func TestRefreshBypassesQuietWindow(t *testing.T) {
	source := &countingSource{}
	coord := NewCoordinator(source, zap.NewNop(), time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go coord.Run(ctx)

	coord.Refresh(metricsdom.RangeWeek)

	waitFor(t, time.Second, func() bool {
		return source.calls.Load() == 1
	})
}

func TestLoadingFlagOnlyDuringFirstLoad(t *testing.T) {
	gate := make(chan struct{})
	source := &countingSource{gate: gate}
	coord := NewCoordinator(source, zap.NewNop(), 50*time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = coord.Snapshot(context.Background(), metricsdom.Query{TimeRange: metricsdom.RangeMonth})
	}()

	waitFor(t, time.Second, func() bool {
		return coord.Loading()
	})

	close(gate)
	<-done
	assert.False(t, coord.Loading())

	// A later first-load of another range does not flip it back
	source.gate = nil
	_, err := coord.Snapshot(context.Background(), metricsdom.Query{TimeRange: metricsdom.RangeWeek})
	require.NoError(t, err)
	assert.False(t, coord.Loading())
}

func TestStaleEpochDiscarded(t *testing.T) {
	source := &countingSource{}
	coord := NewCoordinator(source, zap.NewNop(), 50*time.Millisecond, nil)

	fresh := &metricsdom.Snapshot{ActivePrincipalCount: 2}
	stale := &metricsdom.Snapshot{ActivePrincipalCount: 1}

	coord.mu.Lock()
	applied := coord.apply(metricsdom.RangeMonth, fresh, 5)
	discarded := coord.apply(metricsdom.RangeMonth, stale, 3)
	coord.mu.Unlock()

	assert.True(t, applied)
	assert.False(t, discarded)

	snap, err := coord.Snapshot(context.Background(), metricsdom.Query{TimeRange: metricsdom.RangeMonth})
	require.NoError(t, err)
	assert.Equal(t, 2, snap.ActivePrincipalCount)
}

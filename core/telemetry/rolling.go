package telemetry

import (
	"context"
	"math"
	"sync"

	"github.com/usermihir/Agentic-EV/core/model"
)

// RollingStats maintains per-connector session aggregates as a small
// fixed-size summary (count + running mean/variance, Welford update)
// instead of recomputing from full history. Each connector has its own
// lock so updates on unrelated connectors never contend.
type RollingStats struct {
	mu      sync.RWMutex
	entries map[string]*aggregate
}

type aggregate struct {
	mu    sync.Mutex
	count int
	mean  float64
	m2    float64
	queue int
}

// NewRollingStats creates an empty store.
func NewRollingStats() *RollingStats {
	return &RollingStats{entries: map[string]*aggregate{}}
}

func (r *RollingStats) entry(connectorID string) *aggregate {
	r.mu.RLock()
	a := r.entries[connectorID]
	r.mu.RUnlock()
	if a != nil {
		return a
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if a = r.entries[connectorID]; a == nil {
		a = &aggregate{}
		r.entries[connectorID] = a
	}
	return a
}

// RecordSession folds one observed session duration (minutes) into the
// connector's aggregate.
func (r *RollingStats) RecordSession(connectorID string, durationMin float64) {
	if durationMin < 0 {
		return
	}
	a := r.entry(connectorID)
	a.mu.Lock()
	a.count++
	delta := durationMin - a.mean
	a.mean += delta / float64(a.count)
	a.m2 += delta * (durationMin - a.mean)
	a.mu.Unlock()
}

// SetQueueDepth records the number of sessions ahead at a connector.
func (r *RollingStats) SetQueueDepth(connectorID string, depth int) {
	if depth < 0 {
		depth = 0
	}
	a := r.entry(connectorID)
	a.mu.Lock()
	a.queue = depth
	a.mu.Unlock()
}

// Stats implements StatsProvider. A connector without samples reports
// SampleCount 0; callers fall back to type-level defaults.
func (r *RollingStats) Stats(_ context.Context, connectorID string) (Stats, error) {
	r.mu.RLock()
	a := r.entries[connectorID]
	r.mu.RUnlock()
	if a == nil {
		return Stats{}, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Stats{QueueDepth: a.queue, SampleCount: a.count, DurationMean: a.mean}
	if a.count > 1 {
		s.DurationStddev = math.Sqrt(a.m2 / float64(a.count-1))
	}
	return s, nil
}

// BoundedProvider wraps a provider with a hard deadline. On timeout it
// returns model.ErrTimeout so the caller degrades to defaults rather
// than failing the request. The inner call keeps running in its
// goroutine if it overruns; its result is discarded.
func BoundedProvider(inner StatsProvider) StatsProvider {
	return boundedProvider{inner: inner}
}

type boundedProvider struct{ inner StatsProvider }

type statsResult struct {
	stats Stats
	err   error
}

func (b boundedProvider) Stats(ctx context.Context, connectorID string) (Stats, error) {
	ch := make(chan statsResult, 1)
	go func() {
		s, err := b.inner.Stats(ctx, connectorID)
		ch <- statsResult{s, err}
	}()
	select {
	case res := <-ch:
		return res.stats, res.err
	case <-ctx.Done():
		return Stats{}, model.ErrTimeout
	}
}

package sink

import (
	"context"
	"sync"

	"github.com/listenflow/listenflow/pkg/listenflow/derive"
	"github.com/listenflow/listenflow/pkg/listenflow/window"
)

// Memory stores output in memory. It is intended for tests and
// examples; all methods are safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	rows   []derive.Row
	seen   map[string]struct{}
	aggLog []window.Aggregate
	latest map[aggKey]window.Aggregate
	closed bool
}

// aggKey identifies one (window, dimension, key) aggregate.
type aggKey struct {
	start     int64
	end       int64
	dimension string
	key       string
}

// Compile-time interface check.
var _ Sink = (*Memory)(nil)

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{
		seen:   make(map[string]struct{}),
		latest: make(map[aggKey]window.Aggregate),
	}
}

// WriteRows implements RowSink. Rows with an already-seen event_id are
// silently skipped.
func (m *Memory) WriteRows(_ context.Context, rows []derive.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSinkClosed
	}

	for _, row := range rows {
		if _, dup := m.seen[row.EventID]; dup {
			continue
		}
		m.seen[row.EventID] = struct{}{}
		m.rows = append(m.rows, row)
	}
	return nil
}

// WriteAggregates implements AggregateSink. Every write is appended to
// the emission log, and the latest version per (window, dimension, key)
// is kept separately.
func (m *Memory) WriteAggregates(_ context.Context, aggs []window.Aggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSinkClosed
	}

	for _, agg := range aggs {
		m.aggLog = append(m.aggLog, agg)
		m.latest[aggKey{
			start:     agg.WindowStart.UnixNano(),
			end:       agg.WindowEnd.UnixNano(),
			dimension: agg.Dimension,
			key:       agg.Key,
		}] = agg
	}
	return nil
}

// Rows returns a copy of all stored rows in write order.
func (m *Memory) Rows() []derive.Row {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]derive.Row, len(m.rows))
	copy(out, m.rows)
	return out
}

// AggregateLog returns a copy of every aggregate write, including
// superseded re-emissions, in write order.
func (m *Memory) AggregateLog() []window.Aggregate {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]window.Aggregate, len(m.aggLog))
	copy(out, m.aggLog)
	return out
}

// LatestAggregates returns the current version of every aggregate, the
// view a database table would hold after idempotent overwrites.
func (m *Memory) LatestAggregates() []window.Aggregate {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]window.Aggregate, 0, len(m.latest))
	for _, agg := range m.latest {
		out = append(out, agg)
	}
	return out
}

// Close implements Sink.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

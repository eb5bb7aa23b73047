// Package sink persists pipeline output at the two emission boundaries:
// flat per-record rows and windowed aggregates.
//
// Row writes are append-only and idempotent on event_id. Aggregate
// writes upsert on (window_start, window_end, dimension, key) so a
// re-emitted aggregate overwrites its earlier, less complete version.
package sink

import (
	"context"
	"errors"

	"github.com/listenflow/listenflow/pkg/listenflow/derive"
	"github.com/listenflow/listenflow/pkg/listenflow/window"
)

// ErrSinkClosed is returned when operating on a closed sink.
var ErrSinkClosed = errors.New("sink is closed")

// RowSink receives flat per-record rows.
type RowSink interface {
	// WriteRows persists a batch of rows. A duplicate event_id must not
	// produce a duplicate row.
	WriteRows(ctx context.Context, rows []derive.Row) error

	// Close releases resources. Writes after Close return ErrSinkClosed.
	Close() error
}

// AggregateSink receives windowed aggregates.
type AggregateSink interface {
	// WriteAggregates persists a batch of aggregates, overwriting any
	// previous version of the same (window, dimension, key).
	WriteAggregates(ctx context.Context, aggs []window.Aggregate) error

	// Close releases resources. Writes after Close return ErrSinkClosed.
	Close() error
}

// Sink combines both emission boundaries.
type Sink interface {
	RowSink
	AggregateSink
}
